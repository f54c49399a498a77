package session

import (
	"bytes"
	"encoding/json"
	"fmt"

	"adventure-server/internal/domain"
)

// ClientMessage is the envelope every client frame decodes into. State
// carries optional partial state fields (resumption id, chapter
// refinements); Choice is "start", "reveal_summary", or a choice object.
type ClientMessage struct {
	State  json.RawMessage `json:"state,omitempty"`
	Choice json.RawMessage `json:"choice,omitempty"`
}

// ChoicePayload is the object form of a choice.
type ChoicePayload struct {
	ChosenPath string `json:"chosen_path"`
	ChoiceText string `json:"choice_text"`
}

// Choice command strings.
const (
	choiceStart         = "start"
	choiceRevealSummary = "reveal_summary"
)

// stateHints are the resumption fields a client may send in State.
type stateHints struct {
	StateID string `json:"state_id,omitempty"`
}

func (m *ClientMessage) stateHints() stateHints {
	var hints stateHints
	if len(m.State) > 0 {
		_ = json.Unmarshal(m.State, &hints)
	}
	return hints
}

// parseChoice splits the polymorphic choice field into either a command
// string or a payload.
func (m *ClientMessage) parseChoice() (command string, payload *ChoicePayload, err error) {
	if len(m.Choice) == 0 {
		return "", nil, nil
	}
	trimmed := bytes.TrimSpace(m.Choice)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", nil, fmt.Errorf("malformed choice string: %w", err)
		}
		return s, nil, nil
	}
	var p ChoicePayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return "", nil, fmt.Errorf("malformed choice object: %w", err)
	}
	return "", &p, nil
}

// Server event payloads. Every JSON frame the server sends carries a
// "type" discriminator; raw prose chunks are sent as plain text frames
// between chapter_update and the closing choices/hide_loader event.

type adventureStatusEvent struct {
	Type   string `json:"type"`
	Status string `json:"status"` // "new" | "existing"
}

type adventureLoadedEvent struct {
	Type           string `json:"type"`
	CurrentChapter int    `json:"current_chapter"`
	TotalChapters  int    `json:"total_chapters"`
}

type chapterUpdateEvent struct {
	Type           string                 `json:"type"`
	CurrentChapter int                    `json:"current_chapter"`
	TotalChapters  int                    `json:"total_chapters"`
	State          *domain.AdventureState `json:"state,omitempty"`
}

type choicesEvent struct {
	Type    string          `json:"type"`
	Choices []domain.Choice `json:"choices"`
}

type hideLoaderEvent struct {
	Type string `json:"type"`
}

type imageUpdateEvent struct {
	Type          string `json:"type"` // "chapter_image_update" | "choice_image_update"
	ChapterNumber int    `json:"chapter_number"`
	Image         string `json:"image"` // base64
}

type storyCompleteEvent struct {
	Type  string             `json:"type"`
	State storyCompleteState `json:"state"`
}

type storyCompleteState struct {
	Stats domain.Statistics `json:"stats"`
}

type summaryReadyEvent struct {
	Type    string `json:"type"`
	StateID string `json:"state_id"`
}

type summaryCompleteEvent struct {
	Type  string                 `json:"type"`
	State *domain.AdventureState `json:"state"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newAdventureStatus(status string) adventureStatusEvent {
	return adventureStatusEvent{Type: "adventure_status", Status: status}
}

func newAdventureLoaded(current, total int) adventureLoadedEvent {
	return adventureLoadedEvent{Type: "adventure_loaded", CurrentChapter: current, TotalChapters: total}
}

func newChapterUpdate(current, total int, state *domain.AdventureState) chapterUpdateEvent {
	return chapterUpdateEvent{Type: "chapter_update", CurrentChapter: current, TotalChapters: total, State: state}
}

func newChoices(choices []domain.Choice) choicesEvent {
	return choicesEvent{Type: "choices", Choices: choices}
}

func newHideLoader() hideLoaderEvent {
	return hideLoaderEvent{Type: "hide_loader"}
}

func newChapterImage(chapter int, image string) imageUpdateEvent {
	return imageUpdateEvent{Type: "chapter_image_update", ChapterNumber: chapter, Image: image}
}

func newChoiceImage(chapter int, image string) imageUpdateEvent {
	return imageUpdateEvent{Type: "choice_image_update", ChapterNumber: chapter, Image: image}
}

func newStoryComplete(stats domain.Statistics) storyCompleteEvent {
	return storyCompleteEvent{Type: "story_complete", State: storyCompleteState{Stats: stats}}
}

func newSummaryReady(stateID string) summaryReadyEvent {
	return summaryReadyEvent{Type: "summary_ready", StateID: stateID}
}

func newSummaryComplete(state *domain.AdventureState) summaryCompleteEvent {
	return summaryCompleteEvent{Type: "summary_complete", State: state}
}

func newError(message string) errorEvent {
	return errorEvent{Type: "error", Message: message}
}
