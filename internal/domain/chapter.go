// Package domain содержит основные доменные модели движка приключений:
// главы, вопросы, ответы игрока и состояние сессии целиком.
package domain

import (
	"encoding/json"
	"strings"
)

// ChapterType classifies a chapter in the planned schedule.
type ChapterType string

const (
	ChapterTypeStory      ChapterType = "STORY"
	ChapterTypeLesson     ChapterType = "LESSON"
	ChapterTypeConclusion ChapterType = "CONCLUSION"
	ChapterTypeReflect    ChapterType = "REFLECT"
	ChapterTypeSummary    ChapterType = "SUMMARY"
)

// StoryChoiceCount is the exact number of branching choices a STORY
// chapter carries.
const StoryChoiceCount = 3

// ParseChapterType normalizes a raw string into a known chapter type.
// Unknown or empty values map to STORY with ok=false so callers can log
// the repair.
func ParseChapterType(raw string) (ChapterType, bool) {
	switch ChapterType(strings.ToUpper(strings.TrimSpace(raw))) {
	case ChapterTypeStory:
		return ChapterTypeStory, true
	case ChapterTypeLesson:
		return ChapterTypeLesson, true
	case ChapterTypeConclusion:
		return ChapterTypeConclusion, true
	case ChapterTypeReflect:
		return ChapterTypeReflect, true
	case ChapterTypeSummary:
		return ChapterTypeSummary, true
	default:
		return ChapterTypeStory, false
	}
}

// RequiredChoices returns the exact choice count the type demands, or -1
// when any count is acceptable.
func (t ChapterType) RequiredChoices() int {
	switch t {
	case ChapterTypeStory:
		return StoryChoiceCount
	case ChapterTypeConclusion, ChapterTypeSummary:
		return 0
	default:
		return -1
	}
}

func (t ChapterType) String() string { return string(t) }

// Choice is one selectable branch offered to the player.
type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionRecord is a quiz question with, once answered, the player's
// answer and its correctness.
type QuestionRecord struct {
	Question      string   `json:"question"`
	Topic         string   `json:"topic,omitempty"`
	CorrectAnswer string   `json:"correct_answer"`
	Answers       []string `json:"answers"`
	Explanation   string   `json:"explanation,omitempty"`
	UserAnswer    string   `json:"user_answer,omitempty"`
	IsCorrect     *bool    `json:"is_correct,omitempty"`
}

// StoryResponse записывает выбор игрока в сюжетной главе.
type StoryResponse struct {
	ChosenPath string `json:"chosen_path"`
	ChoiceText string `json:"choice_text"`
}

// LessonResponse записывает ответ игрока на вопрос урока.
type LessonResponse struct {
	Answer    string `json:"answer"`
	IsCorrect bool   `json:"is_correct"`
}

// ChapterResponse holds exactly one of the two response kinds.
type ChapterResponse struct {
	Story  *StoryResponse  `json:"story,omitempty"`
	Lesson *LessonResponse `json:"lesson,omitempty"`
}

// ChapterData is one generated chapter as the client sees it.
type ChapterData struct {
	ChapterNumber int              `json:"chapter_number"`
	ChapterType   ChapterType      `json:"chapter_type"`
	Content       string           `json:"content"`
	Choices       []Choice         `json:"choices,omitempty"`
	Question      *QuestionRecord  `json:"question,omitempty"`
	Response      *ChapterResponse `json:"response,omitempty"`
	ImageB64      string           `json:"image,omitempty"`
}

// UnmarshalJSON normalizes chapter_type at the codec boundary so stored
// states with lowercase or unknown types never leak bad values inward.
func (c *ChapterData) UnmarshalJSON(data []byte) error {
	type alias ChapterData
	aux := struct {
		ChapterType string `json:"chapter_type"`
		*alias
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.ChapterType, _ = ParseChapterType(aux.ChapterType)
	return nil
}
