// Package reconstruct rebuilds a usable AdventureState from possibly
// corrupted persisted JSON. Historical clients and a few bad deploys left
// states with missing selections, stringly-typed chapter types and absent
// schedules; everything here is about repairing those without ever
// panicking on malformed input.
package reconstruct

import (
	"encoding/json"
	"math/rand"
	"strings"

	"github.com/rs/zerolog"

	"adventure-server/internal/domain"
	"adventure-server/internal/planner"
)

// Named defaults applied to missing server-side selections. They are
// deliberately bland: a repaired session should read as generic, not wrong.
const (
	DefaultTheme         = "friendship and courage"
	DefaultMoralTeaching = "kindness finds its way back"
	DefaultPlotTwist     = "a quiet companion turns out to have been the hero's guardian all along"
)

var defaultNarrativeElements = domain.NarrativeElements{
	Setting:    "an ancient forest at the edge of the map",
	Characters: "a patient guide with a knowing smile",
	Objects:    "a compass that hums near hidden paths",
	Events:     "a storm that arrives without warning",
}

var defaultSensoryDetails = domain.SensoryDetails{
	Visual: "long shadows in golden light",
	Sound:  "leaves whispering overhead",
	Smell:  "rain on warm stone",
	Touch:  "moss soft underfoot",
	Taste:  "wild berries, sharp and sweet",
}

// Reconstructor repairs persisted adventure states.
type Reconstructor struct {
	logger             zerolog.Logger
	availableQuestions int
}

// New creates a Reconstructor. availableQuestions bounds lesson scheduling
// when a missing schedule has to be regenerated.
func New(logger zerolog.Logger, availableQuestions int) *Reconstructor {
	return &Reconstructor{
		logger:             logger.With().Str("component", "Reconstructor").Logger(),
		availableQuestions: availableQuestions,
	}
}

// rawProbe mirrors just enough of the persisted layout to tell a missing
// field from an empty one.
type rawProbe struct {
	StoryLength         *int              `json:"story_length"`
	PlannedChapterTypes []string          `json:"planned_chapter_types"`
	SelectedTheme       *string           `json:"selected_theme"`
	SelectedMoral       *string           `json:"selected_moral_teaching"`
	SelectedPlotTwist   *string           `json:"selected_plot_twist"`
	NarrativeElems      map[string]string `json:"selected_narrative_elements"`
	SensoryDetails      map[string]string `json:"selected_sensory_details"`
	Chapters            []struct {
		ChapterType string `json:"chapter_type"`
	} `json:"chapters"`
}

// Reconstruct rebuilds a valid state from raw persisted JSON. It returns
// ok=false only when the input is fundamentally unusable (undecodable, or
// story_length missing/non-positive); the caller starts a fresh session in
// that case instead of crashing.
func (r *Reconstructor) Reconstruct(raw []byte) (*domain.AdventureState, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	var probe rawProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		r.logger.Warn().Err(err).Msg("persisted state is not valid JSON, starting fresh")
		return nil, false
	}
	if probe.StoryLength == nil || *probe.StoryLength < planner.MinChapters {
		r.logger.Warn().Interface("story_length", probe.StoryLength).Msg("persisted state has unusable story_length, starting fresh")
		return nil, false
	}

	var state domain.AdventureState
	if err := json.Unmarshal(raw, &state); err != nil {
		// The probe decoded, so only a deep field is malformed; the typed
		// decode dropped it. Log and continue with what survived.
		r.logger.Warn().Err(err).Msg("partial decode of persisted state")
	}
	state.StoryLength = *probe.StoryLength

	r.fillDefaults(&state, &probe)
	r.repairSchedule(&state, &probe)
	r.logUnknownChapterTypes(&probe)

	if state.CharacterVisuals == nil {
		state.CharacterVisuals = make(map[string]string)
	}
	if state.ChapterSummaries == nil {
		state.ChapterSummaries = []string{}
	}
	if state.SummaryChapterTitles == nil {
		state.SummaryChapterTitles = []string{}
	}
	state.CurrentStorytellingPhase = planner.DetermineStoryPhase(maxInt(len(state.Chapters), 1), state.StoryLength)

	return &state, true
}

// fillDefaults applies the per-field default table for missing selections.
func (r *Reconstructor) fillDefaults(state *domain.AdventureState, probe *rawProbe) {
	if probe.SelectedTheme == nil || state.SelectedTheme == "" {
		state.SelectedTheme = DefaultTheme
	}
	if probe.SelectedMoral == nil || state.SelectedMoralTeaching == "" {
		state.SelectedMoralTeaching = DefaultMoralTeaching
	}
	if probe.SelectedPlotTwist == nil || state.SelectedPlotTwist == "" {
		state.SelectedPlotTwist = DefaultPlotTwist
	}

	// Sub-keys default individually: a state that lost only "smell" keeps
	// its other four senses.
	if state.SelectedNarrativeElems.Setting == "" {
		state.SelectedNarrativeElems.Setting = defaultNarrativeElements.Setting
	}
	if state.SelectedNarrativeElems.Characters == "" {
		state.SelectedNarrativeElems.Characters = defaultNarrativeElements.Characters
	}
	if state.SelectedNarrativeElems.Objects == "" {
		state.SelectedNarrativeElems.Objects = defaultNarrativeElements.Objects
	}
	if state.SelectedNarrativeElems.Events == "" {
		state.SelectedNarrativeElems.Events = defaultNarrativeElements.Events
	}
	if state.SelectedSensoryDetails.Visual == "" {
		state.SelectedSensoryDetails.Visual = defaultSensoryDetails.Visual
	}
	if state.SelectedSensoryDetails.Sound == "" {
		state.SelectedSensoryDetails.Sound = defaultSensoryDetails.Sound
	}
	if state.SelectedSensoryDetails.Smell == "" {
		state.SelectedSensoryDetails.Smell = defaultSensoryDetails.Smell
	}
	if state.SelectedSensoryDetails.Touch == "" {
		state.SelectedSensoryDetails.Touch = defaultSensoryDetails.Touch
	}
	if state.SelectedSensoryDetails.Taste == "" {
		state.SelectedSensoryDetails.Taste = defaultSensoryDetails.Taste
	}
}

// repairSchedule rebuilds planned_chapter_types when it is missing or the
// wrong length, and unconditionally forces the final type to CONCLUSION to
// repair a known historical corruption.
func (r *Reconstructor) repairSchedule(state *domain.AdventureState, probe *rawProbe) {
	length := state.StoryLength

	if len(probe.PlannedChapterTypes) == length {
		// Normalize the stored strings through the single boundary parser.
		plan := make([]domain.ChapterType, length)
		for i, rawType := range probe.PlannedChapterTypes {
			parsed, known := domain.ParseChapterType(rawType)
			if !known {
				r.logger.Warn().Str("chapter_type", rawType).Int("position", i).Msg("unknown planned chapter type, defaulting to STORY")
			}
			plan[i] = parsed
		}
		plan[length-1] = domain.ChapterTypeConclusion
		state.PlannedChapterTypes = plan
		return
	}

	// Schedule missing (or corrupted to the wrong length): infer from the
	// chapters that already exist, then let the planner fill the tail.
	inferred := make([]domain.ChapterType, 0, len(state.Chapters))
	for i, ch := range state.Chapters {
		inferred = append(inferred, inferChapterType(ch, i == length-1))
	}

	plan := make([]domain.ChapterType, length)
	rng := rand.New(rand.NewSource(state.Seed))
	if regenerated, err := planner.PlanChapterTypes(length, r.availableQuestions, rng); err == nil {
		copy(plan, regenerated)
	} else {
		for i := range plan {
			plan[i] = domain.ChapterTypeStory
		}
	}
	copy(plan, inferred)
	plan[length-1] = domain.ChapterTypeConclusion
	state.PlannedChapterTypes = plan

	r.logger.Info().
		Int("inferred", len(inferred)).
		Int("story_length", length).
		Msg("regenerated missing chapter schedule")
}

// inferChapterType derives a chapter's type from its content when the
// schedule was lost.
func inferChapterType(ch domain.ChapterData, lastOfStory bool) domain.ChapterType {
	switch {
	case lastOfStory || ch.ChapterType == domain.ChapterTypeConclusion:
		return domain.ChapterTypeConclusion
	case ch.Question != nil:
		return domain.ChapterTypeLesson
	case looksLikeReflection(ch.Content):
		return domain.ChapterTypeReflect
	default:
		return domain.ChapterTypeStory
	}
}

// looksLikeReflection matches the prompt scaffolding reflection chapters
// always open with.
func looksLikeReflection(content string) bool {
	head := strings.ToLower(content)
	if len(head) > 400 {
		head = head[:400]
	}
	return strings.Contains(head, "looking back") ||
		strings.Contains(head, "reflect on") ||
		strings.Contains(head, "what have we learned")
}

func (r *Reconstructor) logUnknownChapterTypes(probe *rawProbe) {
	for i, ch := range probe.Chapters {
		if _, known := domain.ParseChapterType(ch.ChapterType); !known {
			r.logger.Warn().Str("chapter_type", ch.ChapterType).Int("chapter", i+1).Msg("unknown chapter type in persisted chapter, defaulted to STORY")
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
