package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// NarrativeElements are the world-building selections fixed at session
// start. Each key has a reconstruction default (see internal/reconstruct).
type NarrativeElements struct {
	Setting    string `json:"setting"`
	Characters string `json:"characters"`
	Objects    string `json:"objects"`
	Events     string `json:"events"`
}

// SensoryDetails are the per-sense flavor anchors fixed at session start.
type SensoryDetails struct {
	Visual string `json:"visual"`
	Sound  string `json:"sound"`
	Smell  string `json:"smell"`
	Touch  string `json:"touch"`
	Taste  string `json:"taste"`
}

// AgencyState записывает элемент, выбранный игроком в первой главе
// (предмет, спутник, роль или способность), на который история ссылается
// до самого конца.
type AgencyState struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// PlotTwistHint is one recorded foreshadowing beat.
type PlotTwistHint struct {
	ChapterNumber int        `json:"chapter_number"`
	Phase         StoryPhase `json:"phase"`
	Hint          string     `json:"hint"`
}

// PlotTwistProgress tracks how much of the selected twist has been
// foreshadowed and whether it has been revealed.
type PlotTwistProgress struct {
	Hints    []PlotTwistHint `json:"hints,omitempty"`
	Revealed bool            `json:"revealed"`
}

// Statistics is the quiz/progress snapshot attached to story_complete and
// the SUMMARY chapter.
type Statistics struct {
	ChaptersCompleted int `json:"chaptersCompleted"`
	QuestionsAnswered int `json:"questionsAnswered"`
	CorrectAnswers    int `json:"correctAnswers"`
}

// AdventureState представляет полное состояние одного приключения.
//
// Поля selected_* выбираются один раз при инициализации и авторитетны на
// стороне сервера: клиентские патчи никогда их не перезаписывают.
// ChapterSummaries/SummaryChapterTitles/CharacterVisuals пишутся фоновыми
// задачами обогащения и защищены внутренним мьютексом.
type AdventureState struct {
	ID                       string             `json:"state_id,omitempty"`
	UserID                   string             `json:"user_id,omitempty"`
	StoryLength              int                `json:"story_length"`
	PlannedChapterTypes      []ChapterType      `json:"planned_chapter_types"`
	Chapters                 []ChapterData      `json:"chapters"`
	CurrentStorytellingPhase StoryPhase         `json:"current_storytelling_phase"`
	SelectedTheme            string             `json:"selected_theme"`
	SelectedMoralTeaching    string             `json:"selected_moral_teaching"`
	SelectedPlotTwist        string             `json:"selected_plot_twist"`
	SelectedNarrativeElems   NarrativeElements  `json:"selected_narrative_elements"`
	SelectedSensoryDetails   SensoryDetails     `json:"selected_sensory_details"`
	ChapterSummaries         []string           `json:"chapter_summaries"`
	SummaryChapterTitles     []string           `json:"summary_chapter_titles"`
	LessonQuestions          []QuestionRecord   `json:"lesson_questions"`
	CharacterVisuals         map[string]string  `json:"character_visuals"`
	Agency                   *AgencyState       `json:"agency,omitempty"`
	PlotTwist                *PlotTwistProgress `json:"plot_twist_progress,omitempty"`
	Metadata                 map[string]any     `json:"metadata,omitempty"`
	IsComplete               bool               `json:"is_complete"`
	Seed                     int64              `json:"seed,omitempty"`

	// mu guards ChapterSummaries, SummaryChapterTitles and CharacterVisuals
	// against concurrent enrichment writers. Everything else is mutated only
	// by the session's own receive loop.
	mu sync.Mutex
}

// NewAdventureState creates a fresh state with a fixed chapter schedule.
func NewAdventureState(storyLength int, plan []ChapterType) *AdventureState {
	return &AdventureState{
		StoryLength:              storyLength,
		PlannedChapterTypes:      plan,
		Chapters:                 make([]ChapterData, 0, storyLength+1),
		CurrentStorytellingPhase: PhaseExposition,
		ChapterSummaries:         []string{},
		SummaryChapterTitles:     []string{},
		LessonQuestions:          []QuestionRecord{},
		CharacterVisuals:         make(map[string]string),
	}
}

// MarshalJSON сериализует состояние под мьютексом обогащения: persist и
// исходящие события, несущие состояние, не должны гонять с фоновыми
// писателями summaries/titles/visuals.
func (s *AdventureState) MarshalJSON() ([]byte, error) {
	type plain AdventureState
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal((*plain)(s))
}

// AppendChapter добавляет главу, строго следующую за последней.
func (s *AdventureState) AppendChapter(ch ChapterData) error {
	expected := len(s.Chapters) + 1
	if ch.ChapterNumber != expected {
		return &SequenceError{Expected: expected, Got: ch.ChapterNumber}
	}
	if err := validateChapterShape(ch); err != nil {
		return err
	}
	if len(s.Chapters) >= s.StoryLength+1 {
		return &StateValidationError{Field: "chapters", Reason: fmt.Sprintf("chapter count exceeds story length %d", s.StoryLength)}
	}
	s.Chapters = append(s.Chapters, ch)
	return nil
}

// RecordResponse attaches a response to an existing chapter. A chapter can
// carry at most one response, and its kind must match what was recorded.
func (s *AdventureState) RecordResponse(chapterNumber int, resp ChapterResponse) error {
	idx := chapterNumber - 1
	if idx < 0 || idx >= len(s.Chapters) {
		return fmt.Errorf("%w: chapter %d", ErrChapterNotFound, chapterNumber)
	}
	ch := &s.Chapters[idx]
	if ch.Response != nil {
		existing := ch.Response
		if (existing.Story != nil && resp.Lesson != nil) || (existing.Lesson != nil && resp.Story != nil) {
			return fmt.Errorf("%w: chapter %d", ErrConflictingResponse, chapterNumber)
		}
	}
	if resp.Lesson != nil && ch.Question != nil {
		ch.Question.UserAnswer = resp.Lesson.Answer
		correct := resp.Lesson.IsCorrect
		ch.Question.IsCorrect = &correct
	}
	ch.Response = &resp
	return nil
}

// Validate проверяет структурные инварианты состояния целиком.
func (s *AdventureState) Validate() error {
	for i, ch := range s.Chapters {
		if ch.ChapterNumber != i+1 {
			return &SequenceError{Expected: i + 1, Got: ch.ChapterNumber}
		}
		if err := validateChapterShape(ch); err != nil {
			return err
		}
	}
	if n := len(s.PlannedChapterTypes); n > 0 {
		if n != s.StoryLength {
			return &StateValidationError{Field: "planned_chapter_types", Reason: fmt.Sprintf("length %d != story_length %d", n, s.StoryLength)}
		}
		if n < 4 {
			return &StateValidationError{Field: "planned_chapter_types", Reason: fmt.Sprintf("schedule of %d chapters is below the 4-chapter minimum", n)}
		}
		if s.PlannedChapterTypes[0] != ChapterTypeStory || s.PlannedChapterTypes[1] != ChapterTypeStory {
			return &StateValidationError{Field: "planned_chapter_types", Reason: "first two chapters must be STORY"}
		}
		if s.PlannedChapterTypes[n-2] != ChapterTypeStory {
			return &StateValidationError{Field: "planned_chapter_types", Reason: "penultimate chapter must be STORY"}
		}
		if s.PlannedChapterTypes[n-1] != ChapterTypeConclusion {
			return &StateValidationError{Field: "planned_chapter_types", Reason: "last chapter must be CONCLUSION"}
		}
	}
	if len(s.Chapters) > s.StoryLength+1 {
		return &StateValidationError{Field: "chapters", Reason: "more chapters than story length allows"}
	}
	return nil
}

func validateChapterShape(ch ChapterData) error {
	if required := ch.ChapterType.RequiredChoices(); required >= 0 && len(ch.Choices) != required {
		return &StateValidationError{
			Field:  "choices",
			Reason: fmt.Sprintf("%s chapter %d has %d choices, expected %d", ch.ChapterType, ch.ChapterNumber, len(ch.Choices), required),
		}
	}
	return nil
}

// CurrentChapterNumber returns the number of the most recently appended
// chapter, 0 when the adventure has not started.
func (s *AdventureState) CurrentChapterNumber() int {
	return len(s.Chapters)
}

// Stats computes the quiz/progress snapshot from recorded responses.
func (s *AdventureState) Stats() Statistics {
	var st Statistics
	for _, ch := range s.Chapters {
		if ch.Response != nil {
			st.ChaptersCompleted++
			if ch.Response.Lesson != nil {
				st.QuestionsAnswered++
				if ch.Response.Lesson.IsCorrect {
					st.CorrectAnswers++
				}
			}
		}
	}
	return st
}

// PlaceholderSummary is stored when summary generation fails or has not
// run yet; it keeps the session alive and the lists index-aligned.
const (
	PlaceholderSummary = "A mysterious chapter unfolded."
	PlaceholderTitle   = "Chapter"
)

// SetChapterSummary записывает сводку и заголовок главы под блокировкой,
// дополняя списки заглушками до нужного индекса. index отсчитывается от
// нуля и соответствует главе index+1.
func (s *AdventureState) SetChapterSummary(index int, title, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.padSummariesLocked(index + 1)
	s.SummaryChapterTitles[index] = title
	s.ChapterSummaries[index] = summary
}

func (s *AdventureState) padSummariesLocked(upTo int) {
	for len(s.ChapterSummaries) < upTo {
		s.ChapterSummaries = append(s.ChapterSummaries, PlaceholderSummary)
	}
	for len(s.SummaryChapterTitles) < upTo {
		s.SummaryChapterTitles = append(s.SummaryChapterTitles, fmt.Sprintf("%s %d", PlaceholderTitle, len(s.SummaryChapterTitles)+1))
	}
}

// MergeCharacterVisuals merges extracted visual descriptions under the
// enrichment lock. Existing entries are never overwritten: the first
// extracted description of a character wins, later chapters only add.
func (s *AdventureState) MergeCharacterVisuals(visuals map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CharacterVisuals == nil {
		s.CharacterVisuals = make(map[string]string)
	}
	for name, desc := range visuals {
		if _, exists := s.CharacterVisuals[name]; !exists && desc != "" {
			s.CharacterVisuals[name] = desc
		}
	}
}

// SummariesSnapshot returns copies of the summary lists, padded to cover
// every chapter currently appended, under the enrichment lock.
func (s *AdventureState) SummariesSnapshot() (titles, summaries []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.padSummariesLocked(len(s.Chapters))
	titles = append([]string(nil), s.SummaryChapterTitles...)
	summaries = append([]string(nil), s.ChapterSummaries...)
	return titles, summaries
}

// MissingSummaryIndexes reports zero-based chapter indexes that still hold
// a placeholder or no summary at all. Used at reveal time to generate the
// stragglers synchronously.
func (s *AdventureState) MissingSummaryIndexes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var missing []int
	for i := range s.Chapters {
		if i >= len(s.ChapterSummaries) || s.ChapterSummaries[i] == "" || s.ChapterSummaries[i] == PlaceholderSummary {
			missing = append(missing, i)
		}
	}
	return missing
}

// CharacterVisualsSnapshot returns a copy of the accumulated visuals.
func (s *AdventureState) CharacterVisualsSnapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.CharacterVisuals))
	for k, v := range s.CharacterVisuals {
		out[k] = v
	}
	return out
}

// SoftConsistencyWarnings runs the non-blocking element checks: tracked
// narrative selections should appear somewhere in the generated prose, and
// the plot twist must not surface verbatim before the Climax phase. These
// only ever produce warnings, never errors.
func (s *AdventureState) SoftConsistencyWarnings() []string {
	if len(s.Chapters) == 0 {
		return nil
	}
	var warnings []string
	var all strings.Builder
	for _, ch := range s.Chapters {
		all.WriteString(ch.Content)
		all.WriteString("\n")
	}
	text := strings.ToLower(all.String())

	if s.Agency != nil && s.Agency.Name != "" && !strings.Contains(text, strings.ToLower(s.Agency.Name)) {
		warnings = append(warnings, fmt.Sprintf("agency %q is never referenced in chapter text", s.Agency.Name))
	}
	if s.SelectedTheme != "" && !strings.Contains(text, strings.ToLower(firstWord(s.SelectedTheme))) {
		warnings = append(warnings, fmt.Sprintf("theme %q not found in chapter text", s.SelectedTheme))
	}
	if s.SelectedPlotTwist != "" {
		for _, ch := range s.Chapters {
			phase := s.phaseOf(ch.ChapterNumber)
			if phase != PhaseClimax && phase != PhaseReturn &&
				strings.Contains(strings.ToLower(ch.Content), strings.ToLower(s.SelectedPlotTwist)) {
				warnings = append(warnings, fmt.Sprintf("plot twist revealed prematurely in chapter %d (%s phase)", ch.ChapterNumber, phase))
			}
		}
	}
	return warnings
}

// phaseOf mirrors the planner's phase derivation for soft checks only.
func (s *AdventureState) phaseOf(chapterNumber int) StoryPhase {
	switch {
	case chapterNumber == 1:
		return PhaseExposition
	case chapterNumber == s.StoryLength:
		return PhaseReturn
	case chapterNumber*4 <= s.StoryLength+3: // chapterNumber <= ceil(len/4)
		return PhaseRising
	case chapterNumber >= s.StoryLength-s.StoryLength/4:
		return PhaseClimax
	default:
		return PhaseTrials
	}
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	return fields[0]
}
