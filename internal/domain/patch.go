package domain

import (
	"encoding/json"
	"fmt"
)

// clientStatePatch is the subset of state fields a client is allowed to
// refine. Anything else the client submits is decoded and thrown away.
type clientStatePatch struct {
	Chapters []chapterPatch `json:"chapters,omitempty"`
}

type chapterPatch struct {
	ChapterNumber int      `json:"chapter_number"`
	Content       *string  `json:"content,omitempty"`
	Choices       []Choice `json:"choices,omitempty"`
}

// ApplyClientPatch merges client-submitted chapter refinements (content or
// choice text cleanups) into the state.
//
// Server-authoritative fields — theme, moral, plot twist, narrative and
// sensory selections, schedule, story length, agency, metadata — are
// snapshotted up front and restored after the merge even when the merge
// partially fails, so a buggy or hostile client can never drift
// session-defining facts. Structural violations return a hard
// *StateValidationError and leave the prior chapter list intact.
func (s *AdventureState) ApplyClientPatch(raw json.RawMessage) error {
	restore := s.authoritativeSnapshot()
	defer restore()

	if len(raw) == 0 {
		return nil
	}

	var patch clientStatePatch
	if err := json.Unmarshal(raw, &patch); err != nil {
		return &StateValidationError{Field: "state", Reason: fmt.Sprintf("unparseable client state: %v", err)}
	}
	if len(patch.Chapters) == 0 {
		return nil
	}

	// Merge into a copy so a structural violation keeps the prior state.
	merged := make([]ChapterData, len(s.Chapters))
	copy(merged, s.Chapters)

	for _, p := range patch.Chapters {
		idx := p.ChapterNumber - 1
		if idx < 0 || idx >= len(merged) {
			return &StateValidationError{Field: "chapters", Reason: fmt.Sprintf("patch targets unknown chapter %d", p.ChapterNumber)}
		}
		if p.Content != nil {
			merged[idx].Content = *p.Content
		}
		if p.Choices != nil {
			merged[idx].Choices = p.Choices
		}
		if err := validateChapterShape(merged[idx]); err != nil {
			return err
		}
	}

	s.Chapters = merged
	return s.Validate()
}

// authoritativeSnapshot captures every server-owned field and returns a
// closure that writes it back. Chapters are deliberately not included:
// they are the merge target and have their own rollback path.
func (s *AdventureState) authoritativeSnapshot() func() {
	id := s.ID
	userID := s.UserID
	length := s.StoryLength
	plan := append([]ChapterType(nil), s.PlannedChapterTypes...)
	theme := s.SelectedTheme
	moral := s.SelectedMoralTeaching
	twist := s.SelectedPlotTwist
	elems := s.SelectedNarrativeElems
	sensory := s.SelectedSensoryDetails
	seed := s.Seed
	agency := s.Agency
	plotTwist := s.PlotTwist
	metadata := s.Metadata

	return func() {
		s.ID = id
		s.UserID = userID
		s.StoryLength = length
		s.PlannedChapterTypes = plan
		s.SelectedTheme = theme
		s.SelectedMoralTeaching = moral
		s.SelectedPlotTwist = twist
		s.SelectedNarrativeElems = elems
		s.SelectedSensoryDetails = sensory
		s.Seed = seed
		s.Agency = agency
		s.PlotTwist = plotTwist
		s.Metadata = metadata
	}
}
