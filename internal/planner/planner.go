// Package planner decides the chapter-type schedule and narrative phase of
// an adventure. Both functions are pure: the schedule depends only on its
// inputs and the supplied random source, the phase only on indexes.
package planner

import (
	"fmt"
	"math"
	"math/rand"

	"adventure-server/internal/domain"
)

// MinChapters is the shortest schedulable adventure: two opening STORY
// chapters, one penultimate STORY chapter and a CONCLUSION.
const MinChapters = 4

// PlanChapterTypes возвращает фиксированное расписание типов глав.
//
// Позиции 0, 1 и len-2 всегда STORY, позиция len-1 всегда CONCLUSION.
// Уроки размещаются равномерной выборкой без повторений по свободным
// позициям [2, len-3]. Расписание детерминировано при фиксированном rng;
// rng сидируется один раз на сессию, а готовое расписание всегда
// персистится вместе с состоянием.
func PlanChapterTypes(totalChapters, availableQuestions int, rng *rand.Rand) ([]domain.ChapterType, error) {
	if totalChapters < MinChapters {
		return nil, fmt.Errorf("%w: need at least %d chapters, got %d", domain.ErrInvalidConfiguration, MinChapters, totalChapters)
	}
	if availableQuestions < 0 {
		availableQuestions = 0
	}

	plan := make([]domain.ChapterType, totalChapters)
	for i := range plan {
		plan[i] = domain.ChapterTypeStory
	}
	plan[totalChapters-1] = domain.ChapterTypeConclusion

	// Free positions are the indexes between the fixed openings and the
	// fixed penultimate STORY chapter.
	freeCount := totalChapters - MinChapters

	requiredLessons := (totalChapters - 1) / 2
	possibleLessons := requiredLessons
	if availableQuestions < possibleLessons {
		possibleLessons = availableQuestions
	}
	if freeCount < possibleLessons {
		possibleLessons = freeCount
	}
	if possibleLessons <= 0 {
		return plan, nil
	}

	for _, offset := range rng.Perm(freeCount)[:possibleLessons] {
		plan[2+offset] = domain.ChapterTypeLesson
	}
	return plan, nil
}

// DetermineStoryPhase maps a chapter position onto the narrative arc.
func DetermineStoryPhase(chapterNumber, storyLength int) domain.StoryPhase {
	switch {
	case chapterNumber <= 1:
		return domain.PhaseExposition
	case chapterNumber >= storyLength:
		return domain.PhaseReturn
	case float64(chapterNumber) <= math.Ceil(float64(storyLength)*0.25):
		return domain.PhaseRising
	case chapterNumber >= storyLength-int(math.Floor(float64(storyLength)*0.25)):
		return domain.PhaseClimax
	default:
		return domain.PhaseTrials
	}
}
