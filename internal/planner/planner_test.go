package planner_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adventure-server/internal/domain"
	"adventure-server/internal/planner"
)

func TestPlanChapterTypes(t *testing.T) {
	t.Run("rejects too short stories", func(t *testing.T) {
		rng := rand.New(rand.NewSource(1))
		_, err := planner.PlanChapterTypes(3, 5, rng)
		require.Error(t, err)
	})

	t.Run("schedule shape holds for every length and question count", func(t *testing.T) {
		for length := planner.MinChapters; length <= 20; length++ {
			for questions := 0; questions <= 12; questions++ {
				rng := rand.New(rand.NewSource(int64(length*100 + questions)))
				plan, err := planner.PlanChapterTypes(length, questions, rng)
				require.NoError(t, err)
				require.Len(t, plan, length)

				assert.Equal(t, domain.ChapterTypeStory, plan[0])
				assert.Equal(t, domain.ChapterTypeStory, plan[1])
				assert.Equal(t, domain.ChapterTypeStory, plan[length-2])
				assert.Equal(t, domain.ChapterTypeConclusion, plan[length-1])

				lessons := 0
				for _, ct := range plan {
					if ct == domain.ChapterTypeLesson {
						lessons++
					}
				}
				expected := (length - 1) / 2
				if questions < expected {
					expected = questions
				}
				if length-4 < expected {
					expected = length - 4
				}
				assert.Equal(t, expected, lessons,
					"length=%d questions=%d", length, questions)
			}
		}
	})

	t.Run("same seed gives same schedule", func(t *testing.T) {
		a, err := planner.PlanChapterTypes(12, 5, rand.New(rand.NewSource(42)))
		require.NoError(t, err)
		b, err := planner.PlanChapterTypes(12, 5, rand.New(rand.NewSource(42)))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestDetermineStoryPhase(t *testing.T) {
	cases := []struct {
		chapter, length int
		want            domain.StoryPhase
	}{
		{1, 10, domain.PhaseExposition},
		{2, 10, domain.PhaseRising},
		{3, 10, domain.PhaseRising},
		{4, 10, domain.PhaseTrials},
		{7, 10, domain.PhaseTrials},
		{8, 10, domain.PhaseClimax},
		{9, 10, domain.PhaseClimax},
		{10, 10, domain.PhaseReturn},
		{1, 4, domain.PhaseExposition},
		{4, 4, domain.PhaseReturn},
	}
	for _, tc := range cases {
		got := planner.DetermineStoryPhase(tc.chapter, tc.length)
		assert.Equal(t, tc.want, got, "chapter %d of %d", tc.chapter, tc.length)
	}
}
