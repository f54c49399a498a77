package content_test

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adventure-server/internal/content"
)

func TestLoad(t *testing.T) {
	t.Run("valid pack", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pack.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
themes: ["caring for nature"]
questions:
  - question: "Red planet?"
    topic: astronomy
    correct_answer: "Mars"
    answers: ["Mars", "Venus"]
`), 0o644))

		repo, err := content.Load(path)
		require.NoError(t, err)
		assert.Equal(t, 1, repo.AvailableQuestions())

		qs := repo.Questions()
		require.Len(t, qs, 1)
		assert.Equal(t, "Mars", qs[0].CorrectAnswer)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := content.Load("/nonexistent/pack.yaml")
		require.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pack.yaml")
		require.NoError(t, os.WriteFile(path, []byte("themes: [unclosed"), 0o644))
		_, err := content.Load(path)
		require.Error(t, err)
	})
}

func TestSelections(t *testing.T) {
	t.Run("draws from pools deterministically", func(t *testing.T) {
		repo := content.New(content.File{
			Themes:     []string{"a", "b", "c"},
			PlotTwists: []string{"x", "y"},
		})
		theme1, _, twist1, _, _ := repo.Selections(rand.New(rand.NewSource(7)))
		theme2, _, twist2, _, _ := repo.Selections(rand.New(rand.NewSource(7)))
		assert.Equal(t, theme1, theme2)
		assert.Equal(t, twist1, twist2)
	})

	t.Run("empty pools fall back", func(t *testing.T) {
		repo := content.New(content.File{})
		theme, moral, twist, elems, sensory := repo.Selections(rand.New(rand.NewSource(1)))
		assert.NotEmpty(t, theme)
		assert.NotEmpty(t, moral)
		assert.NotEmpty(t, twist)
		assert.NotEmpty(t, elems.Setting)
		assert.NotEmpty(t, sensory.Taste)
	})

	t.Run("questions are defensive copies", func(t *testing.T) {
		repo := content.New(content.File{Questions: []content.Question{{
			Question: "q", CorrectAnswer: "a", Answers: []string{"a", "b"},
		}}})
		qs := repo.Questions()
		qs[0].Answers[0] = "mutated"
		assert.Equal(t, "a", repo.Questions()[0].Answers[0])
	})
}
