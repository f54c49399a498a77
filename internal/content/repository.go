// Package content holds the curated pools the engine draws from at
// session init: lesson questions and the narrative selection options.
//
// The repository is constructed explicitly and passed into the engine.
// There is deliberately no package-level cache: earlier iterations of this
// system hid loaders behind module singletons and paid for it every time a
// test needed different content.
package content

import (
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"adventure-server/internal/domain"
)

// Question is the on-disk shape of one lesson question.
type Question struct {
	Question      string   `yaml:"question"`
	Topic         string   `yaml:"topic"`
	CorrectAnswer string   `yaml:"correct_answer"`
	Answers       []string `yaml:"answers"`
	Explanation   string   `yaml:"explanation"`
}

// File is the YAML layout of a content pack.
type File struct {
	Themes         []string   `yaml:"themes"`
	MoralTeachings []string   `yaml:"moral_teachings"`
	PlotTwists     []string   `yaml:"plot_twists"`
	Settings       []string   `yaml:"settings"`
	Characters     []string   `yaml:"characters"`
	Objects        []string   `yaml:"objects"`
	Events         []string   `yaml:"events"`
	Visuals        []string   `yaml:"visuals"`
	Sounds         []string   `yaml:"sounds"`
	Smells         []string   `yaml:"smells"`
	Touches        []string   `yaml:"touches"`
	Tastes         []string   `yaml:"tastes"`
	Questions      []Question `yaml:"questions"`
}

// Repository serves narrative selections and lesson questions.
type Repository struct {
	data File
}

// Load reads a content pack from a YAML file.
func Load(path string) (*Repository, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read content pack %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse content pack %s: %w", path, err)
	}
	return New(f), nil
}

// New builds a repository from already-parsed content.
func New(data File) *Repository {
	return &Repository{data: data}
}

// AvailableQuestions reports how many lesson questions the pack carries.
// The planner caps the LESSON chapter count with this.
func (r *Repository) AvailableQuestions() int {
	return len(r.data.Questions)
}

// Questions returns the full question pool as domain records.
func (r *Repository) Questions() []domain.QuestionRecord {
	out := make([]domain.QuestionRecord, len(r.data.Questions))
	for i, q := range r.data.Questions {
		out[i] = domain.QuestionRecord{
			Question:      q.Question,
			Topic:         q.Topic,
			CorrectAnswer: q.CorrectAnswer,
			Answers:       append([]string(nil), q.Answers...),
			Explanation:   q.Explanation,
		}
	}
	return out
}

// Selections draws the session-defining narrative facts. The rng is the
// session's own seeded source, so a session's selections are reproducible
// from its seed.
func (r *Repository) Selections(rng *rand.Rand) (theme, moral, twist string, elems domain.NarrativeElements, sensory domain.SensoryDetails) {
	theme = pick(rng, r.data.Themes, "friendship and courage")
	moral = pick(rng, r.data.MoralTeachings, "kindness finds its way back")
	twist = pick(rng, r.data.PlotTwists, "a quiet companion turns out to be a guardian")
	elems = domain.NarrativeElements{
		Setting:    pick(rng, r.data.Settings, "an ancient forest"),
		Characters: pick(rng, r.data.Characters, "a patient guide"),
		Objects:    pick(rng, r.data.Objects, "a humming compass"),
		Events:     pick(rng, r.data.Events, "a sudden storm"),
	}
	sensory = domain.SensoryDetails{
		Visual: pick(rng, r.data.Visuals, "long shadows in golden light"),
		Sound:  pick(rng, r.data.Sounds, "leaves whispering overhead"),
		Smell:  pick(rng, r.data.Smells, "rain on warm stone"),
		Touch:  pick(rng, r.data.Touches, "moss soft underfoot"),
		Taste:  pick(rng, r.data.Tastes, "wild berries, sharp and sweet"),
	}
	return theme, moral, twist, elems, sensory
}

func pick(rng *rand.Rand, pool []string, fallback string) string {
	if len(pool) == 0 {
		return fallback
	}
	return pool[rng.Intn(len(pool))]
}
