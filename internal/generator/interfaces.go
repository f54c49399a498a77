// Package generator defines the content-generation collaborators the
// session engine consumes and the OpenAI-compatible adapter that
// implements them. The engine never talks to a model directly: it sees a
// prompt-in/text-stream-out service and nothing else.
package generator

import (
	"context"
	"time"

	"adventure-server/internal/domain"
)

// ChapterRequest carries everything the backend needs to write one chapter.
type ChapterRequest struct {
	State           *domain.AdventureState
	ChapterNumber   int
	ChapterType     domain.ChapterType
	Phase           domain.StoryPhase
	Question        *domain.QuestionRecord
	PreviousLessons []domain.QuestionRecord
}

// TextStream yields chapter prose incrementally. Recv returns io.EOF when
// the stream is exhausted. A stream is restartable per call but never
// mid-stream: on error the caller requests a fresh chapter.
type TextStream interface {
	Recv() (string, error)
	Close() error
}

// ChapterStreamer is the §6 streamChapter collaborator.
type ChapterStreamer interface {
	StreamChapter(ctx context.Context, req ChapterRequest) (TextStream, error)
}

// TextGenerator produces one-shot completions. Used by enrichment
// (summaries, titles, character-visual extraction) and by the synchronous
// fill-in at reveal time.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ImageGenerator produces a base64 image for a prompt within a bounded
// timeout. On expiry or failure it returns an empty string and no error:
// images are decoration, not state.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}
