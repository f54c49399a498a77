// Package enrich runs deferred chapter enrichment: summary/title
// generation and character-visual extraction. Tasks are enqueued when a
// chapter's response is recorded and spawned only after the next chapter
// has finished streaming, so enrichment overlaps generation instead of
// delaying it.
package enrich

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"adventure-server/internal/domain"
	"adventure-server/internal/generator"
	"adventure-server/internal/telemetry"
)

type taskFunc func(ctx context.Context)

// Coordinator owns the deferred enrichment tasks of one session. It is
// not shared across sessions.
type Coordinator struct {
	state   *domain.AdventureState
	textGen generator.TextGenerator
	sink    *telemetry.Sink
	logger  zerolog.Logger

	mu       sync.Mutex
	deferred []taskFunc
	wg       sync.WaitGroup
}

// NewCoordinator creates a coordinator bound to one session's state.
func NewCoordinator(state *domain.AdventureState, textGen generator.TextGenerator, sink *telemetry.Sink, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		state:   state,
		textGen: textGen,
		sink:    sink,
		logger:  logger.With().Str("component", "EnrichCoordinator").Logger(),
	}
}

// Enqueue stores the two deferred task factories for a completed chapter
// without starting them.
func (c *Coordinator) Enqueue(ch domain.ChapterData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deferred = append(c.deferred,
		func(ctx context.Context) { c.summarizeChapter(ctx, ch) },
		func(ctx context.Context) { c.extractVisuals(ctx, ch) },
	)
}

// RunDeferred spawns every queued task as an independent goroutine and
// clears the queue. Called by the orchestrator immediately after the next
// chapter's stream has fully flushed. The context must outlive the
// connection: already-spawned tasks run to completion best-effort even if
// the client disconnects.
func (c *Coordinator) RunDeferred(ctx context.Context) {
	c.mu.Lock()
	tasks := c.deferred
	c.deferred = nil
	c.mu.Unlock()

	for _, task := range tasks {
		task := task
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			task(ctx)
		}()
	}
}

// AwaitAll blocks until every spawned task has finished, success or
// failure. Called before the reveal-summary reply is computed so no
// chapter is missing a summary when the SUMMARY chapter is built.
func (c *Coordinator) AwaitAll() {
	c.wg.Wait()
}

// PendingCount reports queued-but-unspawned tasks. Test hook.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deferred)
}

// summarizeChapter generates a title and summary for the chapter and
// writes them under the state's enrichment lock. Failure is converted
// into a placeholder and never propagated.
func (c *Coordinator) summarizeChapter(ctx context.Context, ch domain.ChapterData) {
	index := ch.ChapterNumber - 1
	system, user := generator.BuildSummaryPrompt(ch)

	reply, err := c.textGen.GenerateText(ctx, system, user)
	if err != nil {
		c.failSummary(index, err)
		return
	}
	title, summary := generator.ParseSummaryReply(reply)
	if summary == "" {
		c.failSummary(index, fmt.Errorf("no SUMMARY label in reply"))
		return
	}
	if title == "" {
		title = fmt.Sprintf("%s %d", domain.PlaceholderTitle, ch.ChapterNumber)
	}
	c.state.SetChapterSummary(index, title, summary)
	c.logger.Debug().Int("chapter", ch.ChapterNumber).Msg("chapter summary stored")
}

func (c *Coordinator) failSummary(index int, err error) {
	c.logger.Warn().Err(err).Int("chapter", index+1).Msg("summary generation failed, storing placeholder")
	c.sink.EnrichmentFailures.Inc()
	c.state.SetChapterSummary(index,
		fmt.Sprintf("%s %d", domain.PlaceholderTitle, index+1),
		domain.PlaceholderSummary,
	)
}

// extractVisuals pulls character descriptions out of the chapter text and
// merges them into shared state. A failure here only means fewer image
// hints later; it is logged and swallowed.
func (c *Coordinator) extractVisuals(ctx context.Context, ch domain.ChapterData) {
	known := make([]string, 0)
	for name := range c.state.CharacterVisualsSnapshot() {
		known = append(known, name)
	}
	system, user := generator.BuildVisualsPrompt(ch, known)

	reply, err := c.textGen.GenerateText(ctx, system, user)
	if err != nil {
		c.logger.Warn().Err(err).Int("chapter", ch.ChapterNumber).Msg("visual extraction failed")
		c.sink.EnrichmentFailures.Inc()
		return
	}
	visuals, err := generator.ParseVisualsReply(reply)
	if err != nil {
		c.logger.Warn().Err(err).Int("chapter", ch.ChapterNumber).Msg("unparseable visual extraction reply")
		c.sink.EnrichmentFailures.Inc()
		return
	}
	if len(visuals) > 0 {
		c.state.MergeCharacterVisuals(visuals)
		c.logger.Debug().Int("chapter", ch.ChapterNumber).Int("characters", len(visuals)).Msg("character visuals merged")
	}
}
