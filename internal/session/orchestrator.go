// Package session implements the websocket protocol state machine that
// drives one adventure: it receives client messages, asks the planner for
// the next chapter's shape, streams generated prose, schedules deferred
// enrichment and persists progress.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"adventure-server/internal/content"
	"adventure-server/internal/domain"
	"adventure-server/internal/enrich"
	"adventure-server/internal/generator"
	"adventure-server/internal/planner"
	"adventure-server/internal/reconstruct"
	"adventure-server/internal/repository"
	"adventure-server/internal/telemetry"
)

// ClientConn is the transport the orchestrator drives. Implementations
// must serialize concurrent writes; the orchestrator sends image updates
// from goroutines.
type ClientConn interface {
	// ReadMessage blocks for the next client frame.
	ReadMessage() ([]byte, error)
	// WriteEvent sends a JSON event frame.
	WriteEvent(v any) error
	// WriteChunk sends a raw prose chunk as a text frame.
	WriteChunk(text string) error
}

// Protocol states. One connection walks:
// awaiting_connect → awaiting_initial_state → (streaming_chapter ⇄
// awaiting_choice) → story_complete → awaiting_summary_reveal →
// summary_revealed.
type protocolState string

const (
	stateAwaitingConnect       protocolState = "awaiting_connect"
	stateAwaitingInitialState  protocolState = "awaiting_initial_state"
	stateStreamingChapter      protocolState = "streaming_chapter"
	stateAwaitingChoice        protocolState = "awaiting_choice"
	stateStoryComplete         protocolState = "story_complete"
	stateAwaitingSummaryReveal protocolState = "awaiting_summary_reveal"
	stateSummaryRevealed       protocolState = "summary_revealed"
)

// Options tunes per-session behavior.
type Options struct {
	// DefaultStoryLength is used when the client does not request one.
	DefaultStoryLength int
	// MaxStoryLength caps client-requested lengths.
	MaxStoryLength int
	// ImageTimeout bounds every image generation call.
	ImageTimeout time.Duration
	// ImagesEnabled gates the decorative image events entirely.
	ImagesEnabled bool
}

// Orchestrator wires the engine's collaborators together. One instance
// serves all connections; per-connection state lives in liveSession.
type Orchestrator struct {
	opts     Options
	content  *content.Repository
	streamer generator.ChapterStreamer
	textGen  generator.TextGenerator
	imageGen generator.ImageGenerator
	store    repository.StateRepository
	recon    *reconstruct.Reconstructor
	sink     *telemetry.Sink
	logger   zerolog.Logger
}

// NewOrchestrator builds the session orchestrator.
func NewOrchestrator(
	opts Options,
	contentRepo *content.Repository,
	streamer generator.ChapterStreamer,
	textGen generator.TextGenerator,
	imageGen generator.ImageGenerator,
	store repository.StateRepository,
	sink *telemetry.Sink,
	logger zerolog.Logger,
) *Orchestrator {
	if opts.DefaultStoryLength < planner.MinChapters {
		opts.DefaultStoryLength = 10
	}
	if opts.MaxStoryLength < opts.DefaultStoryLength {
		opts.MaxStoryLength = 20
	}
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = 30 * time.Second
	}
	return &Orchestrator{
		opts:     opts,
		content:  contentRepo,
		streamer: streamer,
		textGen:  textGen,
		imageGen: imageGen,
		store:    store,
		recon:    reconstruct.New(logger, contentRepo.AvailableQuestions()),
		sink:     sink,
		logger:   logger.With().Str("component", "SessionOrchestrator").Logger(),
	}
}

// liveSession is the per-connection state of the protocol machine.
type liveSession struct {
	o      *Orchestrator
	conn   ClientConn
	userID string
	logger zerolog.Logger

	proto protocolState
	state *domain.AdventureState
	coord *enrich.Coordinator

	questions    []domain.QuestionRecord
	nextQuestion int

	// bgCtx outlives the connection: already-spawned enrichment runs to
	// completion best-effort after a disconnect.
	bgCtx context.Context
}

// Run owns the receive loop for one connection. It returns when the
// client disconnects or the session reaches its terminal state.
func (o *Orchestrator) Run(ctx context.Context, conn ClientConn, userID string) {
	sess := &liveSession{
		o:      o,
		conn:   conn,
		userID: userID,
		logger: o.logger.With().Str("userID", userID).Logger(),
		proto:  stateAwaitingConnect,
		bgCtx:  context.WithoutCancel(ctx),
	}

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			sess.logger.Info().Err(err).Msg("connection closed, leaving background tasks to finish")
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			sess.sendError("malformed message")
			continue
		}

		sess.handleMessage(ctx, &msg)

		if sess.proto == stateSummaryRevealed {
			sess.logger.Info().Msg("summary revealed, session finished")
			return
		}
	}
}

func (s *liveSession) handleMessage(ctx context.Context, msg *ClientMessage) {
	if s.proto == stateAwaitingConnect {
		s.attemptResume(ctx, msg)
	}

	command, payload, err := msg.parseChoice()
	if err != nil {
		s.sendError(err.Error())
		return
	}

	switch {
	case command == choiceStart:
		s.handleStart(ctx, msg)
	case command == choiceRevealSummary:
		s.handleReveal(ctx)
	case payload != nil:
		s.handleChoice(ctx, msg, payload)
	case command != "":
		s.sendError("unknown choice command")
	}
}

// attemptResume looks the session up by user id first, then by the
// client-generated state id, reconstructs whatever it finds, and replays
// the unanswered chapter. Anything unusable degrades to a fresh session.
func (s *liveSession) attemptResume(ctx context.Context, msg *ClientMessage) {
	hints := msg.stateHints()

	var raw []byte
	var stateID string
	if s.userID != "" {
		if id, err := s.o.store.ActiveStateID(ctx, s.userID); err == nil {
			if blob, err := s.o.store.GetState(ctx, id); err == nil {
				raw, stateID = blob, id
			}
		}
	}
	if raw == nil && hints.StateID != "" {
		if blob, err := s.o.store.GetState(ctx, hints.StateID); err == nil {
			raw, stateID = blob, hints.StateID
		} else if !errors.Is(err, repository.ErrStateNotFound) {
			s.logger.Warn().Err(err).Msg("state lookup failed")
		}
	}

	if raw == nil {
		s.fresh()
		return
	}

	state, ok := s.o.recon.Reconstruct(raw)
	if !ok {
		s.logger.Warn().Str("stateID", stateID).Msg("persisted state unusable, starting fresh")
		s.fresh()
		return
	}

	state.ID = stateID
	if s.userID != "" {
		state.UserID = s.userID
	}
	s.adopt(state)
	s.o.sink.SessionsResumed.Inc()
	s.o.sink.LogEvent("adventure_resumed", map[string]any{"stateID": stateID, "chapters": len(state.Chapters)})

	s.send(newAdventureStatus("existing"))
	s.send(newAdventureLoaded(state.CurrentChapterNumber(), state.StoryLength))

	switch {
	case state.IsComplete:
		s.proto = stateSummaryRevealed
		s.send(newSummaryComplete(state))
	case s.lastChapterUnanswered():
		s.restreamLastChapter()
	case len(state.Chapters) == state.StoryLength:
		s.proto = stateAwaitingSummaryReveal
		s.send(newStoryComplete(state.Stats()))
	case len(state.Chapters) > 0:
		// All generated chapters are answered; pick up where the last
		// connection dropped and generate the next one.
		s.advanceChapter(ctx)
	default:
		s.proto = stateAwaitingInitialState
	}
}

func (s *liveSession) fresh() {
	s.proto = stateAwaitingInitialState
	s.send(newAdventureStatus("new"))
}

// adopt binds a reconstructed or new state to this connection.
func (s *liveSession) adopt(state *domain.AdventureState) {
	s.state = state
	s.coord = enrich.NewCoordinator(state, s.o.textGen, s.o.sink, s.logger)
	s.questions = s.o.content.Questions()
	s.nextQuestion = 0
	// Questions already asked in restored chapters must not repeat.
	for _, asked := range state.LessonQuestions {
		for i := s.nextQuestion; i < len(s.questions); i++ {
			if s.questions[i].Question == asked.Question {
				s.questions[i], s.questions[s.nextQuestion] = s.questions[s.nextQuestion], s.questions[i]
				s.nextQuestion++
				break
			}
		}
	}
}

// handleStart initializes a fresh adventure and streams chapter one. A
// start on a session that already has chapters is a client retry and is
// ignored; a resumed state with zero chapters (chapter one failed before
// anything was appended) keeps its schedule and tries the first chapter
// again.
func (s *liveSession) handleStart(ctx context.Context, msg *ClientMessage) {
	if s.state != nil {
		if len(s.state.Chapters) > 0 {
			s.logger.Debug().Msg("start received on an active session, ignoring")
			return
		}
		s.logger.Info().Str("stateID", s.state.ID).Msg("restarting a resumed session that has no chapters yet")
		s.send(newAdventureLoaded(0, s.state.StoryLength))
		s.advanceChapter(ctx)
		return
	}
	if s.proto != stateAwaitingInitialState {
		s.sendError("session is not ready to start")
		return
	}

	length := s.o.opts.DefaultStoryLength
	var req struct {
		StoryLength int `json:"story_length"`
	}
	if len(msg.State) > 0 {
		_ = json.Unmarshal(msg.State, &req)
	}
	if req.StoryLength >= planner.MinChapters && req.StoryLength <= s.o.opts.MaxStoryLength {
		length = req.StoryLength
	}

	seed := time.Now().UnixNano()
	rng := rand.New(rand.NewSource(seed))
	available := s.o.content.AvailableQuestions()

	plan, err := planner.PlanChapterTypes(length, available, rng)
	if err != nil {
		s.sendError("could not plan the adventure: " + err.Error())
		return
	}

	state := domain.NewAdventureState(length, plan)
	state.Seed = seed
	state.UserID = s.userID
	state.SelectedTheme, state.SelectedMoralTeaching, state.SelectedPlotTwist,
		state.SelectedNarrativeElems, state.SelectedSensoryDetails = s.o.content.Selections(rng)
	state.PlotTwist = &domain.PlotTwistProgress{}

	s.adopt(state)
	s.persist(ctx)
	s.o.sink.SessionsStarted.Inc()
	s.o.sink.LogEvent("adventure_started", map[string]any{"storyLength": length, "lessons": countLessons(plan)})

	s.send(newAdventureLoaded(0, length))
	s.advanceChapter(ctx)
}

// handleChoice records the answer to the chapter that was just read,
// defers its enrichment, and moves on to the next chapter.
func (s *liveSession) handleChoice(ctx context.Context, msg *ClientMessage, payload *ChoicePayload) {
	if s.state == nil {
		s.sendError("no active adventure; send \"start\" first")
		return
	}
	if s.proto == stateAwaitingSummaryReveal || s.proto == stateStoryComplete {
		s.sendError("the story is complete; send \"reveal_summary\"")
		return
	}

	last := s.lastChapter()
	if last == nil {
		s.sendError("no chapter awaiting a choice")
		return
	}

	if last.Response == nil {
		resp := s.buildResponse(last, payload)
		if err := s.state.RecordResponse(last.ChapterNumber, resp); err != nil {
			s.sendError(err.Error())
			return
		}
		s.captureAgency(last, payload)

		if err := s.state.ApplyClientPatch(msg.State); err != nil {
			var sv *domain.StateValidationError
			var sq *domain.SequenceError
			if errors.As(err, &sv) || errors.As(err, &sq) {
				s.sendError(err.Error())
				return
			}
			s.logger.Warn().Err(err).Msg("client patch rejected")
		}
		for _, warning := range s.state.SoftConsistencyWarnings() {
			s.logger.Warn().Str("check", "element_consistency").Msg(warning)
			s.o.sink.LogEvent("consistency_warning", map[string]any{"warning": warning})
		}

		s.coord.Enqueue(*last)
		s.persist(ctx)

		if s.o.opts.ImagesEnabled && resp.Story != nil {
			go s.sendChoiceImage(last.ChapterNumber, payload.ChoiceText)
		}
	} else {
		// The response was recorded but the next chapter failed to
		// generate; the client re-sent its choice to retry.
		s.logger.Info().Int("chapter", last.ChapterNumber).Msg("choice retry after generation failure")
	}

	s.advanceChapter(ctx)
}

func (s *liveSession) buildResponse(ch *domain.ChapterData, payload *ChoicePayload) domain.ChapterResponse {
	if ch.ChapterType == domain.ChapterTypeLesson && ch.Question != nil {
		return domain.ChapterResponse{Lesson: &domain.LessonResponse{
			Answer:    payload.ChoiceText,
			IsCorrect: answersMatch(payload.ChoiceText, ch.Question.CorrectAnswer),
		}}
	}
	return domain.ChapterResponse{Story: &domain.StoryResponse{
		ChosenPath: payload.ChosenPath,
		ChoiceText: payload.ChoiceText,
	}}
}

// captureAgency records the first chapter's choice as the session's
// agency: the item, companion, role or ability the hero carries through
// the rest of the story.
func (s *liveSession) captureAgency(ch *domain.ChapterData, payload *ChoicePayload) {
	if ch.ChapterNumber != 1 || s.state.Agency != nil {
		return
	}
	s.state.Agency = &domain.AgencyState{
		Category:    "hero_choice",
		Name:        payload.ChoiceText,
		Description: "chosen at the start of the adventure",
	}
}

// advanceChapter generates and streams the next planned chapter, then
// spawns the enrichment deferred for the previous one. On generation
// failure the session stays open and the client may retry its choice.
func (s *liveSession) advanceChapter(ctx context.Context) {
	num := s.state.CurrentChapterNumber() + 1
	if num > s.state.StoryLength {
		s.proto = stateAwaitingSummaryReveal
		s.send(newStoryComplete(s.state.Stats()))
		return
	}

	chapterType := s.state.PlannedChapterTypes[num-1]
	phase := planner.DetermineStoryPhase(num, s.state.StoryLength)
	s.state.CurrentStorytellingPhase = phase
	s.proto = stateStreamingChapter

	var question *domain.QuestionRecord
	if chapterType == domain.ChapterTypeLesson {
		question = s.pickQuestion()
		if question == nil {
			// Pool exhausted mid-session (content pack shrank between
			// deploys); degrade the chapter to STORY.
			s.logger.Warn().Int("chapter", num).Msg("no lesson question available, degrading to STORY")
			chapterType = domain.ChapterTypeStory
			s.state.PlannedChapterTypes[num-1] = chapterType
		}
	}

	s.send(newChapterUpdate(num, s.state.StoryLength, s.state))

	chapter, err := s.streamChapter(ctx, num, chapterType, phase, question)
	if err != nil {
		s.o.sink.GenerationFailures.Inc()
		s.logger.Error().Err(err).Int("chapter", num).Msg("chapter generation failed")
		s.send(newHideLoader())
		s.sendError("The storyteller lost the thread. Choose again to retry.")
		if num == 1 {
			s.proto = stateAwaitingInitialState
			s.state = nil
		} else {
			s.proto = stateAwaitingChoice
		}
		return
	}

	if err := s.state.AppendChapter(*chapter); err != nil {
		// Structural bugs, not client input; surface and keep the session.
		s.logger.Error().Err(err).Int("chapter", num).Msg("generated chapter rejected by state")
		s.sendError(err.Error())
		s.proto = stateAwaitingChoice
		return
	}
	if question != nil {
		s.state.LessonQuestions = append(s.state.LessonQuestions, *question)
	}
	if (phase == domain.PhaseClimax || phase == domain.PhaseReturn) && s.state.PlotTwist != nil {
		s.state.PlotTwist.Revealed = true
	} else if s.state.PlotTwist != nil {
		s.state.PlotTwist.Hints = append(s.state.PlotTwist.Hints, domain.PlotTwistHint{
			ChapterNumber: num,
			Phase:         phase,
			Hint:          "foreshadowed in prose",
		})
	}

	if len(chapter.Choices) > 0 {
		s.send(newChoices(chapter.Choices))
	} else {
		s.send(newHideLoader())
	}

	s.o.sink.ChaptersGenerated.Inc()
	s.persist(ctx)

	// The stream is fully flushed: now, and only now, the previous
	// chapter's deferred enrichment may run, overlapping whatever the
	// player does next.
	s.coord.RunDeferred(s.bgCtx)

	if s.o.opts.ImagesEnabled {
		go s.sendChapterImage(num, *chapter)
	}

	if num == s.state.StoryLength {
		s.proto = stateStoryComplete
		s.send(newStoryComplete(s.state.Stats()))
		s.proto = stateAwaitingSummaryReveal
		return
	}
	s.proto = stateAwaitingChoice
}

// streamChapter drives one generation stream to completion, forwarding
// chunks as they arrive, and shapes the result into ChapterData.
func (s *liveSession) streamChapter(ctx context.Context, num int, chapterType domain.ChapterType, phase domain.StoryPhase, question *domain.QuestionRecord) (*domain.ChapterData, error) {
	stream, err := s.o.streamer.StreamChapter(ctx, generator.ChapterRequest{
		State:           s.state,
		ChapterNumber:   num,
		ChapterType:     chapterType,
		Phase:           phase,
		Question:        question,
		PreviousLessons: s.state.LessonQuestions,
	})
	if err != nil {
		return nil, &domain.GenerationError{ChapterNumber: num, Err: err}
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.GenerationError{ChapterNumber: num, Err: err}
		}
		full.WriteString(chunk)
		if err := s.conn.WriteChunk(chunk); err != nil {
			return nil, &domain.GenerationError{ChapterNumber: num, Err: err}
		}
	}

	prose, choiceTexts := generator.ExtractChoiceBlock(full.String())
	chapter := &domain.ChapterData{
		ChapterNumber: num,
		ChapterType:   chapterType,
		Content:       prose,
	}

	switch chapterType {
	case domain.ChapterTypeStory:
		chapter.Choices = storyChoices(choiceTexts, s.logger)
	case domain.ChapterTypeLesson:
		q := *question
		chapter.Question = &q
		chapter.Choices = answerChoices(q.Answers)
	case domain.ChapterTypeReflect:
		chapter.Choices = answerChoices(choiceTexts)
	}
	return chapter, nil
}

// handleReveal builds the terminal SUMMARY chapter. It joins every
// outstanding background task first, fills whatever is still missing
// synchronously, and only then aggregates.
func (s *liveSession) handleReveal(ctx context.Context) {
	if s.state == nil {
		s.sendError("no active adventure")
		return
	}
	if s.proto != stateAwaitingSummaryReveal && !(len(s.state.Chapters) == s.state.StoryLength && !s.state.IsComplete) {
		s.sendError("the story is not complete yet")
		return
	}

	s.coord.AwaitAll()

	for _, idx := range s.state.MissingSummaryIndexes() {
		ch := s.state.Chapters[idx]
		system, user := generator.BuildSummaryPrompt(ch)
		reply, err := s.o.textGen.GenerateText(ctx, system, user)
		if err != nil {
			s.logger.Warn().Err(err).Int("chapter", idx+1).Msg("synchronous summary fill failed, keeping placeholder")
			s.o.sink.EnrichmentFailures.Inc()
			continue
		}
		title, summary := generator.ParseSummaryReply(reply)
		if summary != "" {
			if title == "" {
				title = domain.PlaceholderTitle + " " + strconv.Itoa(idx+1)
			}
			s.state.SetChapterSummary(idx, title, summary)
		}
	}

	summaryChapter := BuildSummaryChapter(s.state)
	if err := s.state.AppendChapter(summaryChapter); err != nil {
		s.logger.Error().Err(err).Msg("failed to append summary chapter")
		s.sendError(err.Error())
		return
	}
	s.state.IsComplete = true
	s.persist(ctx)
	s.o.sink.LogEvent("adventure_completed", map[string]any{"stateID": s.state.ID, "stats": s.state.Stats()})

	s.send(newSummaryReady(s.state.ID))
	s.send(newSummaryComplete(s.state))
	s.proto = stateSummaryRevealed
}

// persist serializes the state and writes it through the repository. A
// failure is logged and counted, never rolled back: the session degrades
// to resumable-from-last-successful-persist.
func (s *liveSession) persist(ctx context.Context) {
	blob, err := json.Marshal(s.state)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to serialize state")
		s.o.sink.PersistenceFailures.Inc()
		return
	}
	id, err := s.o.store.StoreState(ctx, blob, s.state.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to persist state, continuing in memory")
		s.o.sink.PersistenceFailures.Inc()
		return
	}
	s.state.ID = id
	if s.userID != "" {
		if err := s.o.store.SetActiveState(ctx, s.userID, id); err != nil {
			s.logger.Warn().Err(err).Msg("failed to index active state")
		}
	}
}

// restreamLastChapter replays the stored unanswered chapter so a
// reconnecting client can pick up exactly where it left off.
func (s *liveSession) restreamLastChapter() {
	ch := s.lastChapter()
	if ch == nil {
		s.proto = stateAwaitingInitialState
		return
	}
	s.send(newChapterUpdate(ch.ChapterNumber, s.state.StoryLength, s.state))
	_ = s.conn.WriteChunk(ch.Content)
	if len(ch.Choices) > 0 {
		s.send(newChoices(ch.Choices))
		s.proto = stateAwaitingChoice
	} else {
		s.send(newHideLoader())
		if ch.ChapterNumber == s.state.StoryLength {
			s.proto = stateAwaitingSummaryReveal
			s.send(newStoryComplete(s.state.Stats()))
		} else {
			s.proto = stateAwaitingChoice
		}
	}
}

func (s *liveSession) sendChapterImage(num int, ch domain.ChapterData) {
	prompt := generator.BuildImagePrompt(ch, s.state.CharacterVisualsSnapshot())
	img, err := s.o.imageGen.GenerateImage(s.bgCtx, prompt, s.o.opts.ImageTimeout)
	if err != nil || img == "" {
		return
	}
	s.send(newChapterImage(num, img))
}

func (s *liveSession) sendChoiceImage(num int, choiceText string) {
	img, err := s.o.imageGen.GenerateImage(s.bgCtx, "Storybook illustration of: "+choiceText, s.o.opts.ImageTimeout)
	if err != nil || img == "" {
		return
	}
	s.send(newChoiceImage(num, img))
}

func (s *liveSession) lastChapter() *domain.ChapterData {
	if s.state == nil || len(s.state.Chapters) == 0 {
		return nil
	}
	return &s.state.Chapters[len(s.state.Chapters)-1]
}

func (s *liveSession) lastChapterUnanswered() bool {
	ch := s.lastChapter()
	return ch != nil && ch.Response == nil && len(ch.Choices) > 0
}

func (s *liveSession) pickQuestion() *domain.QuestionRecord {
	if s.nextQuestion >= len(s.questions) {
		return nil
	}
	q := s.questions[s.nextQuestion]
	s.nextQuestion++
	return &q
}

func (s *liveSession) send(event any) {
	if err := s.conn.WriteEvent(event); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write event")
	}
}

func (s *liveSession) sendError(message string) {
	s.send(newError(message))
}

func answersMatch(submitted, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(correct))
}

var fallbackChoices = []string{
	"Press onward",
	"Take the careful path",
	"Stop and listen",
}

// storyChoices shapes extracted choice texts into exactly the required
// three. Models occasionally return two or four; the invariant wins.
func storyChoices(texts []string, logger zerolog.Logger) []domain.Choice {
	if len(texts) != domain.StoryChoiceCount {
		logger.Warn().Int("extracted", len(texts)).Msg("generator returned wrong choice count, repairing")
	}
	if len(texts) > domain.StoryChoiceCount {
		texts = texts[:domain.StoryChoiceCount]
	}
	for i := len(texts); i < domain.StoryChoiceCount; i++ {
		texts = append(texts, fallbackChoices[i])
	}
	return answerChoices(texts)
}

func answerChoices(texts []string) []domain.Choice {
	choices := make([]domain.Choice, len(texts))
	for i, text := range texts {
		choices[i] = domain.Choice{ID: "choice_" + strconv.Itoa(i+1), Text: text}
	}
	return choices
}

func countLessons(plan []domain.ChapterType) int {
	n := 0
	for _, t := range plan {
		if t == domain.ChapterTypeLesson {
			n++
		}
	}
	return n
}

