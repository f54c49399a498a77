package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adventure-server/internal/content"
	"adventure-server/internal/domain"
	"adventure-server/internal/generator"
	"adventure-server/internal/repository"
	"adventure-server/internal/session"
	"adventure-server/internal/telemetry"
)

// --- Фейковый транспорт --- //

type fakeConn struct {
	mu       sync.Mutex
	incoming [][]byte
	events   []map[string]any
	chunks   []string
}

func (c *fakeConn) push(msg any) {
	raw, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}
	c.incoming = append(c.incoming, raw)
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.incoming) == 0 {
		return nil, errors.New("client disconnected")
	}
	msg := c.incoming[0]
	c.incoming = c.incoming[1:]
	return msg, nil
}

func (c *fakeConn) WriteEvent(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, decoded)
	return nil
}

func (c *fakeConn) WriteChunk(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, text)
	return nil
}

func (c *fakeConn) eventTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]string, len(c.events))
	for i, e := range c.events {
		types[i], _ = e["type"].(string)
	}
	return types
}

func (c *fakeConn) eventsOf(eventType string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, e := range c.events {
		if e["type"] == eventType {
			out = append(out, e)
		}
	}
	return out
}

// --- Фейковый генератор --- //

type scriptedStream struct {
	chunks []string
	pos    int
}

func (s *scriptedStream) Recv() (string, error) {
	if s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *scriptedStream) Close() error { return nil }

// fakeGenerator streams deterministic chapters and answers enrichment
// prompts. failChapters lists chapter numbers whose first stream fails;
// enrichDelay keeps background tasks in flight while the loop runs on.
type fakeGenerator struct {
	mu           sync.Mutex
	failChapters map[int]int // chapter -> remaining failures
	enrichDelay  time.Duration
}

func (g *fakeGenerator) StreamChapter(_ context.Context, req generator.ChapterRequest) (generator.TextStream, error) {
	g.mu.Lock()
	if remaining, ok := g.failChapters[req.ChapterNumber]; ok && remaining > 0 {
		g.failChapters[req.ChapterNumber] = remaining - 1
		g.mu.Unlock()
		return nil, errors.New("upstream model error")
	}
	g.mu.Unlock()

	prose := fmt.Sprintf("Chapter %d prose about the %s.", req.ChapterNumber, req.Phase)
	switch req.ChapterType {
	case domain.ChapterTypeStory:
		return &scriptedStream{chunks: []string{
			prose,
			"\n\nCHOICES:\n1. Follow the river\n2. Climb the ridge\n3. Wait for dawn\n",
		}}, nil
	default:
		return &scriptedStream{chunks: []string{prose}}, nil
	}
}

func (g *fakeGenerator) GenerateText(_ context.Context, system, _ string) (string, error) {
	if g.enrichDelay > 0 {
		time.Sleep(g.enrichDelay)
	}
	if strings.Contains(system, "JSON") {
		return `{"Fox": "red fur, green scarf"}`, nil
	}
	return "TITLE: A Step Further\nSUMMARY: The hero pressed on.", nil
}

func (g *fakeGenerator) GenerateImage(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

// --- Сборка тестового оркестратора --- //

func testContent(questions int) *content.Repository {
	f := content.File{
		Themes:         []string{"curiosity and discovery"},
		MoralTeachings: []string{"small steps still cross mountains"},
		PlotTwists:     []string{"the map was drawn by the hero's future self"},
	}
	for i := 0; i < questions; i++ {
		f.Questions = append(f.Questions, content.Question{
			Question:      fmt.Sprintf("Question %d?", i+1),
			Topic:         "testing",
			CorrectAnswer: "Right",
			Answers:       []string{"Right", "Wrong", "Maybe"},
		})
	}
	return content.New(f)
}

func newOrchestrator(t *testing.T, gen *fakeGenerator, store repository.StateRepository, questions int) *session.Orchestrator {
	t.Helper()
	sink := telemetry.NewSink(zerolog.Nop(), prometheus.NewRegistry())
	return session.NewOrchestrator(session.Options{
		DefaultStoryLength: 10,
		MaxStoryLength:     20,
	}, testContent(questions), gen, gen, gen, store, sink, zerolog.Nop())
}

func startMsg() map[string]any {
	return map[string]any{"choice": "start"}
}

func choiceMsg(path, text string) map[string]any {
	return map[string]any{"choice": map[string]string{"chosen_path": path, "choice_text": text}}
}

// --- Тесты --- //

func TestFullAdventure(t *testing.T) {
	gen := &fakeGenerator{}
	store := repository.NewMemoryStateRepository()
	o := newOrchestrator(t, gen, store, 3)

	conn := &fakeConn{}
	conn.push(startMsg())
	for i := 0; i < 9; i++ {
		conn.push(choiceMsg("choice_1", "Follow the river"))
	}
	conn.push(map[string]any{"choice": "reveal_summary"})

	o.Run(context.Background(), conn, "user-1")

	types := conn.eventTypes()
	require.NotEmpty(t, types)
	assert.Equal(t, "adventure_status", types[0])
	assert.Equal(t, "new", conn.events[0]["status"])

	// Десять глав — десять chapter_update.
	assert.Len(t, conn.eventsOf("chapter_update"), 10)
	require.Len(t, conn.eventsOf("story_complete"), 1)
	require.Len(t, conn.eventsOf("summary_ready"), 1)
	require.Len(t, conn.eventsOf("summary_complete"), 1)

	// Итоговое состояние из summary_complete.
	finalRaw, err := json.Marshal(conn.eventsOf("summary_complete")[0]["state"])
	require.NoError(t, err)
	var final domain.AdventureState
	require.NoError(t, json.Unmarshal(finalRaw, &final))

	require.Len(t, final.Chapters, 11)
	assert.True(t, final.IsComplete)
	assert.Equal(t, domain.ChapterTypeConclusion, final.Chapters[9].ChapterType)
	last := final.Chapters[10]
	assert.Equal(t, domain.ChapterTypeSummary, last.ChapterType)
	assert.Empty(t, last.Choices)
	assert.Contains(t, last.Content, "Quiz Results")

	// Ровно три урока при трёх доступных вопросах.
	lessons := 0
	for _, ch := range final.Chapters[:10] {
		if ch.ChapterType == domain.ChapterTypeLesson {
			lessons++
		}
	}
	assert.Equal(t, 3, lessons)

	// Каждая сюжетная глава несёт ровно три варианта.
	for _, ch := range final.Chapters[:10] {
		if ch.ChapterType == domain.ChapterTypeStory {
			assert.Len(t, ch.Choices, 3, "chapter %d", ch.ChapterNumber)
		}
	}

	// Сводка собрана по всем десяти главам.
	assert.Len(t, final.ChapterSummaries, 10)
	stats := final.Stats()
	assert.Equal(t, 3, stats.QuestionsAnswered)

	// Состояние персистентно и помечено завершённым.
	id, err := store.ActiveStateID(context.Background(), "user-1")
	require.NoError(t, err)
	raw, err := store.GetState(context.Background(), id)
	require.NoError(t, err)
	var persisted domain.AdventureState
	require.NoError(t, json.Unmarshal(raw, &persisted))
	assert.True(t, persisted.IsComplete)
	assert.Len(t, persisted.Chapters, 11)
}

func TestGenerationFailureKeepsSessionAlive(t *testing.T) {
	gen := &fakeGenerator{failChapters: map[int]int{2: 1}}
	store := repository.NewMemoryStateRepository()
	o := newOrchestrator(t, gen, store, 0)

	conn := &fakeConn{}
	conn.push(startMsg())
	conn.push(choiceMsg("choice_1", "Follow the river")) // глава 2 падает
	conn.push(choiceMsg("choice_1", "Follow the river")) // повтор выбора — retry

	o.Run(context.Background(), conn, "")

	require.NotEmpty(t, conn.eventsOf("error"))
	// После повтора глава 2 всё же сгенерирована.
	updates := conn.eventsOf("chapter_update")
	require.Len(t, updates, 3) // глава 1, неудачная попытка главы 2, успешная глава 2
	assert.EqualValues(t, 2, updates[2]["current_chapter"])
}

// Фоновое обогащение пишет summaries/visuals, пока цикл приёма сериализует
// состояние для persist и исходящих событий; сериализация обязана идти под
// мьютексом состояния (проверяется под -race).
func TestPersistConcurrentWithEnrichment(t *testing.T) {
	gen := &fakeGenerator{enrichDelay: 2 * time.Millisecond}
	store := repository.NewMemoryStateRepository()
	o := newOrchestrator(t, gen, store, 3)

	conn := &fakeConn{}
	conn.push(startMsg())
	for i := 0; i < 9; i++ {
		conn.push(choiceMsg("choice_1", "Follow the river"))
	}
	conn.push(map[string]any{"choice": "reveal_summary"})

	o.Run(context.Background(), conn, "user-3")

	require.Len(t, conn.eventsOf("summary_complete"), 1)
	finalRaw, err := json.Marshal(conn.eventsOf("summary_complete")[0]["state"])
	require.NoError(t, err)
	var final domain.AdventureState
	require.NoError(t, json.Unmarshal(finalRaw, &final))
	assert.Len(t, final.ChapterSummaries, 10)
}

// Падение генерации первой главы оставляет в хранилище состояние без глав;
// повторный "start" после переподключения должен переиспользовать его, а не
// игнорироваться.
func TestStartRetriesAfterChapterOneFailure(t *testing.T) {
	gen := &fakeGenerator{failChapters: map[int]int{1: 1}}
	store := repository.NewMemoryStateRepository()
	o := newOrchestrator(t, gen, store, 0)

	first := &fakeConn{}
	first.push(startMsg())
	o.Run(context.Background(), first, "user-9")
	require.NotEmpty(t, first.eventsOf("error"))
	assert.Empty(t, first.eventsOf("choices"))

	second := &fakeConn{}
	second.push(startMsg())
	second.push(choiceMsg("choice_1", "Follow the river"))
	o.Run(context.Background(), second, "user-9")

	require.NotEmpty(t, second.events)
	assert.Equal(t, "existing", second.events[0]["status"])
	updates := second.eventsOf("chapter_update")
	require.NotEmpty(t, updates)
	assert.EqualValues(t, 1, updates[0]["current_chapter"])
	require.NotEmpty(t, second.eventsOf("choices"))
}

func TestResumeExistingAdventure(t *testing.T) {
	gen := &fakeGenerator{}
	store := repository.NewMemoryStateRepository()
	o := newOrchestrator(t, gen, store, 0)

	// Первая сессия: старт и один выбор, потом обрыв.
	first := &fakeConn{}
	first.push(startMsg())
	first.push(choiceMsg("choice_1", "Follow the river"))
	o.Run(context.Background(), first, "user-7")

	// Вторая сессия того же пользователя возобновляется по индексу.
	second := &fakeConn{}
	second.push(map[string]any{"state": map[string]any{}})
	o.Run(context.Background(), second, "user-7")

	types := second.eventTypes()
	require.NotEmpty(t, types)
	assert.Equal(t, "adventure_status", types[0])
	assert.Equal(t, "existing", second.events[0]["status"])
	require.NotEmpty(t, second.eventsOf("adventure_loaded"))

	// Неотвеченная глава 2 перепроигрывается с вариантами.
	updates := second.eventsOf("chapter_update")
	require.NotEmpty(t, updates)
	assert.EqualValues(t, 2, updates[0]["current_chapter"])
	require.NotEmpty(t, second.eventsOf("choices"))
}

func TestResumeUnusableStateFallsBackToNew(t *testing.T) {
	gen := &fakeGenerator{}
	store := repository.NewMemoryStateRepository()
	o := newOrchestrator(t, gen, store, 0)

	id, err := store.StoreState(context.Background(), []byte("corrupted ###"), "")
	require.NoError(t, err)

	conn := &fakeConn{}
	conn.push(map[string]any{"state": map[string]any{"state_id": id}})
	o.Run(context.Background(), conn, "")

	require.NotEmpty(t, conn.events)
	assert.Equal(t, "new", conn.events[0]["status"])
}

func TestCustomStoryLengthClamped(t *testing.T) {
	gen := &fakeGenerator{}
	store := repository.NewMemoryStateRepository()
	o := newOrchestrator(t, gen, store, 0)

	conn := &fakeConn{}
	conn.push(map[string]any{"choice": "start", "state": map[string]any{"story_length": 99}})
	o.Run(context.Background(), conn, "")

	loaded := conn.eventsOf("adventure_loaded")
	require.NotEmpty(t, loaded)
	// 99 выходит за предел — действует длина по умолчанию
	assert.EqualValues(t, 10, loaded[0]["total_chapters"])
}
