package websocket_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adventure-server/internal/auth"
	"adventure-server/internal/content"
	ws "adventure-server/internal/delivery/websocket"
	"adventure-server/internal/domain"
	"adventure-server/internal/generator"
	"adventure-server/internal/repository"
	"adventure-server/internal/session"
	"adventure-server/internal/telemetry"
)

type wireStream struct {
	text string
	done bool
}

func (s *wireStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	s.done = true
	return s.text, nil
}

func (s *wireStream) Close() error { return nil }

type wireGenerator struct{}

func (wireGenerator) StreamChapter(_ context.Context, req generator.ChapterRequest) (generator.TextStream, error) {
	if req.ChapterType == domain.ChapterTypeStory {
		return &wireStream{text: fmt.Sprintf("Chapter %d.\nCHOICES:\n1. One\n2. Two\n3. Three", req.ChapterNumber)}, nil
	}
	return &wireStream{text: fmt.Sprintf("Chapter %d.", req.ChapterNumber)}, nil
}

func (wireGenerator) GenerateText(_ context.Context, system, _ string) (string, error) {
	if strings.Contains(system, "JSON") {
		return "{}", nil
	}
	return "TITLE: T\nSUMMARY: S.", nil
}

func (wireGenerator) GenerateImage(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gen := wireGenerator{}
	sink := telemetry.NewSink(zerolog.Nop(), prometheus.NewRegistry())
	orchestrator := session.NewOrchestrator(session.Options{
		DefaultStoryLength: 4,
		MaxStoryLength:     20,
	}, content.New(content.File{}), gen, gen, gen,
		repository.NewMemoryStateRepository(), sink, zerolog.Nop())

	router := gin.New()
	router.GET("/ws", ws.NewHandler(orchestrator, auth.Anonymous{}, zerolog.Nop()).Handle)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// readEvents collects JSON event frames until the wanted type arrives,
// ignoring raw prose chunks in between.
func readEvents(t *testing.T, conn *gorilla.Conn, until string) []map[string]any {
	t.Helper()
	var events []map[string]any
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var event map[string]any
		if json.Unmarshal(raw, &event) != nil || event["type"] == nil {
			continue // сырой кусок прозы
		}
		events = append(events, event)
		if event["type"] == until {
			return events
		}
	}
	t.Fatalf("event %q never arrived", until)
	return nil
}

func TestWebsocketAdventureOverTheWire(t *testing.T) {
	srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"choice": "start"}))
	events := readEvents(t, conn, "choices")
	assert.Equal(t, "adventure_status", events[0]["type"])

	// Три выбора доводят историю длиной 4 до заключения.
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.WriteJSON(map[string]any{
			"choice": map[string]string{"chosen_path": "choice_1", "choice_text": "One"},
		}))
		if i < 2 {
			readEvents(t, conn, "choices")
		}
	}
	readEvents(t, conn, "story_complete")

	require.NoError(t, conn.WriteJSON(map[string]any{"choice": "reveal_summary"}))
	events = readEvents(t, conn, "summary_complete")

	final := events[len(events)-1]
	state, err := json.Marshal(final["state"])
	require.NoError(t, err)
	var adventure domain.AdventureState
	require.NoError(t, json.Unmarshal(state, &adventure))
	assert.True(t, adventure.IsComplete)
	assert.Len(t, adventure.Chapters, 5)
	assert.Equal(t, domain.ChapterTypeSummary, adventure.Chapters[4].ChapterType)
}
