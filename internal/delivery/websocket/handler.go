// Package websocket адаптирует gorilla/websocket соединение под транспорт
// сессии: апгрейд, дедлайны, пинги и потокобезопасная запись.
package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"adventure-server/internal/auth"
	"adventure-server/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	// Клиент присылает своё полное состояние с каждым выбором, поэтому
	// лимит заметно выше обычного командного фрейма.
	maxMessageSize = 512 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // В продакшене следует настроить проверку на разрешенные источники
	},
}

// Conn оборачивает *websocket.Conn в транспорт сессии. Все записи идут
// под мьютексом: оркестратор пишет события про картинки из горутин.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

var _ session.ClientConn = (*Conn)(nil)

func newConn(ws *websocket.Conn) *Conn {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &Conn{ws: ws}
}

// ReadMessage блокируется до следующего фрейма от клиента.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, message, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	return message, nil
}

// WriteEvent отправляет JSON-событие.
func (c *Conn) WriteEvent(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

// WriteChunk отправляет сырой кусок прозы текстовым фреймом.
func (c *Conn) WriteChunk(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, []byte(text))
}

func (c *Conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

// Handler принимает новые соединения и передаёт их оркестратору.
type Handler struct {
	orchestrator *session.Orchestrator
	identity     auth.IdentityResolver
	logger       zerolog.Logger
}

func NewHandler(orchestrator *session.Orchestrator, identity auth.IdentityResolver, logger zerolog.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		identity:     identity,
		logger:       logger.With().Str("component", "WSHandler").Logger(),
	}
}

// Handle апгрейдит HTTP-запрос и обслуживает сессию до разрыва.
func (h *Handler) Handle(c *gin.Context) {
	userID := h.identity.OptionalUserID(c.Request)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()

	conn := newConn(ws)
	h.logger.Info().Str("userID", userID).Str("remote", c.Request.RemoteAddr).Msg("client connected")

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	h.orchestrator.Run(c.Request.Context(), conn, userID)
	close(done)

	if err := ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait)); err != nil &&
		!websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
		h.logger.Debug().Err(err).Msg("close frame not delivered")
	}
}
