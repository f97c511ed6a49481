package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/pandeptwidyaop/pm2-remote/internal/middleware"
	"github.com/pandeptwidyaop/pm2-remote/internal/models"
	"github.com/pandeptwidyaop/pm2-remote/internal/services"
)

// streamBuffer bounds how many events may queue for a slow client.
const streamBuffer = 256

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Authenticated by bearer token, not cookies.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler streams live process logs over SSE or WebSocket.
type StreamHandler struct {
	processService *services.ProcessService
}

// NewStreamHandler creates a new StreamHandler instance.
func NewStreamHandler(processService *services.ProcessService) *StreamHandler {
	return &StreamHandler{processService: processService}
}

// subscribe opens a log session for the :name param whose events are
// queued on the returned channel. Lines are dropped when the queue is
// full; the terminal error event evicts the oldest entry instead.
func (h *StreamHandler) subscribe(ctx context.Context, c *gin.Context) (*services.LogSession, <-chan models.LogEvent, error) {
	events := make(chan models.LogEvent, streamBuffer)
	session, err := h.processService.StreamLogs(ctx, c.Param("name"), middleware.GetScope(c), func(ev models.LogEvent) {
		select {
		case events <- ev:
			return
		default:
		}
		if ev.Type == models.EventError {
			select {
			case <-events:
			default:
			}
			select {
			case events <- ev:
			default:
			}
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return session, events, nil
}

// Stream serves the process's log lines as server-sent events.
// GET /api/pm2/:name/logs/stream
func (h *StreamHandler) Stream(c *gin.Context) {
	name := c.Param("name")

	session, events, err := h.subscribe(c.Request.Context(), c)
	if err != nil {
		respondError(c, err)
		return
	}
	defer session.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("message", "Starting log stream for process: "+name)
	c.SSEvent("status", "Waiting for log events...")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev := <-events:
			return writeSSE(c, ev)
		case <-session.Done():
			// Flush whatever was queued before the session ended.
			for {
				select {
				case ev := <-events:
					if !writeSSE(c, ev) {
						return false
					}
				default:
					return false
				}
			}
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// writeSSE encodes one event and reports whether the stream stays open.
func writeSSE(c *gin.Context, ev models.LogEvent) bool {
	switch ev.Type {
	case models.EventLine:
		c.SSEvent("message", ev.Data)
	case models.EventPing:
		c.SSEvent("ping", "ping")
	case models.EventError:
		c.SSEvent("error", "Error: "+ev.Data)
		return false
	}
	return true
}

// WebSocket serves the process's log events as JSON frames.
// GET /api/pm2/:name/logs/ws
func (h *StreamHandler) WebSocket(c *gin.Context) {
	// The request context outlives a hijacked connection, so the reader
	// below cancels this one when the peer goes away.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	session, events, err := h.subscribe(ctx, c)
	if err != nil {
		respondError(c, err)
		return
	}
	defer session.Close()

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[LogStream] websocket upgrade failed: %v", err)
		return
	}
	defer func() { _ = ws.Close() }()

	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(ev models.LogEvent) bool {
		_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := ws.WriteJSON(ev); err != nil {
			return false
		}
		return ev.Type != models.EventError
	}

	for {
		select {
		case ev := <-events:
			if !write(ev) {
				h.closeWS(ws, websocket.CloseInternalServerErr)
				return
			}
		case <-session.Done():
			for {
				select {
				case ev := <-events:
					if !write(ev) {
						h.closeWS(ws, websocket.CloseInternalServerErr)
						return
					}
				default:
					h.closeWS(ws, websocket.CloseNormalClosure)
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *StreamHandler) closeWS(ws *websocket.Conn, code int) {
	msg := websocket.FormatCloseMessage(code, "")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
