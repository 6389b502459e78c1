package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/themobileprof/kernelchat/internal/api/middleware"
	"github.com/themobileprof/kernelchat/internal/chat"
	"github.com/themobileprof/kernelchat/internal/fallback"
	"github.com/themobileprof/kernelchat/internal/memory"
	"github.com/themobileprof/kernelchat/internal/metrics"
	"github.com/themobileprof/kernelchat/internal/privacy"
	"github.com/themobileprof/kernelchat/pkg/llm"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Streamer opens streaming replies for a demo conversation
type Streamer interface {
	Stream(ctx context.Context, demo string, history llm.Conversation) (*llm.Stream, chat.Demo, error)
}

// ChatHandler handles WebSocket chat connections
type ChatHandler struct {
	engine            Streamer
	sessions          *memory.Manager
	messagesPerMinute int
}

// NewChatHandler creates a new chat handler. Each connection may send
// messagesPerMinute messages.
func NewChatHandler(engine Streamer, sessions *memory.Manager, messagesPerMinute int) *ChatHandler {
	if sessions == nil {
		sessions = memory.NewManager(20)
	}
	if messagesPerMinute <= 0 {
		messagesPerMinute = 30
	}
	return &ChatHandler{
		engine:            engine,
		sessions:          sessions,
		messagesPerMinute: messagesPerMinute,
	}
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Content string `json:"content"`
}

// OutgoingMessage represents a message to the client
type OutgoingMessage struct {
	Type    string      `json:"type"` // "message", "error", "done"
	Content string      `json:"content,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// DoneData accompanies the done event
type DoneData struct {
	SessionID string `json:"session_id"`
	Demo      string `json:"demo"`
	Fragments int    `json:"fragments"`
}

// session is the per-connection chat state
type session struct {
	id      string
	demo    string
	limiter *middleware.WebSocketLimiter
}

// HandleChat handles WebSocket chat connections
func (h *ChatHandler) HandleChat(c *gin.Context) {
	demo := strings.TrimSpace(c.DefaultQuery("demo", chat.AutoDemo))
	if demo != chat.AutoDemo {
		if _, ok := chat.LookupDemo(demo); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown demo"})
			return
		}
	}

	// Upgrade to WebSocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// History lives only as long as the connection
	s := &session{
		id:      uuid.NewString(),
		demo:    demo,
		limiter: middleware.NewWebSocketLimiter(h.messagesPerMinute),
	}
	log.Printf("WebSocket connected: session=%s, demo=%s", s.id, s.demo)

	// Listen for messages
	for {
		var msg IncomingMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if !s.limiter.Allow() {
			metrics.RateLimitRejectedTotal.Inc()
			h.sendError(conn, "Rate limit exceeded. Please slow down.")
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			h.sendError(conn, "Message content is required")
			continue
		}

		if err := h.processMessage(c.Request.Context(), conn, s, content); err != nil {
			log.Printf("Error processing message: session=%s, error=%v", s.id, err)
			break
		}
	}

	log.Printf("WebSocket closed: session=%s, turns=%d", s.id, len(h.sessions.History(s.id)))
	h.sessions.Remove(s.id)
}

// processMessage streams one reply. The returned error is a write failure;
// model failures are reported to the client as error events.
func (h *ChatHandler) processMessage(ctx context.Context, conn *websocket.Conn, s *session, content string) error {
	log.Printf("Message received: session=%s, message=%q", s.id, privacy.SanitizeForLogging(content))

	history := h.sessions.History(s.id).Append(llm.User(content))

	stream, demo, err := h.engine.Stream(ctx, s.demo, history)
	if err != nil {
		if errors.Is(err, chat.ErrUnknownDemo) || errors.Is(err, chat.ErrNoUserTurn) {
			return h.sendError(conn, err.Error())
		}
		log.Printf("Failed to open stream: session=%s, error=%v", s.id, err)
		return h.sendError(conn, fallback.ForError(demo.Name, err).Content)
	}
	defer stream.Close()

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	// Stream response
	var fullResponse strings.Builder
	fragments := 0
	for stream.Next() {
		piece := stream.Fragment().Content
		fullResponse.WriteString(piece)
		fragments++
		metrics.StreamFragmentsTotal.WithLabelValues(string(demo.Name)).Inc()
		if err := h.sendMessage(conn, piece); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		log.Printf("Stream failed: session=%s, state=%s, error=%v", s.id, stream.State(), err)
		return h.sendError(conn, fallback.ForError(demo.Name, err).Content)
	}

	// Only completed exchanges join the history
	reply := fullResponse.String()
	if reply == "" {
		reply = llm.FallbackContent
	}
	h.sessions.Append(s.id, llm.User(content), llm.Assistant(reply))

	return h.sendDone(conn, DoneData{
		SessionID: s.id,
		Demo:      string(demo.Name),
		Fragments: fragments,
	})
}

// sendMessage sends a message chunk to the client
func (h *ChatHandler) sendMessage(conn *websocket.Conn, content string) error {
	return conn.WriteJSON(OutgoingMessage{
		Type:    "message",
		Content: content,
	})
}

// sendError sends an error message to the client
func (h *ChatHandler) sendError(conn *websocket.Conn, message string) error {
	return conn.WriteJSON(OutgoingMessage{
		Type:    "error",
		Content: message,
	})
}

// sendDone signals that the response is complete
func (h *ChatHandler) sendDone(conn *websocket.Conn, data DoneData) error {
	return conn.WriteJSON(OutgoingMessage{
		Type: "done",
		Data: data,
	})
}
