package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/themobileprof/kernelchat/internal/api/middleware"
	"github.com/themobileprof/kernelchat/internal/chat"
	"github.com/themobileprof/kernelchat/internal/circuitbreaker"
	"github.com/themobileprof/kernelchat/pkg/llm"
)

// Engine is the chat engine as used by the HTTP handlers
type Engine interface {
	Respond(ctx context.Context, demo string, history llm.Conversation) (*chat.Reply, error)
	Complete(ctx context.Context, text string, temperature float64) (*llm.CompletionResult, error)
}

// DemoHandler serves the buffered demo conversations
type DemoHandler struct {
	engine Engine
}

// NewDemoHandler creates a new demo handler
func NewDemoHandler(engine Engine) *DemoHandler {
	return &DemoHandler{engine: engine}
}

// MessageDTO is one conversation turn in a request
type MessageDTO struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content"`
}

// DemoRequest carries the conversation so far, oldest first
type DemoRequest struct {
	Messages []MessageDTO `json:"messages" binding:"required,min=1,dive"`
}

// CompleteRequest represents a single-prompt completion request
type CompleteRequest struct {
	Prompt      string   `json:"prompt" binding:"required"`
	Temperature *float64 `json:"temperature"`
}

// CompleteResponse represents a completion response
type CompleteResponse struct {
	Content      string     `json:"content"`
	FinishReason string     `json:"finish_reason"`
	Usage        *llm.Usage `json:"usage,omitempty"`
}

func (h *DemoHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/demos", h.ListDemos)
	r.POST("/demos/:demo", middleware.RequireKnown("demo", knownDemo, "demo"), h.Respond)
	r.POST("/complete", h.Complete)
}

// ListDemos returns the available demos
func (h *DemoHandler) ListDemos(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"demos": chat.Demos()})
}

// Respond answers the last user message of a demo conversation
func (h *DemoHandler) Respond(c *gin.Context) {
	var req DemoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	history := make(llm.Conversation, 0, len(req.Messages))
	for _, m := range req.Messages {
		role, ok := llm.ParseRole(m.Role)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role: " + m.Role})
			return
		}
		history = append(history, llm.Turn{Role: role, Content: m.Content})
	}

	reply, err := h.engine.Respond(c.Request.Context(), c.Param("demo"), history)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrUnknownDemo):
			c.JSON(http.StatusNotFound, gin.H{"error": "Demo not found"})
		case errors.Is(err, chat.ErrNoUserTurn):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Conversation has no user message"})
		default:
			log.Printf("Demo request failed: demo=%s, error=%v", c.Param("demo"), err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request was cancelled"})
		}
		return
	}

	c.JSON(http.StatusOK, reply)
}

// Complete answers a single prompt with the text capability
func (h *DemoHandler) Complete(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	temperature := 0.7
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	if temperature < 0 || temperature > 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "temperature must be between 0 and 2"})
		return
	}

	result, err := h.engine.Complete(c.Request.Context(), req.Prompt, temperature)
	if err != nil {
		log.Printf("Completion failed: %v", err)
		c.JSON(completionStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, CompleteResponse{
		Content:      result.Content,
		FinishReason: result.FinishReason,
		Usage:        result.Usage,
	})
}

// completionStatus maps engine and provider errors to HTTP statuses
func completionStatus(err error) int {
	switch {
	case errors.Is(err, chat.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrNoTextClient):
		return http.StatusNotImplemented
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, llm.ErrTransport), errors.Is(err, llm.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func knownDemo(name string) bool {
	if name == chat.AutoDemo {
		return true
	}
	_, ok := chat.LookupDemo(name)
	return ok
}
