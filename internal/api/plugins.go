package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/themobileprof/kernelchat/internal/kernel"
)

// Registry is the plugin kernel as used by the HTTP handlers
type Registry interface {
	Plugins() []kernel.Plugin
	Invoke(ctx context.Context, qualified string, args kernel.Args) (string, error)
}

// PluginHandler exposes kernel functions for direct invocation
type PluginHandler struct {
	kernel Registry
}

// NewPluginHandler creates a new plugin handler
func NewPluginHandler(k Registry) *PluginHandler {
	return &PluginHandler{kernel: k}
}

// InvokeRequest carries the function arguments
type InvokeRequest struct {
	Args kernel.Args `json:"args"`
}

func (h *PluginHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/plugins", h.ListPlugins)
	r.POST("/plugins/:plugin/:function", h.Invoke)
}

// ListPlugins returns every plugin with its function signatures
func (h *PluginHandler) ListPlugins(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plugins": h.kernel.Plugins()})
}

// Invoke runs one plugin function with the given arguments
func (h *PluginHandler) Invoke(c *gin.Context) {
	var req InvokeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Args == nil {
		req.Args = kernel.Args{}
	}

	qualified := c.Param("plugin") + "." + c.Param("function")
	result, err := h.kernel.Invoke(c.Request.Context(), qualified, req.Args)
	if err != nil {
		switch {
		case errors.Is(err, kernel.ErrFunctionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, kernel.ErrInvalidArgument):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Printf("Plugin invocation failed: %s: %v", qualified, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Function failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}
