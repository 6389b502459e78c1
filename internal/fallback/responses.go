package fallback

import (
	"context"
	"errors"

	"github.com/themobileprof/kernelchat/internal/circuitbreaker"
	"github.com/themobileprof/kernelchat/internal/classifier"
)

// Response represents a fallback response
type Response struct {
	Content string `json:"content"`
	Action  string `json:"action"` // "retry", "contact_support"
}

var (
	demoFallbacks = map[classifier.Demo]Response{
		classifier.DemoChat: {
			Content: "Whoopsie, something went horribly wrong.",
			Action:  "retry",
		},
		classifier.DemoDocuments: {
			Content: "An error occurred while analyzing the document.",
			Action:  "retry",
		},
		classifier.DemoApplicants: {
			Content: "An error occurred while processing your request.",
			Action:  "retry",
		},
		classifier.DemoCustomerService: {
			Content: "I apologize, but I'm having trouble processing your request at the moment.",
			Action:  "contact_support",
		},
	}

	timeoutResponse = Response{
		Content: "I'm taking longer than usual to respond. The model server may be busy, please try again in a moment.",
		Action:  "retry",
	}

	circuitOpenResponse = Response{
		Content: "I'm temporarily unavailable because the model server is not responding. I'll be back shortly.",
		Action:  "contact_support",
	}

	defaultResponse = Response{
		Content: "I'm sorry, I'm having technical difficulties. Please try again.",
		Action:  "retry",
	}
)

// GetFallbackResponse returns the generic failure reply of a demo
func GetFallbackResponse(demo classifier.Demo) Response {
	if response, ok := demoFallbacks[demo]; ok {
		return response
	}
	return defaultResponse
}

// GetTimeoutResponse returns a timeout-specific fallback
func GetTimeoutResponse() Response {
	return timeoutResponse
}

// GetCircuitOpenResponse returns a circuit breaker open fallback
func GetCircuitOpenResponse() Response {
	return circuitOpenResponse
}

// ForError picks the fallback that best explains err
func ForError(demo classifier.Demo, err error) Response {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return GetTimeoutResponse()
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return GetCircuitOpenResponse()
	default:
		return GetFallbackResponse(demo)
	}
}
