package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/themobileprof/kernelchat/internal/circuitbreaker"
	"github.com/themobileprof/kernelchat/internal/classifier"
	"github.com/themobileprof/kernelchat/internal/fallback"
	"github.com/themobileprof/kernelchat/internal/kernel"
	"github.com/themobileprof/kernelchat/internal/metrics"
	"github.com/themobileprof/kernelchat/internal/privacy"
	"github.com/themobileprof/kernelchat/internal/prompt"
	"github.com/themobileprof/kernelchat/pkg/llm"
)

var (
	ErrUnknownDemo  = errors.New("unknown demo")
	ErrNoUserTurn   = errors.New("conversation has no user message")
	ErrEmptyPrompt  = errors.New("prompt is empty")
	ErrNoTextClient = errors.New("text completion is not configured")
)

// Provider is the model server as seen by the engine
type Provider interface {
	llm.ChatProvider
	llm.TextProvider
}

// Interfaces for dependencies
type ClassifierInterface interface {
	Classify(text string) classifier.ClassifierResult
}

type PromptInterface interface {
	BuildPrompt(req prompt.PromptRequest) llm.Conversation
}

type KernelInterface interface {
	Invoke(ctx context.Context, qualified string, args kernel.Args) (string, error)
	Catalog(plugins ...string) string
}

// Config holds engine settings
type Config struct {
	Model         string        // empty uses the provider default
	Timeout       time.Duration // per model call. Default: 60s
	MaxToolRounds int           // function calls per reply. Default: 3
	Breaker       *circuitbreaker.CircuitBreaker
}

// Reply is the outcome of one buffered exchange
type Reply struct {
	Demo         classifier.Demo `json:"demo"`
	Content      string          `json:"reply"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Calls        []FunctionCall  `json:"calls,omitempty"`
	Fallback     bool            `json:"fallback,omitempty"`
}

// Engine runs demo conversations against the model, independent of transport
type Engine struct {
	provider       Provider
	kernel         KernelInterface
	promptBuilder  PromptInterface
	classifier     ClassifierInterface
	circuitBreaker *circuitbreaker.CircuitBreaker
	model          string
	aiTimeout      time.Duration
	maxToolRounds  int
}

// NewEngine creates a new chat engine
func NewEngine(
	provider Provider,
	k KernelInterface,
	pb PromptInterface,
	cls ClassifierInterface,
	cfg Config,
) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 3
	}
	if cfg.Breaker == nil {
		cfg.Breaker = circuitbreaker.NewCircuitBreaker(5, time.Minute)
	}

	return &Engine{
		provider:       provider,
		kernel:         k,
		promptBuilder:  pb,
		classifier:     cls,
		circuitBreaker: cfg.Breaker,
		model:          cfg.Model,
		aiTimeout:      cfg.Timeout,
		maxToolRounds:  cfg.MaxToolRounds,
	}
}

// Resolve maps a demo name to a Demo. "auto" (or empty) classifies the
// last user message.
func (e *Engine) Resolve(name string, history llm.Conversation) (Demo, error) {
	if name == "" || name == AutoDemo {
		msg, ok := lastUserMessage(history)
		if !ok {
			return Demo{}, ErrNoUserTurn
		}
		result := e.classifier.Classify(msg)
		log.Printf("Demo classified: %s (confidence: %.2f)", result.Demo, result.Confidence)
		d, _ := LookupDemo(string(result.Demo))
		return d, nil
	}

	d, ok := LookupDemo(name)
	if !ok {
		return Demo{}, fmt.Errorf("%w: %q", ErrUnknownDemo, name)
	}
	return d, nil
}

// Respond produces one assistant reply for the conversation. Function calls
// requested by the model are executed through the kernel and fed back, at
// most MaxToolRounds times. Provider failures yield a fallback reply, not
// an error.
func (e *Engine) Respond(ctx context.Context, demoName string, history llm.Conversation) (*Reply, error) {
	demo, err := e.Resolve(demoName, history)
	if err != nil {
		return nil, err
	}
	msg, ok := lastUserMessage(history)
	if !ok {
		return nil, ErrNoUserTurn
	}

	log.Printf("Processing message: demo=%s, turns=%d, message=%q",
		demo.Name, len(history), privacy.SanitizeForLogging(msg))

	conv := e.promptBuilder.BuildPrompt(prompt.PromptRequest{
		Instructions: demo.Instructions,
		Catalog:      e.kernel.Catalog(demo.Plugins...),
		History:      history,
	})
	start := len(conv)

	reply := &Reply{Demo: demo.Name}
	settings := llm.Settings{Model: e.model, Temperature: demo.Temperature}

	for round := 0; ; round++ {
		result, err := e.complete(ctx, conv, settings)
		if err != nil {
			log.Printf("AI call failed: demo=%s, round=%d, error=%v", demo.Name, round, err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			fb := fallback.ForError(demo.Name, err)
			reply.Content = fb.Content
			reply.Fallback = true
			return reply, nil
		}
		reply.FinishReason = result.FinishReason
		conv = conv.Append(llm.Assistant(result.Content))

		call, ok := ParseFunctionCall(result.Content)
		if !ok {
			break
		}
		if round >= e.maxToolRounds {
			log.Printf("Function call limit reached: demo=%s, function=%s", demo.Name, call.Function)
			break
		}

		output := e.invoke(ctx, demo, call)
		reply.Calls = append(reply.Calls, call)
		conv = conv.Append(llm.Tool(fmt.Sprintf("function result for %s: %s", call.Function, output)))
	}

	reply.Content = LastAssistantReply(conv[start:])
	log.Printf("AI response ready: demo=%s, calls=%d, %d bytes", demo.Name, len(reply.Calls), len(reply.Content))
	return reply, nil
}

// Stream opens a streaming reply for the conversation. Streaming replies do
// not call functions, so the system prompt carries no function catalog.
func (e *Engine) Stream(ctx context.Context, demoName string, history llm.Conversation) (*llm.Stream, Demo, error) {
	demo, err := e.Resolve(demoName, history)
	if err != nil {
		return nil, Demo{}, err
	}
	if _, ok := lastUserMessage(history); !ok {
		return nil, demo, ErrNoUserTurn
	}

	conv := e.promptBuilder.BuildPrompt(prompt.PromptRequest{
		Instructions: demo.Instructions,
		History:      history,
	})
	settings := llm.Settings{Model: e.model, Temperature: demo.Temperature}

	var stream *llm.Stream
	started := time.Now()
	err = e.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		stream, err = e.provider.StreamChat(ctx, conv, settings)
		return err
	})
	metrics.ObserveProvider("stream", started, err)
	if err != nil {
		return nil, demo, err
	}
	return stream, demo, nil
}

// Complete answers a single prompt with the text capability
func (e *Engine) Complete(ctx context.Context, text string, temperature float64) (*llm.CompletionResult, error) {
	if text == "" {
		return nil, ErrEmptyPrompt
	}
	if e.provider == nil {
		return nil, ErrNoTextClient
	}

	ctx, cancel := context.WithTimeout(ctx, e.aiTimeout)
	defer cancel()

	var result *llm.CompletionResult
	started := time.Now()
	err := e.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = e.provider.Complete(ctx, text, llm.Settings{Model: e.model, Temperature: temperature})
		return err
	})
	metrics.ObserveProvider("buffered", started, err)
	if err != nil {
		return nil, err
	}
	metrics.ObserveUsage(result.Usage)
	return result, nil
}

// complete performs one buffered model call through the circuit breaker
func (e *Engine) complete(ctx context.Context, conv llm.Conversation, settings llm.Settings) (*llm.CompletionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.aiTimeout)
	defer cancel()

	var result *llm.CompletionResult
	started := time.Now()
	err := e.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = e.provider.Chat(ctx, conv, settings)
		return err
	})
	metrics.ObserveProvider("buffered", started, err)
	if err != nil {
		return nil, err
	}
	metrics.ObserveUsage(result.Usage)
	return result, nil
}

// invoke runs a function call and returns the text handed back to the model.
// Failures are reported to the model rather than aborting the reply.
func (e *Engine) invoke(ctx context.Context, demo Demo, call FunctionCall) string {
	plugin, _, _ := kernel.SplitName(call.Function)
	if !demo.allows(plugin) {
		log.Printf("Function not allowed: demo=%s, function=%s", demo.Name, call.Function)
		return fmt.Sprintf("error: %s is not available here", call.Function)
	}

	output, err := e.kernel.Invoke(ctx, call.Function, call.Arguments)
	if err != nil {
		log.Printf("Function failed: %s: %v", call.Function, err)
		return "error: " + err.Error()
	}
	log.Printf("Function called: %s (%d bytes)", call.Function, len(output))
	return output
}

func lastUserMessage(history llm.Conversation) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llm.RoleUser {
			return history[i].Content, true
		}
	}
	return "", false
}
