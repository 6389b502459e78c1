package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/themobileprof/kernelchat/pkg/llm"
)

const maxLineSize = 1 << 20

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds configuration for the completion client
type Config struct {
	APIKey     string        // Optional; local servers usually need none
	BaseURL    string        // Default: http://localhost:11434/v1
	Model      string        // Default: llama3.1:8b
	Timeout    time.Duration // Default: 60s, applies to buffered calls only
	HTTPClient Doer          // Default: pooled *http.Client
}

// HTTPClient talks to an OpenAI-compatible chat-completions endpoint.
// It holds no per-call state and is safe for concurrent use.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient Doer
}

// NewHTTPClient creates a new completion client
func NewHTTPClient(config Config) *HTTPClient {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434/v1"
	}
	if config.Model == "" {
		config.Model = "llama3.1:8b"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		// No client-wide timeout: streams may legitimately run long.
		// Buffered calls get a context deadline instead.
		httpClient = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				ForceAttemptHTTP2:     true,
			},
		}
	}

	return &HTTPClient{
		apiKey:     config.APIKey,
		baseURL:    config.BaseURL,
		model:      config.Model,
		timeout:    config.Timeout,
		httpClient: httpClient,
	}
}

// Model returns the default model identifier
func (c *HTTPClient) Model() string {
	return c.model
}

// CompleteChat sends a buffered chat completion request
func (c *HTTPClient) CompleteChat(ctx context.Context, conv llm.Conversation, model string, temperature float64) (*llm.CompletionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.post(ctx, llm.CompletionRequest{
		Model:       c.modelOrDefault(model),
		Turns:       conv,
		Temperature: temperature,
		Stream:      false,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llm.TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	result, err := DecodeBuffered(body)
	if errors.Is(err, llm.ErrEmptyChoices) {
		// The model said nothing; never leave the chat silent.
		return &llm.CompletionResult{
			Content:      llm.FallbackContent,
			FinishReason: llm.FinishReasonUnknown,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CompleteText sends a buffered completion for a single prompt
func (c *HTTPClient) CompleteText(ctx context.Context, prompt, model string, temperature float64) (*llm.CompletionResult, error) {
	return c.CompleteChat(ctx, llm.Conversation{llm.User(prompt)}, model, temperature)
}

// StreamChat sends a streaming chat completion request. The returned stream
// reads the response body one line at a time as the caller calls Next.
func (c *HTTPClient) StreamChat(ctx context.Context, conv llm.Conversation, model string, temperature float64) (*llm.Stream, error) {
	resp, err := c.post(ctx, llm.CompletionRequest{
		Model:       c.modelOrDefault(model),
		Turns:       conv,
		Temperature: temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	next := func() (llm.Fragment, error) {
		for scanner.Scan() {
			line, err := DecodeStreamLine(scanner.Text())
			if err != nil {
				return llm.Fragment{}, err
			}

			switch line.Kind {
			case LineDone:
				return llm.Fragment{}, io.EOF
			case LineFragment:
				// Empty deltas (role announcements, finish markers) are not forwarded
				if line.Fragment.Content == "" {
					continue
				}
				return line.Fragment, nil
			}
		}
		if err := scanner.Err(); err != nil {
			return llm.Fragment{}, &llm.TransportError{Err: fmt.Errorf("failed to read stream: %w", err)}
		}
		return llm.Fragment{}, io.EOF
	}

	return llm.NewStream(ctx, next, resp.Body), nil
}

// StreamText sends a streaming completion for a single prompt
func (c *HTTPClient) StreamText(ctx context.Context, prompt, model string, temperature float64) (*llm.Stream, error) {
	return c.StreamChat(ctx, llm.Conversation{llm.User(prompt)}, model, temperature)
}

// post encodes and sends a request, returning the response only on a 2xx status
func (c *HTTPClient) post(ctx context.Context, req llm.CompletionRequest) (*http.Response, error) {
	body, err := EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &llm.TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &llm.TransportError{
			StatusCode: resp.StatusCode,
			Body:       string(msg),
		}
	}

	return resp, nil
}

func (c *HTTPClient) modelOrDefault(model string) string {
	if model == "" {
		return c.model
	}
	return model
}
