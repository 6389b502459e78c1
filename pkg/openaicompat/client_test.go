package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/themobileprof/kernelchat/pkg/llm"
)

// lineBody hands out one line per Read call and records every call
type lineBody struct {
	mu     sync.Mutex
	lines  []string
	next   int
	calls  int
	closed bool
}

func newLineBody(lines ...string) *lineBody {
	return &lineBody{lines: lines}
}

func (b *lineBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls++
	if b.closed {
		return 0, errors.New("read on closed body")
	}
	if b.next >= len(b.lines) {
		return 0, io.EOF
	}
	n := copy(p, b.lines[b.next]+"\n")
	b.next++
	return n, nil
}

func (b *lineBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *lineBody) stats() (calls int, closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls, b.closed
}

// stubDoer returns a canned response and keeps the request bodies
type stubDoer struct {
	status int
	body   io.ReadCloser
	err    error

	mu     sync.Mutex
	bodies []string
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	raw, _ := io.ReadAll(req.Body)
	d.mu.Lock()
	d.bodies = append(d.bodies, string(raw))
	d.mu.Unlock()

	if d.err != nil {
		return nil, d.err
	}
	return &http.Response{
		StatusCode: d.status,
		Header:     make(http.Header),
		Body:       d.body,
		Request:    req,
	}, nil
}

func deltaLine(content string) string {
	return fmt.Sprintf(`data: {"id":"chunk","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`, content)
}

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		wantBaseURL string
		wantModel   string
		wantTimeout time.Duration
	}{
		{
			name:        "default configuration",
			config:      Config{},
			wantBaseURL: "http://localhost:11434/v1",
			wantModel:   "llama3.1:8b",
			wantTimeout: 60 * time.Second,
		},
		{
			name: "custom configuration",
			config: Config{
				APIKey:  "test-key",
				BaseURL: "http://localhost:1234/v1",
				Model:   "NousResearch/Nous-Hermes-2-Mistral-7B-DPO-GGUF",
				Timeout: 5 * time.Second,
			},
			wantBaseURL: "http://localhost:1234/v1",
			wantModel:   "NousResearch/Nous-Hermes-2-Mistral-7B-DPO-GGUF",
			wantTimeout: 5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewHTTPClient(tt.config)

			if client.baseURL != tt.wantBaseURL {
				t.Errorf("baseURL = %v, want %v", client.baseURL, tt.wantBaseURL)
			}
			if client.Model() != tt.wantModel {
				t.Errorf("model = %v, want %v", client.Model(), tt.wantModel)
			}
			if client.timeout != tt.wantTimeout {
				t.Errorf("timeout = %v, want %v", client.timeout, tt.wantTimeout)
			}
			if client.httpClient == nil {
				t.Error("httpClient is nil")
			}
		})
	}
}

func TestHTTPClient_CompleteChat(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse string
		statusCode     int
		wantErr        error
		wantStatus     int
		wantContent    string
		wantReason     string
	}{
		{
			name:       "successful completion",
			statusCode: http.StatusOK,
			serverResponse: `{
				"id": "chatcmpl-123",
				"object": "chat.completion",
				"created": 1234567890,
				"model": "llama3.1:8b",
				"choices": [{
					"index": 0,
					"message": {"role": "assistant", "content": "Hello! How can I help you today?"},
					"finish_reason": "stop"
				}],
				"usage": {"prompt_tokens": 10, "completion_tokens": 8, "total_tokens": 18}
			}`,
			wantContent: "Hello! How can I help you today?",
			wantReason:  "stop",
		},
		{
			name:           "empty choices fall back",
			statusCode:     http.StatusOK,
			serverResponse: `{"choices":[]}`,
			wantContent:    llm.FallbackContent,
			wantReason:     "unknown",
		},
		{
			name:           "server error is a transport error",
			statusCode:     http.StatusInternalServerError,
			serverResponse: `{"choices":[{"message":{"content":"must not be decoded"}}]}`,
			wantErr:        llm.ErrTransport,
			wantStatus:     http.StatusInternalServerError,
		},
		{
			name:           "bad request",
			statusCode:     http.StatusBadRequest,
			serverResponse: `{"error": "Invalid request"}`,
			wantErr:        llm.ErrTransport,
			wantStatus:     http.StatusBadRequest,
		},
		{
			name:           "malformed JSON response",
			statusCode:     http.StatusOK,
			serverResponse: `{invalid json}`,
			wantErr:        llm.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("Expected POST request, got %s", r.Method)
				}
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("path = %s, want /v1/chat/completions", r.URL.Path)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("Expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
				}
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.serverResponse))
			}))
			defer server.Close()

			client := NewHTTPClient(Config{BaseURL: server.URL + "/v1", Timeout: 5 * time.Second})

			resp, err := client.CompleteChat(context.Background(), llm.Conversation{llm.User("Hello")}, "", 0.7)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if tt.wantStatus != 0 {
					var terr *llm.TransportError
					if !errors.As(err, &terr) {
						t.Fatalf("expected *llm.TransportError, got %T", err)
					}
					if terr.StatusCode != tt.wantStatus {
						t.Errorf("StatusCode = %d, want %d", terr.StatusCode, tt.wantStatus)
					}
				}
				return
			}

			if err != nil {
				t.Fatalf("CompleteChat() error = %v", err)
			}
			if resp.Content != tt.wantContent {
				t.Errorf("Content = %q, want %q", resp.Content, tt.wantContent)
			}
			if resp.FinishReason != tt.wantReason {
				t.Errorf("FinishReason = %q, want %q", resp.FinishReason, tt.wantReason)
			}
		})
	}
}

func TestHTTPClient_CompleteChat_Request(t *testing.T) {
	var got ChatRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(Config{APIKey: "secret", BaseURL: server.URL, Model: "custom-default-model"})
	conv := llm.Conversation{llm.System("sys"), llm.User("one"), llm.Assistant("two"), llm.User("three")}

	if _, err := client.CompleteChat(context.Background(), conv, "", 0.3); err != nil {
		t.Fatalf("CompleteChat() error = %v", err)
	}

	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q, want Bearer secret", auth)
	}
	if got.Model != "custom-default-model" {
		t.Errorf("model = %q, want default model", got.Model)
	}
	if got.Stream {
		t.Error("buffered request must not set stream")
	}
	wantRoles := []string{"system", "user", "assistant", "user"}
	for i, msg := range got.Messages {
		if msg.Role != wantRoles[i] || msg.Content != conv[i].Content {
			t.Errorf("message %d = %+v", i, msg)
		}
	}
}

func TestHTTPClient_CompleteText(t *testing.T) {
	doer := &stubDoer{
		status: http.StatusOK,
		body:   io.NopCloser(strings.NewReader(`{"choices":[{"message":{"content":"42"},"finish_reason":"stop"}]}`)),
	}
	client := NewHTTPClient(Config{HTTPClient: doer})

	resp, err := client.CompleteText(context.Background(), "What is the answer?", "other-model", 0.7)
	if err != nil {
		t.Fatalf("CompleteText() error = %v", err)
	}
	if resp.Content != "42" {
		t.Errorf("Content = %q, want 42", resp.Content)
	}

	var req ChatRequest
	if err := json.Unmarshal([]byte(doer.bodies[0]), &req); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "What is the answer?" {
		t.Errorf("messages = %+v, want single user turn", req.Messages)
	}
	if req.Model != "other-model" {
		t.Errorf("model = %q, want other-model", req.Model)
	}
}

func TestHTTPClient_CompleteChat_EmptyConversation(t *testing.T) {
	doer := &stubDoer{status: http.StatusOK}
	client := NewHTTPClient(Config{HTTPClient: doer})

	_, err := client.CompleteChat(context.Background(), nil, "", 0.7)
	if !errors.Is(err, llm.ErrEmptyConversation) {
		t.Fatalf("error = %v, want ErrEmptyConversation", err)
	}
	if len(doer.bodies) != 0 {
		t.Error("no request should be sent for an empty conversation")
	}
}

func TestHTTPClient_StreamChat(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse string
		statusCode     int
		wantErr        bool
		wantFragments  []string
	}{
		{
			name:       "successful streaming",
			statusCode: http.StatusOK,
			serverResponse: deltaLine("Hello") + "\n\n" +
				deltaLine(" world") + "\n\n" +
				"data: [DONE]\n\n",
			wantFragments: []string{"Hello", " world"},
		},
		{
			name:           "empty response handling",
			statusCode:     http.StatusOK,
			serverResponse: "data: [DONE]\n\n",
		},
		{
			name:           "stream ends without done marker",
			statusCode:     http.StatusOK,
			serverResponse: deltaLine("partial") + "\n\n",
			wantFragments:  []string{"partial"},
		},
		{
			name:           "non-data lines are skipped",
			statusCode:     http.StatusOK,
			serverResponse: "\n\nnot-data: ignored\n: ping\n\n" + deltaLine("test") + "\n\ndata: [DONE]\n\n",
			wantFragments:  []string{"test"},
		},
		{
			name:           "API error response",
			statusCode:     http.StatusUnauthorized,
			serverResponse: `{"error": "Invalid API key"}`,
			wantErr:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req ChatRequest
				json.NewDecoder(r.Body).Decode(&req)
				if !req.Stream {
					t.Error("streaming request must set stream:true")
				}
				w.Header().Set("Content-Type", "text/event-stream")
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.serverResponse))
			}))
			defer server.Close()

			client := NewHTTPClient(Config{BaseURL: server.URL})

			stream, err := client.StreamChat(context.Background(), llm.Conversation{llm.User("Hello")}, "", 0.7)
			if tt.wantErr {
				if !errors.Is(err, llm.ErrTransport) {
					t.Errorf("error = %v, want transport error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("StreamChat() error = %v", err)
			}

			var got []string
			for stream.Next() {
				got = append(got, stream.Fragment().Content)
			}
			if err := stream.Err(); err != nil {
				t.Fatalf("stream error = %v", err)
			}
			if stream.State() != llm.StreamDone {
				t.Errorf("State = %v, want done", stream.State())
			}
			if strings.Join(got, "|") != strings.Join(tt.wantFragments, "|") {
				t.Errorf("fragments = %q, want %q", got, tt.wantFragments)
			}
		})
	}
}

func TestHTTPClient_StreamChat_StopsAtDone(t *testing.T) {
	body := newLineBody(
		deltaLine("Hel"),
		deltaLine("lo"),
		deltaLine(""),
		"data: [DONE]",
		deltaLine("after done"),
		deltaLine("never read"),
	)
	client := NewHTTPClient(Config{HTTPClient: &stubDoer{status: http.StatusOK, body: body}})

	stream, err := client.StreamChat(context.Background(), llm.Conversation{llm.User("hi")}, "", 0.7)
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}

	var got []string
	for stream.Next() {
		got = append(got, stream.Fragment().Content)
	}

	if len(got) != 2 || got[0] != "Hel" || got[1] != "lo" {
		t.Fatalf("fragments = %q, want [Hel lo]", got)
	}
	if stream.Err() != nil {
		t.Errorf("Err() = %v, want nil", stream.Err())
	}

	calls, closed := body.stats()
	if calls != 4 {
		t.Errorf("body read %d times, want 4 (stop at [DONE])", calls)
	}
	if !closed {
		t.Error("body not closed after [DONE]")
	}

	// Single pass: further calls never touch the body
	if stream.Next() {
		t.Error("Next() returned true after done")
	}
	if calls, _ := body.stats(); calls != 4 {
		t.Errorf("body read again after done: %d", calls)
	}
}

func TestHTTPClient_StreamChat_MalformedChunkFails(t *testing.T) {
	body := newLineBody(
		deltaLine("Hello"),
		"data: invalid json",
		deltaLine("unreachable"),
		"data: [DONE]",
	)
	client := NewHTTPClient(Config{HTTPClient: &stubDoer{status: http.StatusOK, body: body}})

	stream, err := client.StreamChat(context.Background(), llm.Conversation{llm.User("hi")}, "", 0.7)
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}

	var got []string
	for stream.Next() {
		got = append(got, stream.Fragment().Content)
	}

	if len(got) != 1 || got[0] != "Hello" {
		t.Errorf("fragments = %q, want [Hello]", got)
	}
	if !errors.Is(stream.Err(), llm.ErrMalformedStreamChunk) {
		t.Errorf("Err() = %v, want ErrMalformedStreamChunk", stream.Err())
	}
	if stream.State() != llm.StreamFailed {
		t.Errorf("State = %v, want failed", stream.State())
	}
	if _, closed := body.stats(); !closed {
		t.Error("body not closed after failure")
	}
}

func TestHTTPClient_StreamChat_Cancellation(t *testing.T) {
	body := newLineBody(
		deltaLine("first"),
		deltaLine("second"),
		deltaLine("third"),
		"data: [DONE]",
	)
	client := NewHTTPClient(Config{HTTPClient: &stubDoer{status: http.StatusOK, body: body}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := client.StreamChat(ctx, llm.Conversation{llm.User("hi")}, "", 0.7)
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}

	if !stream.Next() || stream.Fragment().Content != "first" {
		t.Fatalf("expected first fragment, got %q (err %v)", stream.Fragment().Content, stream.Err())
	}
	callsBefore, _ := body.stats()

	cancel()

	if stream.Next() {
		t.Errorf("Next() after cancel produced %q", stream.Fragment().Content)
	}
	if stream.State() != llm.StreamCancelled {
		t.Errorf("State = %v, want cancelled", stream.State())
	}
	if !errors.Is(stream.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled", stream.Err())
	}

	calls, closed := body.stats()
	if calls != callsBefore {
		t.Errorf("body read %d more times after cancel", calls-callsBefore)
	}
	if !closed {
		t.Error("body not closed after cancel")
	}
}

func TestHTTPClient_StreamChat_ContextCancellationLiveServer(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(deltaLine("Hello") + "\n\n"))
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		select {
		case <-r.Context().Done():
		case <-release:
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewHTTPClient(Config{BaseURL: server.URL})
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := client.StreamChat(ctx, llm.Conversation{llm.User("Hello")}, "", 0.7)
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}

	if !stream.Next() || stream.Fragment().Content != "Hello" {
		t.Fatal("Expected first fragment with 'Hello'")
	}

	cancel()

	done := make(chan bool)
	go func() { done <- stream.Next() }()

	select {
	case more := <-done:
		if more {
			t.Error("received a fragment after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next() did not return promptly after cancellation")
	}
}

func TestHTTPClient_StreamText(t *testing.T) {
	doer := &stubDoer{
		status: http.StatusOK,
		body:   newLineBody(deltaLine("a"), deltaLine("b"), "data: [DONE]"),
	}
	client := NewHTTPClient(Config{HTTPClient: doer})

	stream, err := client.StreamText(context.Background(), "prompt", "", 0.7)
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}
	text, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if text != "ab" {
		t.Errorf("text = %q, want ab", text)
	}
	if !strings.Contains(doer.bodies[0], `"stream":true`) {
		t.Errorf("request body %s missing stream:true", doer.bodies[0])
	}
}

func TestHTTPClient_NetworkError(t *testing.T) {
	doer := &stubDoer{err: errors.New("dial tcp: connection refused")}
	client := NewHTTPClient(Config{HTTPClient: doer})
	conv := llm.Conversation{llm.User("test")}

	t.Run("StreamChat network error", func(t *testing.T) {
		_, err := client.StreamChat(context.Background(), conv, "", 0.7)
		var terr *llm.TransportError
		if !errors.As(err, &terr) || terr.StatusCode != 0 {
			t.Errorf("error = %v, want transport error without status", err)
		}
	})

	t.Run("CompleteChat network error", func(t *testing.T) {
		_, err := client.CompleteChat(context.Background(), conv, "", 0.7)
		if !errors.Is(err, llm.ErrTransport) {
			t.Errorf("error = %v, want transport error", err)
		}
	})
}

func TestHTTPClient_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL, Timeout: 10 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.CompleteChat(ctx, llm.Conversation{llm.User("test")}, "", 0.7)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}

func TestHTTPClient_ConcurrentCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q},"finish_reason":"stop"}]}`, req.Messages[0].Content)
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prompt := fmt.Sprintf("prompt-%d", i)
			resp, err := client.CompleteText(context.Background(), prompt, "", 0.7)
			if err != nil {
				errs <- err
				return
			}
			if resp.Content != prompt {
				errs <- fmt.Errorf("got %q for %q", resp.Content, prompt)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func BenchmarkHTTPClient_StreamChat(b *testing.B) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 10; i++ {
			fmt.Fprintf(w, "%s\n\n", deltaLine("word"))
		}
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL})
	conv := llm.Conversation{llm.User("test")}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		stream, err := client.StreamChat(context.Background(), conv, "", 0.7)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := stream.Collect(); err != nil {
			b.Fatal(err)
		}
	}
}
