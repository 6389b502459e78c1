package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/themobileprof/kernelchat/internal/chat"
	"github.com/themobileprof/kernelchat/internal/circuitbreaker"
	"github.com/themobileprof/kernelchat/internal/classifier"
	"github.com/themobileprof/kernelchat/internal/kernel"
	"github.com/themobileprof/kernelchat/internal/plugins"
	"github.com/themobileprof/kernelchat/internal/prompt"
	"github.com/themobileprof/kernelchat/internal/store"
	"github.com/themobileprof/kernelchat/pkg/llm"
	"github.com/themobileprof/kernelchat/pkg/openaicompat"
)

type testServer struct {
	router *gin.Engine
	mock   *openaicompat.MockService
	store  store.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	seed, err := store.LoadSeed("", time.Now())
	if err != nil {
		t.Fatalf("LoadSeed() error = %v", err)
	}
	s := store.NewMemoryStore(seed)

	k := kernel.New()
	if err := plugins.Register(k, s, plugins.NewNewsReader("", nil)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	mock := openaicompat.NewMockService()
	breaker := circuitbreaker.NewCircuitBreaker(5, time.Minute)
	engine := chat.NewEngine(mock, k, prompt.NewBuilder(0), classifier.NewClassifier(), chat.Config{
		Timeout: time.Second,
		Breaker: breaker,
	})

	router := gin.New()
	RegisterHealth(router, breaker, "test-model")
	group := router.Group("/api")
	NewDemoHandler(engine).RegisterRoutes(group)
	NewPluginHandler(k).RegisterRoutes(group)

	return &testServer{router: router, mock: mock, store: s}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
	return out
}

func userMessages(content string) DemoRequest {
	return DemoRequest{Messages: []MessageDTO{{Role: "user", Content: content}}}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "healthy" || body["circuit"] != "closed" || body["model"] != "test-model" {
		t.Errorf("body = %v", body)
	}

	w = ts.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "kernelchat_") {
		t.Errorf("metrics status = %d", w.Code)
	}
}

func TestListDemos(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/demos", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	demos, ok := decode(t, w)["demos"].([]any)
	if !ok || len(demos) != 4 {
		t.Fatalf("demos = %v", demos)
	}
	if strings.Contains(w.Body.String(), "Instructions") {
		t.Error("system prompts should not be exposed")
	}
}

func TestRespond(t *testing.T) {
	ts := newTestServer(t)
	ts.mock.ChatFunc = func(context.Context, llm.Conversation, llm.Settings) (*llm.CompletionResult, error) {
		return &llm.CompletionResult{Content: "Hi there!", FinishReason: "stop"}, nil
	}

	w := ts.do(t, http.MethodPost, "/api/demos/chat", userMessages("hello"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["reply"] != "Hi there!" || body["demo"] != "chat" {
		t.Errorf("body = %v", body)
	}
}

func TestRespond_FunctionCallUpdatesStore(t *testing.T) {
	ts := newTestServer(t)
	replies := []string{
		`{"function":"Lights.toggle_light","arguments":{"id":2,"is_on":true}}`,
		"The kitchen light is now on.",
	}
	ts.mock.ChatFunc = func(context.Context, llm.Conversation, llm.Settings) (*llm.CompletionResult, error) {
		r := replies[0]
		if len(replies) > 1 {
			replies = replies[1:]
		}
		return &llm.CompletionResult{Content: r, FinishReason: "stop"}, nil
	}

	w := ts.do(t, http.MethodPost, "/api/demos/chat", userMessages("turn on the kitchen light"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["reply"]; got != "The kitchen light is now on." {
		t.Errorf("reply = %v", got)
	}

	light, err := ts.store.GetLight(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if !light.IsOn || light.Brightness != 100 {
		t.Errorf("light = %+v, want on at 100", light)
	}
}

func TestRespond_AutoDemo(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/demos/auto", userMessages("What is the status of my claim?"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["demo"]; got != "customer_service" {
		t.Errorf("demo = %v", got)
	}
}

func TestRespond_ProviderFailureFallsBack(t *testing.T) {
	ts := newTestServer(t)
	ts.mock.ChatFunc = func(context.Context, llm.Conversation, llm.Settings) (*llm.CompletionResult, error) {
		return nil, &llm.TransportError{StatusCode: 500, Body: "model crashed"}
	}

	w := ts.do(t, http.MethodPost, "/api/demos/chat", userMessages("hello"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if body["reply"] != "Whoopsie, something went horribly wrong." || body["fallback"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestRespond_BadRequests(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
	}{
		{name: "unknown demo", path: "/api/demos/weather", body: userMessages("hi"), wantStatus: http.StatusNotFound},
		{name: "malformed JSON", path: "/api/demos/chat", body: "{not json", wantStatus: http.StatusBadRequest},
		{name: "no messages", path: "/api/demos/chat", body: DemoRequest{}, wantStatus: http.StatusBadRequest},
		{name: "invalid role", path: "/api/demos/chat", body: DemoRequest{Messages: []MessageDTO{{Role: "robot", Content: "hi"}}}, wantStatus: http.StatusBadRequest},
		{name: "no user turn", path: "/api/demos/chat", body: DemoRequest{Messages: []MessageDTO{{Role: "assistant", Content: "hi"}}}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			w := ts.do(t, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if ts.mock.GetChatCallCount() != 0 {
				t.Error("provider should not be called")
			}
		})
	}
}

func TestComplete(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/complete", CompleteRequest{Prompt: "Write a haiku"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp CompleteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Content != "This is a mock response." || resp.Usage == nil || resp.Usage.TotalTokens != 15 {
		t.Errorf("resp = %+v", resp)
	}
	if got := ts.mock.Settings[0].Temperature; got != 0.7 {
		t.Errorf("default temperature = %v", got)
	}
}

func TestComplete_Errors(t *testing.T) {
	hot := 3.0
	tests := []struct {
		name        string
		body        any
		providerErr error
		wantStatus  int
	}{
		{name: "missing prompt", body: CompleteRequest{}, wantStatus: http.StatusBadRequest},
		{name: "temperature out of range", body: CompleteRequest{Prompt: "hi", Temperature: &hot}, wantStatus: http.StatusBadRequest},
		{name: "server error", body: CompleteRequest{Prompt: "hi"}, providerErr: &llm.TransportError{StatusCode: 500}, wantStatus: http.StatusBadGateway},
		{name: "timeout", body: CompleteRequest{Prompt: "hi"}, providerErr: &llm.TransportError{Err: context.DeadlineExceeded}, wantStatus: http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			if tt.providerErr != nil {
				ts.mock.ChatFunc = func(context.Context, llm.Conversation, llm.Settings) (*llm.CompletionResult, error) {
					return nil, tt.providerErr
				}
			}
			w := ts.do(t, http.MethodPost, "/api/complete", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestCompletionStatus_CircuitOpen(t *testing.T) {
	if got := completionStatus(circuitbreaker.ErrCircuitOpen); got != http.StatusServiceUnavailable {
		t.Errorf("status = %d", got)
	}
	if got := completionStatus(chat.ErrNoTextClient); got != http.StatusNotImplemented {
		t.Errorf("status = %d", got)
	}
}

func TestListPlugins(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/plugins", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	list, _ := decode(t, w)["plugins"].([]any)
	if len(list) != 5 {
		t.Fatalf("got %d plugins, want 5", len(list))
	}
	for _, name := range []string{"Custom", "Lights", "ApplicantManagement", "CustomerService", "Routing"} {
		if !strings.Contains(w.Body.String(), `"name":"`+name+`"`) {
			t.Errorf("plugin %s missing", name)
		}
	}
}

func TestInvokePlugin(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantResult string
	}{
		{
			name:       "route document",
			path:       "/api/plugins/Routing/route_document",
			body:       InvokeRequest{Args: kernel.Args{"department": "Legal"}},
			wantStatus: http.StatusOK,
			wantResult: "Legal",
		},
		{
			name:       "no body",
			path:       "/api/plugins/Lights/get_lights",
			wantStatus: http.StatusOK,
			wantResult: "Kitchen",
		},
		{
			name:       "unknown function",
			path:       "/api/plugins/Lights/explode",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "invalid argument",
			path:       "/api/plugins/Lights/set_brightness",
			body:       InvokeRequest{Args: kernel.Args{"id": 1}},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			w := ts.do(t, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantResult != "" {
				result, _ := decode(t, w)["result"].(string)
				if !strings.Contains(result, tt.wantResult) {
					t.Errorf("result = %q, want it to contain %q", result, tt.wantResult)
				}
			}
		})
	}
}
