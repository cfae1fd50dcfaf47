package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLlamaServer emulates the subset of the llama.cpp server API the
// runtime uses.
type fakeLlamaServer struct {
	models     []string
	completion func(w http.ResponseWriter, req completionRequest)

	mu       sync.Mutex
	lastReq  completionRequest
	lastAuth string
}

func (s *fakeLlamaServer) request() completionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq
}

func (s *fakeLlamaServer) auth() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

func (s *fakeLlamaServer) start(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.lastAuth = r.Header.Get("Authorization")
		s.mu.Unlock()
		var list modelList
		for _, m := range s.models {
			list.Data = append(list.Data, struct {
				ID string `json:"id"`
			}{ID: m})
		}
		_ = json.NewEncoder(w).Encode(list)
	})
	mux.HandleFunc("POST /v1/completions", func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.lastReq = req
		s.mu.Unlock()
		if s.completion != nil {
			s.completion(w, req)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"text":" world","finish_reason":"length"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPipelineByName(t *testing.T) {
	t.Parallel()

	fake := &fakeLlamaServer{models: []string{"/models/TinyLlama.gguf"}}
	srv := fake.start(t)
	rt := NewLlamaRuntime(LlamaOptions{ServerURL: srv.URL + "/", ServerAPIKey: "secret"}, nil)

	p, err := rt.PipelineByName(context.Background(), "tinyllama", CPU)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", fake.auth())

	out, err := p.Run(context.Background(), "hello", Params{MaxNewTokens: 12, Temperature: 0.7, TopP: 0.95, DoSample: true})
	require.NoError(t, err)
	assert.Equal(t, []Candidate{{GeneratedText: "hello world"}}, out)

	got := fake.request()
	assert.Equal(t, "/models/TinyLlama.gguf", got.Model)
	assert.Equal(t, "hello", got.Prompt)
	assert.Equal(t, 12, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-6)
	assert.InDelta(t, 0.95, got.TopP, 1e-6)
	assert.False(t, got.Stream)

	_, err = p.Run(context.Background(), "hello", Params{MaxNewTokens: 1, Temperature: 0.7, TopP: 0.95, DoSample: false})
	require.NoError(t, err)
	assert.Zero(t, fake.request().Temperature, "greedy when sampling disabled")
}

func TestPipelineByNameResolution(t *testing.T) {
	t.Parallel()

	t.Run("unknown model", func(t *testing.T) {
		t.Parallel()
		srv := (&fakeLlamaServer{models: []string{"llama-3"}}).start(t)
		rt := NewLlamaRuntime(LlamaOptions{ServerURL: srv.URL}, nil)
		_, err := rt.PipelineByName(context.Background(), "gpt2", CPU)
		assert.ErrorIs(t, err, ErrModelNotFound)
	})

	t.Run("server lists nothing", func(t *testing.T) {
		t.Parallel()
		srv := (&fakeLlamaServer{}).start(t)
		rt := NewLlamaRuntime(LlamaOptions{ServerURL: srv.URL}, nil)
		_, err := rt.PipelineByName(context.Background(), "gpt2", CPU)
		assert.NoError(t, err)
	})

	t.Run("empty identifier", func(t *testing.T) {
		t.Parallel()
		srv := (&fakeLlamaServer{}).start(t)
		rt := NewLlamaRuntime(LlamaOptions{ServerURL: srv.URL}, nil)
		_, err := rt.PipelineByName(context.Background(), " ", CPU)
		assert.ErrorIs(t, err, ErrModelNotFound)
	})

	t.Run("no server configured", func(t *testing.T) {
		t.Parallel()
		rt := NewLlamaRuntime(LlamaOptions{}, nil)
		_, err := rt.PipelineByName(context.Background(), "gpt2", CPU)
		assert.ErrorIs(t, err, ErrServerNotConfigured)
	})

	t.Run("server down", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		rt := NewLlamaRuntime(LlamaOptions{ServerURL: url, ServerTimeout: time.Second}, nil)
		_, err := rt.PipelineByName(context.Background(), "gpt2", CPU)
		assert.Error(t, err)
	})
}

func TestServerCompletionShapes(t *testing.T) {
	t.Parallel()

	t.Run("body without choices is returned raw", func(t *testing.T) {
		t.Parallel()
		fake := &fakeLlamaServer{completion: func(w http.ResponseWriter, _ completionRequest) {
			_, _ = w.Write([]byte(`{"content":"partial"}`))
		}}
		srv := fake.start(t)
		c := newServerClient(srv.URL, "", 0, nil)
		out, err := c.complete(context.Background(), "m", "p", Params{MaxNewTokens: 1})
		require.NoError(t, err)
		assert.Equal(t, `{"content":"partial"}`, out)
	})

	t.Run("http error", func(t *testing.T) {
		t.Parallel()
		fake := &fakeLlamaServer{completion: func(w http.ResponseWriter, _ completionRequest) {
			http.Error(w, "context overflow", http.StatusInternalServerError)
		}}
		srv := fake.start(t)
		c := newServerClient(srv.URL, "", 0, nil)
		_, err := c.complete(context.Background(), "m", "p", Params{MaxNewTokens: 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
		assert.Contains(t, err.Error(), "context overflow")
	})
}

func TestSlowCompletionIsNotCutShort(t *testing.T) {
	t.Parallel()

	fake := &fakeLlamaServer{
		models: []string{"gpt2"},
		completion: func(w http.ResponseWriter, _ completionRequest) {
			time.Sleep(300 * time.Millisecond)
			_, _ = w.Write([]byte(`{"choices":[{"text":" eventually"}]}`))
		},
	}
	srv := fake.start(t)

	tests := []struct {
		name    string
		timeout time.Duration
	}{
		{"default timeout", 0},
		{"listing timeout shorter than generation", 100 * time.Millisecond},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rt := NewLlamaRuntime(LlamaOptions{ModelsDir: t.TempDir(), ServerURL: srv.URL, ServerTimeout: tc.timeout}, nil)

			e, err := NewEngine(context.Background(), rt, "gpt2", "cpu", nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = e.Close() })

			out, err := e.Generate(context.Background(), "slow", 8, 0.7, 0.95, true)
			require.NoError(t, err)
			assert.Equal(t, "slow eventually", out)
		})
	}
}

func TestEngineThroughServerFallback(t *testing.T) {
	t.Parallel()

	srv := (&fakeLlamaServer{models: []string{"gpt2"}}).start(t)
	rt := NewLlamaRuntime(LlamaOptions{ModelsDir: t.TempDir(), ServerURL: srv.URL}, nil)

	e, err := NewEngine(context.Background(), rt, "gpt2", "cpu", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	out, err := e.Generate(context.Background(), "hello", 8, 0.7, 0.95, true)
	require.NoError(t, err)
	assert.Equal(t, "hello world", out, "full text includes the prompt")
}
