// Package telegramtest provides a fake Telegram Bot API server for tests.
package telegramtest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
)

// Token is a syntactically valid bot token accepted by the fake server.
const Token = "123456:TEST-token"

// Call is one recorded Bot API request.
type Call struct {
	Method string
	Params map[string]string
}

// Server records Bot API calls and answers them with minimal successful
// results unless told to fail.
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	calls []Call
	fail  map[string]string
}

// NewServer starts a fake Bot API server closed at test cleanup.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{fail: make(map[string]string)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Bot returns a bot pointed at the fake server.
func (s *Server) Bot(t testing.TB, opts ...bot.Option) *bot.Bot {
	t.Helper()
	opts = append([]bot.Option{bot.WithServerURL(s.URL), bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(Token, opts...)
	if err != nil {
		t.Fatalf("create test bot: %v", err)
	}
	return b
}

// Fail makes every call to method return a Bot API error with description.
func (s *Server) Fail(method, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[method] = description
}

// Calls returns the recorded calls in arrival order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the recorded calls to method.
func (s *Server) CallsTo(method string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	params := make(map[string]string, len(r.Form))
	for k, v := range r.Form {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, Params: params})
	description, failing := s.fail[method]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failing {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"error_code":  http.StatusBadRequest,
			"description": description,
		})
		return
	}

	var result any = true
	if method == "sendMessage" {
		chatID, _ := strconv.ParseInt(params["chat_id"], 10, 64)
		result = map[string]any{
			"message_id": len(s.Calls()),
			"date":       0,
			"chat":       map[string]any{"id": chatID, "type": "private"},
			"text":       params["text"],
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}
