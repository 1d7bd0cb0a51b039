package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"consultassist/internal/app"
	"consultassist/internal/ratelimit"
	"consultassist/pkg/ai"
	"consultassist/pkg/booking"
	"consultassist/pkg/domain"
	"consultassist/pkg/mail"
	"consultassist/pkg/schedule"
	"consultassist/pkg/store"
)

// echoOracle answers every request with fixed text.
type echoOracle struct {
	reply string
}

func (o echoOracle) Complete(ctx context.Context, messages []ai.Message, tools []ai.Tool) (ai.Completion, error) {
	return ai.Completion{Content: o.reply}, nil
}

func newTestServer(t *testing.T, limiter *ratelimit.FixedWindowLimiter) (*httptest.Server, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	for _, name := range []string{"Technology", "Sales", "Financial", "Legal"} {
		if _, err := st.CreateService(domain.Service{Name: name, Description: name + " consulting"}); err != nil {
			t.Fatalf("create service: %v", err)
		}
	}
	eng := schedule.New(st)
	a, err := app.New(app.Config{
		Store:    st,
		Engine:   eng,
		Booking:  booking.NewService(st, eng),
		Oracle:   echoOracle{reply: "Happy to help with scheduling."},
		Notifier: mail.NopNotifier{},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv := httptest.NewServer(New(Config{App: a, Store: st, Limiter: limiter}).Router())
	t.Cleanup(srv.Close)
	return srv, st
}

func postChatTurn(t *testing.T, srv *httptest.Server, body string) (int, chatTurnResponse) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/chat_turn", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var out chatTurnResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestListServices(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/services")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var services []domain.Service
	if err := json.NewDecoder(resp.Body).Decode(&services); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(services) != 4 || services[0].Name != "Technology" {
		t.Fatalf("unexpected services %v", services)
	}
}

func TestChatTurnMintsSessionAndPersistsTurns(t *testing.T) {
	srv, st := newTestServer(t, nil)

	status, out := postChatTurn(t, srv, `{"messages":[{"role":"user","content":"hello"}]}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.HasPrefix(out.SessionID, "chat_") {
		t.Fatalf("expected minted session ID, got %q", out.SessionID)
	}
	if out.Response != "Happy to help with scheduling." {
		t.Fatalf("unexpected response %q", out.Response)
	}

	turns, err := st.ListTurns(out.SessionID, 10)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	if len(turns) != 2 || turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Fatalf("unexpected turns %+v", turns)
	}
	if turns[0].Content != "hello" || turns[1].Content != "Happy to help with scheduling." {
		t.Fatalf("unexpected turn contents %+v", turns)
	}
}

func TestChatTurnKeepsClientSessionID(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	_, out := postChatTurn(t, srv, `{"session_id":"chat_existing","messages":[{"role":"user","content":"hi"}]}`)
	if out.SessionID != "chat_existing" {
		t.Fatalf("session ID rewritten to %q", out.SessionID)
	}
}

func TestChatTurnEmptyMessage(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, body := range []string{
		`{"messages":[]}`,
		`{"messages":[{"role":"assistant","content":"hi"}]}`,
		`{"messages":[{"role":"user","content":""}]}`,
	} {
		status, out := postChatTurn(t, srv, body)
		if status != http.StatusOK {
			t.Fatalf("body %s: status = %d", body, status)
		}
		if out.Response != replyInvalidMessage {
			t.Fatalf("body %s: response = %q", body, out.Response)
		}
	}
}

func TestChatTurnTermination(t *testing.T) {
	srv, st := newTestServer(t, nil)
	_, out := postChatTurn(t, srv, `{"session_id":"chat_bye","messages":[{"role":"user","content":"goodbye"}]}`)
	if out.Response != replyFarewell {
		t.Fatalf("unexpected farewell %q", out.Response)
	}
	turns, err := st.ListTurns("chat_bye", 10)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	if len(turns) != 2 || turns[1].Content != replyFarewell {
		t.Fatalf("farewell not persisted: %+v", turns)
	}
}

func TestChatTurnInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	status, _ := postChatTurn(t, srv, `{"messages":`)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestChatTurnMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/chat_turn")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestChatTurnRateLimited(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit", 1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	srv, _ := newTestServer(t, limiter)

	body := `{"session_id":"chat_rl","messages":[{"role":"user","content":"hi"}]}`
	if status, _ := postChatTurn(t, srv, body); status != http.StatusOK {
		t.Fatalf("first request status = %d", status)
	}
	status, _ := postChatTurn(t, srv, body)
	if status != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", status)
	}
}
