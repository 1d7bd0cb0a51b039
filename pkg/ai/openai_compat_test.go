package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAICompatCompleteText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req oaiChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "check_availability" {
			t.Errorf("tools not forwarded: %+v", req.Tools)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello there."}}]}`))
	}))
	defer srv.Close()

	oracle := NewOpenAICompatOracle(srv.URL+"/v1", "test-key", "test-model")
	tools := []Tool{NewFunctionTool("check_availability", "Check a slot.", map[string]any{"type": "object"})}
	out, err := oracle.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, tools)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out.Content != "Hello there." || len(out.ToolCalls) != 0 {
		t.Fatalf("unexpected completion: %+v", out)
	}
}

func TestOpenAICompatCompleteToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"",
			"tool_calls":[{"id":"call_1","type":"function",
			"function":{"name":"book_appointment","arguments":"{\"user_email\":\"dana@example.com\"}"}}]}}]}`))
	}))
	defer srv.Close()

	oracle := NewOpenAICompatOracle(srv.URL, "", "test-model")
	out, err := oracle.Complete(context.Background(), []Message{{Role: "user", Content: "book it"}}, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(out.ToolCalls) != 1 || out.ToolCalls[0].Function.Name != "book_appointment" {
		t.Fatalf("unexpected tool calls: %+v", out.ToolCalls)
	}
	var args struct {
		UserEmail string `json:"user_email"`
	}
	if err := out.ToolCalls[0].UnmarshalArguments(&args); err != nil {
		t.Fatalf("unmarshal arguments: %v", err)
	}
	if args.UserEmail != "dana@example.com" {
		t.Fatalf("unexpected arguments: %+v", args)
	}
}

func TestOpenAICompatCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	oracle := NewOpenAICompatOracle(srv.URL, "", "test-model")
	_, err := oracle.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected api error with message, got %v", err)
	}
}
