package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"frameline/api/internal/workspace"
)

func TestSendPostsRequestAndReturnsMessage(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "**Objective:** Launch"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	reply, err := client.Send(context.Background(), Request{
		Phase:     workspace.PhaseDevelopment,
		ToolType:  "brief",
		PhaseData: map[string]string{"brief": `[{}]`},
		Messages:  []workspace.ChatMessage{{Role: "user", Content: "write a brief"}},
		Mode:      ModeDraft,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply != "**Objective:** Launch" {
		t.Fatalf("reply = %q", reply)
	}
	if got.ToolType != "brief" || got.Mode != ModeDraft || len(got.Messages) != 1 || got.LockedPhases == nil {
		t.Fatalf("request = %+v", got)
	}
}

func TestSendDefaultsToChatMode(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, time.Second).Send(context.Background(), Request{ToolType: "brief"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if raw["mode"] != "chat" {
		t.Fatalf("mode = %v", raw["mode"])
	}
	if _, ok := raw["lockedPhases"].([]any); !ok {
		t.Fatalf("lockedPhases = %#v", raw["lockedPhases"])
	}
}

func TestSendReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Send(context.Background(), Request{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable || apiErr.Body != "model overloaded" {
		t.Fatalf("err = %v", err)
	}
}

func TestSendTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, 50*time.Millisecond).Send(context.Background(), Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSendWithoutURL(t *testing.T) {
	if _, err := NewClient("", 0).Send(context.Background(), Request{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	var nilClient *Client
	if nilClient.Configured() {
		t.Fatal("nil client reports configured")
	}
}

func TestGuardRejectsConcurrentSubmit(t *testing.T) {
	g := NewGuard()
	key := Key("proj_1", "brief")

	release, err := g.Acquire(key)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := g.Acquire(key); !errors.Is(err, ErrBusy) {
		t.Fatalf("second acquire: %v", err)
	}
	if _, err := g.Acquire(Key("proj_1", "lookbook")); err != nil {
		t.Fatalf("other tool: %v", err)
	}
	if !g.Busy(key) {
		t.Fatal("key not busy")
	}

	release()
	release()
	if g.Busy(key) {
		t.Fatal("key still busy after release")
	}
	if _, err := g.Acquire(key); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}
