package piston

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nimnim111/LeetDuel-Online/internal/sandbox"
)

func TestExecuteSendsSourceAndStdin(t *testing.T) {
	var got executeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/execute" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"run":{"stdout":"ok\n","stderr":"","code":0,"signal":null}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	out, err := c.Execute(context.Background(), "print('ok')", "[]", 2*time.Second)
	if err != nil {
		t.Fatalf("should be able to execute: %v", err)
	}
	if !out.ExitOK || out.Stdout != "ok\n" {
		t.Fatalf("unexpected output %+v", out)
	}
	if got.Language != "python" || got.Stdin != "[]" || got.RunTimeout != 2000 {
		t.Fatalf("unexpected request %+v", got)
	}
	if len(got.Files) != 1 || got.Files[0].Content != "print('ok')" {
		t.Fatalf("source not forwarded: %+v", got.Files)
	}
}

func TestExecuteKilledIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"run":{"stdout":"","stderr":"","code":null,"signal":"SIGKILL"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "python", "3.10").Execute(context.Background(), "while True: pass", "", time.Second)
	if !errors.Is(err, sandbox.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestExecuteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "", "").Execute(context.Background(), "", "", time.Second); err == nil {
		t.Fatal("expected error on 503")
	}
}
