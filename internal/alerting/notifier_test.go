package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chainguard-sentinel/internal/storage"
)

func testAlert() storage.Alert {
	return storage.Alert{
		ID:           "alert-1",
		Timestamp:    "2026-03-14T09:30:00Z",
		Contract:     "0x514910771af9ca656af840dff83e8264ecf986ca",
		ContractName: "Chainlink Token",
		Type:         "risk_assessment",
		Message:      "Risk score 88: oracle deviation beyond threshold",
		Severity:     storage.SeverityHigh,
		Status:       storage.AlertActive,
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testAlert()); err != nil {
		t.Fatalf("Notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "Chainlink Token") {
		t.Fatalf("message should name the contract: %q", received["text"])
	}
	if !strings.Contains(received["text"], "high") {
		t.Fatalf("message should carry the severity: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testAlert()); err == nil {
		t.Fatal("ok=false should be an error")
	}
}

func TestTelegramNotifierHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testAlert()); err == nil {
		t.Fatal("HTTP 502 should be an error")
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
