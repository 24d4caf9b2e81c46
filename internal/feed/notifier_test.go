package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewNotifierValidation(t *testing.T) {
	if _, err := NewNotifier(Config{}); err == nil {
		t.Error("Expected error for empty URL")
	}

	if _, err := NewNotifier(Config{URL: "http://localhost:5050/api/feed/notify"}); err != nil {
		t.Errorf("Expected valid config to pass, got: %v", err)
	}
}

func TestNotifyPostsTranscriptEvent(t *testing.T) {
	var got Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewNotifier(Config{URL: server.URL, PersonaName: "Scanner"})
	if err != nil {
		t.Fatalf("NewNotifier failed: %v", err)
	}

	if !notifier.Notify(context.Background(), "  engine three on scene  ", 4, "") {
		t.Fatal("Expected successful notification")
	}

	if got.EventType != "transcript" {
		t.Errorf("Expected event_type transcript, got %q", got.EventType)
	}
	if got.Data != "engine three on scene" {
		t.Errorf("Expected trimmed transcript, got %q", got.Data)
	}
	if got.Channel != 4 {
		t.Errorf("Expected channel 4, got %d", got.Channel)
	}
	if got.SessionID == "" {
		t.Error("Expected generated session ID")
	}
	if got.TimestampMS == 0 {
		t.Error("Expected timestamp in payload")
	}
	if got.Language != "en" {
		t.Errorf("Expected default language en, got %q", got.Language)
	}
}

func TestNotifySkipsBlankTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Server should not be contacted for blank transcripts")
	}))
	defer server.Close()

	notifier, err := NewNotifier(Config{URL: server.URL})
	if err != nil {
		t.Fatalf("NewNotifier failed: %v", err)
	}

	if notifier.Notify(context.Background(), "   ", 1, "") {
		t.Error("Expected blank transcript to be skipped")
	}
}

func TestNotifyReportsServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	notifier, err := NewNotifier(Config{URL: server.URL})
	if err != nil {
		t.Fatalf("NewNotifier failed: %v", err)
	}

	if notifier.Notify(context.Background(), "hello", 2, "") {
		t.Error("Expected failure for 503 response")
	}

	stats := notifier.GetStats()
	if stats.TotalNotifications != 1 || stats.FailedNotifications != 1 {
		t.Errorf("Expected 1 failed notification in stats, got %+v", stats)
	}
}

func TestNotifyOmitsOutOfRangeChannel(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewNotifier(Config{URL: server.URL})
	if err != nil {
		t.Fatalf("NewNotifier failed: %v", err)
	}

	if !notifier.Notify(context.Background(), "hello", 0, "custom_session") {
		t.Fatal("Expected successful notification")
	}

	if _, present := raw["channel"]; present {
		t.Error("Expected channel field omitted for out-of-range channel")
	}
	if raw["session_id"] != "custom_session" {
		t.Errorf("Expected caller session ID preserved, got %v", raw["session_id"])
	}
}
