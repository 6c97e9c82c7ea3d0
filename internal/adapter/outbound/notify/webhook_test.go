package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sentinelguard/actiongate/internal/domain/notify"
)

func sampleEvent() notify.BlockedEvent {
	return notify.BlockedEvent{
		Event:         "action_blocked",
		ActionID:      "01234567-89ab-cdef-0123-456789abcdef",
		TenantID:      "t1",
		PrincipalName: "agent-1",
		ActionType:    "pay",
		Params:        map[string]any{"amount": 500.0},
		Reason:        "exceeds per-principal limit",
		Timestamp:     time.Now().UTC(),
	}
}

func TestWebhookNotifier_GenericEndpointPostsRawEvent(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(nil)
	if err := n.Notify(sampleEvent(), srv.URL); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if received["action_id"] != "01234567-89ab-cdef-0123-456789abcdef" {
		t.Errorf("received[action_id] = %v, want action id", received["action_id"])
	}
	if received["reason"] != "exceeds per-principal limit" {
		t.Errorf("received[reason] = %v, want reason", received["reason"])
	}
}

func TestWebhookNotifier_SlackFormatting(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(nil)

	slackURL := "https://hooks.slack.com/services/T00/B00/XXXX"
	payload := buildPayload(sampleEvent(), slackURL)
	asMap, ok := payload.(map[string]any)
	if !ok {
		t.Fatalf("formatSlack did not return a map")
	}
	if asMap["text"] != ":no_entry: Action Blocked" {
		t.Errorf("slack payload text = %v", asMap["text"])
	}
	if _, ok := asMap["blocks"]; !ok {
		t.Error("slack payload missing blocks")
	}

	if err := n.Notify(sampleEvent(), srv.URL); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
}

func TestWebhookNotifier_DiscordFormatting(t *testing.T) {
	discordURL := "https://discord.com/api/webhooks/123/abc"
	payload := buildPayload(sampleEvent(), discordURL)
	asMap, ok := payload.(map[string]any)
	if !ok {
		t.Fatalf("formatDiscord did not return a map")
	}
	embeds, ok := asMap["embeds"].([]map[string]any)
	if !ok || len(embeds) != 1 {
		t.Fatalf("discord payload embeds = %v", asMap["embeds"])
	}
	if embeds[0]["title"] != ":no_entry: Action Blocked" {
		t.Errorf("discord embed title = %v", embeds[0]["title"])
	}
}

func TestWebhookNotifier_WithTimeoutOverridesDefault(t *testing.T) {
	n := NewWebhookNotifier(nil, WithTimeout(2*time.Second))
	if n.client.Timeout != 2*time.Second {
		t.Errorf("client.Timeout = %v, want 2s", n.client.Timeout)
	}
}

func TestWebhookNotifier_WithTimeoutIgnoresNonPositive(t *testing.T) {
	n := NewWebhookNotifier(nil, WithTimeout(0))
	if n.client.Timeout != defaultTimeout {
		t.Errorf("client.Timeout = %v, want unchanged default %v", n.client.Timeout, defaultTimeout)
	}
}

func TestWebhookNotifier_RetriesOnFailureThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(nil)
	if err := n.Notify(sampleEvent(), srv.URL); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if atomic.LoadInt32(&attempts) != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestWebhookNotifier_ExhaustsRetriesAndReturnsError(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(nil, WithMaxAttempts(2))
	err := n.Notify(sampleEvent(), srv.URL)
	if err == nil {
		t.Fatal("Notify() error = nil, want failure after exhausting retries")
	}
	if atomic.LoadInt32(&attempts) != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestWebhookNotifier_UnreachableEndpointReturnsError(t *testing.T) {
	n := NewWebhookNotifier(nil, WithMaxAttempts(1))
	err := n.Notify(sampleEvent(), "http://127.0.0.1:1")
	if err == nil {
		t.Fatal("Notify() error = nil, want connection failure")
	}
}
