package foundry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebhookAlerter(t *testing.T) {
	t.Run("posts the alert payload", func(t *testing.T) {
		var gotBody []byte
		var gotContentType string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotContentType = r.Header.Get("Content-Type")
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		alerter := NewWebhookAlerter(srv.URL)
		err := alerter.Alert(context.Background(), Alert{
			SessionID: "s1",
			Draft:     "A flagged draft.",
			Reason:    "mentions self-harm",
		})
		if err != nil {
			t.Fatalf("Alert failed: %v", err)
		}

		if gotContentType != "application/json" {
			t.Errorf("Content-Type = %q", gotContentType)
		}

		var payload map[string]string
		if err := json.Unmarshal(gotBody, &payload); err != nil {
			t.Fatalf("body is not JSON: %v", err)
		}
		content := payload["content"]
		for _, want := range []string{"CRITICAL SAFETY ALERT", "s1", "mentions self-harm", "A flagged draft."} {
			if !strings.Contains(content, want) {
				t.Errorf("content missing %q: %q", want, content)
			}
		}
	})

	t.Run("truncates long drafts to a snippet", func(t *testing.T) {
		var content string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload map[string]string
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &payload)
			content = payload["content"]
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		longDraft := strings.Repeat("x", 500)
		alerter := NewWebhookAlerter(srv.URL)
		if err := alerter.Alert(context.Background(), Alert{SessionID: "s1", Draft: longDraft}); err != nil {
			t.Fatalf("Alert failed: %v", err)
		}
		if strings.Contains(content, longDraft) {
			t.Error("full draft was sent; expected a truncated snippet")
		}
		if !strings.Contains(content, strings.Repeat("x", 100)) {
			t.Error("snippet missing from content")
		}
	})

	t.Run("non-2xx status is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		alerter := NewWebhookAlerter(srv.URL)
		if err := alerter.Alert(context.Background(), Alert{SessionID: "s1"}); err == nil {
			t.Error("expected error for 403 response")
		}
	})

	t.Run("unreachable webhook is an error", func(t *testing.T) {
		alerter := NewWebhookAlerter("http://127.0.0.1:1/webhook")
		if err := alerter.Alert(context.Background(), Alert{SessionID: "s1"}); err == nil {
			t.Error("expected error for unreachable webhook")
		}
	})
}
