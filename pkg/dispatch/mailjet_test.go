package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMailjetSend(t *testing.T) {
	t.Run("sends authenticated json request", func(t *testing.T) {
		var payload map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "key" || pass != "secret" {
				t.Errorf("bad auth: %s / %s", user, pass)
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			w.Write([]byte(`{"Sent": [{"Email": "family@example.com", "MessageID": 1234567}]}`))
		}))
		defer srv.Close()

		mj, err := NewMailjet(MailjetConfig{
			APIKey:    "key",
			SecretKey: "secret",
			FromEmail: "alerts@carewell.example",
			FromName:  "Heather",
			SendURL:   srv.URL,
		})
		if err != nil {
			t.Fatalf("new mailjet: %v", err)
		}

		ref, err := mj.Send(context.Background(), Email{
			Subject: "EMERGENCY ALERT - Maggie - FALL",
			Text:    "plain body",
			HTML:    "<p>html body</p>",
			To:      []string{"family@example.com", "doctor@example.com"},
		})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if ref != "1234567" {
			t.Errorf("expected message id 1234567, got %s", ref)
		}

		if payload["FromEmail"] != "alerts@carewell.example" {
			t.Errorf("unexpected sender: %v", payload["FromEmail"])
		}
		if payload["Subject"] != "EMERGENCY ALERT - Maggie - FALL" {
			t.Errorf("unexpected subject: %v", payload["Subject"])
		}
		if payload["Text-part"] != "plain body" || payload["Html-part"] != "<p>html body</p>" {
			t.Errorf("unexpected body parts: %v / %v", payload["Text-part"], payload["Html-part"])
		}
		recipients, _ := payload["Recipients"].([]any)
		if len(recipients) != 2 {
			t.Errorf("expected 2 recipients, got %v", payload["Recipients"])
		}
	})

	t.Run("empty recipient list", func(t *testing.T) {
		mj, _ := NewMailjet(MailjetConfig{APIKey: "k", SecretKey: "s", FromEmail: "a@b.c"})
		if _, err := mj.Send(context.Background(), Email{Subject: "x"}); err != ErrNoRecipients {
			t.Errorf("expected ErrNoRecipients, got %v", err)
		}
	})

	t.Run("api error surfaces message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"ErrorMessage": "Invalid API key", "ErrorCode": "MJ01"}`))
		}))
		defer srv.Close()

		mj, _ := NewMailjet(MailjetConfig{APIKey: "k", SecretKey: "s", FromEmail: "a@b.c", SendURL: srv.URL})
		_, err := mj.Send(context.Background(), Email{Subject: "x", To: []string{"y@z.c"}})
		apiErr, ok := err.(*APIError)
		if !ok {
			t.Fatalf("expected *APIError, got %T: %v", err, err)
		}
		if !apiErr.IsUnauthorized() || apiErr.Code != "MJ01" {
			t.Errorf("unexpected error: %+v", apiErr)
		}
	})
}
