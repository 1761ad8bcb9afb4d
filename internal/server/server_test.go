package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestServer(t *testing.T, status StatusFunc) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "companion_test_total",
		Help: "test counter",
	})
	reg.MustRegister(counter)
	counter.Inc()

	s := New(Config{Addr: ":0", Registry: reg, Status: status})
	s.now = func() time.Time {
		return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	}
	go s.events.Run()
	return s
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	resp, err := s.app.Test(newRequest(t, "GET", "/healthz", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	resp, err := s.app.Test(newRequest(t, "GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "companion_test_total 1") {
		t.Errorf("metrics output missing counter:\n%s", data)
	}
}

func TestStatusEndpoint(t *testing.T) {
	t.Run("with snapshot", func(t *testing.T) {
		s := newTestServer(t, func() map[string]any {
			return map[string]any{"episode_open": true, "cooldown_seconds": 120}
		})
		resp, err := s.app.Test(newRequest(t, "GET", "/api/status", nil))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		var body map[string]any
		decode(t, resp, &body)
		if body["episode_open"] != true {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("without snapshot", func(t *testing.T) {
		s := newTestServer(t, nil)
		resp, err := s.app.Test(newRequest(t, "GET", "/api/status", nil))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})
}

func TestCallStatusWebhook(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("records provider callback", func(t *testing.T) {
		form := url.Values{}
		form.Set("CallSid", "CA0001")
		form.Set("CallStatus", "completed")
		resp, err := s.app.Test(newRequest(t, "POST", "/webhooks/call-status", form))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", resp.StatusCode)
		}

		cs, ok := s.LastCallStatus("CA0001")
		if !ok {
			t.Fatal("call status not recorded")
		}
		if cs.Status != "completed" {
			t.Errorf("status = %q, want completed", cs.Status)
		}
		if !cs.UpdatedAt.Equal(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected timestamp: %v", cs.UpdatedAt)
		}
	})

	t.Run("latest update wins", func(t *testing.T) {
		for _, status := range []string{"ringing", "in-progress"} {
			form := url.Values{}
			form.Set("CallSid", "CA0002")
			form.Set("CallStatus", status)
			if _, err := s.app.Test(newRequest(t, "POST", "/webhooks/call-status", form)); err != nil {
				t.Fatalf("request: %v", err)
			}
		}
		cs, _ := s.LastCallStatus("CA0002")
		if cs.Status != "in-progress" {
			t.Errorf("status = %q, want in-progress", cs.Status)
		}
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		form := url.Values{}
		form.Set("CallSid", "CA0003")
		resp, err := s.app.Test(newRequest(t, "POST", "/webhooks/call-status", form))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("lookup endpoint", func(t *testing.T) {
		resp, err := s.app.Test(newRequest(t, "GET", "/api/calls/CA0001", nil))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		var cs CallStatus
		decode(t, resp, &cs)
		if cs.CallRef != "CA0001" || cs.Status != "completed" {
			t.Errorf("unexpected call status: %+v", cs)
		}

		resp, err = s.app.Test(newRequest(t, "GET", "/api/calls/missing", nil))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func newRequest(t *testing.T, method, path string, form url.Values) *http.Request {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}
