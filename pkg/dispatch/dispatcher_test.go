package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carewell-ai/go-companion/pkg/emergency"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *MockCallTransport, *MockEmailTransport, *time.Time) {
	t.Helper()
	calls := &MockCallTransport{}
	email := &MockEmailTransport{}
	d := NewDispatcher(calls, email, Config{
		ReportRecipients: []string{"family@example.com"},
	})
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	return d, calls, email, &now
}

func TestDispatchEmergency(t *testing.T) {
	ctx := context.Background()

	t.Run("first call goes through", func(t *testing.T) {
		d, calls, _, _ := newTestDispatcher(t)

		ref, err := d.DispatchEmergency(ctx, "+15551234567", "EMERGENCY: Maggie needs help.")
		if err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if ref == "" {
			t.Error("expected a call reference")
		}
		if got := calls.Calls(); len(got) != 1 || got[0].Number != "+15551234567" {
			t.Errorf("unexpected calls: %+v", got)
		}
	})

	t.Run("second call within cooldown is suppressed", func(t *testing.T) {
		d, calls, _, now := newTestDispatcher(t)

		if _, err := d.DispatchEmergency(ctx, "+15551234567", "alert"); err != nil {
			t.Fatalf("first dispatch failed: %v", err)
		}
		*now = now.Add(4 * time.Minute)

		if _, err := d.DispatchEmergency(ctx, "+15551234567", "alert again"); !errors.Is(err, ErrCooldownActive) {
			t.Errorf("expected ErrCooldownActive, got %v", err)
		}
		if len(calls.Calls()) != 1 {
			t.Errorf("suppressed dispatch must not place a call, got %d", len(calls.Calls()))
		}
		if remaining := d.CooldownRemaining(); remaining != time.Minute {
			t.Errorf("expected 1m remaining, got %s", remaining)
		}
	})

	t.Run("call allowed after cooldown expires", func(t *testing.T) {
		d, calls, _, now := newTestDispatcher(t)

		d.DispatchEmergency(ctx, "+15551234567", "alert")
		*now = now.Add(5*time.Minute + time.Second)

		if _, err := d.DispatchEmergency(ctx, "+15551234567", "alert"); err != nil {
			t.Fatalf("dispatch after cooldown failed: %v", err)
		}
		if len(calls.Calls()) != 2 {
			t.Errorf("expected 2 calls, got %d", len(calls.Calls()))
		}
	})

	t.Run("failed dial releases the cooldown window", func(t *testing.T) {
		d, calls, _, _ := newTestDispatcher(t)
		calls.Err = errors.New("busy")

		if _, err := d.DispatchEmergency(ctx, "+15551234567", "alert"); err == nil {
			t.Fatal("expected dial failure")
		}
		if d.CooldownRemaining() != 0 {
			t.Error("failed dial must not start the cooldown")
		}

		calls.Err = nil
		if _, err := d.DispatchEmergency(ctx, "+15551234567", "alert"); err != nil {
			t.Errorf("retry after failure should go through, got %v", err)
		}
	})

	t.Run("nil transport", func(t *testing.T) {
		d := NewDispatcher(nil, nil, Config{})
		if _, err := d.DispatchEmergency(ctx, "+15551234567", "alert"); !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})
}

func TestCall911(t *testing.T) {
	ctx := context.Background()

	t.Run("never cooldown suppressed", func(t *testing.T) {
		d, calls, _, _ := newTestDispatcher(t)

		d.DispatchEmergency(ctx, "+15551234567", "alert")
		if _, err := d.Call911(ctx, "Medical emergency at Sunrise Senior Living."); err != nil {
			t.Fatalf("911 call failed: %v", err)
		}

		got := calls.Calls()
		if len(got) != 2 {
			t.Fatalf("expected 2 calls, got %d", len(got))
		}
		if got[1].Number != "911" {
			t.Errorf("911 call dialed %s", got[1].Number)
		}
	})

	t.Run("does not start the family-call cooldown", func(t *testing.T) {
		d, _, _, _ := newTestDispatcher(t)

		d.Call911(ctx, "emergency")
		if _, err := d.DispatchEmergency(ctx, "+15551234567", "alert"); err != nil {
			t.Errorf("family call after 911 should go through, got %v", err)
		}
	})
}

func TestPlaceCall(t *testing.T) {
	ctx := context.Background()
	d, calls, _, _ := newTestDispatcher(t)

	// General calls bypass the cooldown entirely.
	d.DispatchEmergency(ctx, "+15551234567", "alert")
	if _, err := d.PlaceCall(ctx, "+15559876543", "Hello from Maggie"); err != nil {
		t.Fatalf("place call failed: %v", err)
	}
	if len(calls.Calls()) != 2 {
		t.Errorf("expected 2 calls, got %d", len(calls.Calls()))
	}
}

func TestSendReport(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to configured recipients", func(t *testing.T) {
		d, _, email, _ := newTestDispatcher(t)

		report := emergency.Report{Subject: "EMERGENCY ALERT - Maggie - FALL", Text: "body", HTML: "<p>body</p>"}
		if _, err := d.SendReport(ctx, report); err != nil {
			t.Fatalf("send report failed: %v", err)
		}

		sent := email.Sent()
		if len(sent) != 1 {
			t.Fatalf("expected 1 email, got %d", len(sent))
		}
		if sent[0].Subject != report.Subject {
			t.Errorf("unexpected subject: %s", sent[0].Subject)
		}
		if len(sent[0].To) != 1 || sent[0].To[0] != "family@example.com" {
			t.Errorf("unexpected recipients: %v", sent[0].To)
		}
	})

	t.Run("no recipients", func(t *testing.T) {
		d := NewDispatcher(nil, &MockEmailTransport{}, Config{})
		if _, err := d.SendReport(ctx, emergency.Report{}); !errors.Is(err, ErrNoRecipients) {
			t.Errorf("expected ErrNoRecipients, got %v", err)
		}
	})

	t.Run("nil transport", func(t *testing.T) {
		d := NewDispatcher(nil, nil, Config{ReportRecipients: []string{"x@example.com"}})
		if _, err := d.SendReport(ctx, emergency.Report{}); !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})
}
