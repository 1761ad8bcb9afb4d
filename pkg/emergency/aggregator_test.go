package emergency

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockNotifier records dispatched calls and reports.
type mockNotifier struct {
	mu      sync.Mutex
	calls   []string
	reports []Report

	callErr   error
	reportErr error
	sends     atomic.Int64
}

func (m *mockNotifier) DispatchCall(emergencyType Type, spokenMessage string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.callErr != nil {
		return "", m.callErr
	}
	m.calls = append(m.calls, spokenMessage)
	return "call-1", nil
}

func (m *mockNotifier) SendReport(report Report) error {
	m.sends.Add(1)
	m.mu.Lock()
	m.reports = append(m.reports, report)
	m.mu.Unlock()
	return m.reportErr
}

func (m *mockNotifier) sendCount() int {
	return int(m.sends.Load())
}

func (m *mockNotifier) lastReport(t *testing.T) Report {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reports) == 0 {
		t.Fatal("no report was sent")
	}
	return m.reports[len(m.reports)-1]
}

func newTestAggregator(t *testing.T) (*Aggregator, *mockNotifier, *FakeClock) {
	t.Helper()
	notifier := &mockNotifier{}
	clock := NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	agg := NewAggregator(notifier, Config{
		ResidentName: "Maggie",
		Clock:        clock,
	})
	return agg, notifier, clock
}

func TestStartEpisode(t *testing.T) {
	t.Run("opens episode and dispatches one call", func(t *testing.T) {
		agg, notifier, _ := newTestAggregator(t)

		res := agg.StartEpisode(TypeFall, "I fell")
		if res.Reused {
			t.Error("first start should not reuse")
		}
		if res.CallErr != nil {
			t.Errorf("call dispatch failed: %v", res.CallErr)
		}
		if res.Episode.Status != StatusGathering {
			t.Errorf("expected gathering, got %s", res.Episode.Status)
		}
		if len(res.Episode.Transcript) != 1 || res.Episode.Transcript[0].Message != "I fell" {
			t.Errorf("initial message not recorded: %+v", res.Episode.Transcript)
		}
		if len(notifier.calls) != 1 {
			t.Fatalf("expected 1 call, got %d", len(notifier.calls))
		}
		if !strings.Contains(notifier.calls[0], "Maggie") {
			t.Errorf("spoken message missing resident name: %s", notifier.calls[0])
		}
	})

	t.Run("duplicate start reuses open episode", func(t *testing.T) {
		agg, notifier, _ := newTestAggregator(t)

		first := agg.StartEpisode(TypeGeneral, "help")
		second := agg.StartEpisode(TypeMedical, "help again")

		if !second.Reused {
			t.Error("second start should reuse the open episode")
		}
		if second.Episode.ID != first.Episode.ID {
			t.Error("reused episode should keep the original id")
		}
		if len(notifier.calls) != 1 {
			t.Errorf("duplicate start must not place a second call, got %d", len(notifier.calls))
		}
	})

	t.Run("start after completion creates fresh episode", func(t *testing.T) {
		agg, notifier, _ := newTestAggregator(t)

		first := agg.StartEpisode(TypeGeneral, "help")
		if _, err := agg.CompleteNow(); err != nil {
			t.Fatalf("complete failed: %v", err)
		}

		second := agg.StartEpisode(TypeFall, "I fell")
		if second.Reused {
			t.Error("start after completion should not reuse")
		}
		if second.Episode.ID == first.Episode.ID {
			t.Error("fresh episode should get a new id")
		}
		if len(notifier.calls) != 2 {
			t.Errorf("expected 2 calls, got %d", len(notifier.calls))
		}
	})

	t.Run("call failure does not fail the episode", func(t *testing.T) {
		agg, notifier, _ := newTestAggregator(t)
		notifier.callErr = errors.New("transport down")

		res := agg.StartEpisode(TypeUrgent, "help")
		if res.CallErr == nil {
			t.Error("expected call error to surface")
		}
		if res.Episode.Status != StatusGathering {
			t.Error("episode should open despite call failure")
		}
	})
}

func TestRecordTurn(t *testing.T) {
	t.Run("distress keyword closes episode with one send", func(t *testing.T) {
		agg, notifier, _ := newTestAggregator(t)
		agg.StartEpisode(TypeFall, "I fell")

		res, err := agg.RecordTurn("user", "I fell and my leg hurts")
		if err != nil {
			t.Fatalf("record turn failed: %v", err)
		}
		if !res.MergedNarrative {
			t.Error("distress turn should merge into narrative")
		}
		if !res.Completed {
			t.Error("non-empty narrative should close the episode")
		}
		if notifier.sendCount() != 1 {
			t.Fatalf("expected exactly 1 send, got %d", notifier.sendCount())
		}
		if report := notifier.lastReport(t); !strings.Contains(report.Text, "I fell and my leg hurts") {
			t.Errorf("report narrative missing turn text:\n%s", report.Text)
		}
	})

	t.Run("neutral turns keep the window open", func(t *testing.T) {
		agg, notifier, _ := newTestAggregator(t)
		agg.StartEpisode(TypeGeneral, "")

		for _, msg := range []string{"hello?", "is anyone there", "what a day"} {
			res, err := agg.RecordTurn("user", msg)
			if err != nil {
				t.Fatalf("record turn failed: %v", err)
			}
			if res.Completed {
				t.Errorf("turn %q should not close the episode", msg)
			}
		}
		if notifier.sendCount() != 0 {
			t.Errorf("no report should be sent yet, got %d", notifier.sendCount())
		}
	})

	t.Run("assistant turns never merge into narrative", func(t *testing.T) {
		agg, _, _ := newTestAggregator(t)
		agg.StartEpisode(TypeGeneral, "")

		res, err := agg.RecordTurn("assistant", "Are you hurt? Did you fall?")
		if err != nil {
			t.Fatalf("record turn failed: %v", err)
		}
		if res.MergedNarrative || res.Completed {
			t.Error("assistant turn with keywords must not merge or complete")
		}
	})

	t.Run("turns after completion are rejected as no-op", func(t *testing.T) {
		agg, notifier, _ := newTestAggregator(t)
		agg.StartEpisode(TypeFall, "I fell")
		agg.RecordTurn("user", "my hip hurts")

		for i := 0; i < 5; i++ {
			if _, err := agg.RecordTurn("user", "it still hurts"); !errors.Is(err, ErrNoActiveEpisode) {
				t.Errorf("expected ErrNoActiveEpisode, got %v", err)
			}
		}
		if notifier.sendCount() != 1 {
			t.Errorf("expected exactly 1 send, got %d", notifier.sendCount())
		}
	})

	t.Run("no active episode", func(t *testing.T) {
		agg, _, _ := newTestAggregator(t)
		if _, err := agg.RecordTurn("user", "I fell"); !errors.Is(err, ErrNoActiveEpisode) {
			t.Errorf("expected ErrNoActiveEpisode, got %v", err)
		}
	})
}

func TestDeferredCompletion(t *testing.T) {
	t.Run("timer fires after delay with empty narrative", func(t *testing.T) {
		agg, notifier, clock := newTestAggregator(t)
		agg.StartEpisode(TypeGeneral, "")

		clock.Advance(9 * time.Second)
		if notifier.sendCount() != 0 {
			t.Fatal("report sent before the window elapsed")
		}

		clock.Advance(2 * time.Second)
		if notifier.sendCount() != 1 {
			t.Fatalf("expected exactly 1 send after timer, got %d", notifier.sendCount())
		}

		ep, ok := agg.Status()
		if !ok || ep.Status != StatusCompleted {
			t.Error("episode should be completed after timer")
		}
		if ep.QuestionsSkipped {
			t.Error("timer completion must not mark questions skipped")
		}
	})

	t.Run("timer is a no-op after explicit completion", func(t *testing.T) {
		agg, notifier, clock := newTestAggregator(t)
		agg.StartEpisode(TypeGeneral, "help")

		if _, err := agg.CompleteNow(); err != nil {
			t.Fatalf("complete failed: %v", err)
		}
		clock.Advance(time.Minute)

		if notifier.sendCount() != 1 {
			t.Fatalf("timer after completion must not re-send, got %d", notifier.sendCount())
		}
	})

	t.Run("stale timer from previous episode is harmless", func(t *testing.T) {
		agg, notifier, clock := newTestAggregator(t)
		agg.StartEpisode(TypeGeneral, "help")
		agg.CompleteNow()

		// Fresh episode opens while the first timer is still pending.
		agg.StartEpisode(TypeFall, "I fell")
		clock.Advance(11 * time.Second)

		// One send for the manual completion, one for the new timer.
		if notifier.sendCount() != 2 {
			t.Fatalf("expected 2 sends, got %d", notifier.sendCount())
		}
	})
}

func TestSkipRemaining(t *testing.T) {
	agg, notifier, _ := newTestAggregator(t)
	agg.StartEpisode(TypeGeneral, "help")

	sent, err := agg.SkipRemaining()
	if err != nil {
		t.Fatalf("skip failed: %v", err)
	}
	if !sent {
		t.Error("skip should close the episode")
	}
	if notifier.sendCount() != 1 {
		t.Fatalf("expected 1 send, got %d", notifier.sendCount())
	}
	if report := notifier.lastReport(t); !strings.Contains(report.Text, "could not answer follow-up questions") {
		t.Errorf("skipped report missing notice:\n%s", report.Text)
	}

	// Idempotent no-op afterwards.
	sent, err = agg.SkipRemaining()
	if err != nil || sent {
		t.Errorf("second skip should be a no-op, sent=%v err=%v", sent, err)
	}
	if notifier.sendCount() != 1 {
		t.Errorf("second skip must not re-send, got %d", notifier.sendCount())
	}
}

func TestSupplyNarrative(t *testing.T) {
	agg, notifier, _ := newTestAggregator(t)
	agg.StartEpisode(TypeMedical, "")

	sent, err := agg.SupplyNarrative("She says her chest feels tight and she is short of breath.")
	if err != nil {
		t.Fatalf("supply failed: %v", err)
	}
	if !sent {
		t.Error("supplying a narrative should close the episode")
	}
	if report := notifier.lastReport(t); !strings.Contains(report.Text, "chest feels tight") {
		t.Errorf("report missing supplied narrative:\n%s", report.Text)
	}
}

func TestSetDetail(t *testing.T) {
	agg, notifier, _ := newTestAggregator(t)
	agg.StartEpisode(TypeFall, "I fell")

	if err := agg.SetDetail(SlotInjuredArea, "left hip"); err != nil {
		t.Fatalf("set detail failed: %v", err)
	}
	if err := agg.SetDetail(SlotPainLevel, "says it is bad"); err != nil {
		t.Fatalf("set detail failed: %v", err)
	}
	if err := agg.SetDetail(Slot("mood"), "anxious"); !errors.Is(err, ErrUnknownSlot) {
		t.Errorf("expected ErrUnknownSlot, got %v", err)
	}

	agg.CompleteNow()
	report := notifier.lastReport(t)
	if !strings.Contains(report.Text, "Injured area: left hip") {
		t.Errorf("report missing detail slot:\n%s", report.Text)
	}

	if err := agg.SetDetail(SlotLocation, "bathroom"); !errors.Is(err, ErrNoActiveEpisode) {
		t.Errorf("expected ErrNoActiveEpisode after completion, got %v", err)
	}
}

func TestCompletionRace(t *testing.T) {
	// All completion paths fire concurrently with the deferred timer;
	// exactly one report send must occur.
	agg, notifier, clock := newTestAggregator(t)
	agg.StartEpisode(TypeFall, "I fell")

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		clock.Advance(11 * time.Second)
	}()
	go func() {
		defer wg.Done()
		agg.CompleteNow()
	}()
	go func() {
		defer wg.Done()
		agg.SkipRemaining()
	}()
	go func() {
		defer wg.Done()
		agg.SupplyNarrative("I fell in the kitchen")
	}()
	wg.Wait()

	if notifier.sendCount() != 1 {
		t.Fatalf("expected exactly 1 send across all racing paths, got %d", notifier.sendCount())
	}
	ep, _ := agg.Status()
	if ep.Status != StatusCompleted {
		t.Error("episode should be completed")
	}
	if ep.ClosedAt.Before(ep.OpenedAt) {
		t.Error("closedAt must not precede openedAt")
	}
}

func TestSendFailureStillCompletes(t *testing.T) {
	agg, notifier, _ := newTestAggregator(t)
	notifier.reportErr = errors.New("smtp down")
	agg.StartEpisode(TypeGeneral, "help")

	sent, err := agg.CompleteNow()
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if !sent {
		t.Error("completion should report the transition even when send fails")
	}

	ep, _ := agg.Status()
	if ep.Status != StatusCompleted {
		t.Error("episode must be completed despite send failure")
	}

	// No retry on subsequent triggers.
	agg.CompleteNow()
	if notifier.sendCount() != 1 {
		t.Errorf("failed send must not be retried, got %d attempts", notifier.sendCount())
	}
}

func TestTranscriptTimestampsOrdered(t *testing.T) {
	agg, _, clock := newTestAggregator(t)
	agg.StartEpisode(TypeGeneral, "help")

	clock.Advance(time.Second)
	agg.RecordTurn("assistant", "What happened?")
	clock.Advance(time.Second)
	agg.RecordTurn("user", "I fell down")

	ep, _ := agg.Status()
	if ep.Status != StatusCompleted {
		t.Fatal("distress turn should have completed the episode")
	}
	for _, entry := range ep.Transcript {
		if entry.At.Before(ep.OpenedAt) {
			t.Errorf("transcript entry %q predates openedAt", entry.Message)
		}
		if entry.At.After(ep.ClosedAt) {
			t.Errorf("transcript entry %q postdates closedAt", entry.Message)
		}
	}
}
