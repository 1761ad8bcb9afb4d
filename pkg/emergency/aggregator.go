package emergency

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default timing for the collection window.
const (
	// DefaultCompleteAfter is how long an episode stays open before the
	// deferred completion fires.
	DefaultCompleteAfter = 10 * time.Second
)

// Sentinel errors for the emergency package.
var (
	// ErrNoActiveEpisode indicates an operation that needs an open episode
	// was called while none exists.
	ErrNoActiveEpisode = errors.New("emergency: no active episode")

	// ErrUnknownSlot indicates SetDetail was called with an unknown slot.
	ErrUnknownSlot = errors.New("emergency: unknown detail slot")
)

// Notifier hands outbound requests to the notification dispatcher. The
// aggregator awaits the outcome only to log it; it never retries.
type Notifier interface {
	// DispatchCall requests a voice call to the highest-priority emergency
	// contact, speaking the given message.
	DispatchCall(emergencyType Type, spokenMessage string) (ref string, err error)

	// SendReport delivers the formatted episode report by email.
	SendReport(report Report) error
}

// Config holds aggregator configuration.
type Config struct {
	// ResidentName appears in report headers and spoken scripts.
	ResidentName string

	// CompleteAfter is the deferred-completion delay. Zero means
	// DefaultCompleteAfter.
	CompleteAfter time.Duration

	// Clock defaults to the system clock.
	Clock Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Aggregator owns the current emergency episode. All episode mutation goes
// through its operations; the completion side effect runs at most once per
// episode id, enforced by the status check under the mutex.
type Aggregator struct {
	notifier      Notifier
	clock         Clock
	logger        *slog.Logger
	residentName  string
	completeAfter time.Duration

	mu      sync.Mutex
	current *Episode
}

// NewAggregator creates an aggregator dispatching through the given notifier.
func NewAggregator(notifier Notifier, cfg Config) *Aggregator {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CompleteAfter <= 0 {
		cfg.CompleteAfter = DefaultCompleteAfter
	}
	if cfg.ResidentName == "" {
		cfg.ResidentName = "the resident"
	}
	return &Aggregator{
		notifier:      notifier,
		clock:         cfg.Clock,
		logger:        cfg.Logger.With("component", "emergency.aggregator"),
		residentName:  cfg.ResidentName,
		completeAfter: cfg.CompleteAfter,
	}
}

// StartResult reports the outcome of StartEpisode.
type StartResult struct {
	// Episode is a snapshot of the open episode.
	Episode Episode

	// Reused is true when an already-open episode was kept instead of a
	// new one being created.
	Reused bool

	// CallRef identifies the dispatched call, when one was placed.
	CallRef string

	// CallErr is the dispatch outcome of the outbound call request.
	// A failed call does not fail the episode.
	CallErr error
}

// StartEpisode opens a new episode in the gathering state, records the
// triggering utterance, requests exactly one outbound call, and schedules the
// deferred completion. If an episode is already gathering it is reused: the
// duplicate start is logged and ignored, and no second call is placed.
func (a *Aggregator) StartEpisode(emergencyType Type, initialMessage string) StartResult {
	a.mu.Lock()
	if ep := a.current; ep != nil && ep.Status == StatusGathering {
		snap := ep.snapshot()
		a.mu.Unlock()
		a.logger.Warn("duplicate emergency start ignored, reusing open episode",
			"id", snap.ID,
			"type", snap.Type,
		)
		return StartResult{Episode: snap, Reused: true}
	}

	now := a.clock.Now()
	ep := &Episode{
		ID:             uuid.NewString(),
		Type:           emergencyType,
		InitialMessage: initialMessage,
		OpenedAt:       now,
		Status:         StatusGathering,
	}
	if initialMessage != "" {
		ep.Transcript = append(ep.Transcript, TranscriptEntry{
			Speaker: "user",
			Message: initialMessage,
			At:      now,
		})
	}
	a.current = ep
	snap := ep.snapshot()
	id := ep.ID
	a.mu.Unlock()

	a.logger.Info("emergency episode opened",
		"id", id,
		"type", emergencyType,
	)

	// The timer fires harmlessly if the episode completes first.
	a.clock.AfterFunc(a.completeAfter, func() {
		a.completeEpisode(id, "timer")
	})

	spoken := "EMERGENCY: " + a.residentName + " needs help immediately."
	if initialMessage != "" {
		spoken += " " + strings.TrimSpace(initialMessage)
		if !strings.HasSuffix(spoken, ".") {
			spoken += "."
		}
	}

	ref, err := a.notifier.DispatchCall(emergencyType, spoken)
	if err != nil {
		a.logger.Error("emergency call dispatch failed",
			"id", id,
			"error", err,
		)
	} else {
		a.logger.Info("emergency call dispatched",
			"id", id,
			"call_ref", ref,
		)
	}

	return StartResult{Episode: snap, CallRef: ref, CallErr: err}
}

// TurnResult reports the outcome of RecordTurn.
type TurnResult struct {
	// MergedNarrative is true when the turn was folded into the narrative.
	MergedNarrative bool

	// Completed is true when this turn closed the episode and the report
	// send was attempted.
	Completed bool
}

// RecordTurn appends a conversation turn to the open episode's transcript.
// A user turn containing a distress keyword is merged into the narrative,
// and a non-empty narrative closes the episode. Never blocks on the caller's
// path beyond the single report dispatch.
func (a *Aggregator) RecordTurn(speaker, message string) (TurnResult, error) {
	a.mu.Lock()
	ep := a.current
	if ep == nil || ep.Status != StatusGathering {
		a.mu.Unlock()
		return TurnResult{}, ErrNoActiveEpisode
	}

	ep.Transcript = append(ep.Transcript, TranscriptEntry{
		Speaker: speaker,
		Message: message,
		At:      a.clock.Now(),
	})

	var res TurnResult
	if strings.EqualFold(speaker, "user") && ContainsDistress(message) {
		if ep.Narrative == "" {
			ep.Narrative = message
		} else {
			ep.Narrative += " " + message
		}
		res.MergedNarrative = true
	}

	narrativeReady := ep.Narrative != ""
	id := ep.ID
	a.mu.Unlock()

	if narrativeReady {
		res.Completed = a.completeEpisode(id, "narrative")
	}
	return res, nil
}

// SkipRemaining marks the collection window abandoned and closes the episode
// immediately, regardless of narrative state. A no-op after completion.
func (a *Aggregator) SkipRemaining() (bool, error) {
	a.mu.Lock()
	ep := a.current
	if ep == nil {
		a.mu.Unlock()
		return false, ErrNoActiveEpisode
	}
	if ep.Status != StatusGathering {
		a.mu.Unlock()
		return false, nil
	}
	ep.QuestionsSkipped = true
	id := ep.ID
	a.mu.Unlock()

	return a.completeEpisode(id, "skipped"), nil
}

// SupplyNarrative sets the narrative explicitly, as extracted by the driving
// conversational layer, and closes the episode.
func (a *Aggregator) SupplyNarrative(text string) (bool, error) {
	a.mu.Lock()
	ep := a.current
	if ep == nil {
		a.mu.Unlock()
		return false, ErrNoActiveEpisode
	}
	if ep.Status != StatusGathering {
		a.mu.Unlock()
		return false, nil
	}
	ep.Narrative = text
	id := ep.ID
	a.mu.Unlock()

	return a.completeEpisode(id, "supplied"), nil
}

// CompleteNow closes the episode and sends the report, same as the deferred
// timer firing. A no-op after completion.
func (a *Aggregator) CompleteNow() (bool, error) {
	a.mu.Lock()
	ep := a.current
	if ep == nil {
		a.mu.Unlock()
		return false, ErrNoActiveEpisode
	}
	id := ep.ID
	a.mu.Unlock()

	return a.completeEpisode(id, "manual"), nil
}

// SetDetail fills one structured report slot. Later writes overwrite.
func (a *Aggregator) SetDetail(slot Slot, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	ep := a.current
	if ep == nil || ep.Status != StatusGathering {
		return ErrNoActiveEpisode
	}
	if !ep.Details.set(slot, value) {
		return ErrUnknownSlot
	}
	return nil
}

// Status returns a read-only snapshot of the current episode, if any.
// The snapshot includes completed episodes until a new one is started.
func (a *Aggregator) Status() (Episode, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return Episode{}, false
	}
	return a.current.snapshot(), true
}

// completeEpisode performs the gathering -> completed transition. The status
// flip under the mutex is the single-writer guard: every concurrent trigger
// path (timer, auto-close, skip, supply, manual) funnels through here, and
// only the first caller formats and dispatches the report.
func (a *Aggregator) completeEpisode(id, reason string) bool {
	a.mu.Lock()
	ep := a.current
	if ep == nil || ep.ID != id || ep.Status != StatusGathering {
		a.mu.Unlock()
		return false
	}
	ep.Status = StatusCompleted
	ep.ClosedAt = a.clock.Now()
	snap := ep.snapshot()
	a.mu.Unlock()

	report := BuildReport(snap, a.residentName)
	if err := a.notifier.SendReport(report); err != nil {
		// The episode stays completed; no in-process retry. The
		// conversational layer tells the user to seek help directly.
		a.logger.Error("emergency report send failed",
			"id", id,
			"reason", reason,
			"error", err,
		)
	} else {
		a.logger.Info("emergency report sent",
			"id", id,
			"reason", reason,
			"turns", len(snap.Transcript),
			"questions_skipped", snap.QuestionsSkipped,
		)
	}
	return true
}
