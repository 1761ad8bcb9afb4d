package companion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/carewell-ai/go-companion/internal/metrics"
	"github.com/carewell-ai/go-companion/pkg/contacts"
	"github.com/carewell-ai/go-companion/pkg/dispatch"
	"github.com/carewell-ai/go-companion/pkg/emergency"
)

// dispatchTimeout bounds the provider round-trips made from the episode
// coordinator's completion path.
const dispatchTimeout = 15 * time.Second

// notifier adapts the dispatcher and the contact directory to the episode
// coordinator: calls go to the highest-priority emergency contact, reports
// to the configured recipients.
type notifier struct {
	dispatcher *dispatch.Dispatcher
	directory  *contacts.Directory
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func newNotifier(d *dispatch.Dispatcher, dir *contacts.Directory, m *metrics.Metrics, logger *slog.Logger) *notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &notifier{
		dispatcher: d,
		directory:  dir,
		metrics:    m,
		logger:     logger.With("component", "notifier"),
	}
}

// DispatchCall places the episode's outbound call to the primary emergency
// contact.
func (n *notifier) DispatchCall(emergencyType emergency.Type, spoken string) (string, error) {
	primary, err := n.directory.Primary()
	if err != nil {
		n.logger.Error("no primary emergency contact", "error", err)
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	ref, err := n.dispatcher.DispatchEmergency(ctx, primary.Number, spoken)
	switch {
	case errors.Is(err, dispatch.ErrCooldownActive):
		if n.metrics != nil {
			n.metrics.CooldownSuppressed.Inc()
		}
		return "", err
	case err != nil:
		if n.metrics != nil {
			n.metrics.CallFailures.Inc()
		}
		return "", err
	}

	if n.metrics != nil {
		n.metrics.CallsPlaced.WithLabelValues("emergency").Inc()
	}
	n.logger.Info("emergency contact called",
		"contact", primary.Name,
		"type", string(emergencyType),
		"ref", ref,
	)
	return ref, nil
}

// SendReport emails the completed episode report.
func (n *notifier) SendReport(report emergency.Report) error {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	ref, err := n.dispatcher.SendReport(ctx, report)
	if err != nil {
		if n.metrics != nil {
			n.metrics.ReportFailures.Inc()
		}
		return err
	}
	if n.metrics != nil {
		n.metrics.ReportsSent.Inc()
	}
	n.logger.Info("emergency report sent", "ref", ref)
	return nil
}

var _ emergency.Notifier = (*notifier)(nil)
