package notification

import (
	"context"
	"log/slog"

	domain "github.com/martabakCode/lofi-backend-sub001/internal/domain/notification"
)

var _ domain.Sink = (*LogSink)(nil)

// LogSink writes status changes to the log. Used when no broker is configured.
type LogSink struct{ log *slog.Logger }

func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

func (s *LogSink) NotifyStatusChange(ctx context.Context, ev domain.LoanStatusChanged) error {
	from := ""
	if ev.FromStatus != nil {
		from = string(*ev.FromStatus)
	}
	s.log.InfoContext(ctx, "loan status changed",
		"event_id", ev.EventID,
		"loan_id", ev.LoanID,
		"customer_id", ev.CustomerID,
		"from_status", from,
		"to_status", ev.ToStatus,
		"action", ev.Action,
		"actor", ev.Actor,
	)
	return nil
}
