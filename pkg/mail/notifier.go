package mail

import "context"

// Action identifies which appointment lifecycle event an email announces.
type Action string

const (
	ActionBooked      Action = "booked"
	ActionRescheduled Action = "rescheduled"
	ActionModified    Action = "modified"
	ActionCancelled   Action = "cancelled"
)

// Notifier delivers an appointment notification to the booking user. Delivery
// is best-effort: callers log failures and carry on, never failing the booking
// operation itself.
type Notifier interface {
	Send(ctx context.Context, appointmentID int64, action Action) error
}

// NopNotifier discards every notification. Used when SMTP is not configured.
type NopNotifier struct{}

func (NopNotifier) Send(context.Context, int64, Action) error { return nil }
