package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"consultassist/pkg/domain"
)

// DetailsLookup resolves the joined booking view for an appointment,
// including cancelled ones when includeAllStatuses is set.
type DetailsLookup interface {
	Details(id int64, includeAllStatuses bool) (domain.BookingDetails, error)
}

// SMTPNotifier sends appointment emails over SMTP with STARTTLS.
type SMTPNotifier struct {
	host     string
	port     int
	from     string
	password string
	lookup   DetailsLookup

	// sendMail is swapped out in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPNotifier builds a notifier sending as the given address. The lookup
// resolves recipients; cancelled appointments must still resolve, so lookups
// always run in all-statuses mode.
func NewSMTPNotifier(host string, port int, from, password string, lookup DetailsLookup) *SMTPNotifier {
	return &SMTPNotifier{
		host:     host,
		port:     port,
		from:     strings.TrimSpace(from),
		password: password,
		lookup:   lookup,
		sendMail: smtp.SendMail,
	}
}

// Send composes and delivers the notification email for one appointment
// lifecycle event.
func (n *SMTPNotifier) Send(ctx context.Context, appointmentID int64, action Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.from == "" || n.password == "" {
		return fmt.Errorf("sender email address not configured")
	}
	det, err := n.lookup.Details(appointmentID, true)
	if err != nil {
		return fmt.Errorf("fetch details for appointment %d: %w", appointmentID, err)
	}
	if det.UserEmail == "" {
		return fmt.Errorf("user email missing for appointment %d", appointmentID)
	}

	subject, body, err := composeEmail(det, action, n.from)
	if err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.from)
	fmt.Fprintf(&msg, "To: %s\r\n", det.UserEmail)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	auth := smtp.PlainAuth("", n.from, n.password, n.host)
	if err := n.sendMail(addr, auth, n.from, []string{det.UserEmail}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send %s email: %w", action, err)
	}
	slog.Info("notification email sent", "action", action, "appointmentID", appointmentID, "to", det.UserEmail)
	return nil
}

func composeEmail(det domain.BookingDetails, action Action, sender string) (subject, body string, err error) {
	name := det.UserName
	if name == "" {
		name = "Client"
	}
	when := det.Time.Format(domain.TimeLayout)

	switch action {
	case ActionBooked:
		subject = fmt.Sprintf("Appointment Confirmed: %s Consultation.", det.ServiceName)
		body = fmt.Sprintf(`Dear %s,
This email confirms your new appointment:

Service: %s
Consultant: %s
Date and Time: %s
Appointment ID: %d

We look forward to speaking with you. If you have any further questions or feedback, kindly email us at %s
Sincerely,
The Consulting Firm AI Assistant
`, name, det.ServiceName, det.ConsultantName, when, det.AppointmentID, sender)
	case ActionRescheduled:
		subject = fmt.Sprintf("Appointment Rescheduled: %s Consultation.", det.ServiceName)
		body = fmt.Sprintf(`Dear %s,
This email confirms your appointment has been rescheduled.

New Details:
Service: %s
Consultant: %s
Date and Time: %s
Appointment ID: %d

We look forward to speaking with you. If you have any further questions or feedback, kindly email us at %s
Sincerely,
The Consulting Firm AI Assistant
`, name, det.ServiceName, det.ConsultantName, when, det.AppointmentID, sender)
	case ActionModified:
		subject = fmt.Sprintf("Appointment Modified: %s Consultation.", det.ServiceName)
		body = fmt.Sprintf(`Dear %s,
This email confirms the modification of your appointment.

Updated Details:
Service: %s
Consultant: %s
Date and Time: %s
Appointment ID: %d

We look forward to speaking with you. If you have any further questions or feedback, kindly email us at %s
Sincerely,
The Consulting Firm AI Assistant
`, name, det.ServiceName, det.ConsultantName, when, det.AppointmentID, sender)
	case ActionCancelled:
		subject = "Appointment Cancelled"
		body = fmt.Sprintf(`Dear %s,

This email confirms that your appointment (ID: %d) has been cancelled as requested.

If this was a mistake, or if you wish to book a new appointment, please contact us again.

Sincerely,
The Consulting Firm AI Assistant
`, name, det.AppointmentID)
	default:
		return "", "", fmt.Errorf("unknown notification action %q", action)
	}
	return subject, body, nil
}
