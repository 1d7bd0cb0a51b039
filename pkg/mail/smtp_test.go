package mail

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"consultassist/pkg/booking"
	"consultassist/pkg/domain"
)

type fakeLookup struct {
	det domain.BookingDetails
	err error
}

func (f fakeLookup) Details(id int64, includeAllStatuses bool) (domain.BookingDetails, error) {
	if f.err != nil {
		return domain.BookingDetails{}, f.err
	}
	return f.det, nil
}

func testDetails() domain.BookingDetails {
	return domain.BookingDetails{
		AppointmentID:  7,
		UserName:       "Dana",
		UserEmail:      "dana@example.com",
		Time:           time.Date(2026, 9, 7, 11, 0, 0, 0, time.UTC),
		ConsultantName: "Alice Chen",
		ServiceName:    "Technology",
		Status:         domain.StatusBooked,
	}
}

func TestSendBookedEmail(t *testing.T) {
	n := NewSMTPNotifier("smtp.example.com", 587, "firm@example.com", "secret", fakeLookup{det: testDetails()})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	n.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	if err := n.Send(context.Background(), 7, ActionBooked); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "smtp.example.com:587" || gotFrom != "firm@example.com" {
		t.Fatalf("unexpected SMTP target %s from %s", gotAddr, gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "dana@example.com" {
		t.Fatalf("unexpected recipients %v", gotTo)
	}
	for _, want := range []string{
		"Subject: Appointment Confirmed: Technology Consultation.",
		"Dear Dana,",
		"Consultant: Alice Chen",
		"Date and Time: 2026-09-07 11:00:00",
		"Appointment ID: 7",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSendCancelledEmailOmitsSlotDetails(t *testing.T) {
	det := testDetails()
	det.Status = domain.StatusCancelled
	n := NewSMTPNotifier("smtp.example.com", 587, "firm@example.com", "secret", fakeLookup{det: det})

	var gotMsg string
	n.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotMsg = string(msg)
		return nil
	}
	if err := n.Send(context.Background(), 7, ActionCancelled); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(gotMsg, "Subject: Appointment Cancelled") {
		t.Fatal("missing cancellation subject")
	}
	if !strings.Contains(gotMsg, "(ID: 7) has been cancelled") {
		t.Fatal("missing cancellation body")
	}
	if strings.Contains(gotMsg, "Consultant:") {
		t.Fatal("cancellation email must not list slot details")
	}
}

func TestSendRequiresConfiguration(t *testing.T) {
	n := NewSMTPNotifier("smtp.example.com", 587, "", "", fakeLookup{det: testDetails()})
	if err := n.Send(context.Background(), 7, ActionBooked); err == nil {
		t.Fatal("expected error when sender is not configured")
	}
}

func TestSendMissingAppointment(t *testing.T) {
	n := NewSMTPNotifier("smtp.example.com", 587, "firm@example.com", "secret", fakeLookup{err: booking.ErrNotFound})
	n.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("sendMail must not be called without details")
		return nil
	}
	if err := n.Send(context.Background(), 404, ActionBooked); err == nil {
		t.Fatal("expected error for missing appointment")
	}
}

func TestSendUnknownAction(t *testing.T) {
	n := NewSMTPNotifier("smtp.example.com", 587, "firm@example.com", "secret", fakeLookup{det: testDetails()})
	n.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return nil }
	if err := n.Send(context.Background(), 7, Action("postponed")); err == nil {
		t.Fatal("expected error for unknown action")
	}
}
