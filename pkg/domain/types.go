package domain

import "time"

// TimeLayout is the wire format for appointment datetimes exchanged with the
// oracle and stored in tool arguments.
const TimeLayout = "2006-01-02 15:04:05"

// ParseTime parses an appointment datetime in wire format. A "T" separator is
// accepted as well since some models emit ISO-8601 timestamps.
func ParseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", raw)
}

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Service is an immutable reference record for a consulting line.
type Service struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Consultant belongs to exactly one service.
type Consultant struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	ServiceID int64  `json:"serviceId"`
}

// AvailabilityBlock is a recurring weekly open-hours interval for one
// consultant. Times of day are minutes since midnight, StartMinute < EndMinute.
type AvailabilityBlock struct {
	ID           int64        `json:"id"`
	ConsultantID int64        `json:"consultantId"`
	Weekday      time.Weekday `json:"weekday"`
	StartMinute  int          `json:"startMinute"`
	EndMinute    int          `json:"endMinute"`
}

// Appointment is a fixed 60-minute booking of one consultant.
type Appointment struct {
	ID                 int64             `json:"id"`
	UserName           string            `json:"userName"`
	UserEmail          string            `json:"userEmail"`
	Time               time.Time         `json:"time"`
	ConsultantID       int64             `json:"consultantId"`
	ServiceID          int64             `json:"serviceId"`
	Status             AppointmentStatus `json:"status"`
	CreatedAt          time.Time         `json:"createdAt"`
	ConfirmationSentAt *time.Time        `json:"confirmationSentAt,omitempty"`
}

// BookingDetails is the denormalized view of an appointment joined with its
// consultant and service, used for listings and notification emails.
type BookingDetails struct {
	AppointmentID   int64             `json:"appointmentId"`
	UserName        string            `json:"userName"`
	UserEmail       string            `json:"userEmail"`
	Time            time.Time         `json:"time"`
	ConsultantName  string            `json:"consultantName"`
	ConsultantEmail string            `json:"consultantEmail"`
	ServiceName     string            `json:"serviceName"`
	Status          AppointmentStatus `json:"status"`
}

// SessionState is the orchestrator's scratch memory for one chat session.
// Fields fill in as the conversation reveals them; all are optional.
type SessionState struct {
	UserName              string `json:"userName,omitempty"`
	UserEmail             string `json:"userEmail,omitempty"`
	RequestedServiceID    int64  `json:"requestedServiceId,omitempty"`
	RequestedConsultantID int64  `json:"requestedConsultantId,omitempty"`
	RequestedTime         string `json:"requestedTime,omitempty"`
}

// Turn is one message in a chat session's append-only history.
type Turn struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
