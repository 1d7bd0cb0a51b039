package store

import (
	"time"

	"consultassist/pkg/domain"
)

// Store is the persistence boundary for reference data, appointments, and
// chat sessions. GormStore is the production implementation; MemoryStore
// backs tests.
//
// Write operations on appointments report a lost uniqueness race for the
// (consultant, time, booked) slot as ErrDuplicateSlot; callers translate it
// into their own conflict failure.
type Store interface {
	// Reference data.
	CreateService(svc domain.Service) (int64, error)
	CreateConsultant(c domain.Consultant) (int64, error)
	CreateAvailabilityBlock(b domain.AvailabilityBlock) (int64, error)
	ServiceCount() (int, error)
	GetServiceByID(id int64) (domain.Service, bool, error)
	GetServiceByName(name string) (domain.Service, bool, error)
	ListServices() ([]domain.Service, error)
	ListConsultantsByService(serviceID int64) ([]domain.Consultant, error)
	ListAvailabilityBlocks(consultantID int64, weekday time.Weekday) ([]domain.AvailabilityBlock, error)

	// Appointments.
	HasBookedAppointmentNear(consultantID int64, at time.Time, within time.Duration) (bool, error)
	GetCancelledAppointmentAt(consultantID int64, at time.Time) (domain.Appointment, bool, error)
	CreateAppointment(appt domain.Appointment) (int64, error)
	ReactivateAppointment(id int64, userName, userEmail string, serviceID int64) error
	GetActiveAppointment(id int64, userEmail string) (domain.Appointment, bool, error)
	ReassignAppointmentSlot(id int64, userEmail string, newTime time.Time, consultantID int64) error
	ReassignAppointmentService(id int64, userEmail string, serviceID, consultantID int64) error
	CancelAppointment(id int64, userEmail string) (bool, error)
	GetBookingDetails(id int64, includeAllStatuses bool) (domain.BookingDetails, bool, error)
	ListUserAppointments(userEmail string) ([]domain.BookingDetails, error)
	MarkConfirmationSent(id int64, at time.Time) error

	// Chat sessions.
	EnsureSession(sessionID string) error
	GetSessionState(sessionID string) (domain.SessionState, bool, error)
	UpdateSessionState(sessionID string, state domain.SessionState) error
	AppendTurn(sessionID, role, content string) error
	ListTurns(sessionID string, limit int) ([]domain.Turn, error)

	Close() error
}
