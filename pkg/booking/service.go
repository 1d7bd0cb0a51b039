package booking

import (
	"errors"
	"fmt"
	"time"

	"consultassist/pkg/domain"
	"consultassist/pkg/schedule"
	"consultassist/pkg/store"
)

// Service implements the booking lifecycle. Every write re-validates
// availability immediately before commit, and the storage uniqueness
// constraint remains the final arbiter under concurrent writers.
type Service struct {
	store  store.Store
	engine *schedule.Engine
}

func NewService(st store.Store, eng *schedule.Engine) *Service {
	return &Service{store: st, engine: eng}
}

// Book reserves a 60-minute slot with the first free consultant for the
// service. A cancelled appointment occupying the same (consultant, time) pair
// is reactivated in place, preserving its ID, instead of inserting a new row.
func (s *Service) Book(userName, userEmail, serviceName, startRaw string) (int64, domain.Consultant, error) {
	at, err := domain.ParseTime(startRaw)
	if err != nil {
		return 0, domain.Consultant{}, fmt.Errorf("parse appointment time %q: %w", startRaw, err)
	}
	svc, ok, err := s.store.GetServiceByName(serviceName)
	if err != nil {
		return 0, domain.Consultant{}, fmt.Errorf("look up service: %w", err)
	}
	if !ok {
		return 0, domain.Consultant{}, ErrServiceNotFound
	}

	free, err := s.engine.AvailableConsultants(serviceName, at)
	if err != nil {
		return 0, domain.Consultant{}, fmt.Errorf("check availability: %w", err)
	}
	if len(free) == 0 {
		return 0, domain.Consultant{}, ErrSlotUnavailable
	}
	consultant := free[0]

	if prior, found, err := s.store.GetCancelledAppointmentAt(consultant.ID, at); err != nil {
		return 0, domain.Consultant{}, fmt.Errorf("look up cancelled slot: %w", err)
	} else if found {
		if err := s.store.ReactivateAppointment(prior.ID, userName, userEmail, svc.ID); err != nil {
			return 0, domain.Consultant{}, translateWriteError(err, "reactivate appointment")
		}
		return prior.ID, consultant, nil
	}

	id, err := s.store.CreateAppointment(domain.Appointment{
		UserName:     userName,
		UserEmail:    userEmail,
		Time:         at,
		ConsultantID: consultant.ID,
		ServiceID:    svc.ID,
		Status:       domain.StatusBooked,
	})
	if err != nil {
		return 0, domain.Consultant{}, translateWriteError(err, "create appointment")
	}
	return id, consultant, nil
}

// Cancel flips a booked appointment to cancelled. The appointment must be
// identified by both ID and the booking email.
func (s *Service) Cancel(id int64, userEmail string) error {
	ok, err := s.store.CancelAppointment(id, userEmail)
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Reschedule moves an active appointment to a new slot, reassigning it to the
// first consultant free at the new time.
func (s *Service) Reschedule(id int64, userEmail, newStartRaw string) (domain.Consultant, error) {
	at, err := domain.ParseTime(newStartRaw)
	if err != nil {
		return domain.Consultant{}, fmt.Errorf("parse appointment time %q: %w", newStartRaw, err)
	}
	appt, found, err := s.store.GetActiveAppointment(id, userEmail)
	if err != nil {
		return domain.Consultant{}, fmt.Errorf("look up appointment: %w", err)
	}
	if !found {
		return domain.Consultant{}, ErrNotFound
	}
	svc, ok, err := s.store.GetServiceByID(appt.ServiceID)
	if err != nil {
		return domain.Consultant{}, fmt.Errorf("look up service: %w", err)
	}
	if !ok {
		return domain.Consultant{}, fmt.Errorf("service %d missing for appointment %d", appt.ServiceID, id)
	}

	free, err := s.engine.AvailableConsultants(svc.Name, at)
	if err != nil {
		return domain.Consultant{}, fmt.Errorf("check availability: %w", err)
	}
	if len(free) == 0 {
		return domain.Consultant{}, ErrSlotUnavailable
	}
	consultant := free[0]

	if err := s.store.ReassignAppointmentSlot(id, userEmail, at, consultant.ID); err != nil {
		return domain.Consultant{}, translateWriteError(err, "reassign slot")
	}
	return consultant, nil
}

// ModifyService changes which service an active appointment is for, keeping
// its time and reassigning it to a consultant of the new service. Checks run
// in a fixed order so the caller can report the most specific failure: missing
// appointment, then no-op change, then unknown service.
func (s *Service) ModifyService(id int64, userEmail string, newServiceID int64) (domain.Consultant, error) {
	appt, found, err := s.store.GetActiveAppointment(id, userEmail)
	if err != nil {
		return domain.Consultant{}, fmt.Errorf("look up appointment: %w", err)
	}
	if !found {
		return domain.Consultant{}, ErrNotFound
	}
	if appt.ServiceID == newServiceID {
		return domain.Consultant{}, ErrNoChange
	}
	newSvc, ok, err := s.store.GetServiceByID(newServiceID)
	if err != nil {
		return domain.Consultant{}, fmt.Errorf("look up service: %w", err)
	}
	if !ok {
		return domain.Consultant{}, ErrServiceNotFound
	}

	free, err := s.engine.AvailableConsultants(newSvc.Name, appt.Time)
	if err != nil {
		return domain.Consultant{}, fmt.Errorf("check availability: %w", err)
	}
	if len(free) == 0 {
		return domain.Consultant{}, ErrSlotUnavailable
	}
	consultant := free[0]

	if err := s.store.ReassignAppointmentService(id, userEmail, newSvc.ID, consultant.ID); err != nil {
		return domain.Consultant{}, translateWriteError(err, "reassign service")
	}
	return consultant, nil
}

// Details returns the joined view of an appointment. With includeAllStatuses
// set, cancelled appointments resolve too; that mode exists for notification
// lookups only.
func (s *Service) Details(id int64, includeAllStatuses bool) (domain.BookingDetails, error) {
	det, found, err := s.store.GetBookingDetails(id, includeAllStatuses)
	if err != nil {
		return domain.BookingDetails{}, fmt.Errorf("look up booking details: %w", err)
	}
	if !found {
		return domain.BookingDetails{}, ErrNotFound
	}
	return det, nil
}

// UserAppointments lists the active bookings under an email, ordered by
// appointment time. Cancelled appointments are not included.
func (s *Service) UserAppointments(userEmail string) ([]domain.BookingDetails, error) {
	appts, err := s.store.ListUserAppointments(userEmail)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// MarkConfirmationSent stamps the time a confirmation email went out.
func (s *Service) MarkConfirmationSent(id int64) error {
	if err := s.store.MarkConfirmationSent(id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark confirmation sent: %w", err)
	}
	return nil
}

func translateWriteError(err error, op string) error {
	if errors.Is(err, store.ErrDuplicateSlot) {
		return ErrConflict
	}
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
