package store

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"consultassist/pkg/domain"
)

// MemoryStore keeps all scheduling state in-process. It mirrors GormStore's
// semantics, including the booked-slot uniqueness rule, and backs tests.
type MemoryStore struct {
	mu           sync.Mutex
	services     map[int64]domain.Service
	consultants  map[int64]domain.Consultant
	blocks       []domain.AvailabilityBlock
	appointments map[int64]domain.Appointment
	sessions     map[string][]byte
	turns        map[string][]domain.Turn

	nextServiceID     int64
	nextConsultantID  int64
	nextBlockID       int64
	nextAppointmentID int64
	nextTurnID        int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		services:     make(map[int64]domain.Service),
		consultants:  make(map[int64]domain.Consultant),
		appointments: make(map[int64]domain.Appointment),
		sessions:     make(map[string][]byte),
		turns:        make(map[string][]domain.Turn),
	}
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

// CreateService inserts a service reference row.
func (m *MemoryStore) CreateService(svc domain.Service) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextServiceID++
	svc.ID = m.nextServiceID
	m.services[svc.ID] = svc
	return svc.ID, nil
}

// CreateConsultant inserts a consultant reference row.
func (m *MemoryStore) CreateConsultant(c domain.Consultant) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextConsultantID++
	c.ID = m.nextConsultantID
	m.consultants[c.ID] = c
	return c.ID, nil
}

// CreateAvailabilityBlock inserts a weekly work block.
func (m *MemoryStore) CreateAvailabilityBlock(b domain.AvailabilityBlock) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBlockID++
	b.ID = m.nextBlockID
	m.blocks = append(m.blocks, b)
	return b.ID, nil
}

// ServiceCount returns the number of seeded services.
func (m *MemoryStore) ServiceCount() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.services), nil
}

// GetServiceByID returns a service by ID.
func (m *MemoryStore) GetServiceByID(id int64) (domain.Service, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	svc, ok := m.services[id]
	return svc, ok, nil
}

// GetServiceByName looks up a service by its unique name.
func (m *MemoryStore) GetServiceByName(name string) (domain.Service, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, svc := range m.services {
		if svc.Name == name {
			return svc, true, nil
		}
	}
	return domain.Service{}, false, nil
}

// ListServices returns all services ordered by ID.
func (m *MemoryStore) ListServices() ([]domain.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Service, 0, len(m.services))
	for _, svc := range m.services {
		res = append(res, svc)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// ListConsultantsByService returns consultants for a service ordered by ID.
func (m *MemoryStore) ListConsultantsByService(serviceID int64) ([]domain.Consultant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Consultant, 0)
	for _, c := range m.consultants {
		if c.ServiceID == serviceID {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// ListAvailabilityBlocks returns one consultant's work blocks for a weekday.
func (m *MemoryStore) ListAvailabilityBlocks(consultantID int64, weekday time.Weekday) ([]domain.AvailabilityBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.AvailabilityBlock, 0)
	for _, b := range m.blocks {
		if b.ConsultantID == consultantID && b.Weekday == weekday {
			res = append(res, b)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StartMinute < res[j].StartMinute })
	return res, nil
}

// HasBookedAppointmentNear reports whether a booked appointment for the
// consultant starts within +/- the given window around at.
func (m *MemoryStore) HasBookedAppointmentNear(consultantID int64, at time.Time, within time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasBookedNearLocked(consultantID, at, within, 0), nil
}

func (m *MemoryStore) hasBookedNearLocked(consultantID int64, at time.Time, within time.Duration, excludeID int64) bool {
	lo := at.Add(-within)
	hi := at.Add(within)
	for _, appt := range m.appointments {
		if appt.ConsultantID != consultantID || appt.Status != domain.StatusBooked || appt.ID == excludeID {
			continue
		}
		if !appt.Time.Before(lo) && !appt.Time.After(hi) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) bookedSlotTakenLocked(consultantID int64, at time.Time, excludeID int64) bool {
	for _, appt := range m.appointments {
		if appt.ID == excludeID {
			continue
		}
		if appt.ConsultantID == consultantID && appt.Status == domain.StatusBooked && appt.Time.Equal(at) {
			return true
		}
	}
	return false
}

// GetCancelledAppointmentAt finds a cancelled row for the exact slot, if any.
func (m *MemoryStore) GetCancelledAppointmentAt(consultantID int64, at time.Time) (domain.Appointment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, appt := range m.appointments {
		if appt.ConsultantID == consultantID && appt.Status == domain.StatusCancelled && appt.Time.Equal(at) {
			return appt, true, nil
		}
	}
	return domain.Appointment{}, false, nil
}

// CreateAppointment inserts a fresh booked row, enforcing slot uniqueness.
func (m *MemoryStore) CreateAppointment(appt domain.Appointment) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bookedSlotTakenLocked(appt.ConsultantID, appt.Time, 0) {
		return 0, ErrDuplicateSlot
	}
	m.nextAppointmentID++
	appt.ID = m.nextAppointmentID
	appt.Status = domain.StatusBooked
	appt.CreatedAt = time.Now().UTC()
	m.appointments[appt.ID] = appt
	return appt.ID, nil
}

// ReactivateAppointment flips a cancelled row back to booked.
func (m *MemoryStore) ReactivateAppointment(id int64, userName, userEmail string, serviceID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appointments[id]
	if !ok || appt.Status != domain.StatusCancelled {
		return ErrDuplicateSlot
	}
	if m.bookedSlotTakenLocked(appt.ConsultantID, appt.Time, id) {
		return ErrDuplicateSlot
	}
	appt.UserName = userName
	appt.UserEmail = userEmail
	appt.ServiceID = serviceID
	appt.Status = domain.StatusBooked
	m.appointments[id] = appt
	return nil
}

// GetActiveAppointment returns the booked row matching id and email.
func (m *MemoryStore) GetActiveAppointment(id int64, userEmail string) (domain.Appointment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appointments[id]
	if !ok || appt.UserEmail != userEmail || appt.Status != domain.StatusBooked {
		return domain.Appointment{}, false, nil
	}
	return appt, true, nil
}

// ReassignAppointmentSlot moves a booked row to a new time and consultant.
func (m *MemoryStore) ReassignAppointmentSlot(id int64, userEmail string, newTime time.Time, consultantID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appointments[id]
	if !ok || appt.UserEmail != userEmail || appt.Status != domain.StatusBooked {
		return ErrNotFound
	}
	if m.bookedSlotTakenLocked(consultantID, newTime, id) {
		return ErrDuplicateSlot
	}
	appt.Time = newTime
	appt.ConsultantID = consultantID
	m.appointments[id] = appt
	return nil
}

// ReassignAppointmentService changes a booked row's service and consultant.
func (m *MemoryStore) ReassignAppointmentService(id int64, userEmail string, serviceID, consultantID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appointments[id]
	if !ok || appt.UserEmail != userEmail || appt.Status != domain.StatusBooked {
		return ErrNotFound
	}
	if m.bookedSlotTakenLocked(consultantID, appt.Time, id) {
		return ErrDuplicateSlot
	}
	appt.ServiceID = serviceID
	appt.ConsultantID = consultantID
	m.appointments[id] = appt
	return nil
}

// CancelAppointment flips status to cancelled when all conditions match.
func (m *MemoryStore) CancelAppointment(id int64, userEmail string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appointments[id]
	if !ok || appt.UserEmail != userEmail || appt.Status != domain.StatusBooked {
		return false, nil
	}
	appt.Status = domain.StatusCancelled
	m.appointments[id] = appt
	return true, nil
}

// GetBookingDetails fetches the joined record for one appointment.
func (m *MemoryStore) GetBookingDetails(id int64, includeAllStatuses bool) (domain.BookingDetails, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appointments[id]
	if !ok {
		return domain.BookingDetails{}, false, nil
	}
	if !includeAllStatuses && appt.Status != domain.StatusBooked {
		return domain.BookingDetails{}, false, nil
	}
	return m.detailsLocked(appt), true, nil
}

func (m *MemoryStore) detailsLocked(appt domain.Appointment) domain.BookingDetails {
	consultant := m.consultants[appt.ConsultantID]
	service := m.services[appt.ServiceID]
	return domain.BookingDetails{
		AppointmentID:   appt.ID,
		UserName:        appt.UserName,
		UserEmail:       appt.UserEmail,
		Time:            appt.Time,
		ConsultantName:  consultant.Name,
		ConsultantEmail: consultant.Email,
		ServiceName:     service.Name,
		Status:          appt.Status,
	}
}

// ListUserAppointments returns a user's active bookings ordered by time.
func (m *MemoryStore) ListUserAppointments(userEmail string) ([]domain.BookingDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.BookingDetails, 0)
	for _, appt := range m.appointments {
		if appt.UserEmail == userEmail && appt.Status == domain.StatusBooked {
			res = append(res, m.detailsLocked(appt))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Time.Before(res[j].Time) })
	return res, nil
}

// MarkConfirmationSent stamps the confirmation timestamp.
func (m *MemoryStore) MarkConfirmationSent(id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appointments[id]
	if !ok {
		return nil
	}
	stamped := at.UTC()
	appt.ConfirmationSentAt = &stamped
	m.appointments[id] = appt
	return nil
}

// EnsureSession creates the session row if absent.
func (m *MemoryStore) EnsureSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		m.sessions[sessionID] = nil
	}
	return nil
}

// GetSessionState returns the scratch state for a session.
func (m *MemoryStore) GetSessionState(sessionID string) (domain.SessionState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.sessions[sessionID]
	if !ok {
		return domain.SessionState{}, false, nil
	}
	var state domain.SessionState
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &state)
	}
	return state, true, nil
}

// UpdateSessionState replaces the scratch state for a session.
func (m *MemoryStore) UpdateSessionState(sessionID string, state domain.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil
	}
	m.sessions[sessionID] = raw
	return nil
}

// AppendTurn records one message of a session's history.
func (m *MemoryStore) AppendTurn(sessionID, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTurnID++
	m.turns[sessionID] = append(m.turns[sessionID], domain.Turn{
		ID:        m.nextTurnID,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// ListTurns returns the most recent turns in chronological order.
func (m *MemoryStore) ListTurns(sessionID string, limit int) ([]domain.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.turns[sessionID]
	if limit <= 0 || len(all) == 0 {
		return []domain.Turn{}, nil
	}
	start := len(all) - limit
	if start < 0 {
		start = 0
	}
	res := make([]domain.Turn, len(all)-start)
	copy(res, all[start:])
	return res, nil
}
