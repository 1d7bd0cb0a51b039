package booking

import (
	"errors"
	"sync"
	"testing"
	"time"

	"consultassist/pkg/domain"
	"consultassist/pkg/schedule"
	"consultassist/pkg/store"
)

func newFixture(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	for _, svc := range []domain.Service{
		{Name: "Technology", Description: "Technology consulting"},
		{Name: "Sales", Description: "Sales consulting"},
	} {
		if _, err := st.CreateService(svc); err != nil {
			t.Fatalf("create service: %v", err)
		}
	}
	seed := []struct {
		name      string
		serviceID int64
	}{
		{"Alice Chen", 1},
		{"Bob Marsh", 1},
		{"Carla Diaz", 2},
	}
	for _, c := range seed {
		cID, err := st.CreateConsultant(domain.Consultant{Name: c.name, Email: c.name + "@example.com", ServiceID: c.serviceID})
		if err != nil {
			t.Fatalf("create consultant: %v", err)
		}
		for wd := time.Monday; wd <= time.Friday; wd++ {
			for _, span := range [][2]int{{10 * 60, 13 * 60}, {14 * 60, 19 * 60}} {
				if _, err := st.CreateAvailabilityBlock(domain.AvailabilityBlock{
					ConsultantID: cID,
					Weekday:      wd,
					StartMinute:  span[0],
					EndMinute:    span[1],
				}); err != nil {
					t.Fatalf("create block: %v", err)
				}
			}
		}
	}
	return NewService(st, schedule.New(st)), st
}

// monday is a weekday slot inside every consultant's work blocks.
const monday = "2026-09-07 11:00:00"

func TestBookAssignsFirstFreeConsultant(t *testing.T) {
	svc, _ := newFixture(t)

	id, c, err := svc.Book("Dana", "dana@example.com", "Technology", monday)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a nonzero appointment ID")
	}
	if c.Name != "Alice Chen" {
		t.Fatalf("expected lowest-ID consultant, got %s", c.Name)
	}

	// Same slot again lands on the second consultant.
	_, c2, err := svc.Book("Evan", "evan@example.com", "Technology", monday)
	if err != nil {
		t.Fatalf("second book: %v", err)
	}
	if c2.Name != "Bob Marsh" {
		t.Fatalf("expected second consultant, got %s", c2.Name)
	}

	// Third booking has nobody left near this time.
	if _, _, err := svc.Book("Faye", "faye@example.com", "Technology", monday); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestBookUnknownService(t *testing.T) {
	svc, _ := newFixture(t)
	if _, _, err := svc.Book("Dana", "dana@example.com", "Astrology", monday); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}

func TestBookReusesCancelledRow(t *testing.T) {
	svc, _ := newFixture(t)

	id, _, err := svc.Book("Dana", "dana@example.com", "Technology", monday)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := svc.Cancel(id, "dana@example.com"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	id2, _, err := svc.Book("Evan", "evan@example.com", "Technology", monday)
	if err != nil {
		t.Fatalf("rebook: %v", err)
	}
	if id2 != id {
		t.Fatalf("expected cancelled row %d to be reactivated, got new ID %d", id, id2)
	}
	det, err := svc.Details(id2, false)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if det.UserName != "Evan" || det.UserEmail != "evan@example.com" {
		t.Fatalf("reactivated row must carry the new booker, got %s <%s>", det.UserName, det.UserEmail)
	}
	if det.Status != domain.StatusBooked {
		t.Fatalf("expected booked status, got %s", det.Status)
	}
}

func TestCancelRequiresMatchingEmail(t *testing.T) {
	svc, _ := newFixture(t)

	id, _, err := svc.Book("Dana", "dana@example.com", "Technology", monday)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := svc.Cancel(id, "other@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong email, got %v", err)
	}
	if err := svc.Cancel(id, "dana@example.com"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// Cancelling twice fails the same way as a bad ID.
	if err := svc.Cancel(id, "dana@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for already-cancelled, got %v", err)
	}
}

func TestRescheduleMovesSlot(t *testing.T) {
	svc, _ := newFixture(t)

	id, _, err := svc.Book("Dana", "dana@example.com", "Technology", monday)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	c, err := svc.Reschedule(id, "dana@example.com", "2026-09-08 15:00:00")
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if c.Name != "Alice Chen" {
		t.Fatalf("expected first consultant at new slot, got %s", c.Name)
	}
	det, err := svc.Details(id, false)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	want := time.Date(2026, 9, 8, 15, 0, 0, 0, time.UTC)
	if !det.Time.Equal(want) {
		t.Fatalf("expected appointment moved to %v, got %v", want, det.Time)
	}
}

func TestRescheduleToClosedHour(t *testing.T) {
	svc, _ := newFixture(t)

	id, _, err := svc.Book("Dana", "dana@example.com", "Technology", monday)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := svc.Reschedule(id, "dana@example.com", "2026-09-08 13:00:00"); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	// Original slot untouched after the failed move.
	det, err := svc.Details(id, false)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if !det.Time.Equal(time.Date(2026, 9, 7, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("failed reschedule must not move the appointment, got %v", det.Time)
	}
}

func TestRescheduleUnknownAppointment(t *testing.T) {
	svc, _ := newFixture(t)
	if _, err := svc.Reschedule(42, "dana@example.com", monday); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestModifyServiceReassignsConsultant(t *testing.T) {
	svc, _ := newFixture(t)

	id, _, err := svc.Book("Dana", "dana@example.com", "Technology", monday)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	c, err := svc.ModifyService(id, "dana@example.com", 2)
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if c.Name != "Carla Diaz" {
		t.Fatalf("expected the Sales consultant, got %s", c.Name)
	}
	det, err := svc.Details(id, false)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if det.ServiceName != "Sales" {
		t.Fatalf("expected Sales, got %s", det.ServiceName)
	}
}

func TestModifyServiceFailureOrder(t *testing.T) {
	svc, _ := newFixture(t)

	id, _, err := svc.Book("Dana", "dana@example.com", "Technology", monday)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := svc.ModifyService(99, "dana@example.com", 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound first, got %v", err)
	}
	if _, err := svc.ModifyService(id, "dana@example.com", 1); !errors.Is(err, ErrNoChange) {
		t.Fatalf("expected ErrNoChange for same service, got %v", err)
	}
	if _, err := svc.ModifyService(id, "dana@example.com", 42); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}

func TestDetailsStatusModes(t *testing.T) {
	svc, _ := newFixture(t)

	id, _, err := svc.Book("Dana", "dana@example.com", "Technology", monday)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := svc.Cancel(id, "dana@example.com"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Details(id, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("active-only lookup must miss cancelled rows, got %v", err)
	}
	det, err := svc.Details(id, true)
	if err != nil {
		t.Fatalf("all-statuses lookup: %v", err)
	}
	if det.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", det.Status)
	}
}

func TestUserAppointmentsActiveOnly(t *testing.T) {
	svc, _ := newFixture(t)

	id, _, err := svc.Book("Dana", "dana@example.com", "Technology", monday)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, _, err := svc.Book("Dana", "dana@example.com", "Sales", "2026-09-08 15:00:00"); err != nil {
		t.Fatalf("second book: %v", err)
	}
	if err := svc.Cancel(id, "dana@example.com"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	appts, err := svc.UserAppointments("dana@example.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(appts) != 1 {
		t.Fatalf("cancelled appointments must not be listed, got %d", len(appts))
	}
	if appts[0].ServiceName != "Sales" {
		t.Fatalf("unexpected remaining appointment %+v", appts[0])
	}
}

func TestConcurrentBookingSingleWinner(t *testing.T) {
	svc, _ := newFixture(t)

	// Sales has a single consultant, so exactly one racer may win the slot;
	// everyone else must lose with a typed error, never a duplicate booking.
	const racers = 16
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.Book("Dana", "dana@example.com", "Sales", monday)
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrConflict):
		default:
			t.Fatalf("unexpected racer error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning booking, got %d", wins)
	}
}
