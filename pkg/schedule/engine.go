package schedule

import (
	"log/slog"
	"time"

	"consultassist/pkg/domain"
	"consultassist/pkg/store"
)

const (
	// SlotDuration is the fixed appointment length.
	SlotDuration = 60 * time.Minute
	// overlapWindow is the conservative exclusion band around a candidate
	// start: any booked appointment within 59 minutes necessarily overlaps a
	// 60-minute slot.
	overlapWindow = 59 * time.Minute
	// searchHorizonHours bounds forward slot search to one week of hourly
	// probes.
	searchHorizonHours = 7 * 24
)

// Engine answers availability questions. It is read-only: all state lives in
// the store, and callers treat an empty result as "unavailable", never as a
// failure.
type Engine struct {
	store store.Store
}

// New constructs an availability engine over the given store.
func New(st store.Store) *Engine {
	return &Engine{store: st}
}

// CheckAvailability reports which consultants can take a 60-minute slot for
// the named service starting at the given wire-format datetime. Malformed
// input yields an empty list.
func (e *Engine) CheckAvailability(serviceName, startRaw string) []domain.Consultant {
	at, err := domain.ParseTime(startRaw)
	if err != nil {
		slog.Warn("availability check got unparseable datetime", "datetime", startRaw, "err", err)
		return []domain.Consultant{}
	}
	free, err := e.AvailableConsultants(serviceName, at)
	if err != nil {
		slog.Error("availability check failed", "service", serviceName, "err", err)
		return []domain.Consultant{}
	}
	return free
}

// AvailableConsultants is the typed core of the availability check. A
// consultant qualifies when it offers the service, has a work block on the
// weekday fully containing [at, at+60m), and has no booked appointment within
// 59 minutes of at. Results are ordered by consultant ID.
func (e *Engine) AvailableConsultants(serviceName string, at time.Time) ([]domain.Consultant, error) {
	svc, ok, err := e.store.GetServiceByName(serviceName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.Consultant{}, nil
	}
	consultants, err := e.store.ListConsultantsByService(svc.ID)
	if err != nil {
		return nil, err
	}

	startMinute := at.Hour()*60 + at.Minute()
	endMinute := startMinute + int(SlotDuration.Minutes())

	free := make([]domain.Consultant, 0, len(consultants))
	for _, c := range consultants {
		blocks, err := e.store.ListAvailabilityBlocks(c.ID, at.Weekday())
		if err != nil {
			return nil, err
		}
		if !slotWithinBlocks(blocks, startMinute, endMinute) {
			continue
		}
		busy, err := e.store.HasBookedAppointmentNear(c.ID, at, overlapWindow)
		if err != nil {
			return nil, err
		}
		if busy {
			continue
		}
		free = append(free, c)
	}
	return free, nil
}

func slotWithinBlocks(blocks []domain.AvailabilityBlock, startMinute, endMinute int) bool {
	for _, b := range blocks {
		if startMinute >= b.StartMinute && endMinute <= b.EndMinute {
			return true
		}
	}
	return false
}

// FindNextSlot searches forward from the given start for the first hour-aligned
// slot with at least one free consultant. A non-aligned start rounds up to the
// next full hour. The search stops after one week of hourly probes.
func (e *Engine) FindNextSlot(serviceName, startRaw string) (string, domain.Consultant, bool) {
	at, err := domain.ParseTime(startRaw)
	if err != nil {
		slog.Warn("next-slot search got unparseable datetime", "datetime", startRaw, "err", err)
		return "", domain.Consultant{}, false
	}
	if at.Minute() > 0 || at.Second() > 0 || at.Nanosecond() > 0 {
		at = at.Truncate(time.Hour).Add(time.Hour)
	}
	for i := 0; i < searchHorizonHours; i++ {
		free, err := e.AvailableConsultants(serviceName, at)
		if err != nil {
			slog.Error("next-slot probe failed", "service", serviceName, "err", err)
			return "", domain.Consultant{}, false
		}
		if len(free) > 0 {
			return at.Format(domain.TimeLayout), free[0], true
		}
		at = at.Add(time.Hour)
	}
	return "", domain.Consultant{}, false
}
