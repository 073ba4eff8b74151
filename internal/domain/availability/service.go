package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TxRunner executes fn inside a single transaction scope.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// AppointmentStore is the slice of appointment storage the availability
// service needs when a slot deletion cascades to its linked appointment.
type AppointmentStore interface {
	Delete(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	slots        SlotRepository
	appointments AppointmentStore
	inTx         TxRunner
}

func NewService(slots SlotRepository, appointments AppointmentStore, inTx TxRunner) *Service {
	return &Service{slots: slots, appointments: appointments, inTx: inTx}
}

// GenerateSlots expands a caregiver availability window into fixed-duration
// slots. The cursor steps in whole SlotDuration increments until it reaches
// end, so the final slot of a window that is not a multiple of SlotDuration
// runs past end rather than being clipped.
//
// Candidates whose (caregiver, start_time) pair already exists are skipped.
// Only exact start collisions are suppressed; phase-shifted overlaps from a
// differently aligned window can still coexist.
func (s *Service) GenerateSlots(ctx context.Context, caregiverID uuid.UUID, start, end time.Time) ([]*Slot, error) {
	if caregiverID == uuid.Nil {
		return nil, ErrInvalidCaregiver
	}
	if !start.Before(end) {
		return nil, ErrInvalidRange
	}

	existing, err := s.slots.StartTimes(ctx, caregiverID, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading existing slots: %w", err)
	}
	taken := make(map[int64]bool, len(existing))
	for _, t := range existing {
		taken[t.Unix()] = true
	}

	var batch []*Slot
	for cursor := start; cursor.Before(end); cursor = cursor.Add(SlotDuration) {
		if taken[cursor.Unix()] {
			continue
		}
		batch = append(batch, &Slot{
			ID:          uuid.New(),
			CaregiverID: caregiverID,
			StartTime:   cursor,
			EndTime:     cursor.Add(SlotDuration),
		})
	}
	if len(batch) == 0 {
		return []*Slot{}, nil
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		return s.slots.InsertBatch(ctx, batch)
	})
	if err != nil {
		return nil, fmt.Errorf("inserting slots: %w", err)
	}
	return batch, nil
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.slots.GetByID(ctx, id)
}

// ListByCaregiver returns every slot belonging to the caregiver. An empty
// result is not an error.
func (s *Service) ListByCaregiver(ctx context.Context, caregiverID uuid.UUID, limit, offset int) ([]*Slot, int, error) {
	items, total, err := s.slots.ListByCaregiver(ctx, caregiverID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []*Slot{}
	}
	return items, total, nil
}

// ListOpen returns every future unbooked slot.
func (s *Service) ListOpen(ctx context.Context, limit, offset int) ([]*Slot, int, error) {
	items, total, err := s.slots.ListOpen(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []*Slot{}
	}
	return items, total, nil
}

// ListOpenTimes returns distinct future start times with the caregivers
// available at each.
func (s *Service) ListOpenTimes(ctx context.Context) ([]*OpenTime, error) {
	items, err := s.slots.ListOpenTimes(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*OpenTime{}
	}
	return items, nil
}

// DeleteSlot removes a slot. A booked slot takes its linked appointment with
// it; both writes commit together.
func (s *Service) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	slot, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(ctx context.Context) error {
		if slot.AppointmentID != nil {
			// Release first so the appointment row can be deleted under the
			// slot→appointment foreign key.
			if err := s.slots.Release(ctx, slot.ID); err != nil {
				return fmt.Errorf("releasing slot: %w", err)
			}
			if err := s.appointments.Delete(ctx, *slot.AppointmentID); err != nil {
				return fmt.Errorf("deleting linked appointment: %w", err)
			}
		}
		return s.slots.Delete(ctx, slot.ID)
	})
}
