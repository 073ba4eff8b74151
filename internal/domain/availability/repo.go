package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SlotRepository interface {
	InsertBatch(ctx context.Context, slots []*Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Slot, error)
	// StartTimes returns the existing slot start times for a caregiver within
	// [from, to), used for duplicate suppression during generation.
	StartTimes(ctx context.Context, caregiverID uuid.UUID, from, to time.Time) ([]time.Time, error)
	ListByCaregiver(ctx context.Context, caregiverID uuid.UUID, limit, offset int) ([]*Slot, int, error)
	ListOpen(ctx context.Context, limit, offset int) ([]*Slot, int, error)
	ListOpenTimes(ctx context.Context) ([]*OpenTime, error)
	// FindFree returns an unbooked slot for the caregiver covering the given
	// instant, or nil when none exists.
	FindFree(ctx context.Context, caregiverID uuid.UUID, at time.Time) (*Slot, error)
	// Claim atomically books the slot for an appointment. It reports false
	// when the slot was already booked.
	Claim(ctx context.Context, slotID, appointmentID uuid.UUID) (bool, error)
	Release(ctx context.Context, slotID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpiredUnbooked(ctx context.Context, cutoff time.Time) (int64, error)
}
