package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/carebook/internal/domain/availability"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	// GetScheduledAt returns the patient's scheduled appointment at the exact
	// time, compared at second granularity, or nil when none exists.
	GetScheduledAt(ctx context.Context, patientID uuid.UUID, at time.Time) (*Appointment, error)
	ListScheduled(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
	ListCompleted(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
	ListPast(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
	ListAll(ctx context.Context, limit, offset int) ([]*Appointment, int, error)
}

// SlotStore is the slice of slot storage the booking engine drives. Claim is
// the only path that marks a slot booked.
type SlotStore interface {
	FindFree(ctx context.Context, caregiverID uuid.UUID, at time.Time) (*availability.Slot, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*availability.Slot, error)
	Claim(ctx context.Context, slotID, appointmentID uuid.UUID) (bool, error)
	Release(ctx context.Context, slotID uuid.UUID) error
}
