package booking

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var (
	ErrNotFound = errors.New("appointment not found")
	// ErrNoFreeSlot means no unbooked slot covers the requested time.
	ErrNoFreeSlot = errors.New("no available slot for the requested time")
	// ErrSlotTaken means the slot was claimed by a concurrent booking between
	// lookup and claim.
	ErrSlotTaken = errors.New("slot was booked concurrently")
	// ErrDuplicateBooking means the patient already holds a scheduled
	// appointment at the same time.
	ErrDuplicateBooking = errors.New("patient already has an appointment at this time")
	// ErrNoLinkedSlot means a scheduled appointment has no slot referencing
	// it. That invariant break is a hard error, not a no-op.
	ErrNoLinkedSlot = errors.New("appointment has no linked slot")
	ErrInvalidInput = errors.New("invalid booking input")
)

// Appointment maps to the appointment table: a confirmed booking between one
// patient and one caregiver at a specific time. The linked slot holds the
// reference; this row has no back-pointer.
type Appointment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	CaregiverID uuid.UUID `db:"caregiver_id" json:"caregiver_id"`
	Description string    `db:"description" json:"description"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

var validStatuses = map[string]bool{
	StatusScheduled: true,
	StatusCompleted: true,
	StatusCancelled: true,
}
