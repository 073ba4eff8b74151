package availability

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SlotDuration is the fixed length of every bookable slot.
const SlotDuration = 30 * time.Minute

var (
	ErrInvalidRange     = errors.New("start must be before end")
	ErrInvalidCaregiver = errors.New("invalid caregiver id")
	ErrNotFound         = errors.New("slot not found")
)

// Slot maps to the slot table: one bookable unit of caregiver time. The slot
// owns the link to its appointment; the appointment row carries no back-pointer.
type Slot struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	CaregiverID   uuid.UUID  `db:"caregiver_id" json:"caregiver_id"`
	StartTime     time.Time  `db:"start_time" json:"start_time"`
	EndTime       time.Time  `db:"end_time" json:"end_time"`
	Booked        bool       `db:"booked" json:"booked"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// OpenTime is a distinct unbooked start time together with the caregivers
// free at that time.
type OpenTime struct {
	StartTime    time.Time   `json:"start_time"`
	EndTime      time.Time   `json:"end_time"`
	CaregiverIDs []uuid.UUID `json:"caregiver_ids"`
}
