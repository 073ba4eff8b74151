package feedback

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
	ErrNotFound         = errors.New("feedback not found")
	ErrAlreadySubmitted = errors.New("feedback already submitted for this appointment")
)

// Feedback is a write-once comment and 1-5 rating tied to one appointment.
type Feedback struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	Comment       string    `db:"comment" json:"comment"`
	Rating        int       `db:"rating" json:"rating"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Summary aggregates a caregiver's feedback: mean rating plus comments
// grouped by rating value.
type Summary struct {
	CaregiverID      uuid.UUID        `json:"caregiver_id"`
	Count            int              `json:"count"`
	AverageRating    float64          `json:"average_rating"`
	CommentsByRating map[int][]string `json:"comments_by_rating"`
}
