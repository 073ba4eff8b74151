package feedback

import (
	"context"

	"github.com/google/uuid"
)

type FeedbackRepository interface {
	Create(ctx context.Context, f *Feedback) error
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Feedback, error)
	ListByRating(ctx context.Context, rating int) ([]*Feedback, error)
	// ListByCaregiver joins through the appointment table.
	ListByCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]*Feedback, error)
	ListAll(ctx context.Context, limit, offset int) ([]*Feedback, int, error)
}
