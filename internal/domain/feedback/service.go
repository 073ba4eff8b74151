package feedback

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	feedback FeedbackRepository
}

func NewService(feedback FeedbackRepository) *Service {
	return &Service{feedback: feedback}
}

// Create records post-visit feedback. One entry per appointment.
func (s *Service) Create(ctx context.Context, appointmentID, patientID uuid.UUID, comment string, rating int) (*Feedback, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	if appointmentID == uuid.Nil {
		return nil, fmt.Errorf("appointment id is required")
	}

	if existing, err := s.feedback.GetByAppointment(ctx, appointmentID); err == nil && existing != nil {
		return nil, ErrAlreadySubmitted
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	f := &Feedback{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		PatientID:     patientID,
		Comment:       comment,
		Rating:        rating,
	}
	if err := s.feedback.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) ByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Feedback, error) {
	return s.feedback.GetByAppointment(ctx, appointmentID)
}

// ByRating returns all feedback with the given rating. Empty result is not an
// error; an out-of-range rating is.
func (s *Service) ByRating(ctx context.Context, rating int) ([]*Feedback, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	items, err := s.feedback.ListByRating(ctx, rating)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Feedback{}
	}
	return items, nil
}

// SummaryByCaregiver computes the caregiver's mean rating and groups comments
// by rating value. No feedback yields a zero-valued summary, not an error.
func (s *Service) SummaryByCaregiver(ctx context.Context, caregiverID uuid.UUID) (*Summary, error) {
	items, err := s.feedback.ListByCaregiver(ctx, caregiverID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		CaregiverID:      caregiverID,
		Count:            len(items),
		CommentsByRating: make(map[int][]string),
	}
	if len(items) == 0 {
		return summary, nil
	}

	var total int
	for _, f := range items {
		total += f.Rating
		summary.CommentsByRating[f.Rating] = append(summary.CommentsByRating[f.Rating], f.Comment)
	}
	summary.AverageRating = float64(total) / float64(len(items))
	return summary, nil
}

func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]*Feedback, int, error) {
	items, total, err := s.feedback.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []*Feedback{}
	}
	return items, total, nil
}
