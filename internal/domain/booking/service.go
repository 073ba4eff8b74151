package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/domain/availability"
	"github.com/carebook/carebook/internal/platform/notification"
)

// TxRunner executes fn inside a single transaction scope.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Notifier dispatches a templated message after a booking transition has
// committed. Delivery is best-effort.
type Notifier interface {
	Notify(templateID string, data map[string]string, recipient string)
}

// Contact is the delivery address for booking notifications.
type Contact struct {
	Email       string
	DisplayName string
}

// ContactDirectory resolves a user id to a notification contact.
type ContactDirectory interface {
	GetContact(ctx context.Context, userID uuid.UUID) (*Contact, error)
}

type Service struct {
	appointments AppointmentRepository
	slots        SlotStore
	contacts     ContactDirectory
	notifier     Notifier
	inTx         TxRunner
	logger       zerolog.Logger
}

func NewService(appointments AppointmentRepository, slots SlotStore, contacts ContactDirectory, notifier Notifier, inTx TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		appointments: appointments,
		slots:        slots,
		contacts:     contacts,
		notifier:     notifier,
		inTx:         inTx,
		logger:       logger,
	}
}

// BookRequest is the input to Book.
type BookRequest struct {
	PatientID   uuid.UUID
	CaregiverID uuid.UUID
	At          time.Time
	Description string
}

// Book reserves a free slot for the requested time and creates the
// appointment. The slot claim is a conditional update inside the same
// transaction as the appointment insert, so two concurrent bookings of the
// same slot cannot both succeed: the loser's claim affects zero rows and the
// whole transaction rolls back.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if req.PatientID == uuid.Nil || req.CaregiverID == uuid.Nil || req.At.IsZero() {
		return nil, ErrInvalidInput
	}

	existing, err := s.appointments.GetScheduledAt(ctx, req.PatientID, req.At)
	if err != nil {
		return nil, fmt.Errorf("checking for duplicate booking: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateBooking
	}

	slot, err := s.slots.FindFree(ctx, req.CaregiverID, req.At)
	if err != nil {
		return nil, fmt.Errorf("finding free slot: %w", err)
	}
	if slot == nil {
		return nil, ErrNoFreeSlot
	}

	appt := &Appointment{
		ID:          uuid.New(),
		PatientID:   req.PatientID,
		CaregiverID: req.CaregiverID,
		Description: req.Description,
		ScheduledAt: req.At,
		Status:      StatusScheduled,
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.appointments.Create(ctx, appt); err != nil {
			return fmt.Errorf("creating appointment: %w", err)
		}
		claimed, err := s.slots.Claim(ctx, slot.ID, appt.ID)
		if err != nil {
			return fmt.Errorf("claiming slot: %w", err)
		}
		if !claimed {
			return ErrSlotTaken
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("slot_id", slot.ID.String()).
		Str("patient_id", appt.PatientID.String()).
		Msg("appointment booked")
	s.notifyPatient(ctx, appt, notification.TemplateAppointmentBooked)

	return appt, nil
}

// ReschedulePayload carries the slot swap and field updates for Reschedule.
type ReschedulePayload struct {
	OldSlotID   uuid.UUID
	NewSlotID   uuid.UUID
	CaregiverID uuid.UUID
	At          time.Time
	Status      string
}

// Reschedule moves a scheduled appointment onto a new slot. The old-slot
// release, new-slot claim, and appointment update commit together; a failed
// claim rolls everything back, leaving the old slot booked.
func (s *Service) Reschedule(ctx context.Context, appointmentID uuid.UUID, p ReschedulePayload) (*Appointment, error) {
	if p.Status != "" && !validStatuses[p.Status] {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, p.Status)
	}

	appt, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if p.CaregiverID != uuid.Nil {
		appt.CaregiverID = p.CaregiverID
	}
	if !p.At.IsZero() {
		appt.ScheduledAt = p.At
	}
	if p.Status != "" {
		appt.Status = p.Status
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.slots.Release(ctx, p.OldSlotID); err != nil {
			return fmt.Errorf("releasing old slot: %w", err)
		}
		claimed, err := s.slots.Claim(ctx, p.NewSlotID, appt.ID)
		if err != nil {
			return fmt.Errorf("claiming new slot: %w", err)
		}
		if !claimed {
			return ErrSlotTaken
		}
		return s.appointments.Update(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("old_slot_id", p.OldSlotID.String()).
		Str("new_slot_id", p.NewSlotID.String()).
		Msg("appointment rescheduled")
	s.notifyPatient(ctx, appt, notification.TemplateAppointmentUpdated)

	return appt, nil
}

// Cancel deletes an appointment and releases its slot. A scheduled
// appointment without a linked slot is an invariant break and a hard error.
// The release runs before the row delete so the slot→appointment foreign key
// holds at every point in the transaction.
func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID) error {
	appt, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return err
	}

	slot, err := s.slots.GetByAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, availability.ErrNotFound) {
			return ErrNoLinkedSlot
		}
		return fmt.Errorf("loading linked slot: %w", err)
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.slots.Release(ctx, slot.ID); err != nil {
			return fmt.Errorf("releasing slot: %w", err)
		}
		return s.appointments.Delete(ctx, appointmentID)
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("appointment_id", appointmentID.String()).
		Str("slot_id", slot.ID.String()).
		Msg("appointment cancelled")
	s.notifyPatient(ctx, appt, notification.TemplateAppointmentCancelled)

	return nil
}

// Complete marks a scheduled appointment completed.
func (s *Service) Complete(ctx context.Context, appointmentID uuid.UUID) (*Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusScheduled {
		return nil, fmt.Errorf("%w: cannot complete a %s appointment", ErrInvalidInput, appt.Status)
	}
	appt.Status = StatusCompleted
	if err := s.appointments.Update(ctx, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// Scheduled returns the patient's upcoming scheduled appointments. Empty
// result, not an error, when there are none.
func (s *Service) Scheduled(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return nonNil(s.appointments.ListScheduled(ctx, patientID))
}

// Completed returns the patient's completed appointments.
func (s *Service) Completed(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return nonNil(s.appointments.ListCompleted(ctx, patientID))
}

// History returns every appointment the patient has ever had.
func (s *Service) History(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return nonNil(s.appointments.ListByPatient(ctx, patientID))
}

// Journal returns the patient's past appointments regardless of status.
func (s *Service) Journal(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return nonNil(s.appointments.ListPast(ctx, patientID))
}

func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	items, total, err := s.appointments.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []*Appointment{}
	}
	return items, total, nil
}

func nonNil(items []*Appointment, err error) ([]*Appointment, error) {
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Appointment{}
	}
	return items, nil
}

func (s *Service) notifyPatient(ctx context.Context, appt *Appointment, templateID string) {
	if s.notifier == nil || s.contacts == nil {
		return
	}
	contact, err := s.contacts.GetContact(ctx, appt.PatientID)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("patient_id", appt.PatientID.String()).
			Msg("patient contact lookup failed, skipping notification")
		return
	}
	caregiverName := ""
	if cg, err := s.contacts.GetContact(ctx, appt.CaregiverID); err == nil {
		caregiverName = cg.DisplayName
	}
	s.notifier.Notify(templateID, map[string]string{
		"patient_name":   contact.DisplayName,
		"caregiver_name": caregiverName,
		"date":           appt.ScheduledAt.Format("2006-01-02"),
		"time":           appt.ScheduledAt.Format("15:04"),
	}, contact.Email)
}
