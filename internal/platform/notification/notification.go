// Package notification delivers appointment lifecycle emails rendered from
// templates. Delivery is fire-and-forget: failures are logged, never returned
// to the caller's request path.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	TemplateAppointmentBooked    = "appointment-booked"
	TemplateAppointmentUpdated   = "appointment-updated"
	TemplateAppointmentCancelled = "appointment-cancelled"
	TemplateAppointmentReminder  = "appointment-reminder"
)

// Notification represents a single outbound email.
type Notification struct {
	ID         string            `json:"id"`
	Recipient  string            `json:"recipient"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	TemplateID string            `json:"template_id,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	Status     string            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	SentAt     *time.Time        `json:"sent_at,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Template defines a reusable notification template.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateAppointmentBooked,
			Name:    "Appointment Booked",
			Subject: "Appointment Confirmation",
			Body:    "Dear {{patient_name}}, your appointment with {{caregiver_name}} on {{date}} at {{time}} has been booked.",
		},
		{
			ID:      TemplateAppointmentUpdated,
			Name:    "Appointment Updated",
			Subject: "Appointment Updated",
			Body:    "Dear {{patient_name}}, your appointment has been moved to {{date}} at {{time}} with {{caregiver_name}}.",
		},
		{
			ID:      TemplateAppointmentCancelled,
			Name:    "Appointment Cancelled",
			Subject: "Appointment Cancelled",
			Body:    "Dear {{patient_name}}, your appointment on {{date}} at {{time}} has been cancelled.",
		},
		{
			ID:      TemplateAppointmentReminder,
			Name:    "Appointment Reminder",
			Subject: "Appointment Reminder for {{patient_name}}",
			Body:    "Dear {{patient_name}}, this is a reminder of your appointment on {{date}} at {{time}} with {{caregiver_name}}.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

// SendEmail records the call and optionally returns an error.
func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// LogEmailSender writes outbound mail to the log instead of sending it. Used
// in development when no SMTP relay is configured.
type LogEmailSender struct {
	Logger zerolog.Logger
}

func (s *LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("email (log sender)")
	return nil
}

// Notifier renders templates and dispatches email, recording every attempt
// in-memory for inspection.
type Notifier struct {
	sender    EmailSender
	templates *TemplateEngine
	logger    zerolog.Logger

	mu   sync.RWMutex
	sent map[string]*Notification
}

// NewNotifier constructs a Notifier.
func NewNotifier(sender EmailSender, tpl *TemplateEngine, logger zerolog.Logger) *Notifier {
	return &Notifier{
		sender:    sender,
		templates: tpl,
		logger:    logger,
		sent:      make(map[string]*Notification),
	}
}

// Send renders the template and dispatches the email synchronously.
func (n *Notifier) Send(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	subject, body, err := n.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	msg := &Notification{
		ID:         uuid.New().String(),
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
		Data:       data,
		Status:     "pending",
		CreatedAt:  time.Now().UTC(),
	}

	sendErr := n.sender.SendEmail(ctx, recipient, subject, body)
	if sendErr != nil {
		msg.Status = "failed"
		msg.Error = sendErr.Error()
	} else {
		msg.Status = "sent"
		sentAt := time.Now().UTC()
		msg.SentAt = &sentAt
	}

	n.mu.Lock()
	n.sent[msg.ID] = msg
	n.mu.Unlock()

	if sendErr != nil {
		return msg, sendErr
	}
	return msg, nil
}

// Notify dispatches asynchronously after the caller's transaction has
// committed. Failures are logged and swallowed.
func (n *Notifier) Notify(templateID string, data map[string]string, recipient string) {
	if recipient == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := n.Send(ctx, templateID, data, recipient); err != nil {
			n.logger.Error().
				Err(err).
				Str("template", templateID).
				Str("recipient", recipient).
				Msg("notification delivery failed")
		}
	}()
}

// Get retrieves a recorded notification by ID.
func (n *Notifier) Get(id string) (*Notification, error) {
	n.mu.RLock()
	msg, ok := n.sent[id]
	n.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	return msg, nil
}

// Stats returns counts of notifications grouped by status.
func (n *Notifier) Stats() map[string]int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	stats := make(map[string]int)
	for _, msg := range n.sent {
		stats[msg.Status]++
	}
	return stats
}
