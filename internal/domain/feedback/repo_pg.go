package feedback

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/carebook/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type feedbackRepoPG struct{ pool *pgxpool.Pool }

func NewFeedbackRepoPG(pool *pgxpool.Pool) FeedbackRepository {
	return &feedbackRepoPG{pool: pool}
}

func (r *feedbackRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const fbCols = `id, appointment_id, patient_id, comment, rating, created_at`

func (r *feedbackRepoPG) scanFeedback(row pgx.Row) (*Feedback, error) {
	var f Feedback
	err := row.Scan(&f.ID, &f.AppointmentID, &f.PatientID, &f.Comment, &f.Rating, &f.CreatedAt)
	return &f, err
}

func (r *feedbackRepoPG) Create(ctx context.Context, f *Feedback) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO feedback (id, appointment_id, patient_id, comment, rating)
		VALUES ($1,$2,$3,$4,$5)`,
		f.ID, f.AppointmentID, f.PatientID, f.Comment, f.Rating)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadySubmitted
	}
	return err
}

func (r *feedbackRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Feedback, error) {
	f, err := r.scanFeedback(r.conn(ctx).QueryRow(ctx, `SELECT `+fbCols+` FROM feedback WHERE appointment_id = $1`, appointmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

func (r *feedbackRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Feedback, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Feedback
	for rows.Next() {
		f, err := r.scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

func (r *feedbackRepoPG) ListByRating(ctx context.Context, rating int) ([]*Feedback, error) {
	return r.list(ctx, `SELECT `+fbCols+` FROM feedback WHERE rating = $1 ORDER BY created_at DESC`, rating)
}

func (r *feedbackRepoPG) ListByCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]*Feedback, error) {
	return r.list(ctx, `
		SELECT f.id, f.appointment_id, f.patient_id, f.comment, f.rating, f.created_at
		FROM feedback f
		JOIN appointment a ON a.id = f.appointment_id
		WHERE a.caregiver_id = $1
		ORDER BY f.created_at DESC`,
		caregiverID)
}

func (r *feedbackRepoPG) ListAll(ctx context.Context, limit, offset int) ([]*Feedback, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.list(ctx, `SELECT `+fbCols+` FROM feedback ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
