package availability

import (
	"context"
	"errors"
	"time"

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

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

func (r *slotRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const slotCols = `id, caregiver_id, start_time, end_time, booked, appointment_id, created_at`

func (r *slotRepoPG) scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.CaregiverID, &s.StartTime, &s.EndTime, &s.Booked, &s.AppointmentID, &s.CreatedAt)
	return &s, err
}

func (r *slotRepoPG) InsertBatch(ctx context.Context, slots []*Slot) error {
	for _, s := range slots {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO slot (id, caregiver_id, start_time, end_time, booked)
			VALUES ($1,$2,$3,$4,false)`,
			s.ID, s.CaregiverID, s.StartTime, s.EndTime)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	s, err := r.scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM slot WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func (r *slotRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Slot, error) {
	s, err := r.scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM slot WHERE appointment_id = $1`, appointmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func (r *slotRepoPG) StartTimes(ctx context.Context, caregiverID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT start_time FROM slot
		WHERE caregiver_id = $1 AND start_time >= $2 AND start_time < $3`,
		caregiverID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var starts []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		starts = append(starts, t)
	}
	return starts, rows.Err()
}

func (r *slotRepoPG) ListByCaregiver(ctx context.Context, caregiverID uuid.UUID, limit, offset int) ([]*Slot, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM slot WHERE caregiver_id = $1`, caregiverID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+slotCols+` FROM slot WHERE caregiver_id = $1 ORDER BY start_time LIMIT $2 OFFSET $3`,
		caregiverID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Slot
	for rows.Next() {
		s, err := r.scanSlot(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *slotRepoPG) ListOpen(ctx context.Context, limit, offset int) ([]*Slot, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM slot WHERE NOT booked AND start_time > NOW()`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+slotCols+` FROM slot WHERE NOT booked AND start_time > NOW() ORDER BY start_time LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Slot
	for rows.Next() {
		s, err := r.scanSlot(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *slotRepoPG) ListOpenTimes(ctx context.Context) ([]*OpenTime, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT start_time, end_time, array_agg(caregiver_id)
		FROM slot
		WHERE NOT booked AND start_time > NOW()
		GROUP BY start_time, end_time
		ORDER BY start_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*OpenTime
	for rows.Next() {
		var ot OpenTime
		if err := rows.Scan(&ot.StartTime, &ot.EndTime, &ot.CaregiverIDs); err != nil {
			return nil, err
		}
		items = append(items, &ot)
	}
	return items, rows.Err()
}

func (r *slotRepoPG) FindFree(ctx context.Context, caregiverID uuid.UUID, at time.Time) (*Slot, error) {
	s, err := r.scanSlot(r.conn(ctx).QueryRow(ctx, `
		SELECT `+slotCols+` FROM slot
		WHERE caregiver_id = $1 AND start_time <= $2 AND end_time > $2 AND NOT booked
		ORDER BY start_time LIMIT 1`,
		caregiverID, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// Claim is the single mutation path that sets booked=true. The condition on
// the current booked state closes the find-then-book race.
func (r *slotRepoPG) Claim(ctx context.Context, slotID, appointmentID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE slot SET booked = true, appointment_id = $2
		WHERE id = $1 AND NOT booked`,
		slotID, appointmentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *slotRepoPG) Release(ctx context.Context, slotID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE slot SET booked = false, appointment_id = NULL
		WHERE id = $1`, slotID)
	return err
}

func (r *slotRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM slot WHERE id = $1`, id)
	return err
}

func (r *slotRepoPG) DeleteExpiredUnbooked(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM slot WHERE end_time < $1 AND NOT booked`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
