package roster

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cpoe/cpoe/internal/platform/db"
)

type shiftRepoPG struct{ pool *pgxpool.Pool }

func NewShiftRepoPG(pool *pgxpool.Pool) ShiftRepository { return &shiftRepoPG{pool: pool} }

func (r *shiftRepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const shiftCols = `id, nurse_id, patient_id, start_at, end_at, created_at, updated_at`

func scanShift(row pgx.Row) (*Shift, error) {
	var s Shift
	err := row.Scan(&s.ID, &s.NurseID, &s.PatientID, &s.StartAt, &s.EndAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrShiftNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shiftRepoPG) Create(ctx context.Context, s *Shift) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO nurse_shift (id, nurse_id, patient_id, start_at, end_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.NurseID, s.PatientID, s.StartAt, s.EndAt, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *shiftRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Shift, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+shiftCols+` FROM nurse_shift WHERE id = $1`, id)
	return scanShift(row)
}

func (r *shiftRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM nurse_shift WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrShiftNotFound
	}
	return nil
}

func (r *shiftRepoPG) ListCovering(ctx context.Context, patientID uuid.UUID, at time.Time) ([]*Shift, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+shiftCols+` FROM nurse_shift
		WHERE patient_id = $1 AND start_at <= $2 AND end_at > $2
		ORDER BY start_at DESC`, patientID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectShifts(rows)
}

func (r *shiftRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Shift, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM nurse_shift WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+shiftCols+` FROM nurse_shift
		WHERE patient_id = $1
		ORDER BY start_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	shifts, err := collectShifts(rows)
	return shifts, total, err
}

func (r *shiftRepoPG) ListByNurse(ctx context.Context, nurseID uuid.UUID, limit, offset int) ([]*Shift, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM nurse_shift WHERE nurse_id = $1`, nurseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+shiftCols+` FROM nurse_shift
		WHERE nurse_id = $1
		ORDER BY start_at DESC
		LIMIT $2 OFFSET $3`, nurseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	shifts, err := collectShifts(rows)
	return shifts, total, err
}

func collectShifts(rows pgx.Rows) ([]*Shift, error) {
	var shifts []*Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}
