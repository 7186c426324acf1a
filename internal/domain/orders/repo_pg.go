package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cpoe/cpoe/internal/platform/db"
)

// =========== Order Repository ===========

type orderRepoPG struct{ pool *pgxpool.Pool }

func NewOrderRepoPG(pool *pgxpool.Pool) OrderRepository { return &orderRepoPG{pool: pool} }

func (r *orderRepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const orderCols = `id, patient_id, doctor_id, assigned_nurse_id, order_type, is_long_term, status,
	timing_policy, timing_start_at, timing_start_date, timing_interval_hours, timing_interval_days, timing_slots_mask,
	planned_end_at, stop_reason, stop_requested_at, stop_requested_by,
	stop_confirmed_at, stop_confirmed_by, stop_reject_reason, created_at, updated_at`

func (r *orderRepoPG) scanOrder(row pgx.Row) (*ClinicalOrder, error) {
	var o ClinicalOrder
	var policy TimingPolicy
	var startAt, startDate *time.Time
	var intervalHours, intervalDays *int
	var slotsMask *int64
	err := row.Scan(&o.ID, &o.PatientID, &o.DoctorID, &o.AssignedNurseID, &o.OrderType, &o.IsLongTerm, &o.Status,
		&policy, &startAt, &startDate, &intervalHours, &intervalDays, &slotsMask,
		&o.PlannedEndAt, &o.StopReason, &o.StopRequestedAt, &o.StopRequestedBy,
		&o.StopConfirmedAt, &o.StopConfirmedBy, &o.StopRejectReason, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	var mask *SlotMask
	if slotsMask != nil {
		m := SlotMask(*slotsMask)
		mask = &m
	}
	cfg, err := timingEnvelope{
		Policy: policy, StartAt: startAt, StartDate: startDate,
		IntervalHours: intervalHours, IntervalDays: intervalDays, SlotsMask: mask,
	}.toConfig()
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", o.ID, err)
	}
	o.Timing = Timing{Config: cfg}
	return &o, nil
}

// timingColumns flattens the sum type into its column representation.
func timingColumns(t Timing) (policy TimingPolicy, startAt, startDate *time.Time, intervalHours, intervalDays *int, slotsMask *int64) {
	switch cfg := t.Config.(type) {
	case ImmediateTiming:
		policy = PolicyImmediate
	case SpecificTiming:
		policy = PolicySpecific
		startAt = &cfg.StartAt
	case CyclicTiming:
		policy = PolicyCyclic
		startAt = &cfg.StartAt
		intervalHours = &cfg.IntervalHours
		intervalDays = &cfg.IntervalDays
	case SlotTiming:
		policy = PolicySlots
		startDate = &cfg.StartDate
		mask := int64(cfg.SlotsMask)
		slotsMask = &mask
		intervalDays = &cfg.IntervalDays
	}
	return
}

func (r *orderRepoPG) Create(ctx context.Context, o *ClinicalOrder) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	policy, startAt, startDate, intervalHours, intervalDays, slotsMask := timingColumns(o.Timing)
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinical_order (id, patient_id, doctor_id, assigned_nurse_id, order_type, is_long_term, status,
			timing_policy, timing_start_at, timing_start_date, timing_interval_hours, timing_interval_days, timing_slots_mask,
			planned_end_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, o.PatientID, o.DoctorID, o.AssignedNurseID, o.OrderType, o.IsLongTerm, o.Status,
		policy, startAt, startDate, intervalHours, intervalDays, slotsMask,
		o.PlannedEndAt)
	return err
}

func (r *orderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ClinicalOrder, error) {
	return r.scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM clinical_order WHERE id = $1`, id))
}

func (r *orderRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*ClinicalOrder, error) {
	return r.scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM clinical_order WHERE id = $1 FOR UPDATE`, id))
}

func (r *orderRepoPG) Update(ctx context.Context, o *ClinicalOrder) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinical_order SET assigned_nurse_id=$2, status=$3, planned_end_at=$4,
			stop_reason=$5, stop_requested_at=$6, stop_requested_by=$7,
			stop_confirmed_at=$8, stop_confirmed_by=$9, stop_reject_reason=$10, updated_at=NOW()
		WHERE id = $1`,
		o.ID, o.AssignedNurseID, o.Status, o.PlannedEndAt,
		o.StopReason, o.StopRequestedAt, o.StopRequestedBy,
		o.StopConfirmedAt, o.StopConfirmedBy, o.StopRejectReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*ClinicalOrder, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM clinical_order WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+orderCols+` FROM clinical_order WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ClinicalOrder
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, nil
}

func (r *orderRepoPG) ListByStatus(ctx context.Context, status OrderStatus, limit, offset int) ([]*ClinicalOrder, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM clinical_order WHERE status = $1`, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+orderCols+` FROM clinical_order WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ClinicalOrder
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, nil
}

// =========== Task Repository ===========

type taskRepoPG struct{ pool *pgxpool.Pool }

func NewTaskRepoPG(pool *pgxpool.Pool) TaskRepository { return &taskRepoPG{pool: pool} }

func (r *taskRepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const taskCols = `id, order_id, patient_id, category, status, status_before_locking,
	planned_start_at, assigned_nurse_id, actual_start_at, executor_id, actual_end_at,
	payload, result_payload, created_at, updated_at`

func (r *taskRepoPG) scanTask(row pgx.Row) (*ExecutionTask, error) {
	var t ExecutionTask
	err := row.Scan(&t.ID, &t.OrderID, &t.PatientID, &t.Category, &t.Status, &t.StatusBeforeLocking,
		&t.PlannedStartAt, &t.AssignedNurseID, &t.ActualStartAt, &t.ExecutorID, &t.ActualEndAt,
		&t.Payload, &t.ResultPayload, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *taskRepoPG) CreateBatch(ctx context.Context, tasks []*ExecutionTask) error {
	conn := r.conn(ctx)
	for _, t := range tasks {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		_, err := conn.Exec(ctx, `
			INSERT INTO execution_task (id, order_id, patient_id, category, status,
				planned_start_at, assigned_nurse_id, payload)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			t.ID, t.OrderID, t.PatientID, t.Category, t.Status,
			t.PlannedStartAt, t.AssignedNurseID, t.Payload)
		if err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
	}
	return nil
}

func (r *taskRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ExecutionTask, error) {
	return r.scanTask(r.conn(ctx).QueryRow(ctx, `SELECT `+taskCols+` FROM execution_task WHERE id = $1`, id))
}

func (r *taskRepoPG) Update(ctx context.Context, t *ExecutionTask) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE execution_task SET status=$2, status_before_locking=$3, assigned_nurse_id=$4,
			actual_start_at=$5, executor_id=$6, actual_end_at=$7, result_payload=$8, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Status, t.StatusBeforeLocking, t.AssignedNurseID,
		t.ActualStartAt, t.ExecutorID, t.ActualEndAt, t.ResultPayload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *taskRepoPG) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*ExecutionTask, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+taskCols+` FROM execution_task WHERE order_id = $1 ORDER BY planned_start_at ASC, created_at ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ExecutionTask
	for rows.Next() {
		t, err := r.scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, nil
}

func (r *taskRepoPG) DeleteUnexecuted(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		DELETE FROM execution_task
		WHERE order_id = $1 AND status IN ($2, $3)
		RETURNING id`, orderID, TaskPending, TaskApplying)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *taskRepoPG) ListByNurse(ctx context.Context, nurseID uuid.UUID, from, to time.Time, limit, offset int) ([]*ExecutionTask, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM execution_task
		WHERE assigned_nurse_id = $1 AND planned_start_at >= $2 AND planned_start_at < $3`,
		nurseID, from, to).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+taskCols+` FROM execution_task
		WHERE assigned_nurse_id = $1 AND planned_start_at >= $2 AND planned_start_at < $3
		ORDER BY planned_start_at ASC LIMIT $4 OFFSET $5`,
		nurseID, from, to, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ExecutionTask
	for rows.Next() {
		t, err := r.scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, nil
}
