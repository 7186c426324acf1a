package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderType identifies the clinical specialty of an order.
type OrderType string

const (
	OrderMedication OrderType = "medication"
	OrderOperation  OrderType = "operation"
	OrderSurgical   OrderType = "surgical"
	OrderInspection OrderType = "inspection"
	OrderDischarge  OrderType = "discharge"
)

var validOrderTypes = map[OrderType]bool{
	OrderMedication: true, OrderOperation: true, OrderSurgical: true,
	OrderInspection: true, OrderDischarge: true,
}

// OrderStatus is the lifecycle state of a clinical order.
type OrderStatus string

const (
	StatusDraft          OrderStatus = "draft"
	StatusPendingReceive OrderStatus = "pending-receive"
	StatusAccepted       OrderStatus = "accepted"
	StatusInProgress     OrderStatus = "in-progress"
	StatusPendingStop    OrderStatus = "pending-stop"
	StatusStopped        OrderStatus = "stopped"
	StatusCompleted      OrderStatus = "completed"
	StatusRejected       OrderStatus = "rejected"
	StatusCancelled      OrderStatus = "cancelled"
)

// TimingPolicy discriminates the four timing configuration shapes.
type TimingPolicy string

const (
	PolicyImmediate TimingPolicy = "immediate"
	PolicySpecific  TimingPolicy = "specific"
	PolicyCyclic    TimingPolicy = "cyclic"
	PolicySlots     TimingPolicy = "slots"
)

// TimingConfig is the closed set of timing shapes an order can carry.
// Exactly one concrete type is populated per order; the unexported marker
// method keeps the set closed to this package.
type TimingConfig interface {
	Policy() TimingPolicy
	timingConfig()
}

// ImmediateTiming means "one task at submission time".
type ImmediateTiming struct{}

func (ImmediateTiming) Policy() TimingPolicy { return PolicyImmediate }
func (ImmediateTiming) timingConfig()        {}

// SpecificTiming means "one task at an explicit timestamp".
type SpecificTiming struct {
	StartAt time.Time `json:"start_at"`
}

func (SpecificTiming) Policy() TimingPolicy { return PolicySpecific }
func (SpecificTiming) timingConfig()        {}

// CyclicTiming repeats a fixed-interval sequence of tasks every IntervalDays
// days, bounded by the order's planned end.
type CyclicTiming struct {
	StartAt       time.Time `json:"start_at"`
	IntervalHours int       `json:"interval_hours"`
	IntervalDays  int       `json:"interval_days"`
}

func (CyclicTiming) Policy() TimingPolicy { return PolicyCyclic }
func (CyclicTiming) timingConfig()        {}

// SlotTiming generates one task per catalog slot matched by SlotsMask for
// each covered date, stepping by IntervalDays.
type SlotTiming struct {
	StartDate    time.Time `json:"start_date"`
	SlotsMask    SlotMask  `json:"slots_mask"`
	IntervalDays int       `json:"interval_days"`
}

func (SlotTiming) Policy() TimingPolicy { return PolicySlots }
func (SlotTiming) timingConfig()        {}

// Timing wraps a TimingConfig for JSON transport using a policy discriminator:
//
//	{"policy": "cyclic", "start_at": "...", "interval_hours": 6, "interval_days": 1}
type Timing struct {
	Config TimingConfig
}

type timingEnvelope struct {
	Policy        TimingPolicy `json:"policy"`
	StartAt       *time.Time   `json:"start_at,omitempty"`
	StartDate     *time.Time   `json:"start_date,omitempty"`
	IntervalHours *int         `json:"interval_hours,omitempty"`
	IntervalDays  *int         `json:"interval_days,omitempty"`
	SlotsMask     *SlotMask    `json:"slots_mask,omitempty"`
}

func (t Timing) MarshalJSON() ([]byte, error) {
	if t.Config == nil {
		return []byte("null"), nil
	}
	env := timingEnvelope{Policy: t.Config.Policy()}
	switch c := t.Config.(type) {
	case ImmediateTiming:
	case SpecificTiming:
		env.StartAt = &c.StartAt
	case CyclicTiming:
		env.StartAt = &c.StartAt
		env.IntervalHours = &c.IntervalHours
		env.IntervalDays = &c.IntervalDays
	case SlotTiming:
		env.StartDate = &c.StartDate
		env.SlotsMask = &c.SlotsMask
		env.IntervalDays = &c.IntervalDays
	default:
		return nil, fmt.Errorf("unknown timing config %T", t.Config)
	}
	return json.Marshal(env)
}

func (t *Timing) UnmarshalJSON(data []byte) error {
	var env timingEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	cfg, err := env.toConfig()
	if err != nil {
		return err
	}
	t.Config = cfg
	return nil
}

func (env timingEnvelope) toConfig() (TimingConfig, error) {
	switch env.Policy {
	case PolicyImmediate:
		return ImmediateTiming{}, nil
	case PolicySpecific:
		if env.StartAt == nil {
			return nil, fmt.Errorf("%w: specific timing requires start_at", ErrInvalidTimingConfig)
		}
		return SpecificTiming{StartAt: *env.StartAt}, nil
	case PolicyCyclic:
		if env.StartAt == nil || env.IntervalHours == nil || env.IntervalDays == nil {
			return nil, fmt.Errorf("%w: cyclic timing requires start_at, interval_hours and interval_days", ErrInvalidTimingConfig)
		}
		return CyclicTiming{StartAt: *env.StartAt, IntervalHours: *env.IntervalHours, IntervalDays: *env.IntervalDays}, nil
	case PolicySlots:
		if env.StartDate == nil || env.SlotsMask == nil || env.IntervalDays == nil {
			return nil, fmt.Errorf("%w: slot timing requires start_date, slots_mask and interval_days", ErrInvalidTimingConfig)
		}
		return SlotTiming{StartDate: *env.StartDate, SlotsMask: *env.SlotsMask, IntervalDays: *env.IntervalDays}, nil
	default:
		return nil, fmt.Errorf("%w: unknown timing policy %q", ErrInvalidTimingConfig, env.Policy)
	}
}

// ClinicalOrder maps to the clinical_order table.
type ClinicalOrder struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	PatientID        uuid.UUID   `db:"patient_id" json:"patient_id"`
	DoctorID         uuid.UUID   `db:"doctor_id" json:"doctor_id"`
	AssignedNurseID  *uuid.UUID  `db:"assigned_nurse_id" json:"assigned_nurse_id,omitempty"`
	OrderType        OrderType   `db:"order_type" json:"order_type"`
	IsLongTerm       bool        `db:"is_long_term" json:"is_long_term"`
	Status           OrderStatus `db:"status" json:"status"`
	Timing           Timing      `db:"-" json:"timing"`
	PlannedEndAt     time.Time   `db:"planned_end_at" json:"planned_end_at"`
	StopReason       *string     `db:"stop_reason" json:"stop_reason,omitempty"`
	StopRequestedAt  *time.Time  `db:"stop_requested_at" json:"stop_requested_at,omitempty"`
	StopRequestedBy  *uuid.UUID  `db:"stop_requested_by" json:"stop_requested_by,omitempty"`
	StopConfirmedAt  *time.Time  `db:"stop_confirmed_at" json:"stop_confirmed_at,omitempty"`
	StopConfirmedBy  *uuid.UUID  `db:"stop_confirmed_by" json:"stop_confirmed_by,omitempty"`
	StopRejectReason *string     `db:"stop_reject_reason" json:"stop_reject_reason,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// Validate checks the structural invariants of a new order: a known type, a
// timing shape that matches the long-term flag, and a planned end after the
// creation time.
func (o *ClinicalOrder) Validate(now time.Time) error {
	if !validOrderTypes[o.OrderType] {
		return fmt.Errorf("invalid order type: %s", o.OrderType)
	}
	if o.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if o.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if o.Timing.Config == nil {
		return fmt.Errorf("%w: timing configuration is required", ErrInvalidTimingConfig)
	}
	if !o.PlannedEndAt.After(now) {
		return fmt.Errorf("planned_end_at must be after the creation time")
	}
	switch o.Timing.Config.Policy() {
	case PolicyImmediate, PolicySpecific:
		if o.IsLongTerm {
			return fmt.Errorf("%w: %s timing is only valid for short-term orders", ErrInvalidTimingConfig, o.Timing.Config.Policy())
		}
	case PolicyCyclic, PolicySlots:
		if !o.IsLongTerm {
			return fmt.Errorf("%w: %s timing is only valid for long-term orders", ErrInvalidTimingConfig, o.Timing.Config.Policy())
		}
	}
	return nil
}

// TaskCategory identifies the execution-tracking flavor of a task.
type TaskCategory string

const (
	CategoryImmediate             TaskCategory = "immediate"
	CategoryDuration              TaskCategory = "duration"
	CategoryResultPending         TaskCategory = "result-pending"
	CategoryVerification          TaskCategory = "verification"
	CategoryDischargeConfirmation TaskCategory = "discharge-confirmation"
)

// TaskStatus is the lifecycle state of an execution task. Not every value is
// reachable by every category: the Applying chain belongs to Verification
// tasks only.
type TaskStatus string

const (
	TaskPending          TaskStatus = "pending"
	TaskApplying         TaskStatus = "applying"
	TaskApplied          TaskStatus = "applied"
	TaskAppliedConfirmed TaskStatus = "applied-confirmed"
	TaskInProgress       TaskStatus = "in-progress"
	TaskCompleted        TaskStatus = "completed"
	TaskOrderStopping    TaskStatus = "order-stopping"
	TaskStopped          TaskStatus = "stopped"
	TaskIncomplete       TaskStatus = "incomplete"
	TaskPendingReturn    TaskStatus = "pending-return"
)

// IsTerminal reports whether a task in this status can never advance again.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskStopped, TaskIncomplete, TaskPendingReturn:
		return true
	}
	return false
}

// ExecutionTask maps to the execution_task table: one concrete, dated unit of
// work derived from a clinical order.
type ExecutionTask struct {
	ID                  uuid.UUID        `db:"id" json:"id"`
	OrderID             uuid.UUID        `db:"order_id" json:"order_id"`
	PatientID           uuid.UUID        `db:"patient_id" json:"patient_id"`
	Category            TaskCategory     `db:"category" json:"category"`
	Status              TaskStatus       `db:"status" json:"status"`
	StatusBeforeLocking *TaskStatus      `db:"status_before_locking" json:"status_before_locking,omitempty"`
	PlannedStartAt      time.Time        `db:"planned_start_at" json:"planned_start_at"`
	AssignedNurseID     *uuid.UUID       `db:"assigned_nurse_id" json:"assigned_nurse_id,omitempty"`
	ActualStartAt       *time.Time       `db:"actual_start_at" json:"actual_start_at,omitempty"`
	ExecutorID          *uuid.UUID       `db:"executor_id" json:"executor_id,omitempty"`
	ActualEndAt         *time.Time       `db:"actual_end_at" json:"actual_end_at,omitempty"`
	Payload             json.RawMessage  `db:"payload" json:"payload,omitempty"`
	ResultPayload       *json.RawMessage `db:"result_payload" json:"result_payload,omitempty"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}
