package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cpoe/cpoe/internal/platform/audit"
)

// Service orchestrates the order lifecycle and its execution tasks. Every
// multi-record mutation runs inside one transaction supplied by the TxRunner,
// and every mutating operation for a given order serializes on the order row
// via OrderRepository.GetForUpdate.
type Service struct {
	orders OrderRepository
	tasks  TaskRepository
	tx     TxRunner
	roster NurseAssignmentResolver
	audit  audit.Emitter
	clock  Clock
}

func NewService(orders OrderRepository, tasks TaskRepository, tx TxRunner, roster NurseAssignmentResolver, emitter audit.Emitter, clock Clock) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	return &Service{orders: orders, tasks: tasks, tx: tx, roster: roster, audit: emitter, clock: clock}
}

func (s *Service) emit(ctx context.Context, kind string, actorID, orderID uuid.UUID, taskIDs []uuid.UUID, detail map[string]interface{}) {
	if s.audit == nil {
		return
	}
	e := audit.Entry{Kind: kind, OccurredAt: s.clock.Now(), TaskIDs: taskIDs, Detail: detail}
	if actorID != uuid.Nil {
		e.ActorID = &actorID
	}
	if orderID != uuid.Nil {
		e.OrderID = &orderID
	}
	s.audit.Emit(ctx, e)
}

// -- Order lifecycle --

// CreateOrder validates and persists a new clinical order in PendingReceive.
func (s *Service) CreateOrder(ctx context.Context, o *ClinicalOrder) error {
	now := s.clock.Now()
	if err := o.Validate(now); err != nil {
		return err
	}
	o.Status = StatusPendingReceive
	if err := s.orders.Create(ctx, o); err != nil {
		return err
	}
	s.emit(ctx, "order.created", o.DoctorID, o.ID, nil, map[string]interface{}{"order_type": o.OrderType})
	return nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*ClinicalOrder, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *Service) ListOrdersByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*ClinicalOrder, int, error) {
	return s.orders.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListOrdersByStatus(ctx context.Context, status OrderStatus, limit, offset int) ([]*ClinicalOrder, int, error) {
	return s.orders.ListByStatus(ctx, status, limit, offset)
}

// AcknowledgeOrder is the nurse signing for a pending order; the order becomes
// executable and the nurse becomes its responsible nurse.
func (s *Service) AcknowledgeOrder(ctx context.Context, orderID, nurseID uuid.UUID) error {
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := ValidateOrderTransition(o.Status, StatusAccepted); err != nil {
			return err
		}
		o.Status = StatusAccepted
		o.AssignedNurseID = &nurseID
		return s.orders.Update(ctx, o)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, "order.acknowledged", nurseID, orderID, nil, nil)
	return nil
}

// RejectOrder is the nurse declining a pending order.
func (s *Service) RejectOrder(ctx context.Context, orderID, nurseID uuid.UUID, reason string) error {
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := ValidateOrderTransition(o.Status, StatusRejected); err != nil {
			return err
		}
		o.Status = StatusRejected
		return s.orders.Update(ctx, o)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, "order.rejected", nurseID, orderID, nil, map[string]interface{}{"reason": reason})
	return nil
}

// ResubmitOrder re-enters a rejected order into PendingReceive. Only the
// originating doctor may resubmit.
func (s *Service) ResubmitOrder(ctx context.Context, orderID, doctorID uuid.UUID) error {
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.DoctorID != doctorID {
			return fmt.Errorf("only the originating doctor may resubmit order %s", orderID)
		}
		if err := ValidateOrderTransition(o.Status, StatusPendingReceive); err != nil {
			return err
		}
		o.Status = StatusPendingReceive
		return s.orders.Update(ctx, o)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, "order.resubmitted", doctorID, orderID, nil, nil)
	return nil
}

// CancelOrder withdraws an order nobody has signed for yet. Orders past
// acknowledgement must go through the stop protocol instead.
func (s *Service) CancelOrder(ctx context.Context, orderID, doctorID uuid.UUID) error {
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := ValidateOrderTransition(o.Status, StatusCancelled); err != nil {
			return err
		}
		o.Status = StatusCancelled
		return s.orders.Update(ctx, o)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, "order.cancelled", doctorID, orderID, nil, nil)
	return nil
}

// -- Task generation --

// GenerateTasks runs the generation engine for the order and persists the
// resulting task set atomically. It refuses with ErrDuplicateGeneration while
// any earlier task of the order is still unfinished; callers roll those back
// with RollbackUnexecuted first. Unassigned tasks are bound to the nurse on
// duty at their planned start, when the roster has one.
func (s *Service) GenerateTasks(ctx context.Context, orderID uuid.UUID) ([]*ExecutionTask, error) {
	now := s.clock.Now()
	var created []*ExecutionTask
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		switch o.Status {
		case StatusPendingReceive, StatusAccepted, StatusInProgress:
		default:
			return fmt.Errorf("%w: cannot generate tasks in status %s", ErrIllegalOrderTransition, o.Status)
		}
		existing, err := s.tasks.ListByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		for _, t := range existing {
			if !t.Status.IsTerminal() {
				return fmt.Errorf("%w: task %s is %s", ErrDuplicateGeneration, t.ID, t.Status)
			}
		}
		drafts, err := GenerateTasks(o, now)
		if err != nil {
			return err
		}
		for _, d := range drafts {
			d.ID = uuid.New()
			if d.AssignedNurseID == nil && s.roster != nil {
				nurseID, err := s.roster.ResolveResponsibleNurse(ctx, o.PatientID, d.PlannedStartAt)
				if err != nil {
					return fmt.Errorf("resolve nurse for task at %s: %w", d.PlannedStartAt.Format(time.RFC3339), err)
				}
				d.AssignedNurseID = nurseID
			}
		}
		if err := s.tasks.CreateBatch(ctx, drafts); err != nil {
			return err
		}
		created = drafts
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, "tasks.generated", uuid.Nil, orderID, taskIDs(created), map[string]interface{}{"count": len(created)})
	return created, nil
}

// RollbackUnexecuted deletes the order's tasks that never started (pending or
// applying), clearing the way for regeneration.
func (s *Service) RollbackUnexecuted(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	var removed []uuid.UUID
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.orders.GetForUpdate(ctx, orderID); err != nil {
			return err
		}
		ids, err := s.tasks.DeleteUnexecuted(ctx, orderID)
		if err != nil {
			return err
		}
		removed = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, "tasks.rolled-back", uuid.Nil, orderID, removed, nil)
	return removed, nil
}

// -- Task execution tracking --

func (s *Service) GetTask(ctx context.Context, id uuid.UUID) (*ExecutionTask, error) {
	return s.tasks.GetByID(ctx, id)
}

func (s *Service) ListTasksByOrder(ctx context.Context, orderID uuid.UUID) ([]*ExecutionTask, error) {
	return s.tasks.ListByOrder(ctx, orderID)
}

func (s *Service) ListTasksByNurse(ctx context.Context, nurseID uuid.UUID, from, to time.Time, limit, offset int) ([]*ExecutionTask, int, error) {
	return s.tasks.ListByNurse(ctx, nurseID, from, to, limit, offset)
}

// TransitionTask advances one task through its state machine. Frozen tasks
// (order-stopping) only move through the stop coordinator. Completing the
// last open task completes the order.
func (s *Service) TransitionTask(ctx context.Context, taskID uuid.UUID, newStatus TaskStatus, actorID uuid.UUID, resultPayload json.RawMessage) (*ExecutionTask, error) {
	now := s.clock.Now()
	var updated *ExecutionTask
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.tasks.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		o, err := s.orders.GetForUpdate(ctx, t.OrderID)
		if err != nil {
			return err
		}
		// The first read ran before the order lock was held; a stop request
		// may have frozen the task in between. Re-read under the lock so the
		// transition validates against the committed status.
		t, err = s.tasks.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		if err := ValidateTaskTransition(t.Category, t.Status, newStatus); err != nil {
			return err
		}
		if resultPayload != nil && t.Category != CategoryResultPending {
			return fmt.Errorf("%w: result payload is only valid for result-pending tasks", ErrIllegalTaskTransition)
		}

		t.Status = newStatus
		switch {
		case newStatus == TaskInProgress:
			t.ActualStartAt = &now
			t.ExecutorID = &actorID
		case newStatus.IsTerminal():
			t.ActualEndAt = &now
			if newStatus == TaskCompleted && resultPayload != nil {
				t.ResultPayload = &resultPayload
			}
		}
		if err := s.tasks.Update(ctx, t); err != nil {
			return err
		}

		if newStatus == TaskInProgress && o.Status == StatusAccepted {
			o.Status = StatusInProgress
			if err := s.orders.Update(ctx, o); err != nil {
				return err
			}
		}
		if newStatus.IsTerminal() {
			if err := s.completeOrderIfDone(ctx, o); err != nil {
				return err
			}
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, "task.transitioned", actorID, updated.OrderID, []uuid.UUID{taskID}, map[string]interface{}{"status": newStatus})
	return updated, nil
}

// completeOrderIfDone marks the order Completed once every task is terminal,
// unless a stop was requested.
func (s *Service) completeOrderIfDone(ctx context.Context, o *ClinicalOrder) error {
	if o.Status != StatusAccepted && o.Status != StatusInProgress {
		return nil
	}
	all, err := s.tasks.ListByOrder(ctx, o.ID)
	if err != nil {
		return err
	}
	for _, t := range all {
		if !t.Status.IsTerminal() {
			return nil
		}
	}
	o.Status = StatusCompleted
	return s.orders.Update(ctx, o)
}

func taskIDs(tasks []*ExecutionTask) []uuid.UUID {
	ids := make([]uuid.UUID, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
