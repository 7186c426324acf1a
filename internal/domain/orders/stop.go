package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Stop protocol: a doctor requests a stop with a cut point; every unfinished
// task strictly after the cut is frozen (order-stopping) with its prior
// status snapshotted. A nurse then either confirms (frozen tasks become
// stopped) or rejects (each task is restored to its snapshot exactly). The
// order row lock taken by GetForUpdate serializes request/confirm/reject for
// one order, so exactly one outcome wins.

// RequestStop freezes all unfinished tasks strictly after the cut point and
// moves the order to PendingStop. The cut-point task itself keeps running.
func (s *Service) RequestStop(ctx context.Context, orderID, doctorID uuid.UUID, reason string, cutAfterTaskID uuid.UUID) ([]uuid.UUID, error) {
	now := s.clock.Now()
	var locked []uuid.UUID
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status == StatusPendingStop {
			return ErrStopAlreadyPending
		}
		if o.Status != StatusAccepted && o.Status != StatusInProgress {
			return fmt.Errorf("%w: order is %s", ErrIllegalStopTransition, o.Status)
		}

		tasks, err := s.tasks.ListByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		cut := -1
		for i, t := range tasks {
			if t.ID == cutAfterTaskID {
				cut = i
				break
			}
		}
		if cut < 0 {
			return fmt.Errorf("%w: %s", ErrCutPointNotFound, cutAfterTaskID)
		}

		for _, t := range tasks[cut+1:] {
			if t.Status == TaskCompleted || t.Status == TaskStopped {
				continue
			}
			prior := t.Status
			t.StatusBeforeLocking = &prior
			t.Status = TaskOrderStopping
			if err := s.tasks.Update(ctx, t); err != nil {
				return fmt.Errorf("freeze task %s: %w", t.ID, err)
			}
			locked = append(locked, t.ID)
		}

		o.Status = StatusPendingStop
		o.StopReason = &reason
		o.StopRequestedAt = &now
		o.StopRequestedBy = &doctorID
		o.StopRejectReason = nil
		return s.orders.Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, "order.stop-requested", doctorID, orderID, locked, map[string]interface{}{"reason": reason})
	return locked, nil
}

// ConfirmStop commits a pending stop: every frozen task becomes stopped and
// the order becomes stopped. Snapshots are retained for audit.
func (s *Service) ConfirmStop(ctx context.Context, orderID, nurseID uuid.UUID) error {
	now := s.clock.Now()
	var stopped []uuid.UUID
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusPendingStop {
			return fmt.Errorf("%w: order is %s, not pending-stop", ErrIllegalStopTransition, o.Status)
		}

		tasks, err := s.tasks.ListByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if t.Status != TaskOrderStopping {
				continue
			}
			t.Status = TaskStopped
			if err := s.tasks.Update(ctx, t); err != nil {
				return fmt.Errorf("stop task %s: %w", t.ID, err)
			}
			stopped = append(stopped, t.ID)
		}

		o.Status = StatusStopped
		o.StopConfirmedAt = &now
		o.StopConfirmedBy = &nurseID
		return s.orders.Update(ctx, o)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, "order.stop-confirmed", nurseID, orderID, stopped, nil)
	return nil
}

// RejectStop reverses a pending stop: every frozen task is restored to its
// snapshotted status, the snapshot is cleared, and the order returns to
// InProgress with a reject-audit trail.
func (s *Service) RejectStop(ctx context.Context, orderID, nurseID uuid.UUID, reason string) ([]uuid.UUID, error) {
	var restored []uuid.UUID
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusPendingStop {
			return fmt.Errorf("%w: order is %s, not pending-stop", ErrIllegalStopTransition, o.Status)
		}

		tasks, err := s.tasks.ListByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if t.Status != TaskOrderStopping {
				continue
			}
			if t.StatusBeforeLocking == nil {
				return fmt.Errorf("task %s is frozen without a status snapshot", t.ID)
			}
			t.Status = *t.StatusBeforeLocking
			t.StatusBeforeLocking = nil
			if err := s.tasks.Update(ctx, t); err != nil {
				return fmt.Errorf("restore task %s: %w", t.ID, err)
			}
			restored = append(restored, t.ID)
		}

		o.Status = StatusInProgress
		o.StopRejectReason = &reason
		o.StopConfirmedAt = nil
		o.StopConfirmedBy = nil
		return s.orders.Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, "order.stop-rejected", nurseID, orderID, restored, map[string]interface{}{"reason": reason})
	return restored, nil
}
