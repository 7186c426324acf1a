package orders

import "fmt"

// orderTransitions defines the legal status transitions for a clinical order.
// Stopped, Completed and Cancelled are terminal; Rejected can only be
// resubmitted by the originating doctor.
var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusDraft:          {StatusPendingReceive},
	StatusPendingReceive: {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted:       {StatusInProgress, StatusPendingStop, StatusCompleted},
	StatusInProgress:     {StatusPendingStop, StatusCompleted},
	StatusPendingStop:    {StatusStopped, StatusInProgress},
	StatusRejected:       {StatusPendingReceive},
	StatusStopped:        {},
	StatusCompleted:      {},
	StatusCancelled:      {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateOrderTransition returns a typed error when the move is illegal.
func ValidateOrderTransition(from, to OrderStatus) error {
	if _, ok := orderTransitions[from]; !ok {
		return fmt.Errorf("%w: unknown status %s", ErrIllegalOrderTransition, from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalOrderTransition, from, to)
	}
	return nil
}

// taskTransitions defines the forward moves available to execution tasks
// through the public transition API. Freezing (-> order-stopping) and
// unfreezing are reserved for the stop coordinator and are deliberately
// absent here.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:          {TaskInProgress, TaskIncomplete},
	TaskApplying:         {TaskApplied, TaskIncomplete},
	TaskApplied:          {TaskAppliedConfirmed, TaskPendingReturn},
	TaskAppliedConfirmed: {TaskInProgress, TaskPendingReturn},
	TaskInProgress:       {TaskCompleted, TaskIncomplete},
	TaskOrderStopping:    {},
	TaskCompleted:        {},
	TaskStopped:          {},
	TaskIncomplete:       {},
	TaskPendingReturn:    {},
}

// verificationOnly lists the statuses reachable solely by Verification tasks.
var verificationOnly = map[TaskStatus]bool{
	TaskApplying:         true,
	TaskApplied:          true,
	TaskAppliedConfirmed: true,
	TaskPendingReturn:    true,
}

// ValidateTaskTransition checks a task status move against the task state
// machine, gated by category: only Verification tasks traverse the
// Applying/Applied/AppliedConfirmed sub-chain.
func ValidateTaskTransition(category TaskCategory, from, to TaskStatus) error {
	if _, ok := taskTransitions[from]; !ok {
		return fmt.Errorf("%w: unknown status %s", ErrIllegalTaskTransition, from)
	}
	if category != CategoryVerification && verificationOnly[to] {
		return fmt.Errorf("%w: %s is reserved for verification tasks", ErrIllegalTaskTransition, to)
	}
	for _, s := range taskTransitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTaskTransition, from, to)
}

// InitialTaskStatus returns the status a freshly generated task is born with.
// Verification tasks await an external fulfillment request first.
func InitialTaskStatus(category TaskCategory) TaskStatus {
	if category == CategoryVerification {
		return TaskApplying
	}
	return TaskPending
}
