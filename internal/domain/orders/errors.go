package orders

import "errors"

// Errors returned by the order scheduling core. Handlers surface these kinds
// verbatim rather than collapsing them into generic failures.
var (
	// ErrInvalidTimingConfig marks a generation input whose timing fields are
	// missing, malformed, or inconsistent with the long-term flag.
	ErrInvalidTimingConfig = errors.New("invalid timing configuration")

	// ErrAllTimesInPast means generation produced no future work.
	ErrAllTimesInPast = errors.New("all planned times are in the past")

	// ErrDuplicateGeneration means the order still has unfinished tasks from a
	// previous generation; callers must roll those back first.
	ErrDuplicateGeneration = errors.New("order already has unfinished tasks")

	// ErrIllegalStopTransition means the order is not in a stoppable state.
	ErrIllegalStopTransition = errors.New("order is not in a stoppable state")

	// ErrCutPointNotFound means the stop cut point does not belong to the order.
	ErrCutPointNotFound = errors.New("cut point task not found for order")

	// ErrStopAlreadyPending means a stop request is already awaiting
	// confirmation for this order.
	ErrStopAlreadyPending = errors.New("a stop request is already pending")

	// ErrOrderNotFound / ErrTaskNotFound are returned by repositories.
	ErrOrderNotFound = errors.New("order not found")
	ErrTaskNotFound  = errors.New("task not found")

	// ErrIllegalOrderTransition / ErrIllegalTaskTransition mark status changes
	// the respective state machine forbids.
	ErrIllegalOrderTransition = errors.New("illegal order status transition")
	ErrIllegalTaskTransition  = errors.New("illegal task status transition")
)
