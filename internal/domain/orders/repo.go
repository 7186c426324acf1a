package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type OrderRepository interface {
	Create(ctx context.Context, o *ClinicalOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*ClinicalOrder, error)
	// GetForUpdate loads the order and, inside a transaction, takes a row lock
	// so concurrent stop/generation requests for the same order serialize.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*ClinicalOrder, error)
	Update(ctx context.Context, o *ClinicalOrder) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*ClinicalOrder, int, error)
	ListByStatus(ctx context.Context, status OrderStatus, limit, offset int) ([]*ClinicalOrder, int, error)
}

type TaskRepository interface {
	CreateBatch(ctx context.Context, tasks []*ExecutionTask) error
	GetByID(ctx context.Context, id uuid.UUID) (*ExecutionTask, error)
	Update(ctx context.Context, t *ExecutionTask) error
	// ListByOrder returns every task for the order ordered by planned start
	// time ascending, ties broken by creation time.
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*ExecutionTask, error)
	// DeleteUnexecuted removes tasks still in their birth status (pending or
	// applying) and returns their IDs; started or handled tasks are kept.
	DeleteUnexecuted(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error)
	ListByNurse(ctx context.Context, nurseID uuid.UUID, from, to time.Time, limit, offset int) ([]*ExecutionTask, int, error)
}

// TxRunner executes fn inside one atomic unit of work. Repositories called
// with the context fn receives join that same transaction.
type TxRunner interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// NurseAssignmentResolver looks up the nurse on duty for a patient at a given
// time. A nil result with no error is the expected "nobody on duty" outcome.
type NurseAssignmentResolver interface {
	ResolveResponsibleNurse(ctx context.Context, patientID uuid.UUID, at time.Time) (*uuid.UUID, error)
}
