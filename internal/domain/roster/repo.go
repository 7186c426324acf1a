package roster

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrShiftNotFound = errors.New("shift not found")

type ShiftRepository interface {
	Create(ctx context.Context, s *Shift) error
	GetByID(ctx context.Context, id uuid.UUID) (*Shift, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// ListCovering returns the shifts for a patient that are on duty at the
	// given instant.
	ListCovering(ctx context.Context, patientID uuid.UUID, at time.Time) ([]*Shift, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Shift, int, error)
	ListByNurse(ctx context.Context, nurseID uuid.UUID, limit, offset int) ([]*Shift, int, error)
}
