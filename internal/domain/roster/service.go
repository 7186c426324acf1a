package roster

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service manages the nurse duty roster and answers "who is responsible for
// this patient at this instant".
type Service struct {
	shifts ShiftRepository
}

func NewService(shifts ShiftRepository) *Service {
	return &Service{shifts: shifts}
}

func (s *Service) CreateShift(ctx context.Context, sh *Shift) error {
	if err := sh.Validate(); err != nil {
		return err
	}
	return s.shifts.Create(ctx, sh)
}

func (s *Service) GetShift(ctx context.Context, id uuid.UUID) (*Shift, error) {
	return s.shifts.GetByID(ctx, id)
}

func (s *Service) DeleteShift(ctx context.Context, id uuid.UUID) error {
	return s.shifts.Delete(ctx, id)
}

func (s *Service) ListShiftsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Shift, int, error) {
	return s.shifts.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListShiftsByNurse(ctx context.Context, nurseID uuid.UUID, limit, offset int) ([]*Shift, int, error) {
	return s.shifts.ListByNurse(ctx, nurseID, limit, offset)
}

// ResolveResponsibleNurse returns the nurse covering the patient at the given
// instant, or nil when nobody is on duty. When shifts overlap, the one that
// started latest wins: the most recent handover is authoritative.
func (s *Service) ResolveResponsibleNurse(ctx context.Context, patientID uuid.UUID, at time.Time) (*uuid.UUID, error) {
	covering, err := s.shifts.ListCovering(ctx, patientID, at)
	if err != nil {
		return nil, err
	}
	if len(covering) == 0 {
		return nil, nil
	}
	winner := covering[0]
	for _, sh := range covering[1:] {
		if sh.StartAt.After(winner.StartAt) {
			winner = sh
		}
	}
	nurseID := winner.NurseID
	return &nurseID, nil
}
