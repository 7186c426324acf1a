package roster

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Shift maps to the nurse_shift table: one nurse covering one patient for a
// bounded interval.
type Shift struct {
	ID        uuid.UUID `db:"id" json:"id"`
	NurseID   uuid.UUID `db:"nurse_id" json:"nurse_id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	StartAt   time.Time `db:"start_at" json:"start_at"`
	EndAt     time.Time `db:"end_at" json:"end_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Covers reports whether the shift is on duty at the given instant. The end
// bound is exclusive so back-to-back shifts never overlap at the handover.
func (s *Shift) Covers(at time.Time) bool {
	return !at.Before(s.StartAt) && at.Before(s.EndAt)
}

func (s *Shift) Validate() error {
	if s.NurseID == uuid.Nil {
		return fmt.Errorf("nurse_id is required")
	}
	if s.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if !s.EndAt.After(s.StartAt) {
		return fmt.Errorf("end_at must be after start_at")
	}
	return nil
}
