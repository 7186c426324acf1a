package orders

import (
	"encoding/json"
	"fmt"
	"time"
)

const day = 24 * time.Hour

// taskPayload is the opaque structured data attached to a task at generation
// time. It is serialized into ExecutionTask.Payload and decoded only by the
// execution-tracking flow, never by the scheduler.
type taskPayload struct {
	OrderType OrderType `json:"order_type"`
	Sequence  int       `json:"sequence"`
	SlotName  string    `json:"slot_name,omitempty"`
}

// GenerateTasks turns an order's timing configuration into an ordered list of
// execution-task drafts. It is pure: all time comparisons use the supplied
// "now". Drafts carry no ID; the orchestrator assigns IDs when persisting.
//
// Past-time filtering: a single draft in the past fails the whole call with
// ErrAllTimesInPast; with multiple drafts, past occurrences are silently
// dropped, and the call fails only if nothing remains.
func GenerateTasks(o *ClinicalOrder, now time.Time) ([]*ExecutionTask, error) {
	if err := validateTiming(o); err != nil {
		return nil, err
	}

	var times []time.Time
	var names []string
	switch cfg := o.Timing.Config.(type) {
	case ImmediateTiming:
		times = []time.Time{now}
	case SpecificTiming:
		times = []time.Time{cfg.StartAt}
	case CyclicTiming:
		times = cyclicTimes(cfg, o.PlannedEndAt)
	case SlotTiming:
		times, names = slotTimes(cfg, o.PlannedEndAt)
	}

	multi := len(times) > 1
	category := categoryFor(o.OrderType)
	var drafts []*ExecutionTask
	seq := 0
	for i, at := range times {
		if at.Before(now) {
			if !multi {
				return nil, fmt.Errorf("%w: planned time %s precedes %s", ErrAllTimesInPast, at.Format(time.RFC3339), now.Format(time.RFC3339))
			}
			continue
		}
		seq++
		payload := taskPayload{OrderType: o.OrderType, Sequence: seq}
		if names != nil {
			payload.SlotName = names[i]
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode task payload: %w", err)
		}
		drafts = append(drafts, &ExecutionTask{
			OrderID:         o.ID,
			PatientID:       o.PatientID,
			Category:        category,
			Status:          InitialTaskStatus(category),
			PlannedStartAt:  at,
			AssignedNurseID: o.AssignedNurseID,
			Payload:         raw,
		})
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: no occurrence falls at or after %s", ErrAllTimesInPast, now.Format(time.RFC3339))
	}
	return drafts, nil
}

func validateTiming(o *ClinicalOrder) error {
	if o.Timing.Config == nil {
		return fmt.Errorf("%w: timing configuration is required", ErrInvalidTimingConfig)
	}
	switch cfg := o.Timing.Config.(type) {
	case ImmediateTiming:
		if o.IsLongTerm {
			return fmt.Errorf("%w: immediate timing on a long-term order", ErrInvalidTimingConfig)
		}
	case SpecificTiming:
		if o.IsLongTerm {
			return fmt.Errorf("%w: specific timing on a long-term order", ErrInvalidTimingConfig)
		}
		if cfg.StartAt.IsZero() {
			return fmt.Errorf("%w: start_at is required", ErrInvalidTimingConfig)
		}
	case CyclicTiming:
		if !o.IsLongTerm {
			return fmt.Errorf("%w: cyclic timing on a short-term order", ErrInvalidTimingConfig)
		}
		if cfg.StartAt.IsZero() {
			return fmt.Errorf("%w: start_at is required", ErrInvalidTimingConfig)
		}
		if cfg.IntervalHours <= 0 {
			return fmt.Errorf("%w: interval_hours must be positive", ErrInvalidTimingConfig)
		}
		if cfg.IntervalDays < 1 {
			return fmt.Errorf("%w: interval_days must be at least 1", ErrInvalidTimingConfig)
		}
	case SlotTiming:
		if !o.IsLongTerm {
			return fmt.Errorf("%w: slot timing on a short-term order", ErrInvalidTimingConfig)
		}
		if cfg.StartDate.IsZero() {
			return fmt.Errorf("%w: start_date is required", ErrInvalidTimingConfig)
		}
		if !cfg.SlotsMask.Valid() {
			return fmt.Errorf("%w: slots_mask %d matches no catalog slot", ErrInvalidTimingConfig, cfg.SlotsMask)
		}
		if cfg.IntervalDays < 1 {
			return fmt.Errorf("%w: interval_days must be at least 1", ErrInvalidTimingConfig)
		}
	default:
		return fmt.Errorf("%w: unknown timing config %T", ErrInvalidTimingConfig, cfg)
	}
	return nil
}

// cyclicTimes emits one candidate every IntervalHours within a 24h cycle that
// restarts every IntervalDays days. All arithmetic is absolute-clock addition;
// no calendar rounding is applied.
func cyclicTimes(cfg CyclicTiming, end time.Time) []time.Time {
	var out []time.Time
	step := time.Duration(cfg.IntervalHours) * time.Hour
	cycle := time.Duration(cfg.IntervalDays) * day
	for cycleStart := cfg.StartAt; !cycleStart.After(end); cycleStart = cycleStart.Add(cycle) {
		for off := time.Duration(0); off < day; off += step {
			at := cycleStart.Add(off)
			if at.After(end) {
				break
			}
			out = append(out, at)
		}
	}
	return out
}

// slotTimes emits one candidate per matched catalog slot for each covered
// date, stepping by IntervalDays. Candidates beyond the planned end are
// skipped.
func slotTimes(cfg SlotTiming, end time.Time) ([]time.Time, []string) {
	slots := DecodeSlots(cfg.SlotsMask)
	dateStep := time.Duration(cfg.IntervalDays) * day
	var times []time.Time
	var names []string
	for date := cfg.StartDate.Truncate(day); !date.After(end); date = date.Add(dateStep) {
		for _, s := range slots {
			at := date.Add(s.ClockTime)
			if at.After(end) {
				continue
			}
			times = append(times, at)
			names = append(names, s.Name)
		}
	}
	return times, names
}

// categoryFor maps an order type to the execution-tracking category of its
// tasks. Medication pickup runs through external verification; inspections
// wait on a result; operations and surgery span a duration.
func categoryFor(t OrderType) TaskCategory {
	switch t {
	case OrderMedication:
		return CategoryVerification
	case OrderInspection:
		return CategoryResultPending
	case OrderOperation, OrderSurgical:
		return CategoryDuration
	case OrderDischarge:
		return CategoryDischargeConfirmation
	default:
		return CategoryImmediate
	}
}

// DecodePayload extracts the generation-time payload from a task. Used by the
// execution-tracking flow; the scheduler never reinterprets it.
func DecodePayload(t *ExecutionTask) (OrderType, int, string, error) {
	var p taskPayload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		return "", 0, "", fmt.Errorf("decode payload for task %s: %w", t.ID, err)
	}
	return p.OrderType, p.Sequence, p.SlotName, nil
}
