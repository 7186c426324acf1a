package orders

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newLongTermOrder(cfg TimingConfig, end time.Time) *ClinicalOrder {
	return &ClinicalOrder{
		ID:           uuid.New(),
		PatientID:    uuid.New(),
		DoctorID:     uuid.New(),
		OrderType:    OrderMedication,
		IsLongTerm:   true,
		Timing:       Timing{Config: cfg},
		PlannedEndAt: end,
	}
}

func newShortTermOrder(cfg TimingConfig, end time.Time) *ClinicalOrder {
	o := newLongTermOrder(cfg, end)
	o.IsLongTerm = false
	return o
}

func TestGenerateImmediate(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	o := newShortTermOrder(ImmediateTiming{}, now.Add(time.Hour))

	tasks, err := GenerateTasks(o, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if !tasks[0].PlannedStartAt.Equal(now) {
		t.Errorf("expected planned start %v, got %v", now, tasks[0].PlannedStartAt)
	}
	if tasks[0].OrderID != o.ID || tasks[0].PatientID != o.PatientID {
		t.Error("task does not reference its order")
	}
}

func TestGenerateSpecific(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	at := now.Add(3 * time.Hour)
	o := newShortTermOrder(SpecificTiming{StartAt: at}, now.Add(24*time.Hour))

	tasks, err := GenerateTasks(o, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if !tasks[0].PlannedStartAt.Equal(at) {
		t.Errorf("expected planned start %v, got %v", at, tasks[0].PlannedStartAt)
	}
}

func TestGenerateSpecificInPast(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	o := newShortTermOrder(SpecificTiming{StartAt: now.Add(-time.Minute)}, now.Add(24*time.Hour))

	_, err := GenerateTasks(o, now)
	if !errors.Is(err, ErrAllTimesInPast) {
		t.Fatalf("expected ErrAllTimesInPast, got %v", err)
	}
}

// A 6-hour interval restarting daily, bounded 26 hours out, covers the first
// cycle fully (0h, 6h, 12h, 18h) and only the first emission of the second
// cycle (24h): 30h exceeds the bound.
func TestGenerateCyclicBoundedByPlannedEnd(t *testing.T) {
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	o := newLongTermOrder(
		CyclicTiming{StartAt: start, IntervalHours: 6, IntervalDays: 1},
		start.Add(26*time.Hour),
	)

	tasks, err := GenerateTasks(o, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{0, 6 * time.Hour, 12 * time.Hour, 18 * time.Hour, 24 * time.Hour}
	if len(tasks) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(tasks))
	}
	for i, d := range want {
		if got := tasks[i].PlannedStartAt; !got.Equal(start.Add(d)) {
			t.Errorf("task %d: expected %v, got %v", i, start.Add(d), got)
		}
	}
}

func TestGenerateCyclicSkipsDaysBetweenCycles(t *testing.T) {
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	o := newLongTermOrder(
		CyclicTiming{StartAt: start, IntervalHours: 12, IntervalDays: 2},
		start.Add(49*time.Hour),
	)

	tasks, err := GenerateTasks(o, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Day 0: 0h, 12h. Day 1 skipped. Day 2: 48h (60h exceeds the bound).
	want := []time.Duration{0, 12 * time.Hour, 48 * time.Hour}
	if len(tasks) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(tasks))
	}
	for i, d := range want {
		if got := tasks[i].PlannedStartAt; !got.Equal(start.Add(d)) {
			t.Errorf("task %d: expected %v, got %v", i, start.Add(d), got)
		}
	}
}

func TestGenerateCyclicPrunesPastOccurrences(t *testing.T) {
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	now := start.Add(13 * time.Hour) // 0h, 6h and 12h already elapsed
	o := newLongTermOrder(
		CyclicTiming{StartAt: start, IntervalHours: 6, IntervalDays: 1},
		start.Add(26*time.Hour),
	)

	tasks, err := GenerateTasks(o, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{18 * time.Hour, 24 * time.Hour}
	if len(tasks) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(tasks))
	}
	for i, d := range want {
		if got := tasks[i].PlannedStartAt; !got.Equal(start.Add(d)) {
			t.Errorf("task %d: expected %v, got %v", i, start.Add(d), got)
		}
	}
}

func TestGenerateCyclicAllOccurrencesElapsed(t *testing.T) {
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	o := newLongTermOrder(
		CyclicTiming{StartAt: start, IntervalHours: 6, IntervalDays: 1},
		start.Add(26*time.Hour),
	)

	_, err := GenerateTasks(o, start.Add(72*time.Hour))
	if !errors.Is(err, ErrAllTimesInPast) {
		t.Fatalf("expected ErrAllTimesInPast, got %v", err)
	}
}

func TestGenerateSlots(t *testing.T) {
	day0 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	o := newLongTermOrder(
		SlotTiming{
			StartDate:    day0,
			SlotsMask:    SlotAfterBreakfast | SlotAfterDinner,
			IntervalDays: 1,
		},
		day0.Add(36*time.Hour),
	)

	tasks, err := GenerateTasks(o, day0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Day 0: 08:30, 18:30. Day 1: 08:30 (18:30 exceeds the 36h bound).
	want := []time.Time{
		day0.Add(8*time.Hour + 30*time.Minute),
		day0.Add(18*time.Hour + 30*time.Minute),
		day0.Add(day + 8*time.Hour + 30*time.Minute),
	}
	if len(tasks) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(tasks))
	}
	for i, at := range want {
		if got := tasks[i].PlannedStartAt; !got.Equal(at) {
			t.Errorf("task %d: expected %v, got %v", i, at, got)
		}
	}
}

func TestGenerateSlotsOrderedByClockTime(t *testing.T) {
	day0 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	// Mask bits given out of clock order; emission must still be ascending.
	o := newLongTermOrder(
		SlotTiming{
			StartDate:    day0,
			SlotsMask:    SlotBedtime | SlotBeforeBreakfast | SlotAfterLunch,
			IntervalDays: 1,
		},
		day0.Add(23*time.Hour),
	)

	tasks, err := GenerateTasks(o, day0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	for i := 1; i < len(tasks); i++ {
		if !tasks[i-1].PlannedStartAt.Before(tasks[i].PlannedStartAt) {
			t.Errorf("tasks not in ascending planned-start order at index %d", i)
		}
	}
	_, _, name, err := DecodePayload(tasks[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "before breakfast" {
		t.Errorf("expected first slot name %q, got %q", "before breakfast", name)
	}
}

func TestGenerateSlotsSkipsOccurrencesPastEnd(t *testing.T) {
	day0 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	o := newLongTermOrder(
		SlotTiming{
			StartDate:    day0,
			SlotsMask:    SlotMidnight | SlotBedtime,
			IntervalDays: 1,
		},
		day0.Add(day+12*time.Hour),
	)

	tasks, err := GenerateTasks(o, day0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Day 0: 00:00, 21:00. Day 1: 00:00; day-1 21:00 exceeds the bound but the
	// covered date itself does not, so it is skipped rather than breaking out.
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
}

func TestGenerateRejectsInvalidConfigs(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := now.Add(48 * time.Hour)

	cases := []struct {
		name  string
		order *ClinicalOrder
	}{
		{"nil timing", &ClinicalOrder{ID: uuid.New(), PatientID: uuid.New(), DoctorID: uuid.New(), OrderType: OrderMedication, PlannedEndAt: end}},
		{"immediate on long-term", newLongTermOrder(ImmediateTiming{}, end)},
		{"specific on long-term", newLongTermOrder(SpecificTiming{StartAt: now}, end)},
		{"cyclic on short-term", newShortTermOrder(CyclicTiming{StartAt: now, IntervalHours: 6, IntervalDays: 1}, end)},
		{"cyclic zero interval hours", newLongTermOrder(CyclicTiming{StartAt: now, IntervalHours: 0, IntervalDays: 1}, end)},
		{"cyclic zero interval days", newLongTermOrder(CyclicTiming{StartAt: now, IntervalHours: 6, IntervalDays: 0}, end)},
		{"cyclic missing start", newLongTermOrder(CyclicTiming{IntervalHours: 6, IntervalDays: 1}, end)},
		{"slots empty mask", newLongTermOrder(SlotTiming{StartDate: now, SlotsMask: 0, IntervalDays: 1}, end)},
		{"slots unknown bit", newLongTermOrder(SlotTiming{StartDate: now, SlotsMask: 1 << 30, IntervalDays: 1}, end)},
		{"slots zero interval days", newLongTermOrder(SlotTiming{StartDate: now, SlotsMask: SlotBedtime, IntervalDays: 0}, end)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := GenerateTasks(tc.order, now)
			if !errors.Is(err, ErrInvalidTimingConfig) {
				t.Fatalf("expected ErrInvalidTimingConfig, got %v", err)
			}
		})
	}
}

func TestGenerateCategoryAndInitialStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		orderType OrderType
		category  TaskCategory
		status    TaskStatus
	}{
		{OrderMedication, CategoryVerification, TaskApplying},
		{OrderInspection, CategoryResultPending, TaskPending},
		{OrderOperation, CategoryDuration, TaskPending},
		{OrderSurgical, CategoryDuration, TaskPending},
		{OrderDischarge, CategoryDischargeConfirmation, TaskPending},
	}
	for _, tc := range cases {
		o := newShortTermOrder(ImmediateTiming{}, now.Add(time.Hour))
		o.OrderType = tc.orderType
		tasks, err := GenerateTasks(o, now)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.orderType, err)
		}
		if tasks[0].Category != tc.category {
			t.Errorf("%s: expected category %s, got %s", tc.orderType, tc.category, tasks[0].Category)
		}
		if tasks[0].Status != tc.status {
			t.Errorf("%s: expected status %s, got %s", tc.orderType, tc.status, tasks[0].Status)
		}
	}
}

func TestGenerateInheritsOrderNurse(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	nurse := uuid.New()
	o := newShortTermOrder(ImmediateTiming{}, now.Add(time.Hour))
	o.AssignedNurseID = &nurse

	tasks, err := GenerateTasks(o, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tasks[0].AssignedNurseID == nil || *tasks[0].AssignedNurseID != nurse {
		t.Error("expected task to inherit the order's nurse")
	}
}

func TestGeneratePayloadSequence(t *testing.T) {
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	o := newLongTermOrder(
		CyclicTiming{StartAt: start, IntervalHours: 8, IntervalDays: 1},
		start.Add(20*time.Hour),
	)

	tasks, err := GenerateTasks(o, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, task := range tasks {
		ot, seq, _, err := DecodePayload(task)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ot != o.OrderType {
			t.Errorf("task %d: expected order type %s in payload, got %s", i, o.OrderType, ot)
		}
		if seq != i+1 {
			t.Errorf("task %d: expected sequence %d, got %d", i, i+1, seq)
		}
	}
}
