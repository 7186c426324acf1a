package orders

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTimingJSONRoundTrip(t *testing.T) {
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		cfg  TimingConfig
	}{
		{"immediate", ImmediateTiming{}},
		{"specific", SpecificTiming{StartAt: start}},
		{"cyclic", CyclicTiming{StartAt: start, IntervalHours: 6, IntervalDays: 2}},
		{"slots", SlotTiming{StartDate: start.Truncate(24 * time.Hour), SlotsMask: SlotAfterBreakfast | SlotBedtime, IntervalDays: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(Timing{Config: tc.cfg})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var got Timing
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Config != tc.cfg {
				t.Errorf("round trip mismatch: %#v != %#v", got.Config, tc.cfg)
			}
		})
	}
}

func TestTimingUnmarshalPolicyDiscriminator(t *testing.T) {
	var tm Timing
	raw := `{"policy":"cyclic","start_at":"2026-03-10T08:00:00Z","interval_hours":6,"interval_days":1}`
	if err := json.Unmarshal([]byte(raw), &tm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, ok := tm.Config.(CyclicTiming)
	if !ok {
		t.Fatalf("expected CyclicTiming, got %T", tm.Config)
	}
	if cfg.IntervalHours != 6 || cfg.IntervalDays != 1 {
		t.Errorf("unexpected intervals: %+v", cfg)
	}
}

func TestTimingUnmarshalRejectsIncomplete(t *testing.T) {
	cases := []string{
		`{"policy":"bogus"}`,
		`{"policy":"specific"}`,
		`{"policy":"cyclic","start_at":"2026-03-10T08:00:00Z"}`,
		`{"policy":"slots","start_date":"2026-03-10T00:00:00Z"}`,
	}
	for _, raw := range cases {
		var tm Timing
		err := json.Unmarshal([]byte(raw), &tm)
		if !errors.Is(err, ErrInvalidTimingConfig) {
			t.Errorf("%s: expected ErrInvalidTimingConfig, got %v", raw, err)
		}
	}
}

func TestTimingMarshalNil(t *testing.T) {
	data, err := json.Marshal(Timing{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "null" {
		t.Errorf("expected null, got %s", data)
	}
}

func TestOrderValidate(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	valid := func() *ClinicalOrder {
		return &ClinicalOrder{
			ID:           uuid.New(),
			PatientID:    uuid.New(),
			DoctorID:     uuid.New(),
			OrderType:    OrderMedication,
			Timing:       Timing{Config: ImmediateTiming{}},
			PlannedEndAt: now.Add(time.Hour),
		}
	}

	if err := valid().Validate(now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	o := valid()
	o.OrderType = "homeopathy"
	if err := o.Validate(now); err == nil {
		t.Error("expected error for unknown order type")
	}

	o = valid()
	o.PatientID = uuid.Nil
	if err := o.Validate(now); err == nil {
		t.Error("expected error for missing patient")
	}

	o = valid()
	o.DoctorID = uuid.Nil
	if err := o.Validate(now); err == nil {
		t.Error("expected error for missing doctor")
	}

	o = valid()
	o.Timing = Timing{}
	if err := o.Validate(now); !errors.Is(err, ErrInvalidTimingConfig) {
		t.Errorf("expected ErrInvalidTimingConfig, got %v", err)
	}

	o = valid()
	o.PlannedEndAt = now
	if err := o.Validate(now); err == nil {
		t.Error("expected error for planned end not after now")
	}

	o = valid()
	o.IsLongTerm = true
	if err := o.Validate(now); !errors.Is(err, ErrInvalidTimingConfig) {
		t.Errorf("expected ErrInvalidTimingConfig, got %v", err)
	}

	o = valid()
	o.Timing = Timing{Config: CyclicTiming{StartAt: now, IntervalHours: 6, IntervalDays: 1}}
	if err := o.Validate(now); !errors.Is(err, ErrInvalidTimingConfig) {
		t.Errorf("expected ErrInvalidTimingConfig, got %v", err)
	}
	o.IsLongTerm = true
	if err := o.Validate(now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
