package orders

import (
	"sort"
	"time"
)

// SlotMask is a bitwise OR of slot identifiers.
type SlotMask uint32

// Slot identifiers. Each slot is a power-of-two bit so masks compose with |.
const (
	SlotBeforeBreakfast SlotMask = 1 << iota
	SlotAfterBreakfast
	SlotBeforeLunch
	SlotAfterLunch
	SlotBeforeDinner
	SlotAfterDinner
	SlotBedtime
	SlotMidnight
)

// TimeSlot is one named time-of-day bucket with its default clock time,
// expressed as an offset from midnight.
type TimeSlot struct {
	ID        SlotMask      `json:"id"`
	Name      string        `json:"name"`
	ClockTime time.Duration `json:"clock_time"`
}

// slotCatalog is the static table mapping slot bits to default clock times.
var slotCatalog = []TimeSlot{
	{ID: SlotBeforeBreakfast, Name: "before breakfast", ClockTime: 6*time.Hour + 30*time.Minute},
	{ID: SlotAfterBreakfast, Name: "after breakfast", ClockTime: 8*time.Hour + 30*time.Minute},
	{ID: SlotBeforeLunch, Name: "before lunch", ClockTime: 11 * time.Hour},
	{ID: SlotAfterLunch, Name: "after lunch", ClockTime: 13 * time.Hour},
	{ID: SlotBeforeDinner, Name: "before dinner", ClockTime: 16*time.Hour + 30*time.Minute},
	{ID: SlotAfterDinner, Name: "after dinner", ClockTime: 18*time.Hour + 30*time.Minute},
	{ID: SlotBedtime, Name: "bedtime", ClockTime: 21 * time.Hour},
	{ID: SlotMidnight, Name: "midnight", ClockTime: 0},
}

// allSlotsMask covers every slot the catalog knows.
var allSlotsMask = func() SlotMask {
	var m SlotMask
	for _, s := range slotCatalog {
		m |= s.ID
	}
	return m
}()

// DecodeSlots expands a mask into the matched catalog slots, sorted by clock
// time ascending. Bits outside the catalog are ignored by Valid-checked
// callers; use (SlotMask).Valid to reject them up front.
func DecodeSlots(mask SlotMask) []TimeSlot {
	var matched []TimeSlot
	for _, s := range slotCatalog {
		if mask&s.ID != 0 {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ClockTime < matched[j].ClockTime
	})
	return matched
}

// Valid reports whether the mask is non-empty and contains only known bits.
func (m SlotMask) Valid() bool {
	return m != 0 && m&^allSlotsMask == 0
}

// Catalog returns the full slot table in catalog order.
func Catalog() []TimeSlot {
	out := make([]TimeSlot, len(slotCatalog))
	copy(out, slotCatalog)
	return out
}
