package scheduler

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidInputs indicates the window, rooms or slot duration cannot produce slots.
var ErrInvalidInputs = errors.New("scheduler: invalid inputs")

const (
	// MinSlotDuration is the shortest slot. Slot IDs carry whole seconds, so shorter slots
	// would share IDs.
	MinSlotDuration = time.Second
	// MaxSlots caps the slots of one generation pass across all rooms.
	MaxSlots = 250_000
)

// SlotID derives the identifier of the slot starting at start in the given room.
func SlotID(roomID string, start time.Time) string {
	return roomID + "@" + start.UTC().Format(time.RFC3339)
}

// SlotDuration converts a slot length in minutes into a duration. Non-positive, NaN and
// infinite values are rejected, as are lengths below MinSlotDuration or beyond what a
// time.Duration can hold.
func SlotDuration(minutes float64) (time.Duration, bool) {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes <= 0 {
		return 0, false
	}
	nanos := minutes * float64(time.Minute)
	if nanos < float64(MinSlotDuration) || nanos >= math.MaxInt64 {
		return 0, false
	}
	return time.Duration(nanos), true
}

// SlotCount returns how many slots a pass over rooms would generate, failing with
// ErrInvalidInputs when the inputs are unusable or the count exceeds MaxSlots.
func SlotCount(window Window, rooms int, slotMinutes float64) (int, error) {
	duration, ok := SlotDuration(slotMinutes)
	if !ok || !window.Valid() || rooms <= 0 {
		return 0, ErrInvalidInputs
	}
	perRoom := int64(window.End.Sub(window.Start) / duration)
	if perRoom > int64(MaxSlots/rooms) {
		return 0, ErrInvalidInputs
	}
	return int(perRoom) * rooms, nil
}

// GenerateSlots lays out consecutive fixed-length slots for each room, in room order, starting
// at the window start. A trailing slot that would end after the window end is dropped.
// The result is ordered room-major, time-minor.
func GenerateSlots(window Window, rooms []Room, slotMinutes float64) ([]TimeSlot, error) {
	return generateSlots(window, rooms, slotMinutes, nil)
}

func generateSlots(window Window, rooms []Room, slotMinutes float64, checkpoint func() bool) ([]TimeSlot, error) {
	duration, ok := SlotDuration(slotMinutes)
	if !ok || !window.Valid() || len(rooms) == 0 {
		return nil, ErrInvalidInputs
	}
	for _, room := range rooms {
		if room.Key() == "" {
			return nil, ErrInvalidInputs
		}
	}

	total, err := SlotCount(window, len(rooms), slotMinutes)
	if err != nil {
		return nil, err
	}
	slots := make([]TimeSlot, 0, total)
	for _, room := range rooms {
		roomID := room.Key()
		for start := window.Start; !start.Add(duration).After(window.End); start = start.Add(duration) {
			if checkpoint != nil && len(slots)%checkEvery == 0 && !checkpoint() {
				return nil, errBudgetExceeded
			}
			slots = append(slots, TimeSlot{
				ID:     SlotID(roomID, start),
				RoomID: roomID,
				Start:  start,
				End:    start.Add(duration),
			})
		}
	}
	return slots, nil
}

// SlotsPerRoom returns how many whole slots fit in the window.
func SlotsPerRoom(window Window, slotMinutes float64) int {
	duration, ok := SlotDuration(slotMinutes)
	if !ok || !window.Valid() {
		return 0
	}
	return int(window.End.Sub(window.Start) / duration)
}
