package scheduler

import "time"

// SlotConflict describes two generated slots claiming the same room and start time.
type SlotConflict struct {
	First  TimeSlot
	Second TimeSlot
}

type slotKey struct {
	roomID string
	start  int64
}

// DetectSlotConflict returns the first pair of slots sharing (room, start). This only happens
// when two input rooms resolve to the same identity.
func DetectSlotConflict(slots []TimeSlot) (SlotConflict, bool) {
	seen := make(map[slotKey]int, len(slots))
	for i, slot := range slots {
		key := slotKey{roomID: slot.RoomID, start: slot.Start.UnixNano()}
		if prev, ok := seen[key]; ok {
			return SlotConflict{First: slots[prev], Second: slot}, true
		}
		seen[key] = i
	}
	return SlotConflict{}, false
}

// HasSlotConflict reports whether any two slots share (room, start).
func HasSlotConflict(slots []TimeSlot) bool {
	_, found := DetectSlotConflict(slots)
	return found
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FindEntryConflict returns the first scheduled entry, other than candidate itself, occupying
// an overlapping window in the candidate's room.
func FindEntryConflict(candidate Entry, entries []Entry) (Entry, bool) {
	for _, other := range entries {
		if other.ID == candidate.ID || !other.Scheduled() {
			continue
		}
		if other.RoomID != candidate.RoomID {
			continue
		}
		if Overlaps(candidate.Start, candidate.End, other.Start, other.End) {
			return other, true
		}
	}
	return Entry{}, false
}
