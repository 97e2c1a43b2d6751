package scheduler

import (
	"errors"
	"math"
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, time.June, 10, hour, minute, 0, 0, time.UTC)
}

func morning() Window {
	return Window{Start: at(9, 0), End: at(10, 0)}
}

func TestGenerateSlots(t *testing.T) {
	t.Parallel()

	t.Run("orders slots room-major then time", func(t *testing.T) {
		t.Parallel()

		slots, err := GenerateSlots(morning(), []Room{{ID: "a"}, {ID: "b"}}, 30)
		if err != nil {
			t.Fatalf("GenerateSlots returned error: %v", err)
		}

		want := []struct {
			room  string
			start time.Time
		}{
			{"a", at(9, 0)}, {"a", at(9, 30)}, {"b", at(9, 0)}, {"b", at(9, 30)},
		}
		if len(slots) != len(want) {
			t.Fatalf("expected %d slots, got %d", len(want), len(slots))
		}
		for i, w := range want {
			if slots[i].RoomID != w.room || !slots[i].Start.Equal(w.start) {
				t.Fatalf("slot %d: expected %s@%s, got %s@%s", i, w.room, w.start, slots[i].RoomID, slots[i].Start)
			}
			if !slots[i].End.Equal(w.start.Add(30 * time.Minute)) {
				t.Fatalf("slot %d: unexpected end %s", i, slots[i].End)
			}
		}
	})

	t.Run("drops trailing partial slot", func(t *testing.T) {
		t.Parallel()

		slots, err := GenerateSlots(Window{Start: at(9, 0), End: at(10, 10)}, []Room{{ID: "a"}}, 20)
		if err != nil {
			t.Fatalf("GenerateSlots returned error: %v", err)
		}
		if len(slots) != 3 {
			t.Fatalf("expected 3 slots, got %d", len(slots))
		}
		if last := slots[len(slots)-1]; !last.End.Equal(at(10, 0)) {
			t.Fatalf("expected last slot to end at 10:00, got %s", last.End)
		}
	})

	t.Run("falls back to room name as identity", func(t *testing.T) {
		t.Parallel()

		slots, err := GenerateSlots(morning(), []Room{{Name: " Hall A "}}, 60)
		if err != nil {
			t.Fatalf("GenerateSlots returned error: %v", err)
		}
		if slots[0].RoomID != "Hall A" {
			t.Fatalf("expected trimmed name as room id, got %q", slots[0].RoomID)
		}
	})

	t.Run("rejects invalid inputs", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			name    string
			window  Window
			rooms   []Room
			minutes float64
		}{
			{name: "missing window", window: Window{}, rooms: []Room{{ID: "a"}}, minutes: 30},
			{name: "start after end", window: Window{Start: at(10, 0), End: at(9, 0)}, rooms: []Room{{ID: "a"}}, minutes: 30},
			{name: "start equals end", window: Window{Start: at(9, 0), End: at(9, 0)}, rooms: []Room{{ID: "a"}}, minutes: 30},
			{name: "zero duration", window: morning(), rooms: []Room{{ID: "a"}}, minutes: 0},
			{name: "negative duration", window: morning(), rooms: []Room{{ID: "a"}}, minutes: -15},
			{name: "nan duration", window: morning(), rooms: []Room{{ID: "a"}}, minutes: math.NaN()},
			{name: "infinite duration", window: morning(), rooms: []Room{{ID: "a"}}, minutes: math.Inf(1)},
			{name: "sub-second duration", window: Window{Start: at(9, 0), End: at(19, 0)}, rooms: []Room{{ID: "a"}}, minutes: 2e-11},
			{name: "too many slots", window: Window{Start: at(0, 0), End: at(0, 0).Add(24 * time.Hour)}, rooms: []Room{{ID: "a"}, {ID: "b"}, {ID: "c"}}, minutes: 1.0 / 60},
			{name: "no rooms", window: morning(), rooms: nil, minutes: 30},
			{name: "anonymous room", window: morning(), rooms: []Room{{}}, minutes: 30},
		}

		for _, tc := range cases {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()
				slots, err := GenerateSlots(tc.window, tc.rooms, tc.minutes)
				if !errors.Is(err, ErrInvalidInputs) {
					t.Fatalf("expected ErrInvalidInputs, got %v", err)
				}
				if len(slots) != 0 {
					t.Fatalf("expected no slots, got %d", len(slots))
				}
			})
		}
	})

	t.Run("slot count matches floor of window over duration per room", func(t *testing.T) {
		t.Parallel()

		window := Window{Start: at(8, 0), End: at(17, 45)}
		rooms := []Room{{ID: "a"}, {ID: "b"}, {ID: "c"}}
		for _, minutes := range []float64{15, 25, 45, 60, 90, 22.5} {
			slots, err := GenerateSlots(window, rooms, minutes)
			if err != nil {
				t.Fatalf("GenerateSlots(%v) returned error: %v", minutes, err)
			}
			want := len(rooms) * int(math.Floor(window.End.Sub(window.Start).Minutes()/minutes))
			if len(slots) != want {
				t.Fatalf("duration %v: expected %d slots, got %d", minutes, want, len(slots))
			}
			if SlotsPerRoom(window, minutes)*len(rooms) != want {
				t.Fatalf("duration %v: SlotsPerRoom disagrees with generated count", minutes)
			}
		}
	})
}

func TestDetectSlotConflict(t *testing.T) {
	t.Parallel()

	t.Run("rooms colliding on identity conflict", func(t *testing.T) {
		t.Parallel()

		slots, err := GenerateSlots(morning(), []Room{{Name: "Main"}, {Name: "Main"}}, 30)
		if err != nil {
			t.Fatalf("GenerateSlots returned error: %v", err)
		}
		conflict, found := DetectSlotConflict(slots)
		if !found {
			t.Fatalf("expected conflict for duplicate room identity")
		}
		if conflict.First.RoomID != "Main" || !conflict.First.Start.Equal(conflict.Second.Start) {
			t.Fatalf("unexpected conflict pair: %+v", conflict)
		}
	})

	t.Run("distinct rooms do not conflict", func(t *testing.T) {
		t.Parallel()

		slots, _ := GenerateSlots(morning(), []Room{{ID: "a"}, {ID: "b"}}, 30)
		if HasSlotConflict(slots) {
			t.Fatalf("expected no conflict")
		}
	})
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	if !Overlaps(at(9, 0), at(9, 30), at(9, 15), at(9, 45)) {
		t.Fatalf("expected partial overlap")
	}
	if Overlaps(at(9, 0), at(9, 30), at(9, 30), at(10, 0)) {
		t.Fatalf("adjacent intervals must not overlap")
	}
	if !Overlaps(at(9, 0), at(10, 0), at(9, 15), at(9, 30)) {
		t.Fatalf("expected containment to overlap")
	}
}
