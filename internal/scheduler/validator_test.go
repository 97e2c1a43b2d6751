package scheduler

import (
	"reflect"
	"testing"
	"time"
)

func scheduledEntry(id, paperID, room string, start time.Time) Entry {
	return Entry{
		ID:      id,
		PaperID: paperID,
		RoomID:  room,
		SlotID:  SlotID(room, start),
		Start:   start,
		End:     start.Add(30 * time.Minute),
		Status:  EntryScheduled,
	}
}

func strPtr(s string) *string        { return &s }
func timePtr(t time.Time) *time.Time { return &t }

func TestValidateEdit(t *testing.T) {
	t.Parallel()

	window := Window{Start: at(9, 0), End: at(12, 0)}
	first := scheduledEntry("e1", "p1", "a", at(9, 0))
	second := scheduledEntry("e2", "p2", "a", at(9, 30))
	third := scheduledEntry("e3", "p3", "b", at(9, 0))
	entries := []Entry{first, second, third}

	t.Run("accepts a move into a free slot", func(t *testing.T) {
		t.Parallel()

		verdict := ValidateEdit(EditRequest{
			Entry:   first,
			Update:  EntryUpdate{RoomID: strPtr("b"), Start: timePtr(at(10, 0)), End: timePtr(at(10, 30))},
			Entries: entries,
			Window:  window,
		})
		if !verdict.OK {
			t.Fatalf("expected ok, got %s", verdict.Reason)
		}
		if verdict.Entry.RoomID != "b" || !verdict.Entry.Start.Equal(at(10, 0)) || verdict.Entry.SlotID != SlotID("b", at(10, 0)) {
			t.Fatalf("unexpected materialized entry: %+v", verdict.Entry)
		}
		if verdict.Entry.ID != "e1" || verdict.Entry.PaperID != "p1" {
			t.Fatalf("identity fields must be preserved: %+v", verdict.Entry)
		}
	})

	t.Run("rejects an occupied slot and reports the occupant", func(t *testing.T) {
		t.Parallel()

		verdict := ValidateEdit(EditRequest{
			Entry:   first,
			Update:  EntryUpdate{Start: timePtr(at(9, 30)), End: timePtr(at(10, 0))},
			Entries: entries,
			Window:  window,
		})
		if verdict.OK || verdict.Reason != ReasonConflict {
			t.Fatalf("expected conflict, got %+v", verdict)
		}
		if verdict.ConflictEntry == nil || verdict.ConflictEntry.ID != "e2" {
			t.Fatalf("expected conflict entry e2, got %+v", verdict.ConflictEntry)
		}
	})

	t.Run("partial overlap in the same room conflicts", func(t *testing.T) {
		t.Parallel()

		verdict := ValidateEdit(EditRequest{
			Entry:   third,
			Update:  EntryUpdate{RoomID: strPtr("a"), Start: timePtr(at(9, 45)), End: timePtr(at(10, 15))},
			Entries: entries,
			Window:  window,
		})
		if verdict.Reason != ReasonConflict || verdict.ConflictEntry.ID != "e2" {
			t.Fatalf("expected conflict with e2, got %+v", verdict)
		}
	})

	t.Run("rejects edits leaving the window", func(t *testing.T) {
		t.Parallel()

		verdict := ValidateEdit(EditRequest{
			Entry:   first,
			Update:  EntryUpdate{Start: timePtr(at(11, 45)), End: timePtr(at(12, 15))},
			Entries: entries,
			Window:  window,
		})
		if verdict.Reason != ReasonOutsideWindow {
			t.Fatalf("expected outside_window, got %s", verdict.Reason)
		}
	})

	t.Run("rejects start not before end", func(t *testing.T) {
		t.Parallel()

		verdict := ValidateEdit(EditRequest{
			Entry:   first,
			Update:  EntryUpdate{Start: timePtr(at(11, 0)), End: timePtr(at(10, 0))},
			Entries: entries,
			Window:  window,
		})
		if verdict.Reason != ReasonInvalidTime {
			t.Fatalf("expected invalid_time, got %s", verdict.Reason)
		}
	})

	t.Run("rejects placing a paper that is scheduled elsewhere", func(t *testing.T) {
		t.Parallel()

		dup := scheduledEntry("e4", "p1", "b", at(11, 0))
		verdict := ValidateEdit(EditRequest{
			Entry:   dup,
			Update:  EntryUpdate{Start: timePtr(at(10, 0)), End: timePtr(at(10, 30))},
			Entries: append(append([]Entry(nil), entries...), dup),
			Window:  window,
		})
		if verdict.Reason != ReasonDuplicatePaper {
			t.Fatalf("expected duplicate_paper, got %s", verdict.Reason)
		}
	})

	t.Run("rejects blanking a scheduled entry", func(t *testing.T) {
		t.Parallel()

		verdict := ValidateEdit(EditRequest{
			Entry:   first,
			Update:  EntryUpdate{RoomID: strPtr("")},
			Entries: entries,
			Window:  window,
		})
		if verdict.Reason != ReasonUnscheduled {
			t.Fatalf("expected unscheduled, got %s", verdict.Reason)
		}
	})

	t.Run("placing an unscheduled entry schedules it", func(t *testing.T) {
		t.Parallel()

		waiting := Entry{ID: "e5", PaperID: "p5", Status: EntryUnscheduled, Reason: ReasonCapacityShortfall}
		verdict := ValidateEdit(EditRequest{
			Entry:   waiting,
			Update:  EntryUpdate{RoomID: strPtr("b"), Start: timePtr(at(11, 0)), End: timePtr(at(11, 30))},
			Entries: append(append([]Entry(nil), entries...), waiting),
			Window:  window,
		})
		if !verdict.OK {
			t.Fatalf("expected ok, got %s", verdict.Reason)
		}
		if verdict.Entry.Status != EntryScheduled || verdict.Entry.Reason != ReasonNone {
			t.Fatalf("expected scheduled entry without reason, got %+v", verdict.Entry)
		}
	})

	t.Run("verdicts are repeatable", func(t *testing.T) {
		t.Parallel()

		req := EditRequest{
			Entry:   second,
			Update:  EntryUpdate{Start: timePtr(at(9, 0)), End: timePtr(at(9, 30))},
			Entries: entries,
			Window:  window,
		}
		first := ValidateEdit(req)
		for i := 0; i < 3; i++ {
			if again := ValidateEdit(req); !reflect.DeepEqual(first, again) {
				t.Fatalf("verdict %d differs: %+v vs %+v", i, first, again)
			}
		}
	})
}
