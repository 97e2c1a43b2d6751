package scheduler

import "time"

// EntryUpdate lists the placement fields an edit changes. Nil fields keep their current value;
// an empty room or zero time clears the field.
type EntryUpdate struct {
	RoomID *string
	Start  *time.Time
	End    *time.Time
}

// Empty reports whether the update changes nothing.
func (u EntryUpdate) Empty() bool {
	return u.RoomID == nil && u.Start == nil && u.End == nil
}

// EditRequest is a proposed single-entry edit together with the state it is checked against.
type EditRequest struct {
	Entry   Entry
	Update  EntryUpdate
	Entries []Entry
	Window  Window
}

// EditVerdict is the outcome of ValidateEdit. On success Entry holds the fully materialized
// post-edit entry; on a room conflict ConflictEntry holds the colliding entry.
type EditVerdict struct {
	OK            bool
	Reason        Reason
	ConflictEntry *Entry
	Entry         Entry
}

func rejectEdit(reason Reason) EditVerdict {
	return EditVerdict{Reason: reason}
}

// ValidateEdit checks a proposed edit in a fixed order: blanked placement on a scheduled
// entry, containment in the conference window, start before end, room overlap with another
// scheduled entry, and the paper being placed under a different entry.
// Giving an unscheduled entry a placement schedules it.
func ValidateEdit(req EditRequest) EditVerdict {
	candidate := applyUpdate(req.Entry, req.Update)

	if !candidate.Scheduled() {
		candidate.RoomID = ""
		candidate.SlotID = ""
		candidate.Start = time.Time{}
		candidate.End = time.Time{}
		return EditVerdict{OK: true, Entry: candidate}
	}

	if candidate.RoomID == "" || candidate.Start.IsZero() || candidate.End.IsZero() {
		return rejectEdit(ReasonUnscheduled)
	}

	if !req.Window.Valid() || !req.Window.Contains(candidate.Start, candidate.End) {
		return rejectEdit(ReasonOutsideWindow)
	}

	if !candidate.Start.Before(candidate.End) {
		return rejectEdit(ReasonInvalidTime)
	}

	if other, found := FindEntryConflict(candidate, req.Entries); found {
		verdict := rejectEdit(ReasonConflict)
		verdict.ConflictEntry = &other
		return verdict
	}

	for _, other := range req.Entries {
		if other.ID != candidate.ID && other.PaperID == candidate.PaperID && other.Scheduled() {
			return rejectEdit(ReasonDuplicatePaper)
		}
	}

	candidate.SlotID = SlotID(candidate.RoomID, candidate.Start)
	return EditVerdict{OK: true, Entry: candidate}
}

func applyUpdate(entry Entry, update EntryUpdate) Entry {
	out := entry
	if update.RoomID != nil {
		out.RoomID = *update.RoomID
	}
	if update.Start != nil {
		out.Start = *update.Start
	}
	if update.End != nil {
		out.End = *update.End
	}
	if !out.Scheduled() && !update.Empty() {
		out.Status = EntryScheduled
		out.Reason = ReasonNone
	}
	return out
}
