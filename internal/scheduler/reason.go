package scheduler

import "fmt"

// Reason identifies why an operation was rejected or why a paper stayed unscheduled.
// The set is closed: every value is declared below and Category classifies all of them.
type Reason uint8

const (
	// ReasonNone marks a successful outcome.
	ReasonNone Reason = iota
	// ReasonInvalidInputs rejects a generation request with a missing window, a non-positive
	// slot duration or an empty room list.
	ReasonInvalidInputs
	// ReasonOutsideWindow rejects an edit that leaves the conference window.
	ReasonOutsideWindow
	// ReasonInvalidTime rejects an edit whose start is not before its end.
	ReasonInvalidTime
	// ReasonUnscheduled rejects an edit that blanks room or time on a scheduled entry.
	ReasonUnscheduled
	// ReasonNotFound reports a missing schedule or entry, or a schedule that can no longer be edited.
	ReasonNotFound
	// ReasonConflict reports a double-booked room.
	ReasonConflict
	// ReasonDuplicatePaper reports a paper already placed under another entry.
	ReasonDuplicatePaper
	// ReasonVersionConflict reports a stale schedule version.
	ReasonVersionConflict
	// ReasonCapacityShortfall marks an eligible paper left without a slot.
	ReasonCapacityShortfall
	// ReasonMissingMetadata marks an accepted paper whose metadata is incomplete.
	ReasonMissingMetadata
	// ReasonGenerationTimeout reports an allocation pass that exceeded its budget.
	ReasonGenerationTimeout
	// ReasonSaveFailed reports a draft that could not be persisted.
	ReasonSaveFailed
	// ReasonScheduleNotFound reports a status transition on a conference without a schedule.
	ReasonScheduleNotFound
	// ReasonConferenceStorageFailure reports a conference that could not be persisted.
	ReasonConferenceStorageFailure
	// ReasonPublishStorageFailure reports a status transition that could not be persisted.
	ReasonPublishStorageFailure
)

// Category groups reasons by how callers are expected to react to them.
type Category uint8

const (
	CategoryNone Category = iota
	// CategoryInput failures are rejected before any mutation.
	CategoryInput
	// CategoryLookup failures reference state that does not exist.
	CategoryLookup
	// CategoryConflict failures require the caller to resubmit, possibly after a reload.
	CategoryConflict
	// CategoryCapacity outcomes are recorded on unscheduled entries and are not failures.
	CategoryCapacity
	// CategoryTimeout failures persisted nothing and are safe to retry unchanged.
	CategoryTimeout
	// CategoryPersistence failures left the previously stored state untouched.
	CategoryPersistence
)

var reasonNames = [...]string{
	ReasonNone:                     "",
	ReasonInvalidInputs:            "invalid_inputs",
	ReasonOutsideWindow:            "outside_window",
	ReasonInvalidTime:              "invalid_time",
	ReasonUnscheduled:              "unscheduled",
	ReasonNotFound:                 "not_found",
	ReasonConflict:                 "conflict",
	ReasonDuplicatePaper:           "duplicate_paper",
	ReasonVersionConflict:          "version_conflict",
	ReasonCapacityShortfall:        "capacity_shortfall",
	ReasonMissingMetadata:          "missing_metadata",
	ReasonGenerationTimeout:        "generation_timeout",
	ReasonSaveFailed:               "save_failed",
	ReasonScheduleNotFound:         "schedule_not_found",
	ReasonConferenceStorageFailure: "conference_storage_failure",
	ReasonPublishStorageFailure:    "publish_storage_failure",
}

// String returns the wire name of the reason.
func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

// Category classifies the reason.
func (r Reason) Category() Category {
	switch r {
	case ReasonNone:
		return CategoryNone
	case ReasonInvalidInputs, ReasonOutsideWindow, ReasonInvalidTime, ReasonUnscheduled:
		return CategoryInput
	case ReasonNotFound:
		return CategoryLookup
	case ReasonConflict, ReasonDuplicatePaper, ReasonVersionConflict:
		return CategoryConflict
	case ReasonCapacityShortfall, ReasonMissingMetadata:
		return CategoryCapacity
	case ReasonGenerationTimeout:
		return CategoryTimeout
	case ReasonSaveFailed, ReasonScheduleNotFound, ReasonConferenceStorageFailure, ReasonPublishStorageFailure:
		return CategoryPersistence
	default:
		return CategoryNone
	}
}

// IsFailure reports whether the reason rejects an operation.
func (r Reason) IsFailure() bool {
	switch r.Category() {
	case CategoryNone, CategoryCapacity:
		return false
	default:
		return true
	}
}

// MarshalText encodes the reason using its wire name.
func (r Reason) MarshalText() ([]byte, error) {
	if int(r) >= len(reasonNames) {
		return nil, fmt.Errorf("scheduler: unknown reason %d", uint8(r))
	}
	return []byte(reasonNames[r]), nil
}

// UnmarshalText decodes a wire name produced by MarshalText.
func (r *Reason) UnmarshalText(text []byte) error {
	parsed, ok := ParseReason(string(text))
	if !ok {
		return fmt.Errorf("scheduler: unknown reason %q", string(text))
	}
	*r = parsed
	return nil
}

// ParseReason resolves a wire name back into a Reason.
func ParseReason(name string) (Reason, bool) {
	for i, candidate := range reasonNames {
		if candidate == name {
			return Reason(i), true
		}
	}
	return ReasonNone, false
}
