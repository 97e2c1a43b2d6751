package application

// transition is the outcome of asking the publish workflow to move a schedule.
type transition uint8

const (
	// transitionApply means the status must be written.
	transitionApply transition = iota
	// transitionNoop means the schedule is already in the requested status.
	transitionNoop
	// transitionDenied means the move would go backwards.
	transitionDenied
)

var statusRank = map[ScheduleStatus]int{
	ScheduleStatusDraft:     0,
	ScheduleStatusSaved:     1,
	ScheduleStatusPublished: 2,
}

// planTransition applies the draft -> saved -> published lifecycle. Publishing straight from
// draft is allowed; no move goes backwards and published is final.
func planTransition(from, to ScheduleStatus) transition {
	fromRank, okFrom := statusRank[from]
	toRank, okTo := statusRank[to]
	switch {
	case !okFrom || !okTo:
		return transitionDenied
	case fromRank == toRank:
		return transitionNoop
	case fromRank < toRank:
		return transitionApply
	default:
		return transitionDenied
	}
}

// Editable reports whether entries of a schedule in this status may still change.
func (s ScheduleStatus) Editable() bool {
	return s == ScheduleStatusDraft || s == ScheduleStatusSaved
}
