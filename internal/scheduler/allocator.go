package scheduler

import (
	"context"
	"errors"
	"time"
)

var errBudgetExceeded = errors.New("scheduler: generation budget exceeded")

// checkEvery bounds how many papers are placed between budget checks.
const checkEvery = 64

// AllocationRequest carries the inputs of one generation pass.
type AllocationRequest struct {
	Window      Window
	Rooms       []Room
	SlotMinutes float64
	Papers      []Paper
	// Budget caps the wall-clock time of the pass. Zero disables the cap.
	Budget time.Duration
	// Now overrides the clock used to measure the budget.
	Now func() time.Time
}

// Allocation is the outcome of a generation pass. When OK is false, Reason explains the
// failure and every other field is empty.
type Allocation struct {
	OK            bool
	Reason        Reason
	Items         []Entry
	Unscheduled   []Entry
	TotalSlots    int
	TotalAccepted int
}

func failedAllocation(reason Reason) Allocation {
	return Allocation{Reason: reason}
}

// Allocate places accepted, metadata-complete papers into generated slots one per slot,
// preserving paper input order and slot generation order. Papers left over once slots run
// out are unscheduled with ReasonCapacityShortfall, followed by every accepted paper with
// incomplete metadata under ReasonMissingMetadata. Papers that are not accepted are ignored.
//
// Identical requests always yield identical allocations. A pass that outlives its budget or
// its context fails as a whole with ReasonGenerationTimeout.
func Allocate(ctx context.Context, req AllocationRequest) Allocation {
	if ctx == nil {
		ctx = context.Background()
	}
	now := req.Now
	if now == nil {
		now = time.Now
	}
	started := now()
	withinBudget := func() bool {
		if ctx.Err() != nil {
			return false
		}
		return req.Budget <= 0 || now().Sub(started) <= req.Budget
	}

	slots, err := generateSlots(req.Window, req.Rooms, req.SlotMinutes, withinBudget)
	if err != nil {
		if errors.Is(err, errBudgetExceeded) {
			return failedAllocation(ReasonGenerationTimeout)
		}
		return failedAllocation(ReasonInvalidInputs)
	}

	if HasSlotConflict(slots) {
		return failedAllocation(ReasonConflict)
	}

	eligible := make([]Paper, 0, len(req.Papers))
	incomplete := make([]Paper, 0)
	for _, paper := range req.Papers {
		if paper.Status != PaperAccepted {
			continue
		}
		if paper.MetadataComplete {
			eligible = append(eligible, paper)
		} else {
			incomplete = append(incomplete, paper)
		}
	}

	placed := min(len(eligible), len(slots))
	items := make([]Entry, 0, placed)
	unscheduled := make([]Entry, 0, len(eligible)-placed+len(incomplete))

	for i, paper := range eligible {
		if i%checkEvery == 0 && !withinBudget() {
			return failedAllocation(ReasonGenerationTimeout)
		}
		if i >= len(slots) {
			unscheduled = append(unscheduled, unscheduledEntry(paper.ID, ReasonCapacityShortfall))
			continue
		}
		slot := slots[i]
		items = append(items, Entry{
			PaperID: paper.ID,
			RoomID:  slot.RoomID,
			SlotID:  slot.ID,
			Start:   slot.Start,
			End:     slot.End,
			Status:  EntryScheduled,
		})
	}
	for _, paper := range incomplete {
		unscheduled = append(unscheduled, unscheduledEntry(paper.ID, ReasonMissingMetadata))
	}

	if !withinBudget() {
		return failedAllocation(ReasonGenerationTimeout)
	}

	return Allocation{
		OK:            true,
		Items:         items,
		Unscheduled:   unscheduled,
		TotalSlots:    len(slots),
		TotalAccepted: len(eligible) + len(incomplete),
	}
}
