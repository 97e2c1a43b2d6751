package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/conference-scheduler/internal/persistence"
	"github.com/example/conference-scheduler/internal/scheduler"
	"github.com/example/conference-scheduler/internal/tracing"
)

// ScheduleRepository captures the persistence interactions needed by the service.
//
// SaveDraft must replace the entries and bump the version in one atomic step, failing with
// persistence.ErrVersionConflict when ExpectedVersion no longer matches. SaveSchedule and
// PublishSchedule fail with persistence.ErrScheduleNotFound when the conference has no schedule.
type ScheduleRepository interface {
	GetConference(ctx context.Context, id string) (Conference, error)
	GetAcceptedPapers(ctx context.Context, conferenceID string) ([]scheduler.Paper, error)
	SaveDraft(ctx context.Context, input DraftInput) (Schedule, error)
	GetSchedule(ctx context.Context, conferenceID string) (Schedule, error)
	GetScheduleItems(ctx context.Context, scheduleID string) ([]scheduler.Entry, error)
	SaveSchedule(ctx context.Context, change StatusChange) (Schedule, error)
	PublishSchedule(ctx context.Context, change StatusChange) (Schedule, error)
}

// ScheduleServiceOptions tunes a ScheduleService. The zero value is usable.
type ScheduleServiceOptions struct {
	Logger *slog.Logger
	// GenerationBudget caps the wall-clock time of one allocation pass. Zero disables the cap.
	GenerationBudget time.Duration
	// PublishedCacheTTL enables caching of published views. Zero disables the cache.
	PublishedCacheTTL time.Duration
}

// ScheduleService orchestrates generation, edits and the publish workflow of schedules.
type ScheduleService struct {
	repo        ScheduleRepository
	hooks       Hooks
	idGenerator func() string
	now         func() time.Time
	budget      time.Duration
	published   *publishedCache
	logger      *slog.Logger
}

// NewScheduleService wires dependencies for schedule operations.
func NewScheduleService(repo ScheduleRepository, hooks Hooks, idGenerator func() string, now func() time.Time) *ScheduleService {
	return NewScheduleServiceWithOptions(repo, hooks, idGenerator, now, ScheduleServiceOptions{})
}

// NewScheduleServiceWithOptions wires dependencies and tuning for schedule operations.
func NewScheduleServiceWithOptions(repo ScheduleRepository, hooks Hooks, idGenerator func() string, now func() time.Time, opts ScheduleServiceOptions) *ScheduleService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ScheduleService{
		repo:        repo,
		hooks:       hooks,
		idGenerator: idGenerator,
		now:         now,
		budget:      opts.GenerationBudget,
		published:   newPublishedCache(opts.PublishedCacheTTL, 0, now),
		logger:      defaultLogger(opts.Logger),
	}
}

func (s *ScheduleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ScheduleService", operation, attrs...)
}

// Generate allocates papers to the conference's slots without touching storage.
func (s *ScheduleService) Generate(ctx context.Context, input GenerateInput) GenerateResult {
	if s == nil {
		return GenerateResult{Reason: scheduler.ReasonInvalidInputs}
	}
	ctx, span := tracing.StartSpan(ctx, "ScheduleService.Generate", map[string]string{
		"conference_id": input.Conference.ID,
	})
	defer span.End(nil)

	logger := s.loggerWith(ctx, "Generate", "conference_id", input.Conference.ID)
	result := s.allocate(ctx, input)
	span.SetOutcome(result.Reason.String())

	if !result.OK {
		logger.WarnContext(ctx, "schedule generation rejected", "reason", result.Reason.String())
		return result
	}
	logger.InfoContext(ctx, "schedule generated",
		"total_slots", result.TotalSlots,
		"total_accepted", result.TotalAccepted,
		"scheduled", len(result.Items),
		"unscheduled", len(result.Unscheduled),
	)
	return result
}

func (s *ScheduleService) allocate(ctx context.Context, input GenerateInput) GenerateResult {
	allocation := scheduler.Allocate(ctx, scheduler.AllocationRequest{
		Window:      input.Conference.Window(),
		Rooms:       input.Conference.Rooms,
		SlotMinutes: input.Conference.SlotDurationMinutes,
		Papers:      input.Papers,
		Budget:      s.budget,
		Now:         s.now,
	})
	return GenerateResult{
		OK:            allocation.OK,
		Reason:        allocation.Reason,
		Items:         allocation.Items,
		Unscheduled:   allocation.Unscheduled,
		TotalSlots:    allocation.TotalSlots,
		TotalAccepted: allocation.TotalAccepted,
	}
}

// GenerateDraft allocates the stored conference's accepted papers and persists the result as
// the conference's draft in one atomic write. A published schedule is never regenerated.
func (s *ScheduleService) GenerateDraft(ctx context.Context, conferenceID string) (result GenerateDraftResult, err error) {
	if s == nil {
		err = fmt.Errorf("ScheduleService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("schedule repository not configured")
		return
	}

	ctx, span := tracing.StartSpan(ctx, "ScheduleService.GenerateDraft", map[string]string{"conference_id": conferenceID})
	logger := s.loggerWith(ctx, "GenerateDraft", "conference_id", conferenceID)
	defer func() {
		span.SetOutcome(result.Reason.String())
		span.End(err)
		switch {
		case err != nil:
			logger.ErrorContext(ctx, "failed to generate draft", "error", err, "error_kind", ErrorKind(err))
		case !result.OK:
			logger.WarnContext(ctx, "draft generation rejected", "reason", result.Reason.String())
		default:
			logger.With("schedule_id", result.Schedule.ID, "version", result.Schedule.Version).
				InfoContext(ctx, "draft generated")
		}
	}()

	conference, err := s.repo.GetConference(ctx, conferenceID)
	if err != nil {
		if isNotFoundError(err) {
			err = nil
			result.Reason = scheduler.ReasonNotFound
		}
		return
	}

	existing, exists, err := s.lookupSchedule(ctx, conferenceID)
	if err != nil {
		return
	}
	if exists && !existing.Status.Editable() {
		s.denyEdit(ctx, logger, existing, "regenerate")
		result.Reason = scheduler.ReasonNotFound
		return
	}

	papers, err := s.repo.GetAcceptedPapers(ctx, conferenceID)
	if err != nil {
		return
	}

	result.GenerateResult = s.allocate(ctx, GenerateInput{Conference: conference, Papers: papers})
	if !result.OK {
		return
	}

	entries := make([]scheduler.Entry, 0, len(result.Items)+len(result.Unscheduled))
	entries = append(entries, result.Items...)
	entries = append(entries, result.Unscheduled...)
	for i := range entries {
		entries[i].ID = s.idGenerator()
	}

	input := DraftInput{ConferenceID: conferenceID, Entries: entries, At: s.now()}
	if exists {
		version := existing.Version
		input.ExpectedVersion = &version
		input.ScheduleID = existing.ID
	} else {
		input.ScheduleID = s.idGenerator()
	}

	saved, saveErr := s.repo.SaveDraft(ctx, input)
	if saveErr != nil {
		reason := s.saveFailure(ctx, logger, input, saveErr)
		result = GenerateDraftResult{GenerateResult: GenerateResult{Reason: reason}}
		return
	}

	for i := range entries {
		entries[i].ScheduleID = saved.ID
	}
	result.Items = entries[:len(result.Items)]
	result.Unscheduled = entries[len(result.Items):]
	result.Schedule = &saved
	return
}

// GetDraftSchedule returns the current schedule of a conference with its entries, whatever
// its status.
func (s *ScheduleService) GetDraftSchedule(ctx context.Context, conferenceID string) (view ScheduleView, err error) {
	if s == nil {
		err = fmt.Errorf("ScheduleService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("schedule repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "GetDraftSchedule", "conference_id", conferenceID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to get draft schedule", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	view, err = s.loadView(ctx, conferenceID)
	return
}

// GetPublishedSchedule returns the schedule of a conference once it has been published.
// Unpublished schedules are reported as not found.
func (s *ScheduleService) GetPublishedSchedule(ctx context.Context, conferenceID string) (view ScheduleView, err error) {
	if s == nil {
		err = fmt.Errorf("ScheduleService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("schedule repository not configured")
		return
	}

	if cached, ok := s.published.Get(conferenceID); ok {
		return cached, nil
	}

	logger := s.loggerWith(ctx, "GetPublishedSchedule", "conference_id", conferenceID)
	defer func() {
		if err != nil && ReasonOf(err) != scheduler.ReasonNotFound {
			logger.ErrorContext(ctx, "failed to get published schedule", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	view, err = s.loadView(ctx, conferenceID)
	if err != nil {
		return
	}
	if view.Schedule.Status != ScheduleStatusPublished {
		s.hooks.audit(ctx, logger, AuditEvent{
			Type:      AuditScheduleAccessDenied,
			RelatedID: view.Schedule.ID,
			Details: map[string]any{
				"conference_id": conferenceID,
				"status":        string(view.Schedule.Status),
				"view":          "published",
			},
			OccurredAt: s.now(),
		})
		view = ScheduleView{}
		err = reasonError(scheduler.ReasonNotFound, ErrNotFound)
		return
	}

	s.published.Store(conferenceID, view)
	return
}

func (s *ScheduleService) loadView(ctx context.Context, conferenceID string) (ScheduleView, error) {
	schedule, err := s.repo.GetSchedule(ctx, conferenceID)
	if err != nil {
		return ScheduleView{}, mapRepoError(err)
	}
	entries, err := s.repo.GetScheduleItems(ctx, schedule.ID)
	if err != nil {
		return ScheduleView{}, mapRepoError(err)
	}
	conference, err := s.repo.GetConference(ctx, conferenceID)
	if err != nil {
		return ScheduleView{}, mapRepoError(err)
	}
	papers, err := s.repo.GetAcceptedPapers(ctx, conferenceID)
	if err != nil {
		return ScheduleView{}, mapRepoError(err)
	}

	byID := make(map[string]scheduler.Paper, len(papers))
	for _, paper := range papers {
		byID[paper.ID] = paper
	}
	return ScheduleView{
		Conference: conference,
		Schedule:   schedule,
		Entries:    entries,
		Papers:     byID,
	}, nil
}

// UpdateScheduleEntry edits the room and time of one entry. The edit is validated against
// every entry of the schedule and the conference window, then checked against the caller's
// schedule version, and finally committed together with a version bump of exactly one.
// Notification runs after the commit and cannot undo it.
func (s *ScheduleService) UpdateScheduleEntry(ctx context.Context, params UpdateEntryParams) (result EditResult, err error) {
	if s == nil {
		err = fmt.Errorf("ScheduleService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("schedule repository not configured")
		return
	}

	ctx, span := tracing.StartSpan(ctx, "ScheduleService.UpdateScheduleEntry", map[string]string{
		"conference_id": params.ConferenceID,
		"entry_id":      params.EntryID,
	})
	logger := s.loggerWith(ctx, "UpdateScheduleEntry",
		"conference_id", params.ConferenceID,
		"entry_id", params.EntryID,
		"schedule_version", params.ScheduleVersion,
	)
	defer func() {
		span.SetOutcome(result.Reason.String())
		span.End(err)
		switch {
		case err != nil:
			logger.ErrorContext(ctx, "failed to update schedule entry", "error", err, "error_kind", ErrorKind(err))
		case !result.OK:
			logger.WarnContext(ctx, "schedule entry update rejected", "reason", result.Reason.String())
		default:
			logger.With("version", result.Schedule.Version).InfoContext(ctx, "schedule entry updated")
		}
	}()

	schedule, exists, err := s.lookupSchedule(ctx, params.ConferenceID)
	if err != nil {
		return
	}
	if !exists {
		result.Reason = scheduler.ReasonNotFound
		return
	}
	if !schedule.Status.Editable() {
		s.denyEdit(ctx, logger, schedule, "update_entry")
		result.Reason = scheduler.ReasonNotFound
		return
	}

	entries, err := s.repo.GetScheduleItems(ctx, schedule.ID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	index := -1
	for i, entry := range entries {
		if entry.ID == params.EntryID {
			index = i
			break
		}
	}
	if index < 0 {
		result.Reason = scheduler.ReasonNotFound
		return
	}

	conference, err := s.repo.GetConference(ctx, params.ConferenceID)
	if err != nil {
		if isNotFoundError(err) {
			err = nil
			result.Reason = scheduler.ReasonNotFound
		}
		return
	}

	verdict := scheduler.ValidateEdit(scheduler.EditRequest{
		Entry:   entries[index],
		Update:  scheduler.EntryUpdate{RoomID: params.RoomID, Start: params.Start, End: params.End},
		Entries: entries,
		Window:  conference.Window(),
	})
	if !verdict.OK {
		result.Reason = verdict.Reason
		result.ConflictEntry = verdict.ConflictEntry
		if verdict.Reason == scheduler.ReasonConflict {
			details := map[string]any{
				"conference_id": params.ConferenceID,
				"entry_id":      params.EntryID,
			}
			if verdict.ConflictEntry != nil {
				details["conflict_entry_id"] = verdict.ConflictEntry.ID
				details["room_id"] = verdict.ConflictEntry.RoomID
			}
			s.hooks.audit(ctx, logger, AuditEvent{
				Type:       AuditScheduleConflict,
				RelatedID:  schedule.ID,
				Details:    details,
				OccurredAt: s.now(),
			})
		}
		return
	}

	if params.ScheduleVersion != schedule.Version {
		s.auditConcurrency(ctx, logger, schedule.ID, params.ConferenceID, map[string]any{
			"supplied_version": params.ScheduleVersion,
			"stored_version":   schedule.Version,
		})
		result.Reason = scheduler.ReasonVersionConflict
		return
	}

	updated := make([]scheduler.Entry, len(entries))
	copy(updated, entries)
	updated[index] = verdict.Entry

	expected := schedule.Version
	input := DraftInput{
		ConferenceID:    params.ConferenceID,
		ScheduleID:      schedule.ID,
		Entries:         updated,
		ExpectedVersion: &expected,
		At:              s.now(),
	}
	saved, saveErr := s.repo.SaveDraft(ctx, input)
	if saveErr != nil {
		result.Reason = s.saveFailure(ctx, logger, input, saveErr)
		return
	}

	result = EditResult{OK: true, Schedule: &saved, Entries: updated}

	entry := verdict.Entry
	s.hooks.notify(ctx, logger, ScheduleNotification{Schedule: saved, Entry: &entry}, s.now())
	return
}

// SaveSchedule moves a draft schedule to saved. Saving a saved schedule changes nothing.
func (s *ScheduleService) SaveSchedule(ctx context.Context, conferenceID string) (Schedule, error) {
	return s.transition(ctx, conferenceID, ScheduleStatusSaved)
}

// Publish makes a draft or saved schedule public. The write is all-or-nothing: on failure the
// stored status is unchanged and a schedule_publish_failed event is audited. Publishing an
// already published schedule returns it unchanged.
func (s *ScheduleService) Publish(ctx context.Context, conferenceID string) (Schedule, error) {
	return s.transition(ctx, conferenceID, ScheduleStatusPublished)
}

func (s *ScheduleService) transition(ctx context.Context, conferenceID string, to ScheduleStatus) (schedule Schedule, err error) {
	if s == nil {
		err = fmt.Errorf("ScheduleService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("schedule repository not configured")
		return
	}

	operation := "SaveSchedule"
	if to == ScheduleStatusPublished {
		operation = "Publish"
	}
	ctx, span := tracing.StartSpan(ctx, "ScheduleService."+operation, map[string]string{"conference_id": conferenceID})
	logger := s.loggerWith(ctx, operation, "conference_id", conferenceID)
	defer func() {
		span.SetOutcome(ReasonOf(err).String())
		span.End(err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to "+transitionVerb(to)+" schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("schedule_id", schedule.ID, "status", string(schedule.Status)).
			InfoContext(ctx, "schedule "+string(schedule.Status))
	}()

	current, exists, err := s.lookupSchedule(ctx, conferenceID)
	if err != nil {
		return
	}
	if !exists {
		err = reasonError(scheduler.ReasonScheduleNotFound, persistence.ErrScheduleNotFound)
		return
	}

	switch planTransition(current.Status, to) {
	case transitionNoop:
		schedule = current
		return
	case transitionDenied:
		s.denyEdit(ctx, logger, current, transitionVerb(to))
		err = reasonError(scheduler.ReasonNotFound, ErrNotFound)
		return
	case transitionApply:
	}

	change := StatusChange{ConferenceID: conferenceID, Status: to, At: s.now()}
	if to == ScheduleStatusPublished {
		schedule, err = s.repo.PublishSchedule(ctx, change)
	} else {
		schedule, err = s.repo.SaveSchedule(ctx, change)
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		// A concurrent transition moved the stored status past the requested one.
		if latest, found, lookupErr := s.lookupSchedule(ctx, conferenceID); lookupErr == nil && found {
			current = latest
		}
		s.denyEdit(ctx, logger, current, transitionVerb(to))
		err = reasonError(scheduler.ReasonNotFound, ErrNotFound)
		schedule = Schedule{}
		return
	}
	if err != nil {
		reason := scheduler.ReasonPublishStorageFailure
		if errors.Is(err, persistence.ErrScheduleNotFound) {
			reason = scheduler.ReasonScheduleNotFound
		}
		eventType := AuditSchedulePublishFailed
		if to != ScheduleStatusPublished {
			eventType = AuditScheduleSaveFailed
		}
		s.hooks.audit(ctx, logger, AuditEvent{
			Type:      eventType,
			RelatedID: current.ID,
			Details: map[string]any{
				"conference_id": conferenceID,
				"from_status":   string(current.Status),
				"to_status":     string(to),
				"error":         err.Error(),
			},
			OccurredAt: s.now(),
		})
		err = reasonError(reason, err)
		schedule = Schedule{}
		return
	}

	if to == ScheduleStatusPublished {
		s.published.Invalidate(conferenceID)
		s.hooks.notify(ctx, logger, ScheduleNotification{Schedule: schedule}, s.now())
	}
	return
}

func transitionVerb(to ScheduleStatus) string {
	if to == ScheduleStatusPublished {
		return "publish"
	}
	return "save"
}

// lookupSchedule loads the conference's schedule, reporting absence through exists.
func (s *ScheduleService) lookupSchedule(ctx context.Context, conferenceID string) (Schedule, bool, error) {
	schedule, err := s.repo.GetSchedule(ctx, conferenceID)
	if err != nil {
		if isNotFoundError(err) {
			return Schedule{}, false, nil
		}
		return Schedule{}, false, err
	}
	return schedule, true, nil
}

func (s *ScheduleService) denyEdit(ctx context.Context, logger *slog.Logger, schedule Schedule, action string) {
	s.hooks.audit(ctx, logger, AuditEvent{
		Type:      AuditScheduleEditDenied,
		RelatedID: schedule.ID,
		Details: map[string]any{
			"conference_id": schedule.ConferenceID,
			"status":        string(schedule.Status),
			"action":        action,
		},
		OccurredAt: s.now(),
	})
}

func (s *ScheduleService) auditConcurrency(ctx context.Context, logger *slog.Logger, scheduleID, conferenceID string, versions map[string]any) {
	details := map[string]any{"conference_id": conferenceID}
	for key, value := range versions {
		details[key] = value
	}
	s.hooks.audit(ctx, logger, AuditEvent{
		Type:       AuditScheduleConcurrency,
		RelatedID:  scheduleID,
		Details:    details,
		OccurredAt: s.now(),
	})
}

// saveFailure classifies a failed SaveDraft and audits it.
func (s *ScheduleService) saveFailure(ctx context.Context, logger *slog.Logger, input DraftInput, err error) scheduler.Reason {
	conferenceID, scheduleID := input.ConferenceID, input.ScheduleID
	if errors.Is(err, persistence.ErrVersionConflict) {
		versions := map[string]any{"stage": "write"}
		if input.ExpectedVersion != nil {
			versions["supplied_version"] = *input.ExpectedVersion
		}
		s.auditConcurrency(ctx, logger, scheduleID, conferenceID, versions)
		return scheduler.ReasonVersionConflict
	}

	logger.ErrorContext(ctx, "failed to save draft", "error", err)
	s.hooks.audit(ctx, logger, AuditEvent{
		Type:      AuditScheduleSaveFailed,
		RelatedID: scheduleID,
		Details: map[string]any{
			"conference_id": conferenceID,
			"error":         err.Error(),
		},
		OccurredAt: s.now(),
	})
	return scheduler.ReasonSaveFailed
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isNotFoundError(err):
		return reasonError(scheduler.ReasonNotFound, ErrNotFound)
	case errors.Is(err, persistence.ErrScheduleNotFound):
		return reasonError(scheduler.ReasonScheduleNotFound, err)
	case errors.Is(err, persistence.ErrVersionConflict):
		return reasonError(scheduler.ReasonVersionConflict, err)
	}
	return err
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
