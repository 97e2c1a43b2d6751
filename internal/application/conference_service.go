package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/conference-scheduler/internal/persistence"
	"github.com/example/conference-scheduler/internal/scheduler"
)

// ConferenceRepository persists conferences and their submitted papers.
type ConferenceRepository interface {
	SaveConference(ctx context.Context, conference Conference) error
	GetConference(ctx context.Context, id string) (Conference, error)
	ReplacePapers(ctx context.Context, conferenceID string, papers []scheduler.Paper) error
}

// ConferenceService manages conference definitions and paper registration.
type ConferenceService struct {
	repo        ConferenceRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewConferenceService wires dependencies for conference operations.
func NewConferenceService(repo ConferenceRepository, idGenerator func() string, now func() time.Time) *ConferenceService {
	return NewConferenceServiceWithLogger(repo, idGenerator, now, nil)
}

// NewConferenceServiceWithLogger wires dependencies and a logger for conference operations.
func NewConferenceServiceWithLogger(repo ConferenceRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ConferenceService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ConferenceService{
		repo:        repo,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ConferenceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ConferenceService", operation, attrs...)
}

// SaveConference validates and stores a conference. A missing ID is generated; an existing
// conference with the same ID is replaced as a whole, rooms included.
func (s *ConferenceService) SaveConference(ctx context.Context, input ConferenceInput) (conference Conference, err error) {
	if s == nil {
		err = fmt.Errorf("ConferenceService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("conference repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SaveConference", "conference_id", input.ID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to save conference", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("conference_id", conference.ID, "rooms", len(conference.Rooms)).
			InfoContext(ctx, "conference saved")
	}()

	normalized := normalizeConferenceInput(input)
	if vErr := validateConferenceInput(normalized); vErr.HasErrors() {
		err = vErr
		return
	}

	id := normalized.ID
	if id == "" {
		id = s.idGenerator()
	}
	now := s.now()
	conference = Conference{
		ID:                  id,
		Name:                normalized.Name,
		WindowStart:         normalized.WindowStart,
		WindowEnd:           normalized.WindowEnd,
		SlotDurationMinutes: normalized.SlotDurationMinutes,
		Rooms:               normalized.Rooms,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if existing, getErr := s.repo.GetConference(ctx, id); getErr == nil {
		conference.CreatedAt = existing.CreatedAt
	} else if !isNotFoundError(getErr) {
		err = reasonError(scheduler.ReasonConferenceStorageFailure, getErr)
		conference = Conference{}
		return
	}

	if saveErr := s.repo.SaveConference(ctx, conference); saveErr != nil {
		err = reasonError(scheduler.ReasonConferenceStorageFailure, saveErr)
		conference = Conference{}
		return
	}
	return
}

// GetConference retrieves a conference by ID.
func (s *ConferenceService) GetConference(ctx context.Context, id string) (conference Conference, err error) {
	if s == nil {
		err = fmt.Errorf("ConferenceService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("conference repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "GetConference", "conference_id", id)
	defer func() {
		if err != nil && !errors.Is(err, ErrNotFound) {
			logger.ErrorContext(ctx, "failed to get conference", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	conference, err = s.repo.GetConference(ctx, strings.TrimSpace(id))
	if err != nil {
		err = mapRepoError(err)
		return
	}
	return
}

// RegisterPapers replaces the paper list of a conference. The order of papers is kept and
// drives allocation order.
func (s *ConferenceService) RegisterPapers(ctx context.Context, conferenceID string, inputs []PaperInput) (papers []scheduler.Paper, err error) {
	if s == nil {
		err = fmt.Errorf("ConferenceService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("conference repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "RegisterPapers", "conference_id", conferenceID, "papers", len(inputs))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register papers", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "papers registered")
	}()

	vErr := &ValidationError{}
	seen := make(map[string]struct{}, len(inputs))
	papers = make([]scheduler.Paper, 0, len(inputs))
	for i, input := range inputs {
		id := strings.TrimSpace(input.ID)
		field := fmt.Sprintf("papers[%d]", i)
		if id == "" {
			vErr.add(field+".id", "id is required")
			continue
		}
		if _, dup := seen[id]; dup {
			vErr.add(field+".id", "duplicate paper id")
			continue
		}
		seen[id] = struct{}{}

		status := input.Status
		if status == "" {
			status = scheduler.PaperSubmitted
		}
		if !validPaperStatus(status) {
			vErr.add(field+".status", "unknown paper status")
			continue
		}
		papers = append(papers, scheduler.Paper{
			ID:               id,
			ConferenceID:     conferenceID,
			Title:            strings.TrimSpace(input.Title),
			Status:           status,
			MetadataComplete: input.MetadataComplete,
		})
	}
	if vErr.HasErrors() {
		papers = nil
		err = vErr
		return
	}

	if replaceErr := s.repo.ReplacePapers(ctx, conferenceID, papers); replaceErr != nil {
		papers = nil
		if errors.Is(replaceErr, persistence.ErrForeignKeyViolation) || isNotFoundError(replaceErr) {
			err = reasonError(scheduler.ReasonNotFound, ErrNotFound)
			return
		}
		err = reasonError(scheduler.ReasonConferenceStorageFailure, replaceErr)
		return
	}
	return
}

func normalizeConferenceInput(input ConferenceInput) ConferenceInput {
	out := input
	out.ID = strings.TrimSpace(input.ID)
	out.Name = strings.TrimSpace(input.Name)
	out.Rooms = make([]scheduler.Room, len(input.Rooms))
	for i, room := range input.Rooms {
		room.ID = strings.TrimSpace(room.ID)
		room.Name = strings.TrimSpace(room.Name)
		if room.Capacity != nil {
			capacity := *room.Capacity
			room.Capacity = &capacity
		}
		out.Rooms[i] = room
	}
	return out
}

func validateConferenceInput(input ConferenceInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	if input.WindowStart.IsZero() {
		vErr.add("window_start", "window start is required")
	}
	if input.WindowEnd.IsZero() {
		vErr.add("window_end", "window end is required")
	}
	if !input.WindowStart.IsZero() && !input.WindowEnd.IsZero() && !input.WindowStart.Before(input.WindowEnd) {
		vErr.add("window_end", "window end must be after window start")
	}
	window := scheduler.Window{Start: input.WindowStart, End: input.WindowEnd}
	if _, ok := scheduler.SlotDuration(input.SlotDurationMinutes); !ok {
		vErr.add("slot_duration_minutes", "slot duration must be a positive number of minutes")
	} else if window.Valid() && len(input.Rooms) > 0 {
		if _, err := scheduler.SlotCount(window, len(input.Rooms), input.SlotDurationMinutes); err != nil {
			vErr.add("slot_duration_minutes", "slot duration produces too many slots")
		}
	}
	if len(input.Rooms) == 0 {
		vErr.add("rooms", "at least one room is required")
	}

	seen := make(map[string]struct{}, len(input.Rooms))
	for i, room := range input.Rooms {
		field := fmt.Sprintf("rooms[%d]", i)
		key := room.Key()
		if key == "" {
			vErr.add(field, "room id or name is required")
			continue
		}
		if _, dup := seen[key]; dup {
			vErr.add(field, "duplicate room")
			continue
		}
		seen[key] = struct{}{}
		if room.Capacity != nil && *room.Capacity < 0 {
			vErr.add(field+".capacity", "capacity cannot be negative")
		}
	}

	return vErr
}

func validPaperStatus(status scheduler.PaperStatus) bool {
	switch status {
	case scheduler.PaperSubmitted, scheduler.PaperAccepted, scheduler.PaperRejected, scheduler.PaperWithdrawn:
		return true
	}
	return false
}
