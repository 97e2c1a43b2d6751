package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/export"
	"github.com/example/conference-scheduler/internal/scheduler"
)

var (
	errMissingScheduleVersion = errors.New("scheduleVersion を指定してください。")
	errInvalidTimestamp       = errors.New("日時は RFC 3339 形式で指定してください。")
)

type scheduleService interface {
	GenerateDraft(ctx context.Context, conferenceID string) (application.GenerateDraftResult, error)
	GetDraftSchedule(ctx context.Context, conferenceID string) (application.ScheduleView, error)
	GetPublishedSchedule(ctx context.Context, conferenceID string) (application.ScheduleView, error)
	UpdateScheduleEntry(ctx context.Context, params application.UpdateEntryParams) (application.EditResult, error)
	SaveSchedule(ctx context.Context, conferenceID string) (application.Schedule, error)
	Publish(ctx context.Context, conferenceID string) (application.Schedule, error)
}

type ScheduleHandler struct {
	service   scheduleService
	responder responder
	logger    *slog.Logger
	location  *time.Location
}

// NewScheduleHandler returns a handler whose spreadsheet exports render times in UTC.
func NewScheduleHandler(service scheduleService, logger *slog.Logger) *ScheduleHandler {
	return NewScheduleHandlerWithLocation(service, logger, time.UTC)
}

// NewScheduleHandlerWithLocation returns a handler whose spreadsheet exports render times in loc.
func NewScheduleHandlerWithLocation(service scheduleService, logger *slog.Logger, loc *time.Location) *ScheduleHandler {
	base := defaultLogger(logger)
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleHandler{service: service, responder: newResponder(base), logger: base, location: loc}
}

func (h *ScheduleHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ScheduleHandler", operation, attrs...)
}

func (h *ScheduleHandler) conferenceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	conferenceID, ok := ConferenceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(conferenceID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidConferenceID)
		return "", false
	}
	return conferenceID, true
}

// Generate allocates the conference's accepted papers and stores the result as its draft.
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	conferenceID, ok := h.conferenceID(w, r)
	if !ok {
		return
	}

	result, err := h.service.GenerateDraft(r.Context(), conferenceID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if !result.OK {
		h.responder.writeReason(r.Context(), w, result.Reason, nil)
		return
	}

	response := generateResponse{
		TotalSlots:    result.TotalSlots,
		TotalAccepted: result.TotalAccepted,
		Items:         toEntryDTOs(result.Items, nil),
		Unscheduled:   toEntryDTOs(result.Unscheduled, nil),
	}
	if result.Schedule != nil {
		response.Schedule = toScheduleDTO(*result.Schedule)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

// Draft returns the current schedule of the conference, whatever its status.
func (h *ScheduleHandler) Draft(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	conferenceID, ok := h.conferenceID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetDraftSchedule(r.Context(), conferenceID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toScheduleViewDTO(view))
}

// Published returns the public view of the conference's schedule.
func (h *ScheduleHandler) Published(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	conferenceID, ok := h.conferenceID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetPublishedSchedule(r.Context(), conferenceID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toScheduleViewDTO(view))
}

// Export renders the published schedule as a file download.
func (h *ScheduleHandler) Export(w http.ResponseWriter, r *http.Request, format export.Format) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	conferenceID, ok := h.conferenceID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetPublishedSchedule(r.Context(), conferenceID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, view, h.location); err != nil {
		h.log(r.Context(), "Export", "conference_id", conferenceID, "format", string(format)).
			ErrorContext(r.Context(), "failed to render export", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", conferenceID+"-schedule."+string(format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.log(r.Context(), "Export", "conference_id", conferenceID).WarnContext(r.Context(), "failed to write export", "error", err)
	}
}

// UpdateEntry edits the room and time of one schedule entry.
func (h *ScheduleHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	conferenceID, ok := h.conferenceID(w, r)
	if !ok {
		return
	}
	entryID, ok := EntryIDFromContext(r.Context())
	if !ok || strings.TrimSpace(entryID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEntryID)
		return
	}

	var req entryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpdateEntry", "conference_id", conferenceID, "entry_id", entryID, "error_kind", "bad_request").
			ErrorContext(r.Context(), "failed to decode entry update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	params, err := req.toParams(conferenceID, entryID)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	result, err := h.service.UpdateScheduleEntry(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if !result.OK {
		var conflict *entryDTO
		if result.ConflictEntry != nil {
			dto := toEntryDTO(*result.ConflictEntry, nil)
			conflict = &dto
		}
		h.responder.writeReason(r.Context(), w, result.Reason, conflict)
		return
	}

	response := scheduleViewDTO{Entries: toEntryDTOs(result.Entries, nil)}
	if result.Schedule != nil {
		response.Schedule = toScheduleDTO(*result.Schedule)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

// Save moves the conference's draft to saved.
func (h *ScheduleHandler) Save(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Save", func(ctx context.Context, conferenceID string) (application.Schedule, error) {
		return h.service.SaveSchedule(ctx, conferenceID)
	})
}

// Publish makes the conference's schedule public.
func (h *ScheduleHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Publish", func(ctx context.Context, conferenceID string) (application.Schedule, error) {
		return h.service.Publish(ctx, conferenceID)
	})
}

func (h *ScheduleHandler) transition(w http.ResponseWriter, r *http.Request, operation string, apply func(context.Context, string) (application.Schedule, error)) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	conferenceID, ok := h.conferenceID(w, r)
	if !ok {
		return
	}

	schedule, err := apply(r.Context(), conferenceID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), operation, "conference_id", conferenceID).
		InfoContext(r.Context(), "schedule status changed", "status", string(schedule.Status), "version", schedule.Version)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, scheduleResponse{Schedule: toScheduleDTO(schedule)})
}

// entryUpdateRequest distinguishes an absent field (keep the current value) from an empty
// string (clear it).
type entryUpdateRequest struct {
	RoomID          *string `json:"roomId"`
	Start           *string `json:"start"`
	End             *string `json:"end"`
	ScheduleVersion *int64  `json:"scheduleVersion"`
}

func (r entryUpdateRequest) toParams(conferenceID, entryID string) (application.UpdateEntryParams, error) {
	if r.ScheduleVersion == nil {
		return application.UpdateEntryParams{}, errMissingScheduleVersion
	}
	start, err := parseOptionalTime(r.Start)
	if err != nil {
		return application.UpdateEntryParams{}, err
	}
	end, err := parseOptionalTime(r.End)
	if err != nil {
		return application.UpdateEntryParams{}, err
	}

	var roomID *string
	if r.RoomID != nil {
		trimmed := strings.TrimSpace(*r.RoomID)
		roomID = &trimmed
	}
	return application.UpdateEntryParams{
		ConferenceID:    conferenceID,
		EntryID:         entryID,
		RoomID:          roomID,
		Start:           start,
		End:             end,
		ScheduleVersion: *r.ScheduleVersion,
	}, nil
}

func parseOptionalTime(value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return &time.Time{}, nil
	}
	ts := parseTime(trimmed)
	if ts.IsZero() {
		return nil, errInvalidTimestamp
	}
	return &ts, nil
}

type scheduleDTO struct {
	ID           string `json:"id"`
	ConferenceID string `json:"conferenceId"`
	Status       string `json:"status"`
	Version      int64  `json:"version"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

func toScheduleDTO(schedule application.Schedule) scheduleDTO {
	return scheduleDTO{
		ID:           schedule.ID,
		ConferenceID: schedule.ConferenceID,
		Status:       string(schedule.Status),
		Version:      schedule.Version,
		CreatedAt:    formatTime(schedule.CreatedAt),
		UpdatedAt:    formatTime(schedule.UpdatedAt),
	}
}

type entryDTO struct {
	ID         string `json:"id"`
	PaperID    string `json:"paperId"`
	PaperTitle string `json:"paperTitle,omitempty"`
	RoomID     string `json:"roomId,omitempty"`
	SlotID     string `json:"slotId,omitempty"`
	Start      string `json:"start,omitempty"`
	End        string `json:"end,omitempty"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
}

func toEntryDTO(entry scheduler.Entry, papers map[string]scheduler.Paper) entryDTO {
	dto := entryDTO{
		ID:      entry.ID,
		PaperID: entry.PaperID,
		RoomID:  entry.RoomID,
		SlotID:  entry.SlotID,
		Start:   formatTime(entry.Start),
		End:     formatTime(entry.End),
		Status:  string(entry.Status),
		Reason:  entry.Reason.String(),
	}
	if paper, ok := papers[entry.PaperID]; ok {
		dto.PaperTitle = paper.Title
	}
	return dto
}

func toEntryDTOs(entries []scheduler.Entry, papers map[string]scheduler.Paper) []entryDTO {
	out := make([]entryDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toEntryDTO(entry, papers))
	}
	return out
}

type scheduleResponse struct {
	Schedule scheduleDTO `json:"schedule"`
}

type scheduleViewDTO struct {
	Schedule   scheduleDTO    `json:"schedule"`
	Conference *conferenceDTO `json:"conference,omitempty"`
	Entries    []entryDTO     `json:"entries"`
}

func toScheduleViewDTO(view application.ScheduleView) scheduleViewDTO {
	conference := toConferenceDTO(view.Conference)
	return scheduleViewDTO{
		Schedule:   toScheduleDTO(view.Schedule),
		Conference: &conference,
		Entries:    toEntryDTOs(view.Entries, view.Papers),
	}
}

type generateResponse struct {
	Schedule      scheduleDTO `json:"schedule"`
	Items         []entryDTO  `json:"items"`
	Unscheduled   []entryDTO  `json:"unscheduled"`
	TotalSlots    int         `json:"totalSlots"`
	TotalAccepted int         `json:"totalAccepted"`
}
