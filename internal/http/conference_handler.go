package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/scheduler"
)

type conferenceService interface {
	SaveConference(ctx context.Context, input application.ConferenceInput) (application.Conference, error)
	GetConference(ctx context.Context, id string) (application.Conference, error)
	RegisterPapers(ctx context.Context, conferenceID string, inputs []application.PaperInput) ([]scheduler.Paper, error)
}

type ConferenceHandler struct {
	service   conferenceService
	responder responder
	logger    *slog.Logger
}

func NewConferenceHandler(service conferenceService, logger *slog.Logger) *ConferenceHandler {
	base := defaultLogger(logger)
	return &ConferenceHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ConferenceHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ConferenceHandler", operation, attrs...)
}

// Put creates or replaces the conference named by the path.
func (h *ConferenceHandler) Put(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	conferenceID, ok := ConferenceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(conferenceID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidConferenceID)
		return
	}

	var req conferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Put", "conference_id", conferenceID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode conference request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	conference, err := h.service.SaveConference(r.Context(), req.toInput(conferenceID))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toConferenceDTO(conference))
}

// Get returns the conference named by the path.
func (h *ConferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	conferenceID, ok := ConferenceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(conferenceID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidConferenceID)
		return
	}

	conference, err := h.service.GetConference(r.Context(), conferenceID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toConferenceDTO(conference))
}

// PutPapers replaces the paper list of the conference named by the path.
func (h *ConferenceHandler) PutPapers(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	conferenceID, ok := ConferenceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(conferenceID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidConferenceID)
		return
	}

	var req papersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "PutPapers", "conference_id", conferenceID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode papers request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	inputs := make([]application.PaperInput, 0, len(req.Papers))
	for _, paper := range req.Papers {
		inputs = append(inputs, application.PaperInput{
			ID:               paper.ID,
			Title:            paper.Title,
			Status:           scheduler.PaperStatus(strings.TrimSpace(paper.Status)),
			MetadataComplete: paper.MetadataComplete,
		})
	}

	papers, err := h.service.RegisterPapers(r.Context(), conferenceID, inputs)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "PutPapers", "conference_id", conferenceID).InfoContext(r.Context(), "papers replaced", "papers", len(papers))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, papersResponse{Papers: toPaperDTOs(papers)})
}

type roomPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity *int   `json:"capacity,omitempty"`
}

type conferenceRequest struct {
	Name                string        `json:"name"`
	WindowStart         string        `json:"windowStart"`
	WindowEnd           string        `json:"windowEnd"`
	SlotDurationMinutes float64       `json:"slotDurationMinutes"`
	Rooms               []roomPayload `json:"rooms"`
}

func (r conferenceRequest) toInput(id string) application.ConferenceInput {
	rooms := make([]scheduler.Room, 0, len(r.Rooms))
	for _, room := range r.Rooms {
		rooms = append(rooms, scheduler.Room{ID: room.ID, Name: room.Name, Capacity: room.Capacity})
	}
	return application.ConferenceInput{
		ID:                  id,
		Name:                r.Name,
		WindowStart:         parseTime(r.WindowStart),
		WindowEnd:           parseTime(r.WindowEnd),
		SlotDurationMinutes: r.SlotDurationMinutes,
		Rooms:               rooms,
	}
}

type conferenceDTO struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	WindowStart         string        `json:"windowStart"`
	WindowEnd           string        `json:"windowEnd"`
	SlotDurationMinutes float64       `json:"slotDurationMinutes"`
	Rooms               []roomPayload `json:"rooms"`
	CreatedAt           string        `json:"createdAt"`
	UpdatedAt           string        `json:"updatedAt"`
}

func toConferenceDTO(conference application.Conference) conferenceDTO {
	rooms := make([]roomPayload, 0, len(conference.Rooms))
	for _, room := range conference.Rooms {
		rooms = append(rooms, roomPayload{ID: room.ID, Name: room.Name, Capacity: room.Capacity})
	}
	return conferenceDTO{
		ID:                  conference.ID,
		Name:                conference.Name,
		WindowStart:         formatTime(conference.WindowStart),
		WindowEnd:           formatTime(conference.WindowEnd),
		SlotDurationMinutes: conference.SlotDurationMinutes,
		Rooms:               rooms,
		CreatedAt:           formatTime(conference.CreatedAt),
		UpdatedAt:           formatTime(conference.UpdatedAt),
	}
}

type paperPayload struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Status           string `json:"status"`
	MetadataComplete bool   `json:"metadataComplete"`
}

type papersRequest struct {
	Papers []paperPayload `json:"papers"`
}

type papersResponse struct {
	Papers []paperPayload `json:"papers"`
}

func toPaperDTOs(papers []scheduler.Paper) []paperPayload {
	out := make([]paperPayload, 0, len(papers))
	for _, paper := range papers {
		out = append(out, paperPayload{
			ID:               paper.ID,
			Title:            paper.Title,
			Status:           string(paper.Status),
			MetadataComplete: paper.MetadataComplete,
		})
	}
	return out
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}
