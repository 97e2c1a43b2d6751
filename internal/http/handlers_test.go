package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/persistence/memory"
	"github.com/example/conference-scheduler/internal/scheduler"
	"github.com/example/conference-scheduler/internal/testfixtures"
)

type scheduleServiceStub struct {
	generateResult application.GenerateDraftResult
	view           application.ScheduleView
	editResult     application.EditResult
	schedule       application.Schedule
	err            error

	lastEdit application.UpdateEntryParams
}

func (s *scheduleServiceStub) GenerateDraft(ctx context.Context, conferenceID string) (application.GenerateDraftResult, error) {
	return s.generateResult, s.err
}

func (s *scheduleServiceStub) GetDraftSchedule(ctx context.Context, conferenceID string) (application.ScheduleView, error) {
	return s.view, s.err
}

func (s *scheduleServiceStub) GetPublishedSchedule(ctx context.Context, conferenceID string) (application.ScheduleView, error) {
	return s.view, s.err
}

func (s *scheduleServiceStub) UpdateScheduleEntry(ctx context.Context, params application.UpdateEntryParams) (application.EditResult, error) {
	s.lastEdit = params
	return s.editResult, s.err
}

func (s *scheduleServiceStub) SaveSchedule(ctx context.Context, conferenceID string) (application.Schedule, error) {
	return s.schedule, s.err
}

func (s *scheduleServiceStub) Publish(ctx context.Context, conferenceID string) (application.Schedule, error) {
	return s.schedule, s.err
}

type conferenceServiceStub struct {
	conference application.Conference
	err        error

	lastInput  application.ConferenceInput
	lastPapers []application.PaperInput
}

func (s *conferenceServiceStub) SaveConference(ctx context.Context, input application.ConferenceInput) (application.Conference, error) {
	s.lastInput = input
	if s.err != nil {
		return application.Conference{}, s.err
	}
	return application.Conference{ID: input.ID, Name: input.Name, WindowStart: input.WindowStart, WindowEnd: input.WindowEnd, SlotDurationMinutes: input.SlotDurationMinutes, Rooms: input.Rooms}, nil
}

func (s *conferenceServiceStub) GetConference(ctx context.Context, id string) (application.Conference, error) {
	return s.conference, s.err
}

func (s *conferenceServiceStub) RegisterPapers(ctx context.Context, conferenceID string, inputs []application.PaperInput) ([]scheduler.Paper, error) {
	s.lastPapers = inputs
	if s.err != nil {
		return nil, s.err
	}
	papers := make([]scheduler.Paper, 0, len(inputs))
	for _, input := range inputs {
		papers = append(papers, scheduler.Paper{ID: input.ID, ConferenceID: conferenceID, Title: input.Title, Status: input.Status})
	}
	return papers, nil
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(recorder.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return out
}

func serve(handler http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestStatusForReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reason scheduler.Reason
		status int
	}{
		{scheduler.ReasonInvalidInputs, http.StatusUnprocessableEntity},
		{scheduler.ReasonOutsideWindow, http.StatusUnprocessableEntity},
		{scheduler.ReasonInvalidTime, http.StatusUnprocessableEntity},
		{scheduler.ReasonUnscheduled, http.StatusUnprocessableEntity},
		{scheduler.ReasonNotFound, http.StatusNotFound},
		{scheduler.ReasonConflict, http.StatusConflict},
		{scheduler.ReasonDuplicatePaper, http.StatusConflict},
		{scheduler.ReasonVersionConflict, http.StatusConflict},
		{scheduler.ReasonGenerationTimeout, http.StatusServiceUnavailable},
		{scheduler.ReasonSaveFailed, http.StatusInternalServerError},
		{scheduler.ReasonScheduleNotFound, http.StatusNotFound},
		{scheduler.ReasonPublishStorageFailure, http.StatusInternalServerError},
		{scheduler.ReasonConferenceStorageFailure, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		if got := statusForReason(tc.reason); got != tc.status {
			t.Errorf("reason %s: expected status %d, got %d", tc.reason, tc.status, got)
		}
	}
}

func TestConferenceHandler(t *testing.T) {
	t.Parallel()

	t.Run("put decodes the conference definition", func(t *testing.T) {
		t.Parallel()

		service := &conferenceServiceStub{}
		router := NewRouter(RouterConfig{Conferences: NewConferenceHandler(service, nil)})

		body := `{"name":"GopherCon","windowStart":"2025-05-01T09:00:00Z","windowEnd":"2025-05-01T10:00:00Z","slotDurationMinutes":30,"rooms":[{"id":"r1","name":"Hall","capacity":120}]}`
		recorder := serve(router, http.MethodPut, "/conferences/conf-1", body, nil)
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if service.lastInput.ID != "conf-1" || service.lastInput.SlotDurationMinutes != 30 {
			t.Fatalf("unexpected input %#v", service.lastInput)
		}
		if len(service.lastInput.Rooms) != 1 || service.lastInput.Rooms[0].Capacity == nil || *service.lastInput.Rooms[0].Capacity != 120 {
			t.Fatalf("unexpected rooms %#v", service.lastInput.Rooms)
		}

		dto := decodeBody[conferenceDTO](t, recorder)
		if dto.WindowStart != "2025-05-01T09:00:00Z" || dto.Rooms[0].Name != "Hall" {
			t.Fatalf("unexpected response %#v", dto)
		}
	})

	t.Run("validation errors are localized", func(t *testing.T) {
		t.Parallel()

		service := &conferenceServiceStub{err: &application.ValidationError{FieldErrors: map[string]string{"name": "name is required"}}}
		router := NewRouter(RouterConfig{Conferences: NewConferenceHandler(service, nil)})

		recorder := serve(router, http.MethodPut, "/conferences/conf-1", `{}`, nil)
		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", recorder.Code)
		}
		resp := decodeBody[errorResponse](t, recorder)
		if resp.Errors["name"] != "学会名は必須です。" {
			t.Fatalf("expected translated message, got %#v", resp.Errors)
		}
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Conferences: NewConferenceHandler(&conferenceServiceStub{}, nil)})
		recorder := serve(router, http.MethodPut, "/conferences/conf-1/papers", `{"papers":`, nil)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
	})

	t.Run("papers keep their order and status", func(t *testing.T) {
		t.Parallel()

		service := &conferenceServiceStub{}
		router := NewRouter(RouterConfig{Conferences: NewConferenceHandler(service, nil)})
		body := `{"papers":[{"id":"p2","title":"B","status":"accepted","metadataComplete":true},{"id":"p1","title":"A","status":" rejected "}]}`
		recorder := serve(router, http.MethodPut, "/conferences/conf-1/papers", body, nil)
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if len(service.lastPapers) != 2 || service.lastPapers[0].ID != "p2" || service.lastPapers[1].Status != scheduler.PaperRejected {
			t.Fatalf("unexpected papers %#v", service.lastPapers)
		}
	})

	t.Run("unknown conference is not found", func(t *testing.T) {
		t.Parallel()

		service := &conferenceServiceStub{err: fmt.Errorf("get: %w", application.ErrNotFound)}
		router := NewRouter(RouterConfig{Conferences: NewConferenceHandler(service, nil)})
		recorder := serve(router, http.MethodGet, "/conferences/missing", "", nil)
		if recorder.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", recorder.Code)
		}
	})
}

func TestScheduleHandler_Reasons(t *testing.T) {
	t.Parallel()

	t.Run("generation timeout is unavailable", func(t *testing.T) {
		t.Parallel()

		service := &scheduleServiceStub{generateResult: application.GenerateDraftResult{
			GenerateResult: application.GenerateResult{Reason: scheduler.ReasonGenerationTimeout},
		}}
		router := NewRouter(RouterConfig{Schedules: NewScheduleHandler(service, nil)})
		recorder := serve(router, http.MethodPost, "/conferences/conf-1/schedule/generate", "", nil)
		if recorder.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", recorder.Code)
		}
		if resp := decodeBody[errorResponse](t, recorder); resp.ErrorCode != "generation_timeout" {
			t.Fatalf("expected generation_timeout code, got %#v", resp)
		}
	})

	t.Run("edit conflict reports the colliding entry", func(t *testing.T) {
		t.Parallel()

		conflict := scheduler.Entry{ID: "e2", PaperID: "p2", RoomID: "r1", Status: scheduler.EntryScheduled}
		service := &scheduleServiceStub{editResult: application.EditResult{Reason: scheduler.ReasonConflict, ConflictEntry: &conflict}}
		router := NewRouter(RouterConfig{Schedules: NewScheduleHandler(service, nil)})

		body := `{"roomId":"r1","start":"2025-05-01T09:30:00Z","end":"2025-05-01T10:00:00Z","scheduleVersion":3}`
		recorder := serve(router, http.MethodPatch, "/conferences/conf-1/schedule/entries/e1", body, nil)
		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
		resp := decodeBody[errorResponse](t, recorder)
		if resp.ErrorCode != "conflict" || resp.ConflictEntry == nil || resp.ConflictEntry.ID != "e2" {
			t.Fatalf("unexpected response %#v", resp)
		}
		if service.lastEdit.EntryID != "e1" || service.lastEdit.ScheduleVersion != 3 || service.lastEdit.RoomID == nil || *service.lastEdit.RoomID != "r1" {
			t.Fatalf("unexpected params %#v", service.lastEdit)
		}
	})

	t.Run("omitted fields are kept and empty ones cleared", func(t *testing.T) {
		t.Parallel()

		service := &scheduleServiceStub{editResult: application.EditResult{Reason: scheduler.ReasonUnscheduled}}
		router := NewRouter(RouterConfig{Schedules: NewScheduleHandler(service, nil)})

		recorder := serve(router, http.MethodPatch, "/conferences/conf-1/schedule/entries/e1", `{"start":"","scheduleVersion":1}`, nil)
		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", recorder.Code)
		}
		if service.lastEdit.RoomID != nil || service.lastEdit.End != nil {
			t.Fatalf("expected omitted fields to stay nil, got %#v", service.lastEdit)
		}
		if service.lastEdit.Start == nil || !service.lastEdit.Start.IsZero() {
			t.Fatalf("expected cleared start, got %#v", service.lastEdit.Start)
		}
	})

	t.Run("missing schedule version is a bad request", func(t *testing.T) {
		t.Parallel()

		service := &scheduleServiceStub{}
		router := NewRouter(RouterConfig{Schedules: NewScheduleHandler(service, nil)})
		recorder := serve(router, http.MethodPatch, "/conferences/conf-1/schedule/entries/e1", `{"roomId":"r2"}`, nil)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
		if service.lastEdit.EntryID != "" {
			t.Fatalf("service must not be called")
		}
	})

	t.Run("unparseable timestamps are rejected", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Schedules: NewScheduleHandler(&scheduleServiceStub{}, nil)})
		recorder := serve(router, http.MethodPatch, "/conferences/conf-1/schedule/entries/e1", `{"start":"tomorrow","scheduleVersion":1}`, nil)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
	})

	t.Run("publish storage failure is an internal error", func(t *testing.T) {
		t.Parallel()

		service := &scheduleServiceStub{err: &application.ReasonError{Reason: scheduler.ReasonPublishStorageFailure, Err: errors.New("disk full")}}
		router := NewRouter(RouterConfig{Schedules: NewScheduleHandler(service, nil)})
		recorder := serve(router, http.MethodPost, "/conferences/conf-1/schedule/publish", "", nil)
		if recorder.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", recorder.Code)
		}
		if resp := decodeBody[errorResponse](t, recorder); resp.ErrorCode != "publish_storage_failure" {
			t.Fatalf("unexpected code %#v", resp)
		}
	})
}

func TestRouter_Methods(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterConfig{
		Conferences: NewConferenceHandler(&conferenceServiceStub{}, nil),
		Schedules:   NewScheduleHandler(&scheduleServiceStub{}, nil),
	})

	tests := []struct {
		method string
		path   string
		status int
		allow  string
	}{
		{http.MethodDelete, "/conferences/conf-1", http.StatusMethodNotAllowed, "GET, PUT"},
		{http.MethodGet, "/conferences/conf-1/schedule/generate", http.StatusMethodNotAllowed, "POST"},
		{http.MethodPost, "/conferences/conf-1/schedule/published", http.StatusMethodNotAllowed, "GET"},
		{http.MethodPut, "/conferences/conf-1/schedule/entries/e1", http.StatusMethodNotAllowed, "PATCH"},
		{http.MethodGet, "/conferences/", http.StatusNotFound, ""},
		{http.MethodGet, "/conferences/conf-1/schedule/published.pdf", http.StatusNotFound, ""},
		{http.MethodGet, "/conferences/conf-1/unknown", http.StatusNotFound, ""},
		{http.MethodGet, "/healthz", http.StatusNoContent, ""},
	}

	for _, tc := range tests {
		recorder := serve(router, tc.method, tc.path, "", nil)
		if recorder.Code != tc.status {
			t.Errorf("%s %s: expected %d, got %d", tc.method, tc.path, tc.status, recorder.Code)
		}
		if tc.allow != "" && recorder.Header().Get("Allow") != tc.allow {
			t.Errorf("%s %s: expected Allow %q, got %q", tc.method, tc.path, tc.allow, recorder.Header().Get("Allow"))
		}
	}
}

type auditCollector struct {
	mu     sync.Mutex
	events []application.AuditEvent
}

func (a *auditCollector) Record(ctx context.Context, event application.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *auditCollector) types() []application.AuditEventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]application.AuditEventType, 0, len(a.events))
	for _, event := range a.events {
		out = append(out, event.Type)
	}
	return out
}

func newTestAPI(t *testing.T, audit application.AuditSink) http.Handler {
	t.Helper()

	factory := testfixtures.NewServiceFactory(
		testfixtures.WithClock(testfixtures.NewClock(testfixtures.ReferenceTime())),
	)
	stack, _ := factory.NewMemoryStack(memory.Snapshot{}, application.Hooks{Audit: audit})

	return NewRouter(RouterConfig{
		Conferences: NewConferenceHandler(stack.Conferences, nil),
		Schedules:   NewScheduleHandler(stack.Schedules, nil),
		Middleware:  []func(http.Handler) http.Handler{RequestLogger(nil)},
	})
}

func findEntry(t *testing.T, entries []entryDTO, paperID string) entryDTO {
	t.Helper()
	for _, entry := range entries {
		if entry.PaperID == paperID {
			return entry
		}
	}
	t.Fatalf("no entry for paper %s in %#v", paperID, entries)
	return entryDTO{}
}

func TestAPI_ScheduleLifecycle(t *testing.T) {
	t.Parallel()

	audit := &auditCollector{}
	api := newTestAPI(t, audit)

	conference := `{"name":"GopherCon","windowStart":"2025-05-01T09:00:00Z","windowEnd":"2025-05-01T10:00:00Z","slotDurationMinutes":30,"rooms":[{"id":"r1","name":"Hall"}]}`
	if rec := serve(api, http.MethodPut, "/conferences/conf-1", conference, nil); rec.Code != http.StatusOK {
		t.Fatalf("put conference: %d %s", rec.Code, rec.Body.String())
	}
	papers := `{"papers":[
		{"id":"p1","title":"Generics in practice","status":"accepted","metadataComplete":true},
		{"id":"p2","title":"Profiling","status":"accepted","metadataComplete":true},
		{"id":"p3","title":"Fuzzing","status":"accepted","metadataComplete":true},
		{"id":"p4","title":"Rejected talk","status":"rejected","metadataComplete":true}
	]}`
	if rec := serve(api, http.MethodPut, "/conferences/conf-1/papers", papers, nil); rec.Code != http.StatusOK {
		t.Fatalf("put papers: %d %s", rec.Code, rec.Body.String())
	}

	if rec := serve(api, http.MethodPost, "/conferences/conf-1/schedule/save", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("save before generate: expected 404, got %d", rec.Code)
	}

	rec := serve(api, http.MethodPost, "/conferences/conf-1/schedule/generate", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", rec.Code, rec.Body.String())
	}
	generated := decodeBody[generateResponse](t, rec)
	if generated.TotalSlots != 2 || generated.TotalAccepted != 3 || len(generated.Items) != 2 || len(generated.Unscheduled) != 1 {
		t.Fatalf("unexpected generation %#v", generated)
	}
	if generated.Unscheduled[0].PaperID != "p3" || generated.Unscheduled[0].Reason != "capacity_shortfall" {
		t.Fatalf("expected p3 to be left over, got %#v", generated.Unscheduled[0])
	}
	if generated.Schedule.Version != 1 || generated.Schedule.Status != "draft" {
		t.Fatalf("unexpected schedule %#v", generated.Schedule)
	}

	rec = serve(api, http.MethodGet, "/conferences/conf-1/schedule/draft", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("draft: %d", rec.Code)
	}
	draft := decodeBody[scheduleViewDTO](t, rec)
	first := findEntry(t, draft.Entries, "p1")
	second := findEntry(t, draft.Entries, "p2")
	if first.PaperTitle != "Generics in practice" {
		t.Fatalf("expected paper title in view, got %#v", first)
	}

	moveOnto := fmt.Sprintf(`{"roomId":"r1","start":%q,"end":%q,"scheduleVersion":1}`, second.Start, second.End)
	rec = serve(api, http.MethodPatch, "/conferences/conf-1/schedule/entries/"+first.ID, moveOnto, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("conflicting edit: expected 409, got %d", rec.Code)
	}
	if resp := decodeBody[errorResponse](t, rec); resp.ConflictEntry == nil || resp.ConflictEntry.ID != second.ID {
		t.Fatalf("expected conflict with %s, got %#v", second.ID, resp)
	}

	stay := fmt.Sprintf(`{"start":%q,"end":%q,"scheduleVersion":%d}`, first.Start, first.End, 7)
	rec = serve(api, http.MethodPatch, "/conferences/conf-1/schedule/entries/"+first.ID, stay, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("stale edit: expected 409, got %d", rec.Code)
	}
	if resp := decodeBody[errorResponse](t, rec); resp.ErrorCode != "version_conflict" {
		t.Fatalf("expected version_conflict, got %#v", resp)
	}

	unschedule := `{"roomId":"","start":"","end":"","scheduleVersion":1}`
	rec = serve(api, http.MethodPatch, "/conferences/conf-1/schedule/entries/"+second.ID, unschedule, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blanking edit: expected 422, got %d", rec.Code)
	}

	stay = fmt.Sprintf(`{"start":%q,"end":%q,"scheduleVersion":1}`, first.Start, first.End)
	rec = serve(api, http.MethodPatch, "/conferences/conf-1/schedule/entries/"+first.ID, stay, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit: %d %s", rec.Code, rec.Body.String())
	}
	if edited := decodeBody[scheduleViewDTO](t, rec); edited.Schedule.Version != 2 {
		t.Fatalf("expected version 2, got %d", edited.Schedule.Version)
	}

	if rec := serve(api, http.MethodGet, "/conferences/conf-1/schedule/published", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unpublished view: expected 404, got %d", rec.Code)
	}

	rec = serve(api, http.MethodPost, "/conferences/conf-1/schedule/publish", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("publish: %d %s", rec.Code, rec.Body.String())
	}
	if published := decodeBody[scheduleResponse](t, rec); published.Schedule.Status != "published" {
		t.Fatalf("unexpected status %#v", published.Schedule)
	}

	rec = serve(api, http.MethodGet, "/conferences/conf-1/schedule/published", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("published view: %d", rec.Code)
	}
	if view := decodeBody[scheduleViewDTO](t, rec); len(view.Entries) != 3 || view.Conference == nil || view.Conference.Name != "GopherCon" {
		t.Fatalf("unexpected published view %#v", view)
	}

	rec = serve(api, http.MethodGet, "/conferences/conf-1/schedule/published.ics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ics export: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("BEGIN:VCALENDAR")) {
		t.Fatalf("expected calendar body, got %q", rec.Body.String())
	}

	rec = serve(api, http.MethodGet, "/conferences/conf-1/schedule/published.xlsx", "", nil)
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("xlsx export: %d", rec.Code)
	}

	rec = serve(api, http.MethodPatch, "/conferences/conf-1/schedule/entries/"+first.ID, stay, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("edit after publish: expected 404, got %d", rec.Code)
	}

	types := audit.types()
	want := map[application.AuditEventType]bool{
		application.AuditScheduleConflict:     false,
		application.AuditScheduleConcurrency:  false,
		application.AuditScheduleAccessDenied: false,
		application.AuditScheduleEditDenied:   false,
	}
	for _, typ := range types {
		if _, ok := want[typ]; ok {
			want[typ] = true
		}
	}
	for typ, seen := range want {
		if !seen {
			t.Errorf("expected audit event %s, got %v", typ, types)
		}
	}
}
