package http

import (
	"net/http"
	"strings"

	"github.com/example/conference-scheduler/internal/export"
)

type RouterConfig struct {
	Conferences *ConferenceHandler
	Schedules   *ScheduleHandler
	// Protect wraps every route except the published schedule and its exports.
	Protect    func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	guard := func(h http.HandlerFunc) http.Handler {
		if cfg.Protect == nil {
			return h
		}
		return cfg.Protect(h)
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/conferences/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/conferences/"), "/")
		parts := strings.Split(rest, "/")
		if rest == "" || parts[0] == "" {
			http.NotFound(w, r)
			return
		}
		ctx := ContextWithConferenceID(r.Context(), parts[0])
		r = r.WithContext(ctx)

		switch {
		case len(parts) == 1 && cfg.Conferences != nil:
			switch r.Method {
			case http.MethodGet:
				guard(cfg.Conferences.Get).ServeHTTP(w, r)
			case http.MethodPut:
				guard(cfg.Conferences.Put).ServeHTTP(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut)
			}
		case len(parts) == 2 && parts[1] == "papers" && cfg.Conferences != nil:
			if r.Method != http.MethodPut {
				methodNotAllowed(w, http.MethodPut)
				return
			}
			guard(cfg.Conferences.PutPapers).ServeHTTP(w, r)
		case len(parts) == 3 && parts[1] == "schedule" && cfg.Schedules != nil:
			routeSchedule(w, r, cfg.Schedules, parts[2], guard)
		case len(parts) == 4 && parts[1] == "schedule" && parts[2] == "entries" && cfg.Schedules != nil:
			if parts[3] == "" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodPatch {
				methodNotAllowed(w, http.MethodPatch)
				return
			}
			r = r.WithContext(ContextWithEntryID(r.Context(), parts[3]))
			guard(cfg.Schedules.UpdateEntry).ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func routeSchedule(w http.ResponseWriter, r *http.Request, h *ScheduleHandler, action string, guard func(http.HandlerFunc) http.Handler) {
	post := func(fn http.HandlerFunc) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		guard(fn).ServeHTTP(w, r)
	}
	get := func(fn http.HandlerFunc) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		fn(w, r)
	}

	switch action {
	case "generate":
		post(h.Generate)
	case "save":
		post(h.Save)
	case "publish":
		post(h.Publish)
	case "draft":
		get(func(w http.ResponseWriter, r *http.Request) { guard(h.Draft).ServeHTTP(w, r) })
	case "published":
		get(h.Published)
	default:
		name, ok := strings.CutPrefix(action, "published.")
		if !ok {
			http.NotFound(w, r)
			return
		}
		format, ok := export.ParseFormat(name)
		if !ok {
			http.NotFound(w, r)
			return
		}
		get(func(w http.ResponseWriter, r *http.Request) { h.Export(w, r, format) })
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
