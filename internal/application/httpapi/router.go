// Package httpapi exposes resolution, lookup and entity data over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/ersonp/newsground/internal/application/handlers"
	"github.com/ersonp/newsground/internal/domain/entities"
)

const (
	// maxBodyBytes caps POST bodies.
	maxBodyBytes = 4 << 20
	// maxGroundMentions caps the mentions accepted by one ground request.
	maxGroundMentions = 1000
	defaultTimeout    = 60 * time.Second
)

// Handlers are the use cases served by the API. Ground and Lookup may be
// nil, in which case their routes answer 503.
type Handlers struct {
	Resolve *handlers.ResolveHandler
	Ground  *handlers.GroundHandler
	Lookup  *handlers.LookupHandler
	Entity  *handlers.EntityHandler
}

// Options configures the router.
type Options struct {
	CORSOrigins []string
	Timeout     time.Duration
}

type api struct {
	h      Handlers
	logger *slog.Logger
}

// NewRouter returns the API handler.
func NewRouter(h Handlers, opts Options, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	a := &api{h: h, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.Timeout))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}).Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/resolve", a.resolve)
		r.Post("/ground", a.ground)
		r.Get("/lookup", a.lookup)
		r.Route("/entities", func(r chi.Router) {
			r.Get("/", a.listEntities)
			r.Get("/{id}", a.getEntity)
		})
		r.Get("/cache/status", a.cacheStatus)
	})

	return r
}

func (a *api) resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := handlers.ResolveRequest{
		Query:    q.Get("q"),
		Kind:     q.Get("kind"),
		SourceID: q.Get("source_id"),
		Symbols:  splitList(q.Get("symbols")),
		Text:     q.Get("context"),
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "missing required parameter: q")
		return
	}

	res, err := a.h.Resolve.Handle(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type groundRequest struct {
	Mentions []entities.Mention `json:"mentions"`
}

func (a *api) ground(w http.ResponseWriter, r *http.Request) {
	if a.h.Ground == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "grounding is not configured")
		return
	}

	var req groundRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body: "+err.Error())
		return
	}
	if len(req.Mentions) == 0 {
		writeError(w, http.StatusBadRequest, codeValidation, "missing required field: mentions")
		return
	}
	if len(req.Mentions) > maxGroundMentions {
		writeError(w, http.StatusBadRequest, codeValidation,
			"too many mentions: "+strconv.Itoa(len(req.Mentions))+" > "+strconv.Itoa(maxGroundMentions))
		return
	}
	for i := range req.Mentions {
		req.Mentions[i].Kind = entities.ParseMentionKind(string(req.Mentions[i].Kind))
	}

	result, err := a.h.Ground.HandleMentions(r.Context(), req.Mentions)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *api) lookup(w http.ResponseWriter, r *http.Request) {
	if a.h.Lookup == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "lookup is not configured")
		return
	}

	q := r.URL.Query()
	force, err := parseBool(q.Get("force"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid parameter force: "+q.Get("force"))
		return
	}

	out, err := a.h.Lookup.Handle(r.Context(), q.Get("q"), q.Get("kind"), force)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) listEntities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseInt(q.Get("limit"), 50)
	if err != nil || limit < 1 || limit > 500 {
		writeError(w, http.StatusBadRequest, codeValidation, "limit must be between 1 and 500")
		return
	}
	offset, err := parseInt(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, codeValidation, "offset must not be negative")
		return
	}

	var result *handlers.EntityListResult
	if search := q.Get("q"); search != "" {
		result, err = a.h.Entity.HandleSearch(r.Context(), search, limit)
	} else {
		result, err = a.h.Entity.HandleList(r.Context(), q.Get("type"), limit, offset)
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if result.Entities == nil {
		result.Entities = []*entities.Entity{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *api) getEntity(w http.ResponseWriter, r *http.Request) {
	details, err := a.h.Entity.HandleShow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (a *api) cacheStatus(w http.ResponseWriter, r *http.Request) {
	if a.h.Lookup == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "lookup is not configured")
		return
	}

	report, err := a.h.Lookup.HandleStatus(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// fail maps domain errors onto HTTP statuses. Unexpected errors are logged
// and reported without detail.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, entities.ErrValidation):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, entities.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, entities.ErrStorageUnavailable):
		a.logger.Error("storage unavailable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "storage unavailable")
	default:
		a.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func parseInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
