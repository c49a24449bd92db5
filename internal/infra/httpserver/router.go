package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	appins "github.com/andriansyh/safesight/internal/application/inspections"
	appusers "github.com/andriansyh/safesight/internal/application/users"
	domain "github.com/andriansyh/safesight/internal/domain/inspections"
	domusers "github.com/andriansyh/safesight/internal/domain/users"
	"github.com/andriansyh/safesight/internal/middleware"
)

type Router struct {
	insSvc   *appins.Service
	usersSvc *appusers.Service
	logger   zerolog.Logger
}

// Deps bundles everything the router needs; all constructed once in main
type Deps struct {
	Inspections *appins.Service
	Users       *appusers.Service
	Resolver    middleware.IdentityResolver
	Limiter     middleware.Limiter
	Checkers    map[string]middleware.HealthChecker
	Logger      zerolog.Logger
	CORSOrigins []string
}

func NewRouter(d Deps) http.Handler {
	r := &Router{insSvc: d.Inspections, usersSvc: d.Users, logger: d.Logger}
	mux := chi.NewRouter()

	mux.Use(chimw.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.RequestLogger(d.Logger))
	mux.Use(middleware.MetricsMiddleware)

	mux.Get("/health", middleware.HealthHandler(d.Checkers))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Group(func(rt chi.Router) {
		rt.Use(middleware.Auth(d.Resolver))
		if d.Limiter != nil {
			rt.Use(middleware.RateLimit(d.Limiter))
		}

		rt.Post("/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/list", r.wrap(r.handleList))
		rt.Get("/{id}", r.wrap(r.handleGet))

		rt.Route("/admin", func(ad chi.Router) {
			ad.Use(middleware.RequireRole(domusers.RoleSuperadmin))
			ad.Get("/all", r.wrap(r.handleAdminAll))
			ad.Get("/stats", r.wrap(r.handleAdminStats))
			ad.Patch("/users/{id}/status", r.wrap(r.handleAdminUserStatus))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap maps the pipeline error taxonomy onto HTTP statuses. Unexpected
// errors collapse to a generic 500 so internals never leak to clients.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		status := http.StatusInternalServerError
		msg := "internal error"
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			status, msg = http.StatusBadRequest, err.Error()
		case errors.Is(err, domain.ErrPayloadTooLarge):
			status, msg = http.StatusRequestEntityTooLarge, err.Error()
		case errors.Is(err, domain.ErrQuotaExceeded):
			status, msg = http.StatusTooManyRequests, err.Error()
			middleware.IncrementQuotaRejections()
		case errors.Is(err, domain.ErrForbidden):
			status, msg = http.StatusForbidden, "forbidden"
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, sql.ErrNoRows):
			status, msg = http.StatusNotFound, "not found"
		case errors.Is(err, domain.ErrInvalidModelOutput):
			status, msg = http.StatusBadGateway, err.Error()
		default:
			r.logger.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
		}

		respondJSON(w, status, map[string]any{"ok": false, "error": msg})
	}
}

func identity(req *http.Request) (domusers.Identity, error) {
	ident, ok := middleware.IdentityFromContext(req.Context())
	if !ok {
		return domusers.Identity{}, fmt.Errorf("%w: missing identity", domain.ErrForbidden)
	}
	return ident, nil
}

// POST /analyze
// Body: {"imageUrl": "..."} or {"imageData": "<base64>", "imageType": "image/jpeg"}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	ident, err := identity(req)
	if err != nil {
		return err
	}

	var body struct {
		ImageURL  string `json:"imageUrl"`
		ImageData string `json:"imageData"`
		ImageType string `json:"imageType"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if body.ImageURL != "" {
		if err := middleware.ValidateImageURL(body.ImageURL); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	}
	if err := middleware.ValidateImageType(body.ImageType); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	middleware.IncrementInspections()
	result, err := r.insSvc.Analyze(req.Context(), ident, appins.AnalyzeCommand{
		ImageURL:  body.ImageURL,
		ImageData: body.ImageData,
		ImageType: body.ImageType,
	})
	if err != nil {
		middleware.IncrementInspectionsFailed()
		return err
	}
	middleware.IncrementInspectionsCompleted()

	return respondJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"inspection": result.Inspection,
		"analysis":   result.Analysis,
		"usage":      result.Usage,
	})
}

// GET /list?page=&pageSize=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	ident, err := identity(req)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("pageSize"))

	list, err := r.insSvc.List(req.Context(), ident,
		middleware.ValidatePage(page), middleware.ValidatePageSize(size))
	if err != nil {
		return err
	}
	return respondJSON(w, http.StatusOK, list)
}

// GET /{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	ident, err := identity(req)
	if err != nil {
		return err
	}

	id := chi.URLParam(req, "id")
	ins, err := r.insSvc.Get(req.Context(), ident, domain.InspectionID(id))
	if err != nil {
		return err
	}
	return respondJSON(w, http.StatusOK, ins)
}

// GET /admin/all?userId=&grade=&status=&from=&to=&sortBy=&order=&page=&pageSize=
func (r *Router) handleAdminAll(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()

	grade := q.Get("grade")
	if err := middleware.ValidateGrade(grade); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	status := q.Get("status")
	if err := middleware.ValidateStatus(status); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	userID, _ := strconv.ParseInt(q.Get("userId"), 10, 64)
	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		return err
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		return err
	}

	filter := domain.AdminFilter{
		UserID: userID,
		Grade:  grade,
		Status: status,
		From:   from,
		To:     to,
		SortBy: q.Get("sortBy"),
		Order:  q.Get("order"),
	}

	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("pageSize"))

	list, err := r.insSvc.AdminList(req.Context(), filter,
		middleware.ValidatePage(page), middleware.ValidatePageSize(size))
	if err != nil {
		return err
	}
	return respondJSON(w, http.StatusOK, list)
}

// GET /admin/stats?top=
func (r *Router) handleAdminStats(w http.ResponseWriter, req *http.Request) error {
	top, _ := strconv.Atoi(req.URL.Query().Get("top"))

	stats, err := r.insSvc.AdminStats(req.Context(), middleware.ValidateTopN(top))
	if err != nil {
		return err
	}
	return respondJSON(w, http.StatusOK, stats)
}

// PATCH /admin/users/{id}/status
// Body: {"status": "active"|"inactive"}
func (r *Router) handleAdminUserStatus(w http.ResponseWriter, req *http.Request) error {
	id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("%w: invalid user id", domain.ErrInvalidInput)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	st := domusers.Status(body.Status)
	if st != domusers.StatusActive && st != domusers.StatusInactive {
		return fmt.Errorf("%w: status must be active or inactive", domain.ErrInvalidInput)
	}

	if err := r.usersSvc.SetStatus(req.Context(), id, st); err != nil {
		return err
	}
	return respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid time value: %s", domain.ErrInvalidInput, v)
}

func respondJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}
