package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apperrors "github.com/otakulab/media-sync/pkg/app/errors"
	apphttp "github.com/otakulab/media-sync/pkg/app/http"
	"github.com/otakulab/media-sync/pkg/mediadb"
	"github.com/otakulab/media-sync/pkg/scheduler"
)

const defaultReportLimit = 50

// Handler serves the admin endpoints for job inspection and manual runs
type Handler struct {
	sched  *scheduler.Scheduler
	store  *mediadb.Store
	logger *zap.Logger
}

// NewHandler creates an admin API handler
func NewHandler(sched *scheduler.Scheduler, store *mediadb.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sched: sched, store: store, logger: logger}
}

// RegisterRoutes mounts the admin endpoints on the router. The optional
// protect middleware wraps the mutating endpoints only; read endpoints
// stay open for probes and dashboards.
func (h *Handler) RegisterRoutes(r chi.Router, protect func(http.Handler) http.Handler) {
	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/jobs", apphttp.HandleError(h.listJobs))
		r.Get("/jobs/{id}", apphttp.HandleError(h.getJob))
		r.Get("/reports", apphttp.HandleError(h.listReports))

		r.Group(func(r chi.Router) {
			if protect != nil {
				r.Use(protect)
			}
			r.Post("/jobs/run", apphttp.HandleError(h.runAllJobs))
			r.Post("/jobs/{id}/run", apphttp.HandleError(h.runJob))
			r.Put("/jobs/{id}/enable", apphttp.HandleError(h.setEnabled(true)))
			r.Put("/jobs/{id}/disable", apphttp.HandleError(h.setEnabled(false)))
		})
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			apphttp.DefaultErrorHandler(w, apperrors.DependencyError(err, "database unreachable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) listJobs(w http.ResponseWriter, _ *http.Request) error {
	jobs := h.sched.Jobs()
	statuses := make([]scheduler.JobStatus, 0, len(jobs))
	for _, job := range jobs {
		statuses = append(statuses, job.Status())
	}
	return apphttp.WriteJSON(w, http.StatusOK, map[string]any{
		"scheduler_running": h.sched.Running(),
		"jobs":              statuses,
	})
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	job, ok := h.sched.Job(id)
	if !ok {
		return apperrors.ResourceNotFoundError(nil, "job not found: "+id)
	}
	return apphttp.WriteJSON(w, http.StatusOK, job.Status())
}

func (h *Handler) runJob(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	result, err := h.sched.RunJobNow(r.Context(), id)
	if err != nil {
		return apperrors.ResourceNotFoundError(err, "job not found: "+id)
	}
	h.logger.Info("Manual job run completed",
		zap.String("job_id", id),
		zap.String("status", string(result.Status)))
	return apphttp.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) runAllJobs(w http.ResponseWriter, r *http.Request) error {
	results := h.sched.RunAllJobsNow(r.Context())
	h.logger.Info("Manual run of all jobs completed", zap.Int("jobs", len(results)))
	return apphttp.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) setEnabled(enabled bool) apphttp.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		id := chi.URLParam(r, "id")
		job, ok := h.sched.Job(id)
		if !ok {
			return apperrors.ResourceNotFoundError(nil, "job not found: "+id)
		}
		job.SetEnabled(enabled)
		return apphttp.WriteJSON(w, http.StatusOK, job.Status())
	}
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) error {
	limit := defaultReportLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return apperrors.BadRequestError(err, "limit must be a positive integer")
		}
		limit = parsed
	}
	reports, err := h.store.ListReports(r.Context(), limit)
	if err != nil {
		return apperrors.GeneralError(err)
	}
	return apphttp.WriteJSON(w, http.StatusOK, map[string]any{"reports": reports})
}
