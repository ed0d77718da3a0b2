// Package api exposes the ops HTTP interface: health, metrics, manual job
// submission, and settings administration.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"jobscout/internal/lead"
	"jobscout/internal/settings"
)

// candidateFetcher is the slice of the poller the test-fetch endpoint uses.
type candidateFetcher interface {
	FetchCandidates(ctx context.Context, sourceID string) ([]lead.Candidate, error)
}

// Server wires HTTP handlers to the stores and the poller cache.
type Server struct {
	router        chi.Router
	jobs          lead.JobStore
	fetcher       candidateFetcher
	settingsStore lead.SettingsStore
	settingsMgr   *settings.Manager
	ids           lead.IDGenerator
	clock         lead.Clock
	logger        *zap.Logger
}

// NewServer constructs a Server with its routes.
func NewServer(
	jobs lead.JobStore,
	fetcher candidateFetcher,
	settingsStore lead.SettingsStore,
	settingsMgr *settings.Manager,
	ids lead.IDGenerator,
	clock lead.Clock,
	logger *zap.Logger,
) *Server {
	s := &Server{
		jobs:          jobs,
		fetcher:       fetcher,
		settingsStore: settingsStore,
		settingsMgr:   settingsMgr,
		ids:           ids,
		clock:         clock,
		logger:        logger,
	}
	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Post("/requeue-dispatch", s.requeueDispatch)
			})
		})
		r.Post("/sources/{source_id}/fetch", s.testFetch)
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.listSettings)
			r.Put("/{key}", s.putSetting)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitRequest struct {
	URL string `json:"url"`
}

// submitJob is the manual-submission path. It shares the canonical-URL
// dedup invariant with the poller: one job per URL, ever.
func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	url, err := lead.CanonicalURL(req.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	exists, err := s.jobs.ExistsByURL(r.Context(), url)
	if err != nil {
		s.logger.Error("dedup lookup failed", zap.String("url", url), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "job already exists for url")
		return
	}

	job := lead.Job{
		ID:             s.ids.NewID(),
		URL:            url,
		Status:         lead.JobStatusQueued,
		CreatedAt:      s.clock.Now(),
		DispatchStatus: lead.DispatchNone,
	}
	if err := s.jobs.Create(r.Context(), job); err != nil {
		if errors.Is(err, lead.ErrDuplicateURL) {
			writeError(w, http.StatusConflict, "job already exists for url")
			return
		}
		s.logger.Error("create job failed", zap.String("url", url), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// requeueDispatch resets a failed dispatch back to pending; the forwarder
// picks it up on its next cycle. This is the only supported retry path for
// a failed dispatch.
func (s *Server) requeueDispatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.DispatchStatus != lead.DispatchFailed {
		writeError(w, http.StatusConflict, "dispatch is not in failed state")
		return
	}
	if err := s.jobs.SetDispatchStatus(r.Context(), id, lead.DispatchPending, ""); err != nil {
		s.logger.Error("requeue dispatch failed", zap.String("job_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"dispatch_status": string(lead.DispatchPending)})
}

func (s *Server) testFetch(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source_id")
	candidates, err := s.fetcher.FetchCandidates(r.Context(), sourceID)
	if err != nil {
		if errors.Is(err, lead.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown source")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":     sourceID,
		"candidates": candidates,
	})
}

func (s *Server) listSettings(w http.ResponseWriter, r *http.Request) {
	values, err := s.settingsStore.ReadAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, values)
}

type putSettingRequest struct {
	Value string `json:"value"`
}

func (s *Server) putSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req putSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := s.settingsStore.Write(r.Context(), key, req.Value); err != nil {
		s.logger.Error("write setting failed", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	// Push the change into the live snapshot right away rather than
	// waiting for the next staleness-driven refresh.
	if err := s.settingsMgr.Refresh(r.Context()); err != nil {
		s.logger.Warn("snapshot refresh after write failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]string{key: req.Value})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
