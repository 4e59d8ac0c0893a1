package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/watchpost/watchpost/internal/correlator"
	"github.com/watchpost/watchpost/internal/domain"
	"github.com/watchpost/watchpost/internal/httpapi/middleware"
	"github.com/watchpost/watchpost/internal/probe"
	"github.com/watchpost/watchpost/internal/repo"
	"github.com/watchpost/watchpost/internal/targets"
)

type Limits struct {
	PublicRPM   int
	PublicBurst int
	AdminRPM    int
	AdminBurst  int
}

type Server struct {
	Logger     *zap.Logger
	Targets    *targets.Service
	Alerts     repo.AlertStore
	Correlator *correlator.Correlator
	Prober     *probe.BatchProber
	Keys       middleware.Keys
	Limits     Limits
}

func NewServer(l *zap.Logger, svc *targets.Service, alerts repo.AlertStore, corr *correlator.Correlator, prober *probe.BatchProber) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Targets: svc, Alerts: alerts, Correlator: corr, Prober: prober}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(s.Limits.PublicRPM, s.Limits.PublicBurst))
		r.Use(middleware.RequireAny(s.Keys))

		r.Get("/api/targets", s.handleListTargets)
		r.Get("/api/alerts", s.handleListAlerts)
		r.Post("/api/check", s.handleCheck)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(s.Limits.AdminRPM, s.Limits.AdminBurst))
		r.Use(middleware.RequireAdmin(s.Keys))

		r.Post("/api/targets", s.handleAddTarget)
		r.Delete("/api/targets/{id}", s.handleDeleteTarget)
		r.Post("/api/alerts/{id}/ack", s.handleAckAlert)
		r.Post("/api/alerts/{id}/resolve", s.handleResolveAlert)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.List(r.Context())
	if err != nil {
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var t domain.Target
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil || t.URL == "" {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	t.ID = ""
	t.CreatedAt = time.Now().UTC()
	if t.Name == "" {
		t.Name = t.Host()
	}
	if err := s.Targets.Create(r.Context(), &t); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// Run a single check synchronously for immediate feedback.
	var oc probe.Outcome
	for out := range s.Prober.ProbeAll(r.Context(), []domain.Target{t}, 1) {
		oc = out
	}

	s.Logger.Info("added_target",
		zap.String("target_id", string(t.ID)),
		zap.String("url", t.URL),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"target":      t,
		"uptime":      oc.Uptime,
		"certificate": oc.Certificate,
	})
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	if err := s.Targets.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "delete error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkPayload struct {
	URL string `json:"url"`
}

// handleCheck probes a URL once without persisting anything. It reuses the
// batch prober so one-off checks share timeouts, redirects, and rate limits
// with scheduled sweeps.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var p checkPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.URL == "" {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	t := domain.Target{Name: "adhoc", URL: p.URL, CheckUptime: true}
	if t.Host() == "" {
		http.Error(w, "bad url", http.StatusBadRequest)
		return
	}
	if strings.HasPrefix(t.URL, "https://") {
		t.CheckSSL = true
	}

	var oc probe.Outcome
	for out := range s.Prober.ProbeAll(r.Context(), []domain.Target{t}, 1) {
		oc = out
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime":      oc.Uptime,
		"certificate": oc.Certificate,
	})
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.Alerts.ListOpen(r.Context())
	if err != nil {
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

type ackPayload struct {
	By   string `json:"by"`
	Note string `json:"note"`
}

func (s *Server) handleAckAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var p ackPayload
	_ = json.NewDecoder(r.Body).Decode(&p)
	if p.By == "" {
		p.By = "api"
	}
	if err := s.Correlator.Acknowledge(r.Context(), id, p.By, p.Note); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "ack error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resolvePayload struct {
	Note string `json:"note"`
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var p resolvePayload
	_ = json.NewDecoder(r.Body).Decode(&p)
	if err := s.Correlator.Resolve(r.Context(), id, p.Note); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "resolve error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
