package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raphaelgruber/portalsync/internal/errs"
	"github.com/raphaelgruber/portalsync/internal/metrics"
	"github.com/raphaelgruber/portalsync/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// queryLimit reads ?limit=, falling back to def for missing or invalid values.
func queryLimit(r *http.Request, def, upper int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, upper)
}

// handleSync runs a sync and returns its result. Record failures and aborted
// runs still answer 200; the body carries success and counts. A trigger that
// arrives while a run is going gets 409 instead of queueing.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var kind models.Kind
	if k := r.URL.Query().Get("kind"); k != "" {
		parsed, err := models.ParseKind(k)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		kind = parsed
	}

	// A dropped client does not abort the run.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.SyncTimeout)
	defer cancel()

	if claims, ok := ClaimsFrom(r.Context()); ok {
		s.logger.Info("sync triggered", "role", claims.Role, "subject", claims.Subject, "kind", kind)
	}

	res, err := s.cfg.Sync.TrySync(ctx, kind)

	var cfgErr *errs.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		writeError(w, http.StatusInternalServerError, err)
	case errors.Is(err, errs.ErrSyncInProgress):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := s.cfg.Sync.Progress()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"status": "idle"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.cfg.Reports.RecentRuns(r.Context(), queryLimit(r, 20, 200))
	if err != nil {
		s.logger.Error("list runs", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	st, err := s.cfg.Reports.Stats(r.Context())
	s.observe(metrics.OpStatsQuery, start, err != nil)
	if err != nil {
		s.logger.Error("stats", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	start := time.Now()
	h, err := s.cfg.Reports.LocationHistory(r.Context(), id, queryLimit(r, 50, 500))
	s.observe(metrics.OpHistoryRead, start, err != nil && !errors.Is(err, errs.ErrNotFound))
	switch {
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, errors.New("location not found"))
	case err != nil:
		s.logger.Error("location history", "location_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, h)
	}
}

func (s *Server) handleRuntimeStats(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Collector == nil {
		writeJSON(w, http.StatusOK, metrics.Snapshot{Operations: map[string]*metrics.OperationSnapshot{}})
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Collector.Snapshot())
}

// handleHealth pings both stores. It needs no token.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"relational": "ok"}
	status := http.StatusOK
	if err := s.cfg.Reports.Ping(ctx); err != nil {
		checks["relational"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if s.cfg.Documents != nil {
		checks["documents"] = "ok"
		if err := s.cfg.Documents.Ping(ctx); err != nil {
			checks["documents"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
}

func (s *Server) observe(op string, start time.Time, failed bool) {
	if s.cfg.Collector != nil {
		s.cfg.Collector.RecordResult(op, time.Since(start), failed)
	}
}
