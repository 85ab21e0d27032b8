package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/ToppleTheNun/mchammer-sub000/internal/api"
	"github.com/ToppleTheNun/mchammer-sub000/internal/service"
	"github.com/rs/zerolog"
)

// Report codes are short opaque alphanumeric identifiers.
var reportCodePattern = regexp.MustCompile(`^[a-zA-Z0-9]{8,24}$`)

// IngestServer exposes the ingestion trigger and a health probe.
type IngestServer struct {
	ingest *service.IngestService
	wcl    *api.Client
	logger zerolog.Logger
}

func NewIngestServer(ingest *service.IngestService, wcl *api.Client, logger zerolog.Logger) *IngestServer {
	return &IngestServer{ingest: ingest, wcl: wcl, logger: logger}
}

func (s *IngestServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/reports/{code}/ingest", s.handleIngest)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

func (s *IngestServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !reportCodePattern.MatchString(code) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid report code"})
		return
	}

	summary, err := s.ingest.IngestReport(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReportNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrUnknownRegion):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		default:
			s.logger.Error().Err(err).Str("report", code).Msg("report ingestion failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ingestion failed"})
		}
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *IngestServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{"status": "ok"}

	// Best effort; the probe stays healthy even when the log source
	// cannot be reached.
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if rateLimit, err := s.wcl.GetRateLimitData(ctx); err == nil {
		response["rate_limit"] = rateLimit
	}

	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
