// Package api serves recall details over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/pario-ai/recallwatch/pkg/config"
	"github.com/pario-ai/recallwatch/pkg/log"
	"github.com/pario-ai/recallwatch/pkg/metrics"
	"github.com/pario-ai/recallwatch/pkg/models"
)

// retryAfter is sent with 503 responses.
const retryAfter = 30 * time.Second

// Resolver reconciles one recall.
type Resolver interface {
	Resolve(ctx context.Context, recallNumber string) (models.ResolvedSummary, error)
}

// Server is the recall detail HTTP API.
type Server struct {
	cfg      *config.Config
	resolver Resolver
	mux      *http.ServeMux
	logger   zerolog.Logger
}

// New creates a Server.
func New(cfg *config.Config, resolver Resolver) *Server {
	s := &Server{
		cfg:      cfg,
		resolver: resolver,
		mux:      http.NewServeMux(),
		logger:   log.WithComponent("api"),
	}
	s.mux.HandleFunc("GET /recall_detail/{identifier}", s.handleRecallDetail)
	s.mux.HandleFunc("OPTIONS /recall_detail/{identifier}", s.handlePreflight)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", metrics.Handler())
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.instrument(s.mux).ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Listen).Msg("recallwatch api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// detailResponse is the body of GET /recall_detail/{identifier}.
type detailResponse struct {
	RecallNumber        string           `json:"recall_number"`
	ReportDate          string           `json:"report_date"`
	RecallingFirm       string           `json:"recalling_firm"`
	Classification      string           `json:"classification"`
	ProductDescription  string           `json:"product_description"`
	ReasonForRecall     string           `json:"reason_for_recall"`
	DistributionPattern string           `json:"distribution_pattern"`
	Summary             string           `json:"summary"`
	Sections            []models.Section `json:"sections,omitempty"`
	Status              string           `json:"status,omitempty"`
	Stale               bool             `json:"stale"`
	StaleReason         string           `json:"stale_reason,omitempty"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

func newDetailResponse(res models.ResolvedSummary) detailResponse {
	rec := res.Record
	return detailResponse{
		RecallNumber:        rec.RecallNumber,
		ReportDate:          rec.ReportDate,
		RecallingFirm:       rec.RecallingFirm,
		Classification:      rec.Classification,
		ProductDescription:  rec.ProductDescription,
		ReasonForRecall:     rec.ReasonForRecall,
		DistributionPattern: rec.DistributionPattern,
		Summary:             res.Summary.Text,
		Sections:            res.Summary.Sections,
		Status:              rec.RecallStatus,
		Stale:               res.Stale,
		StaleReason:         string(res.StaleReason),
		UpdatedAt:           res.UpdatedAt,
	}
}

func (s *Server) handleRecallDetail(w http.ResponseWriter, r *http.Request) {
	s.setCORS(w)
	id := r.PathValue("identifier")

	res, err := s.resolver.Resolve(r.Context(), id)
	if err != nil {
		s.writeResolveError(w, r, id, err)
		return
	}

	switch {
	case res.Stale:
		w.Header().Set("X-Recall-Cache", "stale")
	case res.Source == models.SourceGenerated:
		w.Header().Set("X-Recall-Cache", "miss")
	default:
		w.Header().Set("X-Recall-Cache", "hit")
	}
	writeJSON(w, http.StatusOK, newDetailResponse(res))
}

func (s *Server) writeResolveError(w http.ResponseWriter, r *http.Request, id string, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidIdentifier):
		writeJSONError(w, http.StatusNotFound, "invalid recall identifier")
	case errors.Is(err, models.ErrRecallNotFound):
		writeJSONError(w, http.StatusNotFound, "recall not found")
	case errors.Is(err, models.ErrRecallUnavailable):
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		writeJSONError(w, http.StatusServiceUnavailable, "recall temporarily unavailable")
	default:
		s.logger.Error().Err(err).Str("recall_number", id).
			Str("request_id", r.Header.Get("X-Request-ID")).Msg("resolve failed")
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	s.setCORS(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) setCORS(w http.ResponseWriter) {
	origin := s.cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	h.Set("Access-Control-Expose-Headers", "X-Recall-Cache, X-Request-ID")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"recallwatch_error","code":%d}}`, message, code)
}
