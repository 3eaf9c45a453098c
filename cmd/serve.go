package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/crm"
	"github.com/radius-labs/visibility-cli/internal/knowledge"
	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/internal/monitoring"
	"github.com/radius-labs/visibility-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: "Serves the analysis pipeline over HTTP: submitting runs, reading records, " +
		"applying feedback, managing evidence, and health metrics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		// Metrics read the durable store directly; the serve process is the
		// natural home for the background alert checker.
		collector := monitoring.NewCollector(env.Store)
		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		router := buildRouter(env.Engine, collector, env.Syncer, cfg.Monitoring.LookbackWindowHours)
		return startServer(ctx, router, resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// analysisService is the slice of the pipeline engine the HTTP handlers call.
type analysisService interface {
	Submit(ctx context.Context, domain, callerID string) (*model.AnalysisRecord, error)
	GetAnalysis(ctx context.Context, id string) (*model.AnalysisRecord, error)
	SubmitFeedback(ctx context.Context, id string, patches map[string]string) (*model.ScoreReport, error)
	AddEvidence(ctx context.Context, id string, item model.EvidenceItem) (*model.EvidenceItem, error)
	DeleteEvidence(ctx context.Context, id, evidenceID string) error
	ImproveText(ctx context.Context, text string, mode knowledge.ImproveMode) (string, error)
}

// metricsSource provides the health snapshot served on /api/metrics.
type metricsSource interface {
	Collect(ctx context.Context, lookbackHours int) (*monitoring.MetricsSnapshot, error)
}

type api struct {
	svc      analysisService
	metrics  metricsSource
	syncer   *crm.Syncer
	lookback int
}

// buildRouter wires the API routes. The UI layer consumes these endpoints
// from other origins, so CORS stays permissive.
func buildRouter(svc analysisService, metrics metricsSource, syncer *crm.Syncer, lookbackHours int) http.Handler {
	if lookbackHours <= 0 {
		lookbackHours = 24
	}
	a := &api{svc: svc, metrics: metrics, syncer: syncer, lookback: lookbackHours}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Caller-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", a.handleHealth)
	r.Route("/api", func(rt chi.Router) {
		rt.Post("/analyses", a.handleSubmit)
		rt.Get("/analyses/{id}", a.handleGet)
		rt.Post("/analyses/{id}/feedback", a.handleFeedback)
		rt.Post("/analyses/{id}/evidence", a.handleAddEvidence)
		rt.Delete("/analyses/{id}/evidence/{evidenceID}", a.handleDeleteEvidence)
		rt.Post("/improve", a.handleImprove)
		rt.Get("/metrics", a.handleMetrics)
	})

	return r
}

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/analyses {domain}, caller identity via X-Caller-ID.
// Blocks until the run is terminal, like the CLI.
func (a *api) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Domain) == "" {
		writeError(w, http.StatusBadRequest, "domain is required")
		return
	}

	rec, err := a.svc.Submit(r.Context(), req.Domain, r.Header.Get("X-Caller-ID"))
	if err != nil {
		if model.IsStorageUnavailable(err) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if rec.Status == model.StatusPersisted && !rec.Provenance.UsedCache {
		syncToCRM(r.Context(), a.syncer, rec)
	}
	writeJSON(w, http.StatusOK, rec)
}

// GET /api/analyses/{id}
func (a *api) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := a.svc.GetAnalysis(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// POST /api/analyses/{id}/feedback {fields: {field: value}}
func (a *api) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Fields) == 0 {
		writeError(w, http.StatusBadRequest, "fields is required")
		return
	}

	report, err := a.svc.SubmitFeedback(r.Context(), chi.URLParam(r, "id"), req.Fields)
	if err != nil {
		writeError(w, statusFor(err, http.StatusBadRequest), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// POST /api/analyses/{id}/evidence {type, title, content, source}
func (a *api) handleAddEvidence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type    string `json:"type"`
		Title   string `json:"title"`
		Content string `json:"content"`
		Source  string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := a.svc.AddEvidence(r.Context(), chi.URLParam(r, "id"), model.EvidenceItem{
		Type:    model.EvidenceType(req.Type),
		Title:   req.Title,
		Content: req.Content,
		Source:  req.Source,
	})
	if err != nil {
		writeError(w, statusFor(err, http.StatusBadRequest), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// DELETE /api/analyses/{id}/evidence/{evidenceID}
func (a *api) handleDeleteEvidence(w http.ResponseWriter, r *http.Request) {
	err := a.svc.DeleteEvidence(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "evidenceID"))
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/improve {text, mode}
func (a *api) handleImprove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Mode == "" {
		req.Mode = string(knowledge.ModeImprove)
	}
	mode, err := knowledge.ParseImproveMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Improve has no fallback: a failed rewrite surfaces as an error, never
	// as silently unchanged text.
	out, err := a.svc.ImproveText(r.Context(), req.Text, mode)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": out})
}

// GET /api/metrics
func (a *api) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap, err := a.metrics.Collect(r.Context(), a.lookback)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// statusFor maps service errors onto HTTP statuses: missing records are 404,
// storage faults are 502, anything else falls back to the handler's default.
func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case model.IsStorageUnavailable(err):
		return http.StatusBadGateway
	default:
		return fallback
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("serve: failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// resolvePort prefers the --port flag over the configured port.
func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

// startServer runs the HTTP server until ctx is cancelled, then shuts it
// down gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}
