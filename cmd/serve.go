package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/riskintel-cli/internal/model"
	"github.com/sells-group/riskintel-cli/internal/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for analysis requests",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Background alerting only runs when a webhook is configured.
		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newServeMux(env),
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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// analyzeRequest is the POST /analyze body.
type analyzeRequest struct {
	Description        string  `json:"description"`
	Type               string  `json:"type"`
	BusinessImpact     float64 `json:"business_impact"`
	ContextLength      int     `json:"context_length"`
	RequiresStrictJSON bool    `json:"requires_strict_json"`
	MultiDocument      bool    `json:"multi_document"`
	UserID             string  `json:"user_id"`
}

func newServeMux(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/analyze", func(w http.ResponseWriter, req *http.Request) {
		var body analyzeRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		task := model.NewTask(body.Description)
		if body.Type != "" {
			task.Type = model.TaskType(body.Type)
		}
		if body.BusinessImpact > 0 {
			task.BusinessImpact = body.BusinessImpact
		}
		task.ContextLength = body.ContextLength
		task.RequiresStrictJSON = body.RequiresStrictJSON
		task.MultiDocument = body.MultiDocument
		if err := task.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		userID := body.UserID
		if userID == "" {
			userID = "api"
		}

		result, err := env.Service.Analyze(req.Context(), task, userID)
		if err != nil {
			zap.L().Error("analyze request failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "analysis failed"})
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		snap, err := monitoring.NewCollector(env.Store).Collect(req.Context(), 24)
		if err != nil {
			zap.L().Error("metrics collection failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "metrics unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"runs":     snap,
			"ensemble": env.Engine.Metrics().Snapshot(),
			"spend":    map[string]float64{"window_usd": env.Limiter.Spent()},
		})
	})

	r.Get("/audit/verify", func(w http.ResponseWriter, _ *http.Request) {
		report, err := env.Audit.Verify()
		if err != nil {
			zap.L().Error("audit verification failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "verification failed"})
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
