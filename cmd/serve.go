package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/investor-resolver/internal/batch"
	"github.com/sells-group/investor-resolver/internal/investors"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve product and investor queries over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env.Service, env.Fetcher),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter exposes the two outward operations plus client lookup. Query
// parameter refresh=true bypasses the result cache.
func newRouter(svc *investors.Service, fetcher *batch.Fetcher) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"breakers": fetcher.BreakerStates(),
		})
	})

	r.Get("/products", func(w http.ResponseWriter, r *http.Request) {
		maxProducts := 0
		if v := r.URL.Query().Get("max"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "max must be a non-negative integer")
				return
			}
			maxProducts = n
		}

		cat, err := svc.ListAllProductsWithInvestors(r.Context(), maxProducts, refresh(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cat)
	})

	r.Get("/products/{product}/investors", func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.ResolveProductInvestors(r.Context(), chi.URLParam(r, "product"), refresh(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Get("/clients", func(w http.ResponseWriter, r *http.Request) {
		var ids []string
		for _, v := range r.URL.Query()["id"] {
			ids = append(ids, strings.Split(v, ",")...)
		}
		res, err := svc.LookupClients(r.Context(), ids)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	return r
}

func refresh(r *http.Request) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors to status codes. Store outages are
// reported as 503 so callers can tell them apart from empty results.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, investors.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, batch.ErrStoreUnavailable):
		zap.L().Error("store unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "document store unavailable")
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
