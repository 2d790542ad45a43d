package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-lending/intake-cli/internal/intake"
	"github.com/meridian-lending/intake-cli/internal/model"
	"github.com/meridian-lending/intake-cli/internal/registry"
	"github.com/meridian-lending/intake-cli/internal/store"
)

var servePort int

// intakeAPI is the slice of the intake service the HTTP wrapper calls.
type intakeAPI interface {
	IngestBatch(ctx context.Context, applicationID string, docs []model.Document) (*intake.BatchReport, error)
	GenerateOutputs(ctx context.Context, applicationID string, forms []model.FormSpec) ([]model.MappedFormResult, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP wrapper over the intake pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		reg, err := initRegistry()
		if err != nil {
			return err
		}

		svc := initService(st)
		router := buildRouter(svc, st, reg)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter assembles the HTTP surface. All handlers are thin wrappers
// over the intake service and store.
func buildRouter(svc intakeAPI, st store.Store, reg *registry.Registry) chi.Router {
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

	r.Get("/applications", func(w http.ResponseWriter, req *http.Request) {
		apps, err := st.ListApplications(req.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, apps)
	})

	r.Get("/applications/{id}/record", func(w http.ResponseWriter, req *http.Request) {
		appID := chi.URLParam(req, "id")

		var rec *model.MasterRecord
		var err error
		if v := req.URL.Query().Get("version"); v != "" {
			version, perr := strconv.ParseInt(v, 10, 64)
			if perr != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version"})
				return
			}
			rec, err = st.GetVersion(req.Context(), appID, version)
		} else {
			rec, err = st.Get(req.Context(), appID)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	r.Get("/applications/{id}/versions", func(w http.ResponseWriter, req *http.Request) {
		versions, err := st.ListVersions(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
	})

	r.Post("/applications/{id}/documents", func(w http.ResponseWriter, req *http.Request) {
		appID := chi.URLParam(req, "id")

		var body struct {
			Documents []model.Document `json:"documents"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if len(body.Documents) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "documents is required"})
			return
		}

		report, err := svc.IngestBatch(req.Context(), appID, body.Documents)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	r.Post("/applications/{id}/distribute", func(w http.ResponseWriter, req *http.Request) {
		appID := chi.URLParam(req, "id")

		var body struct {
			Forms []string `json:"forms"`
			Bank  string   `json:"bank"`
		}
		if req.ContentLength > 0 {
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
		}

		forms, err := selectForms(reg, body.Forms, body.Bank)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		results, err := svc.GenerateOutputs(req.Context(), appID, forms)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case eris.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case eris.Is(err, store.ErrVersionConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
