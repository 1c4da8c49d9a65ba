package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
	"github.com/Sternrassler/casedesk-client/pkg/client"
	"github.com/Sternrassler/casedesk-client/pkg/export"
	"github.com/Sternrassler/casedesk-client/pkg/logging"
	"github.com/Sternrassler/casedesk-client/pkg/metrics"
	"github.com/Sternrassler/casedesk-client/pkg/token"
	"github.com/Sternrassler/casedesk-client/pkg/workflow"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// HeaderRequestID carries the request id in responses.
const HeaderRequestID = "X-Request-ID"

func newServeCmd(g *globalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve case listings and assignments over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			if port == 0 {
				port = a.cfg.Port
			}
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           newRouter(a.coord, a.client, a.redis),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info().
					Str("addr", srv.Addr).
					Str("environment", a.cfg.Environment.Name).
					Msg("Starting case desk server")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			a.logger.Info().Msg("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default PORT)")
	return cmd
}

// newRouter wires the HTTP routes. redisClient may be nil.
func newRouter(loader workflow.Loader, assigner workflow.Assigner, redisClient *redis.Client) *mux.Router {
	logger := logging.NewLogger("http")

	r := mux.NewRouter()
	r.Use(requestLogger(logger))
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ready", readyHandler(redisClient)).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cases/{kind}", casesHandler(loader)).Methods(http.MethodPost)
	api.HandleFunc("/assign", assignHandler(assigner, loader)).Methods(http.MethodPost)
	api.HandleFunc("/cache", clearCacheHandler(loader)).Methods(http.MethodDelete)
	return r
}

func requestLogger(logger zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)

			logger.Debug().
				Str("request_id", id).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, "Redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

// listRequest is the body of POST /api/cases/{kind}. Every field is optional.
type listRequest struct {
	Query   map[string]any `json:"query"`
	Filters []string       `json:"filters"`
	Sort    string         `json:"sort"`
	Desc    bool           `json:"desc"`
}

type listResponse struct {
	Kind    cases.Kind     `json:"kind"`
	Total   int            `json:"total"`
	Records []cases.Record `json:"records"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// casesHandler returns a whole listing as JSON, or as a download when the
// format query parameter is csv or xlsx.
func casesHandler(loader workflow.Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := cases.ParseKind(mux.Vars(r)["kind"])
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}

		var req listRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
			return
		}

		var format export.Format
		if f := r.URL.Query().Get("format"); f != "" {
			if format, err = export.ParseFormat(f); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}

		columns := cases.ColumnsFor(kind)
		filters := make([]cases.Filter, 0, len(req.Filters))
		for _, expr := range req.Filters {
			f, err := cases.ParseFilter(columns, expr)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			filters = append(filters, f)
		}

		payload := cases.Query(req.Query).Clone()
		records, err := loader.FetchWithCache(r.Context(), client.EndpointFor(kind), payload, "api "+string(kind))
		if err != nil {
			writeClientError(w, err)
			return
		}

		records = cases.Apply(records, filters...)
		if req.Sort != "" {
			records = cases.Sort(records, columns, req.Sort, req.Desc)
		} else {
			records = cases.SortDefault(records)
		}

		if format != "" {
			name := export.FileName("cases_"+string(kind), time.Now()) + format.Ext()
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
			if format == export.FormatCSV {
				w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			} else {
				w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			}
			if err := export.Write(w, format, string(kind), columns, records); err != nil {
				logger := logging.NewLogger("http")
				logger.Error().Err(err).Msg("Failed to write export")
			}
			return
		}

		writeJSON(w, http.StatusOK, listResponse{Kind: kind, Total: len(records), Records: records})
	}
}

// assignHandler dispatches cases and drops cached listings afterwards.
func assignHandler(assigner workflow.Assigner, loader workflow.Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req client.AssignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
			return
		}
		if req.Kind == "" {
			req.Kind = cases.KindPersonal
		}

		result, err := assigner.Assign(r.Context(), req)
		if err != nil {
			writeClientError(w, err)
			return
		}
		if err := loader.ClearCache(r.Context()); err != nil {
			logger := logging.NewLogger("http")
			logger.Warn().Err(err).Msg("Cache clear incomplete")
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func clearCacheHandler(loader workflow.Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := loader.ClearCache(r.Context()); err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeClientError maps backend and validation errors to HTTP statuses.
func writeClientError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cases.ErrEmptySelection), errors.Is(err, cases.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, err)
	case client.IsUnauthorized(err), errors.Is(err, token.ErrNoToken):
		writeError(w, http.StatusUnauthorized, err)
	case client.IsAborted(err):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusBadGateway, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := logging.NewLogger("http")
		logger.Error().Err(err).Msg("Failed to write response")
	}
}
