// Package server exposes the rate-picker HTTP API consumed by the warehouse
// admin UI: list an order's persisted rates and trigger a refresh.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/rates"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/store"
)

// Fetcher triggers a fetch-and-select run; satisfied by rates.Orchestrator.
type Fetcher interface {
	FetchAndSelect(ctx context.Context, orderID int64, rt model.RateType) (*rates.FetchResult, error)
}

// Server holds the HTTP handler state.
type Server struct {
	store   store.Store
	policy  *rates.Policy
	fetcher Fetcher
}

// New builds a Server over the store, eligibility policy, and orchestrator.
func New(st store.Store, policy *rates.Policy, fetcher Fetcher) *Server {
	return &Server{store: st, policy: policy, fetcher: fetcher}
}

// Router assembles the chi routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Route("/orders/{orderID}", func(r chi.Router) {
		r.Get("/rates", s.handleListRates)
		r.Post("/rates/refresh", s.handleRefreshRates)
	})
	return r
}

// ListenAndServe runs the server until ctx is cancelled, then drains with a
// short grace period.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("rate-picker api listening", zap.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type listRatesResponse struct {
	OrderID  int64                 `json:"order_id"`
	RateType model.RateType        `json:"rate_type"`
	Rates    []model.PersistedRate `json:"rates"`
}

type refreshResponse struct {
	OrderID   int64                `json:"order_id"`
	RateType  model.RateType       `json:"rate_type"`
	Persisted int                  `json:"persisted"`
	Winner    *model.PersistedRate `json:"winner"`
	Providers []providerStatus     `json:"provider_errors,omitempty"`
}

type providerStatus struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRates(w http.ResponseWriter, r *http.Request) {
	orderID, rt, ok := s.orderParams(w, r)
	if !ok {
		return
	}

	rows, err := s.store.ListRates(r.Context(), orderID, rt)
	if err != nil {
		zap.L().Error("list rates failed", zap.Int64("order_id", orderID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	// The picker only ever shows selectable rates.
	rows = s.policy.FilterPersisted(rows)
	writeJSON(w, http.StatusOK, listRatesResponse{OrderID: orderID, RateType: rt, Rates: rows})
}

func (s *Server) handleRefreshRates(w http.ResponseWriter, r *http.Request) {
	orderID, rt, ok := s.orderParams(w, r)
	if !ok {
		return
	}

	res, err := s.fetcher.FetchAndSelect(r.Context(), orderID, rt)
	if err != nil {
		switch {
		case rates.IsValidation(err):
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		case rates.IsNoRates(err):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		case rates.IsConflict(err):
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		default:
			zap.L().Error("refresh failed", zap.Int64("order_id", orderID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}

	out := refreshResponse{
		OrderID:   res.OrderID,
		RateType:  res.RateType,
		Persisted: res.Persisted,
		Winner:    res.Winner,
	}
	for _, ae := range res.AdapterErrors {
		out.Providers = append(out.Providers, providerStatus{Provider: ae.Provider, Error: ae.Err.Error()})
	}
	writeJSON(w, http.StatusOK, out)
}

// orderParams parses the order id path param and the regime query param
// (defaulting to the operational regime), writing the error response itself.
func (s *Server) orderParams(w http.ResponseWriter, r *http.Request) (int64, model.RateType, bool) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return 0, "", false
	}

	rt := model.RateTypeOperational
	if raw := r.URL.Query().Get("regime"); raw != "" {
		rt = model.RateType(raw)
		if !rt.Valid() {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown regime %q", raw)})
			return 0, "", false
		}
	}
	return orderID, rt, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

// requestLogger logs one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
