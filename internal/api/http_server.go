package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"salon/internal/config"
	"salon/internal/database"
	"salon/internal/service"

	"github.com/rs/zerolog"
)

// Dependencies are the services the HTTP API is built on.
type Dependencies struct {
	Catalog  *service.CatalogService
	Bookings *service.BookingService
	Admin    *service.AdminService
	// Health reports storage readiness for /healthz. Optional.
	Health func(ctx context.Context) error
}

// HTTPServer exposes the public booking API and the admin API.
type HTTPServer struct {
	cfg     config.APIConfig
	media   config.MediaConfig
	deps    Dependencies
	auth    *HTTPAuth
	limiter *rateLimiter
	server  *http.Server
	handler http.Handler
	logger  *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, media config.MediaConfig, deps Dependencies, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	srv := &HTTPServer{
		cfg:     cfg,
		media:   media,
		deps:    deps,
		auth:    NewHTTPAuth(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  logger,
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	srv.handler = chain(mux,
		requestLogger(logger),
		recoverer(logger),
		srv.limiter.middleware,
	)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	s.public(mux, "/api/services/", http.MethodGet, s.handleListServices)
	s.public(mux, "/api/masters/", http.MethodGet, s.handleListMasters)
	s.public(mux, "/api/masters/{id}/", http.MethodGet, s.handleGetMaster)
	s.public(mux, "/api/masters/{id}/schedule/", http.MethodGet, s.handleMasterSchedule)
	s.public(mux, "/api/masters/{id}/booked/", http.MethodGet, s.handleBookedTimes)
	s.public(mux, "/api/bookings/", http.MethodPost, s.handleCreateBooking)

	s.admin(mux, "/api/admin/bookings/", http.MethodGet, s.handleAdminListBookings)
	s.admin(mux, "/api/admin/bookings/export/", http.MethodGet, s.handleAdminExport)
	s.admin(mux, "/api/admin/bookings/{id}/status/", http.MethodPost, s.handleAdminChangeStatus)
	s.admin(mux, "/api/admin/services/", http.MethodPost, s.handleAdminCreateService)
	s.admin(mux, "/api/admin/services/{id}/", http.MethodPut, s.handleAdminUpdateService)
	s.admin(mux, "/api/admin/services/{id}/image/", http.MethodPost, s.handleAdminServiceImage)
	s.admin(mux, "/api/admin/masters/", http.MethodPost, s.handleAdminCreateMaster)
	s.admin(mux, "/api/admin/masters/{id}/", http.MethodPut, s.handleAdminUpdateMaster)
	s.admin(mux, "/api/admin/masters/{id}/photo/", http.MethodPost, s.handleAdminMasterPhoto)
	s.admin(mux, "/api/admin/masters/{id}/schedule/", http.MethodPut, s.handleAdminSetSchedule)

	prefix := strings.TrimSuffix(s.media.URLPrefix, "/") + "/"
	mux.Handle("GET "+prefix, http.StripPrefix(prefix, http.FileServer(mediaDir(s.media.Path))))

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// public registers path with and without the trailing slash.
func (s *HTTPServer) public(mux *http.ServeMux, path, method string, h http.HandlerFunc) {
	handler := allowMethod(method, h)
	mux.Handle(path+"{$}", handler)
	mux.Handle(strings.TrimSuffix(path, "/"), handler)
}

func (s *HTTPServer) admin(mux *http.ServeMux, path, method string, h http.HandlerFunc) {
	handler := s.auth.Wrap(allowMethod(method, h))
	mux.Handle(path+"{$}", handler)
	mux.Handle(strings.TrimSuffix(path, "/"), handler)
}

func allowMethod(method string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		next(w, r)
	})
}

// Handler returns the full middleware-wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError maps service and storage errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, database.ErrSlotTaken):
		writeError(w, http.StatusBadRequest, "Это время уже занято")
	case errors.Is(err, service.ErrMasterNotFound):
		writeError(w, http.StatusNotFound, "Мастер не найден")
	case errors.Is(err, service.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "Услуга не найдена")
	case errors.Is(err, service.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "Бронирование не найдено")
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "Слишком много попыток бронирования, попробуйте позже")
	case errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "Бронирование было изменено, обновите данные")
	case errors.Is(err, database.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// decodeJSON reads a bounded JSON body and rejects unknown fields.
func (s *HTTPServer) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.HTTP.MaxBodyBytes))
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(dst)
	if err == nil {
		// exactly one JSON value per body
		if extra := decoder.Decode(&struct{}{}); !errors.Is(extra, io.EOF) {
			err = extra
			if err == nil {
				err = errors.New("trailing data after JSON body")
			}
		}
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
