package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/domain"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking widget operations as a JSON API.
type HTTPServer struct {
	cfg     config.APIConfig
	manager domain.BookingManager
	server  *http.Server
	auth    *HTTPAuth
	logger  *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, manager domain.BookingManager, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{cfg: cfg, manager: manager, logger: logger}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /api/v1/catalog", srv.handleCatalog)
	mux.HandleFunc("GET /api/v1/slots", srv.handleDaySlots)
	mux.HandleFunc("GET /api/v1/slots/availability", srv.handleAvailability)
	mux.HandleFunc("PUT /api/v1/selection", srv.handleSelectSlot)
	mux.HandleFunc("GET /api/v1/selection", srv.handleGetSelection)
	mux.HandleFunc("DELETE /api/v1/selection", srv.handleClearSelection)
	mux.HandleFunc("POST /api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("GET /api/v1/bookings", srv.handleListBookings)
	mux.HandleFunc("GET /api/v1/bookings/export", srv.handleExport)
	mux.HandleFunc("DELETE /api/v1/bookings/{id}", srv.handleCancelBooking)
	mux.HandleFunc("POST /api/v1/index/reload", srv.handleReload)

	handler := noticeMiddleware(loggingMiddleware(logger, srv.auth.Wrap(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
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
