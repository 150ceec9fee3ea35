package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"chat-routing-backend/internal/api/middleware"
	"chat-routing-backend/internal/env"
	"chat-routing-backend/internal/queue"
	"chat-routing-backend/internal/service/automation"
	"chat-routing-backend/internal/service/room"
	"chat-routing-backend/internal/service/routing"
	"chat-routing-backend/internal/store"

	"github.com/prometheus/client_golang/prometheus"
)

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

// Services are the domain services a binary hands to its route registrars.
// A registrar only touches the fields its routes need.
type Services struct {
	Store    store.Store
	Resolver *routing.Resolver
	Assigner *automation.Assigner
	Sweeper  *automation.Sweeper
	Rooms    *room.Service
}

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	services            Services
	logger              *slog.Logger
	cors                middleware.CORSConfig
	routeRegistrars     []RouteRegistrar
	metrics             *metrics
}

func NewAPIServer(listenAddr string, rqm *queue.RequestQueueManager, services Services, logger *slog.Logger, registrars ...RouteRegistrar) *APIServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIServer{
		listenAddr:          listenAddr,
		requestQueueManager: rqm,
		services:            services,
		logger:              logger,
		cors: middleware.CORSConfig{
			AllowedOrigins:   middleware.ParseOrigins(env.Get(env.CORSOrigins)),
			AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "OPTIONS", "DELETE"},
			AllowedHeaders:   []string{"Content-Type", "X-Requested-With", "Authorization", "X-Request-ID"},
			AllowCredentials: true,
		},
		routeRegistrars: registrars,
		metrics:         newMetrics(prometheus.DefaultRegisterer, listenAddr, rqm),
	}
}

// Handler builds the instrumented mux with every registrar applied.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()

	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}

	mux.Handle("/metrics", s.metrics.metricsHandler())
	return s.metrics.instrument(mux)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *APIServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", s.listenAddr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped", slog.String("addr", s.listenAddr))
	return nil
}

func (s *APIServer) Services() Services {
	return s.services
}

func (s *APIServer) Logger() *slog.Logger {
	return s.logger
}
