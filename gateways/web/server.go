package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	config "github.com/rishabh280305/SehatMitra-sub000/config/calls"
	"github.com/rishabh280305/SehatMitra-sub000/gateways/web/handler"
	sig "github.com/rishabh280305/SehatMitra-sub000/services/calls/signal"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/usecase"
)

type Server struct {
	cfg     *config.Config
	log     *slog.Logger
	usecase usecase.Usecase
	router  *sig.Router
	handler *handler.Handler
}

func New(cfg *config.Config, uc usecase.Usecase, router *sig.Router, log *slog.Logger) *Server {
	h := handler.New(uc, router, cfg.JWTSecret, log)

	return &Server{
		cfg:     cfg,
		log:     log,
		usecase: uc,
		router:  router,
		handler: h,
	}
}

func (s *Server) Start(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.URLFormat)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.handler.RegisterRoutes(r)

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.usecase.StartReaper(ctx)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.log.Info("calls gateway started", slog.String("address", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		s.log.Info("start shutdown", slog.String("signal", sig.String()))
		return s.stop(srv)
	case <-ctx.Done():
		s.log.Info("closing server due to context cancellation")
		return s.stop(srv)
	}
}

func (s *Server) stop(srv *http.Server) error {
	s.usecase.Shutdown()
	s.router.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.log.Error("graceful shutdown failed", slog.String("error", err.Error()))
		srv.Close()
		return fmt.Errorf("failed to gracefully shutdown server: %w", err)
	}
	s.log.Info("server shutdown completed")
	return nil
}
