package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-checklist/internal/auth"
	"github.com/ukydev/fleet-checklist/internal/checklist"
	"github.com/ukydev/fleet-checklist/internal/config"
	"github.com/ukydev/fleet-checklist/internal/db"
	"github.com/ukydev/fleet-checklist/internal/handlers"
	"github.com/ukydev/fleet-checklist/internal/metrics"
	"github.com/ukydev/fleet-checklist/internal/middleware"
	"github.com/ukydev/fleet-checklist/internal/models"
	"github.com/ukydev/fleet-checklist/internal/notify"
)

// pinger is the part of db.Stores the health check needs.
type pinger interface {
	Ping(ctx context.Context) error
}

func healthHandler(store pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		if err := store.Ping(ctx); err != nil {
			log.WithError(err).Warn("Health check failed")
			status, code = "unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}

// newRouter wires the API routes and wraps them in the middleware chain.
func newRouter(cfg config.Config, stores *db.Stores, authService *auth.Service, recorder *metrics.Recorder, publisher checklist.Publisher) http.Handler {
	mux := http.NewServeMux()

	opts := []handlers.HandlerOption{
		handlers.WithMetrics(recorder),
		handlers.WithApproachWindow(cfg.Alerts.ApproachWindow),
		handlers.WithServiceInterval(cfg.Alerts.ServiceInterval),
	}
	if publisher != nil {
		opts = append(opts, handlers.WithPublisher(publisher))
	}
	handlers.NewChecklistHandler(stores.Vehicles, opts...).Register(mux)

	authHandler := handlers.NewAuthHandler(authService, stores.Users)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/register", middleware.RequirePermission(models.ActionManageUsers, authHandler.Register))

	mux.HandleFunc("/health", healthHandler(stores))
	mux.Handle("/metrics", recorder.Handler())

	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimiter := middleware.NewRateLimitMiddleware(cfg.RateLimit)
	return middleware.RequestLogger(rateLimiter.RateLimit(authMiddleware.Authenticate(mux)))
}

func main() {
	cfg, err := config.Load(os.Getenv("CHECKLIST_CONFIG"))
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := db.Open(ctx, cfg.Store)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stores.Close(closeCtx); err != nil {
			log.WithError(err).Warn("Failed to close store")
		}
	}()

	authService, err := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	if err != nil {
		log.WithError(err).Fatal("Failed to create auth service")
	}
	if cfg.Auth.JWTSecret == config.Default().Auth.JWTSecret {
		log.Warn("JWT_SECRET is not set, using the built-in development secret")
	}

	recorder, err := metrics.NewRecorder()
	if err != nil {
		log.WithError(err).Fatal("Failed to register metrics")
	}

	var publisher checklist.Publisher
	if cfg.MQTT.Broker != "" {
		mqttPublisher, err := notify.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.TopicPrefix)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to MQTT broker")
		}
		defer mqttPublisher.Close()
		publisher = mqttPublisher
		log.WithField("broker", cfg.MQTT.Broker).Info("Publishing maintenance alerts over MQTT")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, stores, authService, recorder, publisher),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
}
