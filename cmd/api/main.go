package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"shadowlights-backend/internal/audit"
	"shadowlights-backend/internal/auth"
	"shadowlights-backend/internal/config"
	"shadowlights-backend/internal/db"
	"shadowlights-backend/internal/enrichment"
	"shadowlights-backend/internal/realtime"
	"shadowlights-backend/internal/tasks"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "server configuration file (optional, env vars otherwise)")
	flag.Parse()

	cfg := config.MustLoad(configPath)
	log := mustMakeLogger(cfg.LogLevel)

	database, err := db.Connect(cfg.DBAddress)
	if err != nil {
		log.Error("cannot connect to postgres", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		log.Error("cannot ensure schema", "error", err)
		os.Exit(1)
	}
	log.Info("connected to postgres")

	secret := []byte(cfg.JWTSecret)
	mw := auth.New(secret)

	hub := realtime.NewHub(log)
	auditStore := audit.NewStore(database, log)
	store := tasks.NewPostgresStore(database, hub)
	notifier := enrichment.NewNotifier(cfg.EnrichmentWebhookURL, log, auditStore)

	if cfg.EnrichmentWebhookURL == "" {
		log.Info("enrichment webhook not configured, notifier disabled")
	}

	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/auth/register", auth.RegisterHandler(database, secret)).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", auth.LoginHandler(database, secret)).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", mw.Wrap(auth.MeHandler(database))).Methods(http.MethodGet)

	r.HandleFunc("/tasks", mw.Wrap(tasks.NewListHandler(store))).Methods(http.MethodGet)
	r.HandleFunc("/tasks", mw.Wrap(tasks.NewCreateHandler(log, store, notifier, auditStore))).Methods(http.MethodPost)
	r.HandleFunc("/tasks", mw.Wrap(tasks.NewUpdateHandler(store))).Methods(http.MethodPut)
	r.HandleFunc("/tasks", mw.Wrap(tasks.NewDeleteHandler(store))).Methods(http.MethodDelete)

	// The workflow engine calls back without a session; the update is scoped
	// by the (task_id, user_id) pair it supplies.
	r.HandleFunc("/enrichment-callback", enrichment.NewCallbackHandler(log, store, auditStore)).Methods(http.MethodPost)

	r.Handle("/realtime", hub.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key"},
		AllowCredentials: true,
	})

	server := http.Server{
		Addr:              cfg.Address,
		ReadHeaderTimeout: 10 * time.Second,
		Handler:           c.Handler(r),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("api server running", "address", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func mustMakeLogger(logLevel string) *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
