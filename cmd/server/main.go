package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"notely/internal/api"
	"notely/internal/auth"
	"notely/internal/blob"
	"notely/internal/config"
	"notely/internal/constants"
	"notely/internal/db"
	"notely/internal/email"
	"notely/internal/events"
	"notely/internal/graph"
	"notely/internal/logging"
	"notely/internal/notes"
	"notely/internal/search"
	"notely/internal/summarize"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file with secrets")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load env file", "path", *envPath, "error", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(logging.New(os.Stdout, cfg.Log.Level))
	slog.Info("starting server", "name", cfg.Server.Name)

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("database opened", "path", cfg.Database.Path)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	blobStore, err := newBlobStore(startupCtx, cfg)
	if err != nil {
		slog.Error("failed to initialize blob storage", "error", err)
		os.Exit(1)
	}
	slog.Info("blob storage initialized", "driver", cfg.Storage.Driver, "upload_max_bytes", cfg.Storage.UploadMaxBytes)

	notifier, closeNotifier, err := newNotifier(cfg)
	if err != nil {
		slog.Error("failed to initialize notifier", "error", err)
		os.Exit(1)
	}
	defer closeNotifier.Close()
	slog.Info("notifier configured", "driver", cfg.Notifier.Driver)

	var noteIndex notes.Index
	var healthChecks []api.HealthCheck
	if cfg.Search.Elasticsearch.Enabled() {
		es := cfg.Search.Elasticsearch
		idx, err := search.NewNoteIndex(startupCtx, es.Addresses, es.Username, es.Password, es.Index)
		if err != nil {
			slog.Error("failed to initialize search index", "error", err)
			os.Exit(1)
		}
		noteIndex = idx
		healthChecks = append(healthChecks, api.HealthCheck{Name: "search", Ping: idx.Ping})
		slog.Info("search index configured", "index", es.Index)
	}

	var summarizer notes.Summarizer
	if cfg.Summarizer.APIKey != "" {
		client, err := summarize.NewGeminiClient(startupCtx, cfg.Summarizer.APIKey, cfg.Summarizer.Model, cfg.Summarizer.Timeout)
		if err != nil {
			slog.Error("failed to initialize summarizer", "error", err)
			os.Exit(1)
		}
		summarizer = client
	} else {
		slog.Warn("summarizer api key not set, note summaries are disabled")
	}

	userRepo := db.NewUserRepository(database)
	revokedRepo := db.NewRevokedTokenRepository(database)
	resetCodeRepo := db.NewResetCodeRepository(database)
	noteRepo := db.NewNoteRepository(database)
	blobRepo := db.NewBlobRepository(database)

	manager := auth.NewManager(auth.ManagerDeps{
		Users:    userRepo,
		Ledger:   revokedRepo,
		Codes:    resetCodeRepo,
		Tokens:   auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Hasher:   auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		CodeGen:  auth.NewCodeGenerator(constants.ResetCodeDigits, cfg.Auth.ResetCodeTTL),
		Notifier: notifier,
		Logger:   slog.Default(),
	})
	noteService := notes.NewService(noteRepo, summarizer, noteIndex, slog.Default())

	notesQuery, err := graph.NewHandler(noteService)
	if err != nil {
		slog.Error("failed to build notes schema", "error", err)
		os.Exit(1)
	}

	cleanupService := db.NewCleanupService(revokedRepo, resetCodeRepo)
	blobCleanupService := blob.NewCleanupService(blobRepo, blobStore)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go cleanupService.Start(cleanupCtx)
	go blobCleanupService.Start(cleanupCtx)

	server, err := api.NewServer(api.ServerDeps{
		Config:       cfg,
		Database:     database,
		Manager:      manager,
		Notes:        noteService,
		Blobs:        blobStore,
		BlobRepo:     blobRepo,
		NotesQuery:   notesQuery,
		HealthChecks: healthChecks,
	})
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")

	cleanupCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
	manager.Wait()

	slog.Info("server stopped")
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	if cfg.Storage.Driver == config.StorageS3 {
		s3cfg := cfg.Storage.S3
		return blob.NewS3Store(ctx, blob.S3Config{
			Region:    s3cfg.Region,
			Endpoint:  s3cfg.Endpoint,
			Bucket:    s3cfg.Bucket,
			AccessKey: s3cfg.AccessKey,
			SecretKey: s3cfg.SecretKey,
			Prefix:    s3cfg.Prefix,
			PathStyle: s3cfg.PathStyle,
		}, cfg.Storage.UploadMaxBytes)
	}
	return blob.NewLocalStore(cfg.Storage.BlobRoot, cfg.Storage.UploadMaxBytes)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newNotifier returns the reset-code notifier and whatever must be closed on
// shutdown.
func newNotifier(cfg *config.Config) (auth.Notifier, io.Closer, error) {
	if cfg.Notifier.Driver == config.NotifierKafka {
		publisher, err := events.NewPublisher(cfg.Notifier.Kafka.Brokers, cfg.Notifier.Kafka.Topic)
		if err != nil {
			return nil, nil, err
		}
		return publisher, publisher, nil
	}

	smtp := cfg.Notifier.SMTP
	return email.NewSMTPService(smtp.Host, smtp.Port, smtp.Username, smtp.Password, smtp.From), nopCloser{}, nil
}
