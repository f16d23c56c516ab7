package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/war-room/internal/api"
	"github.com/debemdeboas/war-room/internal/auth"
	"github.com/debemdeboas/war-room/internal/config"
	"github.com/debemdeboas/war-room/internal/db"
	"github.com/debemdeboas/war-room/internal/logger"
	"github.com/debemdeboas/war-room/internal/middleware"
	"github.com/debemdeboas/war-room/internal/render"
	"github.com/debemdeboas/war-room/internal/repository"
	"github.com/debemdeboas/war-room/internal/server"
	"github.com/debemdeboas/war-room/internal/sse"
	"github.com/debemdeboas/war-room/internal/storage"
)

func main() {
	configPath := flag.String("config", config.ConfigPath(), "path to the YAML config file")
	flag.Parse()

	// Configure a default logger until the config tells us the level.
	mainLogger := logger.New("info")
	setLoggers(mainLogger)

	secrets := config.LoadSecrets()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		mainLogger.Fatal().Err(err).Str("path", *configPath).Msg("Error loading config")
	}

	mainLogger = logger.New(cfg.Logging.Level, logger.WithFormat(cfg.Logging.Format))
	setLoggers(mainLogger)

	if err := render.SetEngine(cfg.Site.MarkdownEngine); err != nil {
		mainLogger.Fatal().Err(err).Msg("Error selecting markdown engine")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database := db.NewSQLite(cfg.Database.Path)
	if err := database.InitDB(); err != nil {
		mainLogger.Fatal().Err(err).Msgf(config.ErrInitializeDatabaseFmt, err)
	}
	defer database.Close()

	posts := repository.NewDBPostRepository(database)
	categories := repository.NewDBCategoryRepository(database)
	profiles := repository.NewDBProfileRepository(database)
	authRepo := repository.NewDBAuthRepository(database)

	objects, err := storage.New(ctx, cfg.Storage, secrets)
	if err != nil {
		mainLogger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Error initializing object storage")
	}
	var uploadsDir string
	if local, ok := objects.(*storage.LocalStorage); ok {
		uploadsDir = local.Dir()
	}

	var (
		provider auth.Provider
		service  *auth.Service
		webhooks http.HandlerFunc
	)
	switch cfg.Auth.Provider {
	case "clerk":
		clerkProvider := auth.NewClerkProvider(secrets.ClerkKey, profiles)
		provider = clerkProvider
		webhooks = clerkProvider.HandleWebhookUser
	default:
		priv, pub, err := auth.LoadKeys(secrets.AuthPrivateKeyPEM, secrets.AuthPublicKeyPEM)
		if err != nil {
			mainLogger.Fatal().Err(err).Msg("Error loading auth keys")
		}
		tokens := auth.NewTokenIssuer(priv, pub)
		provider = auth.NewLocalProvider(tokens, authRepo, profiles, cfg.Auth.CookieName)
		service = auth.NewService(cfg.Auth, authRepo, authRepo, profiles, tokens)

		go auth.NewProvisioner(authRepo, profiles, cfg.Auth.Provisioning.Interval).Run(ctx)
	}

	events := sse.NewSSEClients()
	metrics := middleware.NewMetrics()
	posts.SetChangeNotifier(server.ChangeBroadcaster(events, metrics))
	go posts.WatchChanges(ctx, cfg.Cache.PollInterval)

	handler := api.New(api.Deps{
		Posts:          posts,
		Categories:     categories,
		Storage:        objects,
		Provider:       provider,
		Auth:           service,
		CookieName:     cfg.Auth.CookieName,
		FeaturedLimit:  cfg.Cache.FeaturedLimit,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
	})

	srv := server.New(ctx, server.Deps{
		Config:     cfg,
		API:        handler,
		Provider:   provider,
		Events:     events,
		Metrics:    metrics,
		Logger:     mainLogger,
		Webhooks:   webhooks,
		UploadsDir: uploadsDir,
	})

	mainLogger.Info().
		Str("site", cfg.Site.Name).
		Str("auth", cfg.Auth.Provider).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting")

	if err := srv.Run(ctx); err != nil {
		mainLogger.Fatal().Err(err).Msg("Server error")
	}
	mainLogger.Info().Msg("Stopped")
}

func setLoggers(l zerolog.Logger) {
	config.SetLogger(l.With().Str("component", "config").Logger())
	db.SetLogger(l.With().Str("component", "db").Logger())
	repository.SetLogger(l.With().Str("component", "repository").Logger())
	storage.SetLogger(l.With().Str("component", "storage").Logger())
	auth.SetLogger(l.With().Str("component", "auth").Logger())
	sse.SetLogger(l.With().Str("component", "sse").Logger())
	render.SetLogger(l.With().Str("component", "render").Logger())
	middleware.SetLogger(l.With().Str("component", "http").Logger())
	server.SetLogger(l.With().Str("component", "server").Logger())
}
