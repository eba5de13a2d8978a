package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/2hm1901/tournament-management/brackets"
	"github.com/2hm1901/tournament-management/config"
	"github.com/2hm1901/tournament-management/db"
	"github.com/2hm1901/tournament-management/events"
	"github.com/2hm1901/tournament-management/handlers"
	"github.com/2hm1901/tournament-management/repositories"
	api "github.com/2hm1901/tournament-management/routes"
	"github.com/2hm1901/tournament-management/services"
	"github.com/2hm1901/tournament-management/storage"
)

const schedulerInterval = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	// Хранилище логотипов опционально: без настроек R2 загрузка недоступна.
	var uploader storage.FileUploader
	if cfg.R2Enabled() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	}

	wsHub := brackets.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub started")

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	logger.Info("repositories initialized")

	dispatcher := events.NewDispatcher(logger)
	dispatcher.Register(wsHub)
	if cfg.EmailEnabled() {
		emailService := services.NewEmailService(cfg)
		dispatcher.Register(events.NewEmailSink(emailService, tournamentRepo, userRepo))
		logger.Info("email notifications enabled", slog.String("smtp_host", cfg.SMTPHost))
	}

	authService := services.NewAuthService(userRepo, cfg.JWTSecretKey)
	userService := services.NewUserService(userRepo)
	playerService := services.NewPlayerService(playerRepo, userRepo, uploader)
	teamService := services.NewTeamService(teamRepo, playerRepo, uploader)
	tournamentService := services.NewTournamentService(dbConn, tournamentRepo, userRepo, uploader, dispatcher, logger)
	participantService := services.NewParticipantService(dbConn, participantRepo, tournamentRepo, playerRepo, teamRepo, dispatcher, logger)
	seedingService := services.NewSeedingService(dbConn, participantRepo, tournamentRepo, dispatcher, logger)
	matchService := services.NewMatchService(dbConn, matchRepo, tournamentRepo, participantRepo, dispatcher, logger)
	bracketService := services.NewBracketService(dbConn, matchRepo, participantRepo, tournamentRepo, dispatcher, logger)
	logger.Info("services initialized")

	// Планировщик двигает турниры по границам окна регистрации.
	go func() {
		ticker := time.NewTicker(schedulerInterval)
		defer ticker.Stop()
		logger.Info("tournament status scheduler started", slog.Duration("interval", schedulerInterval))

		if err := tournamentService.AutoUpdateTournamentStatusesByDates(context.Background()); err != nil {
			logger.Error("scheduler: initial run failed", slog.Any("error", err))
		}
		for range ticker.C {
			if err := tournamentService.AutoUpdateTournamentStatusesByDates(context.Background()); err != nil {
				logger.Error("scheduler: periodic run failed", slog.Any("error", err))
			}
		}
	}()

	authHandler := handlers.NewAuthHandler(authService)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService, uploader)
	participantHandler := handlers.NewParticipantHandler(participantService, seedingService)
	matchHandler := handlers.NewMatchHandler(matchService)
	bracketHandler := handlers.NewBracketHandler(bracketService)
	playerHandler := handlers.NewPlayerHandler(playerService, uploader)
	teamHandler := handlers.NewTeamHandler(teamService, uploader)
	userHandler := handlers.NewUserHandler(userService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, tournamentService, logger)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		[]byte(cfg.JWTSecretKey),
		authHandler,
		tournamentHandler,
		participantHandler,
		matchHandler,
		bracketHandler,
		playerHandler,
		teamHandler,
		userHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
}
