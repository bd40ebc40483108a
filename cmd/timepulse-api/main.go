package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	"github.com/timepulse/timepulse-api/internal/config"
	"github.com/timepulse/timepulse-api/internal/database"
	"github.com/timepulse/timepulse-api/internal/handlers"
	"github.com/timepulse/timepulse-api/internal/logger"
	authmw "github.com/timepulse/timepulse-api/internal/middleware"
	"github.com/timepulse/timepulse-api/internal/models"
	"github.com/timepulse/timepulse-api/internal/oauth"
	"github.com/timepulse/timepulse-api/internal/services"
	"github.com/timepulse/timepulse-api/internal/sse"
	"github.com/timepulse/timepulse-api/internal/storage"
)

func fatal(msg string, err error) {
	logger.Log.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config", err)
	}

	logger.Init(cfg.LogLevel, cfg.IsProduction())

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal("failed to connect to database", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		fatal("failed to run migrations", err)
	}

	var capacityCache services.CapacityCache
	if cfg.Redis.Addr != "" {
		rdb, err := storage.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Log.Warn("redis unavailable, waitlist snapshots will not be cached", "error", err)
		} else {
			defer rdb.Close()
			capacityCache = storage.NewSnapshotCache(rdb, cfg.Redis.WaitlistCacheTTL)
		}
	}

	var objectStore storage.ObjectStore
	s3Store, err := storage.NewS3Store(ctx, cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		logger.Log.Info("object storage not configured, email assets disabled")
	case err != nil:
		fatal("failed to configure object storage", err)
	default:
		objectStore = s3Store
	}

	hub := sse.NewHub()
	go hub.Run()

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	userService := services.NewUserService(db)
	sessionService := services.NewSessionService(db)
	eventService := services.NewEventService(db)
	activityService := services.NewActivityService(db)
	templateService := services.NewEmailTemplateService(db)
	assetService := services.NewAssetService(objectStore)
	alertDispatcher := services.NewAlertDispatcher(db, eventService, services.NewFunctionsNotifier(cfg.Functions), cfg.AlertConcurrency)
	bibService := services.NewBibExchangeService(db, alertDispatcher, hub)
	waitlistService := services.NewWaitlistService(db, capacityCache)
	teamService := services.NewTeamService(db, hub, cfg.TeamInvitationTTL)
	waiverService := services.NewWaiverService(db, eventService, hub)

	var mailer handlers.InvitationMailerInterface
	if emailService := services.NewEmailService(cfg.SMTP); emailService.IsConfigured() {
		mailer = services.NewInvitationMailer(templateService, emailService)
	}

	var providers []oauth.Provider
	if cfg.Google.ClientID != "" {
		providers = append(providers, oauth.NewGoogleProvider(cfg.Google))
	}

	authHandler := handlers.NewAuthHandler(cfg, oauth.NewRegistry(providers...), userService, sessionService, jwtService)
	userHandler := handlers.NewUserHandler(userService)
	eventHandler := handlers.NewEventHandler(eventService)
	bibHandler := handlers.NewBibExchangeHandler(bibService, alertDispatcher, eventService, activityService)
	waitlistHandler := handlers.NewWaitlistHandler(waitlistService)
	teamHandler := handlers.NewTeamHandler(teamService, mailer)
	waiverHandler := handlers.NewWaiverHandler(waiverService, eventService, activityService)
	adminHandler := handlers.NewAdminHandler(templateService, activityService, sessionService, assetService, cfg.Storage.MaxUploadBytes)
	sseHandler := handlers.NewSSEHandler(hub, teamService, eventService)

	app := drift.New()

	if cfg.IsProduction() {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", authmw.ServiceKeyHeader},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())

	api := app.Group("/api/v1")

	api.Get("/health", func(c *drift.Context) {
		_ = c.JSON(200, map[string]any{"status": "ok", "realtime_clients": hub.ClientCount()})
	})

	auth := api.Group("/auth")
	auth.Get("/:provider/consent", authHandler.GetConsentURL)
	auth.Get("/:provider/callback", authHandler.Callback)
	auth.Post("/exchange", authHandler.ExchangeCode)
	auth.Post("/refresh", authHandler.RefreshToken)
	auth.Post("/logout", authHandler.Logout)

	api.Get("/events", eventHandler.List)
	api.Get("/races/:raceId/waitlist", waitlistHandler.Snapshot)
	api.Post("/races/:raceId/waitlist", waitlistHandler.Join)
	api.Delete("/waitlist/:entryId", waitlistHandler.Leave)
	api.Get("/races/:raceId/waiver", waiverHandler.GetActive)

	protected := api.Group("")
	protected.Use(authmw.Auth(jwtService))

	protected.Post("/auth/logout-all", authHandler.LogoutAll)

	protected.Get("/users/me", userHandler.GetMe)
	protected.Patch("/users/me", userHandler.UpdateMe)

	protected.Post("/bib-exchange/listings", bibHandler.CreateListing)
	protected.Delete("/bib-exchange/listings/:listingId", bibHandler.CancelListing)

	protected.Post("/teams", teamHandler.Create)
	protected.Post("/teams/join", teamHandler.Join)
	protected.Get("/teams/:id", teamHandler.Get)
	protected.Delete("/teams/:id/members/:memberId", teamHandler.RemoveMember)
	protected.Get("/teams/:id/events", sseHandler.TeamEvents)

	protected.Post("/races/:raceId/waiver/accept", waiverHandler.Accept)

	organizer := api.Group("/organizer")
	organizer.Use(authmw.Auth(jwtService))
	organizer.Get("/events/:eventId/bib-exchange/settings", bibHandler.GetSettings)
	organizer.Put("/events/:eventId/bib-exchange/settings", bibHandler.UpdateSettings)
	organizer.Get("/events/:eventId/bib-exchange/listings", bibHandler.ListListings)
	organizer.Get("/events/:eventId/bib-exchange/transfers", bibHandler.ListTransfers)
	organizer.Get("/events/:eventId/bib-exchange/stats", bibHandler.Stats)
	organizer.Get("/events/:eventId/bib-exchange/listings/:listingId/alerts", bibHandler.AlertDeliveries)
	organizer.Post("/events/:eventId/bib-exchange/listings/:listingId/alerts/retry", bibHandler.RetryAlerts)
	organizer.Get("/events/:eventId/events", sseHandler.BibExchangeEvents)
	organizer.Post("/races/:raceId/waiver/preview", waiverHandler.Preview)
	organizer.Post("/races/:raceId/waiver", waiverHandler.Save)
	organizer.Get("/races/:raceId/waiver/events", sseHandler.WaiverEvents)

	admin := api.Group("/admin")
	admin.Use(authmw.Auth(jwtService))
	admin.Use(authmw.RequireGlobalRole(models.GlobalRoleSuperAdmin))
	admin.Get("/email-templates", adminHandler.ListEmailTemplates)
	admin.Put("/email-templates/:id", adminHandler.UpdateEmailTemplate)
	admin.Post("/email-templates/:id/duplicate", adminHandler.DuplicateEmailTemplate)
	admin.Get("/activity-logs", adminHandler.ListActivityLogs)
	admin.Get("/login-sessions", adminHandler.ListLoginSessions)
	admin.Get("/email-assets", adminHandler.ListEmailAssets)
	admin.Post("/email-assets", adminHandler.UploadEmailAsset)
	admin.Delete("/email-assets/:key", adminHandler.DeleteEmailAsset)

	internal := api.Group("/internal")
	internal.Use(authmw.ServiceKey(cfg.InternalServiceKey))
	internal.Post("/bib-exchange/transfers", bibHandler.CompleteTransfer)

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		for range ticker.C {
			n, err := sessionService.CleanupExpired(context.Background())
			if err != nil {
				logger.Log.Warn("login session cleanup failed", "error", err)
				continue
			}
			logger.Log.Debug("expired login sessions removed", "count", n)
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		logger.Log.Info("server starting", "addr", addr, "env", cfg.Env)
		if err := app.Run(addr); err != nil {
			fatal("server failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down server")
}
