package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"kidsactivity/internal/audit"
	"kidsactivity/internal/config"
	"kidsactivity/internal/database"
	"kidsactivity/internal/handlers"
	"kidsactivity/internal/repository"
	"kidsactivity/internal/security"
	"kidsactivity/internal/service"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)

	// Run migrations
	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Migrations completed successfully")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	childRepo := repository.NewChildRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	childActivityRepo := repository.NewChildActivityRepository(db)
	shareRepo := repository.NewShareRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)

	// Initialize services
	emailService, err := service.NewEmailService(cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize email service: %v", err)
	}

	auditLogger := audit.NewLogger(os.Stdout)
	tokenManager := security.NewTokenManager(cfg.JWTSecret, cfg.TokenDuration)

	authService := service.NewAuthService(userRepo, tokenManager)
	childService := service.NewChildService(childRepo)
	activityService := service.NewActivityService(db, activityRepo, childActivityRepo, childRepo)
	sharingService := service.NewSharingService(shareRepo, childRepo, childActivityRepo, userRepo, emailService, auditLogger)
	invitationService := service.NewInvitationService(
		db, invitationRepo, shareRepo, userRepo, emailService, auditLogger,
		time.Duration(cfg.InvitationExpiryDays)*24*time.Hour, cfg.MaxPendingInvitations)
	calendarService := service.NewCalendarService(childRepo, childActivityRepo, sharingService)

	// Initialize handlers
	rateLimiter := security.NewRateLimiter(10, time.Minute)
	requestLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	middleware := handlers.NewMiddleware(authService, rateLimiter, requestLogger)
	authHandler := handlers.NewAuthHandler(authService)
	childHandler := handlers.NewChildHandler(childService)
	activityHandler := handlers.NewActivityHandler(activityService)
	shareHandler := handlers.NewShareHandler(sharingService)
	invitationHandler := handlers.NewInvitationHandler(invitationService)
	calendarHandler := handlers.NewCalendarHandler(calendarService)

	// Setup routes
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("POST /api/auth/register", middleware.RateLimit(authHandler.Register))
	mux.HandleFunc("POST /api/auth/login", middleware.RateLimit(authHandler.Login))
	mux.HandleFunc("POST /api/auth/oauth", middleware.RateLimit(authHandler.OAuthLogin))

	// Account
	mux.HandleFunc("GET /api/me", middleware.RequireAuth(authHandler.Me))

	// Children
	mux.HandleFunc("POST /api/children", middleware.RequireAuth(childHandler.CreateChild))
	mux.HandleFunc("GET /api/children", middleware.RequireAuth(childHandler.ListChildren))
	mux.HandleFunc("GET /api/children/{id}", middleware.RequireAuth(childHandler.GetChild))
	mux.HandleFunc("PUT /api/children/{id}", middleware.RequireAuth(childHandler.UpdateChild))
	mux.HandleFunc("DELETE /api/children/{id}", middleware.RequireAuth(childHandler.DeleteChild))

	// Activity catalog
	mux.HandleFunc("GET /api/activities", middleware.RequireAuth(activityHandler.ListActivities))
	mux.HandleFunc("GET /api/activities/{id}", middleware.RequireAuth(activityHandler.GetActivity))
	mux.HandleFunc("POST /api/activities/import", middleware.RequireAuth(activityHandler.ImportActivity))

	// Tracked activities
	mux.HandleFunc("POST /api/children/{id}/activities", middleware.RequireAuth(activityHandler.TrackActivity))
	mux.HandleFunc("GET /api/children/{id}/activities", middleware.RequireAuth(activityHandler.ListChildActivities))
	mux.HandleFunc("PATCH /api/child-activities/{id}", middleware.RequireAuth(activityHandler.UpdateTrackedActivity))
	mux.HandleFunc("DELETE /api/child-activities/{id}", middleware.RequireAuth(activityHandler.UntrackActivity))

	// Shares
	mux.HandleFunc("POST /api/shares", middleware.RequireAuth(shareHandler.ConfigureShare))
	mux.HandleFunc("GET /api/shares", middleware.RequireAuth(shareHandler.ListShares))
	mux.HandleFunc("GET /api/shares/{id}", middleware.RequireAuth(shareHandler.GetShare))
	mux.HandleFunc("PATCH /api/shares/{id}", middleware.RequireAuth(shareHandler.UpdateShare))
	mux.HandleFunc("DELETE /api/shares/{id}", middleware.RequireAuth(shareHandler.RevokeShare))
	mux.HandleFunc("POST /api/shares/{id}/children", middleware.RequireAuth(shareHandler.AddChildToShare))
	mux.HandleFunc("PATCH /api/shares/{id}/children/{childId}", middleware.RequireAuth(shareHandler.UpdateChildPermissions))
	mux.HandleFunc("DELETE /api/shares/{id}/children/{childId}", middleware.RequireAuth(shareHandler.RemoveChildFromShare))
	mux.HandleFunc("GET /api/shared-children", middleware.RequireAuth(shareHandler.ListSharedChildren))

	// Invitations
	mux.HandleFunc("POST /api/invitations", middleware.RequireAuth(invitationHandler.CreateInvitation))
	mux.HandleFunc("GET /api/invitations/sent", middleware.RequireAuth(invitationHandler.ListSentInvitations))
	mux.HandleFunc("GET /api/invitations/received", middleware.RequireAuth(invitationHandler.ListReceivedInvitations))
	mux.HandleFunc("GET /api/invitations/{token}", middleware.RequireAuth(invitationHandler.GetInvitation))
	mux.HandleFunc("POST /api/invitations/{token}/accept", middleware.RequireAuth(invitationHandler.AcceptInvitation))
	mux.HandleFunc("POST /api/invitations/{token}/decline", middleware.RequireAuth(invitationHandler.DeclineInvitation))
	mux.HandleFunc("DELETE /api/invitations/{id}", middleware.RequireAuth(invitationHandler.CancelInvitation))

	// Calendar
	mux.HandleFunc("GET /api/calendar", middleware.RequireAuth(calendarHandler.GetCalendar))

	// Wrap with logging middleware
	handler := middleware.LogRequests(mux)

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}
