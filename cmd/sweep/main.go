package main

import (
	"log"
	"time"

	"kidsactivity/internal/config"
	"kidsactivity/internal/database"
	"kidsactivity/internal/repository"
)

// Sweep marks overdue pending invitations as expired and deactivates shares
// whose expiry has passed. It is idempotent and meant to run from cron; the
// server itself never schedules cleanup.
func main() {
	cfg := config.Load()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	invitationRepo := repository.NewInvitationRepository(db)
	shareRepo := repository.NewShareRepository(db)

	now := time.Now()

	expired, err := invitationRepo.ExpirePending(now)
	if err != nil {
		log.Fatalf("Failed to expire invitations: %v", err)
	}
	log.Printf("Expired %d overdue invitations", expired)

	deactivated, err := shareRepo.DeactivateExpired(now)
	if err != nil {
		log.Fatalf("Failed to deactivate expired shares: %v", err)
	}
	log.Printf("Deactivated %d expired shares", deactivated)
}
