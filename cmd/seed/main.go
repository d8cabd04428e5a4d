// Command main seeds the development database with generated data.
package main

import (
	"context"
	"log"

	"glimpse/internal/config"
	"glimpse/internal/gateway"
	"glimpse/internal/seed"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := gateway.Open(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	if err := gateway.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	gw := gateway.NewGormGateway(db)
	userIDs, err := seed.Run(context.Background(), gw, seed.DefaultOptions())
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d users", len(userIDs))
}
