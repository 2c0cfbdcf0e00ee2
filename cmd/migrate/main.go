package main

import (
	"flag"
	"log"

	"localmart/config"
	"localmart/internal/domain/booking"
	"localmart/internal/domain/product"
	"localmart/pkg/database"
)

func main() {
	seed := flag.Bool("seed", false, "insert development fixtures after migrating")
	flag.Parse()

	cfg := config.LoadConfig()
	database.Connect(cfg)

	if err := database.DB.AutoMigrate(
		&booking.Booking{},
		&product.Product{},
	); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations applied")

	if *seed {
		if cfg.IsProduction() {
			log.Fatal("Refusing to seed a production database")
		}
		if err := database.SeedDemoData(); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	if err := database.HealthCheck(); err != nil {
		log.Fatalf("Health check failed: %v", err)
	}
	log.Println("Database healthy")
}
