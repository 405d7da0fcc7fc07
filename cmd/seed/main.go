package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sahilchouksey/gradgrid/database"
	"github.com/sahilchouksey/gradgrid/utils/auth"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	// Initialize database connection using GORM
	store, err := database.StartGORM()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := store.Init(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Run seeds
	separator := strings.Repeat("=", 60)
	fmt.Println(separator)
	fmt.Println("GradGrid - Database Seeding")
	fmt.Println(separator)
	fmt.Println()

	if err := database.RunSeeds(store.DB()); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	fmt.Println()
	fmt.Println(separator)
	fmt.Println("🎉 Seeding completed successfully!")
	fmt.Println(separator)
	fmt.Println()

	// Print a development token for the seeded member so the grid and
	// the event stream can be exercised without a login flow.
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Println("JWT_SECRET not set, skipping development token.")
		return
	}

	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "gradgrid-api"
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: secret,
		Expiry: 24 * time.Hour,
		Issuer: issuer,
	})

	token, err := jwtManager.GenerateToken(3, "member@gradgrid.local", "member")
	if err != nil {
		log.Fatalf("❌ Failed to generate development token: %v", err)
	}

	fmt.Println("Development token for member@gradgrid.local (valid 24h):")
	fmt.Println()
	fmt.Println(token)
	fmt.Println()
}
