package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"puzzle_webapp/internal/logger"
	"puzzle_webapp/internal/service"

	"github.com/joho/godotenv"
)

// Prints a signed identity for local testing, the same kind /api/auth hands
// out after validating Telegram init data.
func main() {
	_ = godotenv.Load()

	userID := flag.String("user", "1234567890", "user id to sign")
	username := flag.String("username", "testuser", "username claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	identity, err := service.NewIdentityService(os.Getenv("JWT_SECRET"), *ttl, false)
	if err != nil {
		logger.Fatal("failed to init identity service", "error", err)
	}

	token, err := identity.Issue(*userID, *username)
	if err != nil {
		logger.Fatal("failed to issue identity", "error", err)
	}
	fmt.Println(token)
}
