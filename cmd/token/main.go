package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/pageza/nutrilog/backend/config"
	"github.com/pageza/nutrilog/backend/internal/service"
)

// Prints an access token for a user, for local development and API testing
func main() {
	userID := flag.Int64("user", 1, "user id to issue the token for")
	ttl := flag.Duration("ttl", service.DefaultTokenTTL, "token lifetime")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	token, err := service.NewTokenService(cfg.JWTSecret, *ttl).GenerateToken(*userID)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
