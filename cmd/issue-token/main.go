package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/troikatech/call-center/pkg/auth"
	"github.com/troikatech/call-center/pkg/env"
)

// Signs a service token for the call API with the server JWT settings.
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: go run cmd/issue-token/main.go <subject> [scopes] [ttl]\n  scopes defaults to %q, ttl to 24h",
			auth.ScopeCallsRead+","+auth.ScopeCallsWrite)
	}
	subject := os.Args[1]

	scopes := []string{auth.ScopeCallsRead, auth.ScopeCallsWrite}
	if len(os.Args) > 2 {
		scopes = strings.Split(os.Args[2], ",")
	}
	ttl := 24 * time.Hour
	if len(os.Args) > 3 {
		d, err := time.ParseDuration(os.Args[3])
		if err != nil {
			log.Fatalf("Invalid ttl %q: %v", os.Args[3], err)
		}
		ttl = d
	}

	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatalf("JWT_SECRET is empty, the server does not check tokens")
	}

	token, expiresAt, err := auth.GenerateToken(auth.TokenConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	}, subject, scopes, ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "Token for %s (%s), expires %s\n", subject, strings.Join(scopes, " "), expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}
