// Command issuetoken mints an access token for local development, optionally
// creating the matching profile first.
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/shrimpsizemoose/trekker/logger"

	"cohort/internal/auth"
	"cohort/internal/config"
	"cohort/internal/profile"
	"cohort/internal/store"
)

func main() {
	cfg := config.Load()

	email := flag.String("email", "", "email the token is issued for")
	name := flag.String("name", "", "display name claim")
	ttl := flag.Duration("ttl", cfg.AccessTTL, "token lifetime")
	ensure := flag.Bool("ensure", false, "create the profile if it does not exist")
	admin := flag.Bool("admin", false, "with -ensure, create the profile as an admin")
	flag.Parse()

	if *email == "" {
		logger.Error.Fatalf("-email is required")
	}
	if cfg.Production() {
		logger.Error.Fatalf("refusing to mint tokens in %s", cfg.Env)
	}

	if *ensure {
		ctx := context.Background()
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error.Fatalf("db connect failed: %v", err)
		}
		defer db.Close()

		role := profile.RoleStudent
		if *admin {
			role = profile.RoleAdmin
		}
		p, created, err := profile.NewRepository(db, 0).EnsureProfile(ctx, *email, *name, role)
		if err != nil {
			logger.Error.Fatalf("ensure profile failed: %v", err)
		}
		if !created && p.Role != role {
			logger.Info.Printf("Profile %s already exists with role %s", p.Email, p.Role)
		}
	}

	tok, err := auth.Issue(*email, *name, cfg.JWTIssuer, cfg.JWTSigningKey, *ttl)
	if err != nil {
		logger.Error.Fatalf("issue token failed: %v", err)
	}
	logger.Debug.Printf("Token for %s expires at %s", *email, tok.ExpiresAt.Format("2006-01-02 15:04"))
	fmt.Println(tok.AccessToken)
}
