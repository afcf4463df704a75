// Command devtoken mints a bearer token for local use and optionally grants
// the super_admin role, which the API never hands out.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mcclellann/ikimina/pkg/auth"
	"github.com/mcclellann/ikimina/pkg/config"
	"github.com/mcclellann/ikimina/pkg/ledger"
	"github.com/mcclellann/ikimina/pkg/store"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	user := flag.String("user", "", "subject of the token (required)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	superAdmin := flag.Bool("super-admin", false, "grant the super_admin role before signing")
	flag.Parse()

	if *user == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *superAdmin {
		if err := grant(cfg.Database.Path, *user); err != nil {
			slog.Error("failed to grant super_admin", "user_id", *user, "error", err)
			os.Exit(1)
		}
		slog.Info("granted super_admin", "user_id", *user)
	}

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		slog.Error("failed to initialize token verifier", "error", err)
		os.Exit(1)
	}
	token, err := verifier.Sign(*user, *ttl)
	if err != nil {
		slog.Error("failed to sign token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func grant(dbPath, userID string) error {
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()
	return ledger.NewLedger(s).GrantSuperAdmin(context.Background(), userID)
}
