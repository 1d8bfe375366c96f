package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/memberkeeper/internal/admin"
	"github.com/dmitrijs2005/memberkeeper/internal/logging"
	"github.com/dmitrijs2005/memberkeeper/internal/server"
	"github.com/dmitrijs2005/memberkeeper/internal/server/auth"
	"github.com/dmitrijs2005/memberkeeper/internal/server/config"
	"github.com/dmitrijs2005/memberkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/memberkeeper/internal/server/services"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	db, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db.DB); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:   []byte(cfg.SecretKey),
		Issuer:   cfg.TokenIssuer,
		Validity: cfg.AccessTokenValidityDuration,
	})
	if err != nil {
		return err
	}

	svc := services.NewUserService(rm.Users(db), server.NewHasher(cfg), tokens, logger)
	return admin.NewRunner(svc, os.Stdin, os.Stdout).Run(ctx, os.Args[1:])
}
