package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kevin07696/card-reconciliation/internal/adapters/database"
	"github.com/kevin07696/card-reconciliation/internal/adapters/secrets"
	"github.com/kevin07696/card-reconciliation/internal/config"
	"github.com/kevin07696/card-reconciliation/pkg/security"
)

var flags = flag.NewFlagSet("migrate", flag.ExitOnError)

func main() {
	flags.Usage = usage
	flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) < 1 {
		flags.Usage()
		return
	}
	command := args[0]

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := security.BuildLogger(cfg.Logger.Level, cfg.Logger.Development)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	provider, err := secrets.New(ctx, secrets.Config{
		Backend:   cfg.Secrets.Backend,
		LocalPath: cfg.Secrets.LocalPath,
		AWS: secrets.AWSConfig{
			Region:   cfg.Secrets.AWSRegion,
			Profile:  cfg.Secrets.AWSProfile,
			Endpoint: cfg.Secrets.AWSEndpoint,
		},
		Vault: secrets.VaultConfig{
			Address:    cfg.Secrets.VaultAddress,
			AuthMethod: cfg.Secrets.VaultAuthMethod,
			Token:      cfg.Secrets.VaultToken,
			RoleID:     cfg.Secrets.VaultRoleID,
			SecretID:   cfg.Secrets.VaultSecretID,
			Namespace:  cfg.Secrets.VaultNamespace,
			MountPath:  cfg.Secrets.VaultMountPath,
			KVVersion:  cfg.Secrets.VaultKVVersion,
		},
	}, logger)
	if err != nil {
		log.Fatalf("init secrets: %v", err)
	}

	password, err := secrets.Resolve(ctx, provider, cfg.Database.PasswordSecret, cfg.Database.Password)
	if err != nil {
		log.Fatalf("resolve database password: %v", err)
	}

	pgCfg := database.DefaultPostgreSQLConfig(cfg.Database.ConnectionString(password))
	pgCfg.MaxConns = 2
	pgCfg.MinConns = 0

	pg, err := database.NewPostgreSQLAdapter(ctx, pgCfg, logger)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pg.Close()

	if err := database.RunMigrations(ctx, pg.Pool(), command, logger, args[1:]...); err != nil {
		log.Fatalf("%v", err)
	}
}

func usage() {
	fmt.Print(`Usage: migrate COMMAND

Migrations are embedded in the binary. Connection settings come from the
same DB_* variables the server reads.

Commands:
    up                   Migrate the DB to the most recent version available
    up-by-one            Migrate the DB up by 1
    up-to VERSION        Migrate the DB to a specific VERSION
    down                 Roll back the version by 1
    down-to VERSION      Roll back to a specific VERSION
    redo                 Re-run the latest migration
    reset                Roll back all migrations
    status               Dump the migration status for the current DB
    version              Print the current version of the database

Examples:
    migrate up
    migrate down
    migrate status
`)
}
