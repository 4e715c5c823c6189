// Command agentctl creates support agent accounts directly in the configured
// store, for bootstrapping deployments where self registration is disabled.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "agentctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var name, email, password, dsn string
	var timeout time.Duration

	flagSet := pflag.NewFlagSet("agentctl", pflag.ContinueOnError)
	flagSet.StringVar(&name, "name", "", "agent display name")
	flagSet.StringVar(&email, "email", "", "agent login email")
	flagSet.StringVar(&password, "password", os.Getenv("AGENT_PASSWORD"), "agent password (default $AGENT_PASSWORD)")
	flagSet.StringVar(&dsn, "dsn", "", "postgres DSN (default $POSTGRES_DSN)")
	flagSet.DurationVar(&timeout, "timeout", 30*time.Second, "overall timeout")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("a postgres DSN is required; agents created in memory would be lost on exit")
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		AgentRepo: repository.NewAgentRepository(pg.PoolHandle()),
		Retry:     service.RetryPolicyFromConfig(cfg.Storage),
	})
	agent, err := authService.CreateAgent(ctx, name, email, password)
	if err != nil {
		return err
	}

	logger.Info("agent created", zap.String("agent_id", agent.ID), zap.String("email", agent.Email))
	fmt.Println(agent.ID)
	return nil
}
