package accountctl

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/arjunms/account-service/internal/config"
	"github.com/arjunms/account-service/internal/database"
	"github.com/arjunms/account-service/internal/repository"
)

type options struct {
	envFile string
}

// NewRootCommand wires the operational subcommands: schema migration and
// retention sweeps for consumed purpose tokens and expired sessions.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "accountctl",
		Short: "Operational tooling for the account service",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")

	cmd.AddCommand(
		newMigrateCommand(opts),
		newPurgeTokensCommand(opts),
		newPurgeSessionsCommand(opts),
	)
	return cmd
}

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cleanup, err := openDB(opts.envFile)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Println("schema migration applied")
			return nil
		},
	}
}

func newPurgeTokensCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-tokens",
		Short: "Delete expired and consumed purpose tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cleanup, err := openDB(opts.envFile)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := repository.NewVerificationTokenRepository(db).PurgeExpired(time.Now())
			if err != nil {
				return fmt.Errorf("purge tokens: %w", err)
			}
			fmt.Printf("purged %d purpose tokens\n", n)
			return nil
		},
	}
}

func newPurgeSessionsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-sessions",
		Short: "Delete expired and revoked sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cleanup, err := openDB(opts.envFile)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := repository.NewSessionRepository(db).PurgeExpired(time.Now())
			if err != nil {
				return fmt.Errorf("purge sessions: %w", err)
			}
			fmt.Printf("purged %d sessions\n", n)
			return nil
		},
	}
}

func openDB(envFile string) (*gorm.DB, func(), error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("load env file: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, cleanup, nil
}
