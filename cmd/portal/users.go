package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/spf13/cobra"

	"github.com/TemirB/freight-portal/internal/auth"
	"github.com/TemirB/freight-portal/internal/config"
	"github.com/TemirB/freight-portal/internal/database"
	"github.com/TemirB/freight-portal/internal/domain"
	"github.com/TemirB/freight-portal/internal/events"
	"github.com/TemirB/freight-portal/internal/kv"
)

func newCreateUserCmd() *cobra.Command {
	var n auth.NewUser
	var role string

	cmd := &cobra.Command{
		Use:   "create-user <username>",
		Short: "Create a portal user (the first admin, typically)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n.Username = args[0]
			n.Role = domain.Role(role)
			if n.Password == "" {
				n.Password = os.Getenv("PORTAL_PASSWORD")
			}
			if n.Password == "" {
				return errors.New("password is required: pass --password or set PORTAL_PASSWORD")
			}

			cfg := config.Load()
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			pool, err := database.Connect(cmd.Context(), cfg.DSN(), logger, tracelog.LogLevelWarn)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := database.Migrate(cmd.Context(), pool, cfg.Tables); err != nil {
				return err
			}

			// Sessions are not touched here, a throwaway store is enough.
			store, err := kv.NewMemory(1)
			if err != nil {
				return err
			}
			svc := auth.NewService(database.NewUserRepo(pool, cfg.Tables), store, events.Multi{}, cfg.Auth, logger)
			u, err := svc.CreateUser(cmd.Context(), n)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s user %q (id %d)\n", u.Role, u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&n.Password, "password", "", "password, at least 8 characters (default $PORTAL_PASSWORD)")
	cmd.Flags().StringVar(&n.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&n.Email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleCustomer), "admin, customer or executive")
	return cmd
}
