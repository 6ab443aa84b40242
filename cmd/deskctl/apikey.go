package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/rpggio/deskview/internal/identity"
	"github.com/rpggio/deskview/internal/repository"
	"github.com/rpggio/deskview/internal/sqlite"
	"github.com/spf13/cobra"
)

const apiKeyPrefix = "dv_"

type apiKeyOptions struct {
	db          string
	tenant      string
	user        string
	role        string
	description string
}

// newAPIKeyCmd manages API keys directly in the server's database.
func newAPIKeyCmd() *cobra.Command {
	opts := &apiKeyOptions{}
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys in a local deskview database",
	}
	cmd.PersistentFlags().StringVar(&opts.db, "db", envOr("DESKVIEW_DB_PATH", "deskview.db"), "server SQLite database")

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a key and print it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			role := identity.Role(opts.role)
			if !role.Known() {
				return fmt.Errorf("unknown role %q", opts.role)
			}
			if opts.tenant == "" || opts.user == "" {
				return errors.New("--tenant and --user are required")
			}
			repo, closeDB, err := openKeys(opts.db)
			if err != nil {
				return err
			}
			defer closeDB()

			token, err := newToken()
			if err != nil {
				return err
			}
			err = repo.Create(cmd.Context(), &identity.APIKey{
				Hash:        identity.HashToken(token),
				TenantID:    opts.tenant,
				UserID:      opts.user,
				Role:        role,
				Description: opts.description,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	create.Flags().StringVar(&opts.tenant, "tenant", "", "tenant id")
	create.Flags().StringVar(&opts.user, "user", "", "user id")
	create.Flags().StringVar(&opts.role, "role", "", "role granted by the key")
	create.Flags().StringVar(&opts.description, "description", "", "free-text note")

	revoke := &cobra.Command{
		Use:   "revoke <key>",
		Short: "Revoke a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeDB, err := openKeys(opts.db)
			if err != nil {
				return err
			}
			defer closeDB()

			err = repo.Revoke(cmd.Context(), identity.HashToken(args[0]))
			if errors.Is(err, repository.ErrNotFound) {
				return errors.New("no such key")
			}
			return err
		},
	}

	cmd.AddCommand(create, revoke)
	return cmd
}

func openKeys(dsn string) (*sqlite.APIKeyRepository, func(), error) {
	db, err := sqlite.New(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlite.NewAPIKeyRepository(db), func() { db.Close() }, nil
}

func newToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return apiKeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}
