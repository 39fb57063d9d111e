package main

import (
	"database/sql"
	"fmt"
	"time"

	"shifa/internal/auth"
	"shifa/internal/config"
	"shifa/internal/database"

	"github.com/spf13/cobra"
)

// newTokenStorage wraps the shared database handle.
func newTokenStorage(db *sql.DB) *auth.TokenStorage {
	return auth.NewTokenStorage(db)
}

// openTokenStorage opens the configured database for a token command.
func openTokenStorage() (*auth.TokenStorage, *sql.DB, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return auth.NewTokenStorage(db), db, nil
}

// tokenRootCmd groups the token management commands.
func tokenRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens for knowledge mutation endpoints",
	}
	cmd.AddCommand(tokenCreateCmd(), tokenListCmd(), tokenRevokeCmd())
	return cmd
}

func tokenCreateCmd() *cobra.Command {
	var clientName string
	var expiresIn time.Duration

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, db, err := openTokenStorage()
			if err != nil {
				return err
			}
			defer db.Close()

			req := auth.CreateTokenRequest{ClientName: clientName}
			if expiresIn > 0 {
				t := time.Now().Add(expiresIn)
				req.ExpiresAt = &t
			}

			resp, err := storage.CreateToken(req)
			if err != nil {
				return err
			}

			fmt.Printf("Token created for %q (id %s).\n", resp.TokenInfo.ClientName, resp.TokenInfo.TokenID)
			fmt.Printf("Save it now, it is not shown again:\n\n  %s\n", resp.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&clientName, "client", "", "client name the token identifies (required)")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "token lifetime (e.g. 720h); 0 means no expiry")
	cmd.MarkFlagRequired("client")
	return cmd
}

func tokenListCmd() *cobra.Command {
	var includeInactive bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, db, err := openTokenStorage()
			if err != nil {
				return err
			}
			defer db.Close()

			tokens, err := storage.ListTokens(includeInactive)
			if err != nil {
				return err
			}
			if len(tokens) == 0 {
				fmt.Println("No tokens found.")
				return nil
			}

			for _, t := range tokens {
				status := "active"
				if !t.IsActive {
					status = "revoked"
				}
				expiry := "never"
				if t.ExpiresAt != nil {
					expiry = t.ExpiresAt.Format(time.RFC3339)
				}
				fmt.Printf("%s  client=%s  status=%s  expires=%s\n", t.TokenID, t.ClientName, status, expiry)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeInactive, "all", false, "include revoked tokens")
	return cmd
}

func tokenRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <token-id>",
		Short: "Revoke an API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, db, err := openTokenStorage()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := storage.RevokeToken(args[0]); err != nil {
				return err
			}
			fmt.Printf("Token %s revoked.\n", args[0])
			return nil
		},
	}
}
