package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shuttle/internal/audit"
	"shuttle/internal/config"
	"shuttle/internal/credentials"
	"shuttle/internal/queue"
)

func newCredentialsCommand(ctx *commandContext) *cobra.Command {
	credentialsCmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage sealed platform credentials",
	}

	credentialsCmd.AddCommand(newCredentialsSetCommand(ctx))
	credentialsCmd.AddCommand(newCredentialsRemoveCommand(ctx))
	credentialsCmd.AddCommand(newCredentialsListCommand(ctx))

	return credentialsCmd
}

func withCredentialStore(ctx *commandContext, fn func(cfg *config.Config, store *credentials.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Credentials.Secret) == "" {
		return errors.New("credentials secret is not configured (set credentials.secret or SHUTTLE_CREDENTIALS_SECRET)")
	}

	queueStore, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer queueStore.Close()

	store, err := credentials.NewStore(queueStore.DB(), cfg.Credentials.Secret, audit.NewLog(queueStore.DB()))
	if err != nil {
		return err
	}
	return fn(cfg, store)
}

func newCredentialsSetCommand(ctx *commandContext) *cobra.Command {
	var platform string
	var userID string
	var accessToken string
	var refreshToken string
	var expires string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a platform credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			cred := credentials.Credential{
				Platform:     platform,
				UserID:       userID,
				AccessToken:  accessToken,
				RefreshToken: refreshToken,
			}
			if strings.TrimSpace(expires) != "" {
				parsed, err := time.Parse(time.RFC3339, expires)
				if err != nil {
					return fmt.Errorf("invalid --expires value %q (expected RFC3339)", expires)
				}
				cred.ExpiresAt = parsed
			}

			return withCredentialStore(ctx, func(cfg *config.Config, store *credentials.Store) error {
				if err := store.Set(cmd.Context(), cred); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored credential for %s/%s\n", strings.ToLower(cred.Platform), cred.UserID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "Platform name")
	cmd.Flags().StringVarP(&userID, "user", "u", "default", "Account user id")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "Access token")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "Refresh token")
	cmd.Flags().StringVar(&expires, "expires", "", "Token expiry in RFC3339 (omit for non-expiring)")
	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("access-token")
	return cmd
}

func newCredentialsRemoveCommand(ctx *commandContext) *cobra.Command {
	var platform string
	var userID string

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a platform credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCredentialStore(ctx, func(cfg *config.Config, store *credentials.Store) error {
				if err := store.Remove(cmd.Context(), platform, userID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed credential for %s/%s\n", strings.ToLower(platform), userID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "Platform name")
	cmd.Flags().StringVarP(&userID, "user", "u", "default", "Account user id")
	_ = cmd.MarkFlagRequired("platform")
	return cmd
}

func newCredentialsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored credential keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCredentialStore(ctx, func(cfg *config.Config, store *credentials.Store) error {
				keys, err := store.Keys(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(keys) == 0 {
					fmt.Fprintln(out, "No credentials stored")
					return nil
				}
				for _, key := range keys {
					fmt.Fprintln(out, key)
				}
				return nil
			})
		},
	}
}
