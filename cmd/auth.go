package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/teemow/freetime/internal/credentials"
	"github.com/teemow/freetime/internal/google"
	"github.com/teemow/freetime/internal/logging"
)

// codeExchanger turns an authorization code into a token.
type codeExchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Connect a Google Calendar",
		Long: `Connect a Google Calendar by running the OAuth consent flow:

  1. freetime auth url
  2. Open the URL, grant read-only calendar access and copy the code
  3. freetime auth exchange --user me@example.com --code <code>

The credential is written to the configured store.`,
	}

	cmd.AddCommand(newAuthURLCmd())
	cmd.AddCommand(newAuthExchangeCmd())
	cmd.AddCommand(newAuthRevokeCmd())
	return cmd
}

func newAuthURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url",
		Short: "Print the Google consent URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, closeFn, err := newService(cmd.Context(), cfg, serviceOptions{Logger: logger})
			if err != nil {
				return err
			}
			defer closeFn()

			authURL, _, err := svc.AuthorizationURL()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), authURL)
			return nil
		},
	}
}

func newAuthExchangeCmd() *cobra.Command {
	var (
		user string
		code string
	)

	cmd := &cobra.Command{
		Use:   "exchange",
		Short: "Exchange an authorization code and save the credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			oauthClient, err := google.NewOAuthClient(cfg.OAuth())
			if err != nil {
				return fmt.Errorf("google OAuth is not configured: %w", err)
			}
			store, closeFn, err := cfg.NewStore(logging.NewSlogAdapter(logger))
			if err != nil {
				return fmt.Errorf("failed to create credential store: %w", err)
			}
			defer closeFn()

			if err := exchangeCode(cmd.Context(), oauthClient, store, user, code); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Calendar connected for %s\n", user)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", os.Getenv("FREETIME_USER"), "User the credential belongs to. Can also use FREETIME_USER env var.")
	cmd.Flags().StringVar(&code, "code", "", "Authorization code from the consent page")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func newAuthRevokeCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Delete the stored credential of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, closeFn, err := cfg.NewStore(logging.NewSlogAdapter(logger))
			if err != nil {
				return fmt.Errorf("failed to create credential store: %w", err)
			}
			defer closeFn()

			if err := revokeCredential(cmd.Context(), store, user); err != nil {
				return err
			}
			logger.Info("Credential deleted", logging.UserHash(user))
			fmt.Fprintf(cmd.OutOrStdout(), "Credential removed for %s\n", user)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", os.Getenv("FREETIME_USER"), "User whose credential is deleted. Can also use FREETIME_USER env var.")
	return cmd
}

// exchangeCode exchanges code and saves the resulting tokens for user.
func exchangeCode(ctx context.Context, exchanger codeExchanger, store credentials.Store, user, code string) error {
	if err := credentials.ValidateUserID(user); err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("authorization code is required")
	}

	tok, err := exchanger.Exchange(ctx, code)
	if err != nil {
		return err
	}
	if tok.RefreshToken == "" {
		return fmt.Errorf("google did not return a refresh token; revoke the app's access in your Google account and retry")
	}

	return store.Save(ctx, user, credentials.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	})
}

// revokeCredential deletes the stored credential of user. Deleting a
// missing credential is not an error.
func revokeCredential(ctx context.Context, store credentials.Store, user string) error {
	if err := credentials.ValidateUserID(user); err != nil {
		return err
	}
	return store.Delete(ctx, user)
}
