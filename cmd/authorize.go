package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vurg/notification-service/app/credential"
)

var authorizeTimeout time.Duration

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Grant the service access to the Gmail sending account",
	Long:  "Run the one-time OAuth consent flow: open the printed URL, approve access, and the token is stored for the consume command.",
	RunE:  runAuthorize,
}

// init registers the authorize command.
func init() {
	authorizeCmd.Flags().DurationVar(&authorizeTimeout, "timeout", 5*time.Minute, "how long to wait for the consent callback")
	rootCmd.AddCommand(authorizeCmd)
}

func runAuthorize(cmd *cobra.Command, _ []string) error {
	cfg, logger, logCloser := mustSetup()
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, authorizeTimeout)
	defer cancel()

	res, err := openResources(ctx, cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	manager, oauthConfig, err := buildCredentialManager(cfg, res, logger)
	if err != nil {
		return err
	}

	consent, err := credential.NewConsent(oauthConfig, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Open this URL in a browser and approve access:\n\n%s\n\n", consent.AuthURL())

	tok, err := consent.Await(ctx, "localhost:"+strconv.Itoa(cfg.OAuthCallbackPort))
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}
	if err := manager.Authorize(ctx, tok); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Authorization stored.")
	return nil
}
