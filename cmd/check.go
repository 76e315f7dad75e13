package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vurg/notification-service/app/broker"
	"github.com/vurg/notification-service/app/credential"
	"github.com/vurg/notification-service/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and report credential state",
	RunE:  runCheck,
}

// init registers the check command.
func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, logger, logCloser := mustSetup()
	defer logCloser.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	out := cmd.OutOrStdout()
	if err := printConfigSummary(out, cfg); err != nil {
		return err
	}

	res, err := openResources(ctx, cfg)
	if err != nil {
		return err
	}
	defer res.Close()
	fmt.Fprintf(out, "lock backend:    %s (reachable)\n", cfg.LockBackend)

	if cfg.EmailProvider != "gmail" {
		return nil
	}

	manager, _, err := buildCredentialManager(cfg, res, logger)
	if err != nil {
		return err
	}
	state, err := manager.State(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "gmail credential: %s\n", state)
	if state == credential.StateUnauthenticated {
		return credential.ErrConsentRequired
	}
	return nil
}

// printConfigSummary writes the effective settings with secrets omitted.
func printConfigSummary(out io.Writer, cfg *config.Config) error {
	server, err := broker.BrokerURL(cfg.MQTTURI, cfg.MQTTPort, cfg.MQTTTLS)
	if err != nil {
		return err
	}

	heartbeat := cfg.HeartbeatInterval.String()
	if cfg.HeartbeatInterval <= 0 {
		heartbeat = "on connect only"
	}

	fmt.Fprintf(out, "broker:          %s (client id %s)\n", server, cfg.MQTTClientID)
	fmt.Fprintf(out, "topics:          consume %s, status %s\n", cfg.MQTTTopic, cfg.MQTTStatusTopic)
	fmt.Fprintf(out, "heartbeat:       %s\n", heartbeat)
	fmt.Fprintf(out, "email provider:  %s (from %s)\n", cfg.EmailProvider, cfg.EmailFrom)
	fmt.Fprintf(out, "permitted:       %d recipient(s)\n", cfg.Allowlist.Len())
	fmt.Fprintf(out, "workers:         %d, queue size %d\n", cfg.WorkerCount, cfg.QueueSize)
	fmt.Fprintf(out, "status server:   %s\n", cfg.StatusAddr())
	return nil
}
