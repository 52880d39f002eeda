package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	natsadapter "github.com/Strob0t/tubedigest/internal/adapter/nats"
	"github.com/Strob0t/tubedigest/internal/config"
)

func watchCmd(cfgPath *string) *cobra.Command {
	var pattern string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the live task events both agents mirror to NATS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFrom(*cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Cache.NATSURL == "" {
				return fmt.Errorf("watch needs cache.nats_url or NATS_URL")
			}
			nc, err := natsadapter.Connect(cmd.Context(), cfg.Cache.NATSURL, "tubedigest-watch")
			if err != nil {
				return err
			}
			defer func() { _ = nc.Close() }()

			out := cmd.OutOrStdout()
			unsubscribe, err := nc.Subscribe(pattern, func(subject string, data []byte) {
				fmt.Fprintf(out, "%s %s\n", subject, data)
			})
			if err != nil {
				return err
			}
			defer unsubscribe()

			done := make(chan os.Signal, 1)
			signal.Notify(done, os.Interrupt, syscall.SIGTERM)
			select {
			case <-done:
			case <-cmd.Context().Done():
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "subject", ">", "subject pattern below "+natsadapter.SubjectPrefix+", e.g. orchestrator.*")
	return cmd
}
