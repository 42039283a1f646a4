package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/reviews-extractor/internal/supervisor"
)

func newSuperviseCommand(ctx *commandContext) *cobra.Command {
	var command string

	cmd := &cobra.Command{
		Use:   "supervise",
		Short: "Run the reviews service and restart it when the credential changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			store, err := ctx.credentialStore()
			if err != nil {
				return err
			}
			if strings.TrimSpace(command) != "" {
				cfg.Supervisor.WorkerCommand = command
			}
			sup, err := supervisor.New(supervisor.FromConfig(cfg, store), ctx.log())
			if err != nil {
				return err
			}
			return sup.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "Worker command line (overrides WORKER_COMMAND)")
	return cmd
}
