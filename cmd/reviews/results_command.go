package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "results <batchId>",
		Short: "Poll a batch once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			res, err := client.Results(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			if !res.Ready {
				fmt.Fprintln(out, renderStatusLine(args[0], statusWarn, "not ready: "+res.Status, colorize))
				return nil
			}
			fmt.Fprintln(out, renderStatusLine(args[0], statusOK,
				fmt.Sprintf("%s ready with %d reviews", res.Artifact.FileName, res.Artifact.ReviewCount), colorize))
			return nil
		},
	}
}
