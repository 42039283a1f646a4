package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/reviews-extractor/internal/common"
	"github.com/joseph-ayodele/reviews-extractor/internal/credential"
	"github.com/joseph-ayodele/reviews-extractor/internal/orchestrator"
)

func newCredentialCommand(ctx *commandContext) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Show or change the scraping service credential",
	}
	cmd.PersistentFlags().BoolVar(&local, "local", false, "Use the credential file directly instead of the running service")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the active credential, masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var masked, source string
			if local {
				store, err := ctx.credentialStore()
				if err != nil {
					return err
				}
				value, src := store.Resolve()
				masked, source = credential.Mask(value), string(src)
			} else {
				client, err := ctx.apiClient()
				if err != nil {
					return err
				}
				info, err := client.Credential(cmd.Context())
				if err != nil {
					return err
				}
				masked, source = info.Credential, info.Source
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderStatusLine("credential", statusInfo, fmt.Sprintf("%s (from %s)", masked, source), shouldColorize(out)))
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <value>",
		Short: "Persist a new credential; it applies to the next upstream call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := strings.TrimSpace(args[0])
			if value == "" {
				return common.InvalidInput("credential must not be empty")
			}
			if local {
				store, err := ctx.credentialStore()
				if err != nil {
					return err
				}
				if err := store.Update(value); err != nil {
					return err
				}
			} else {
				client, err := ctx.apiClient()
				if err != nil {
					return err
				}
				if err := client.UpdateCredential(cmd.Context(), value); err != nil {
					if orchestrator.IsRetryable(err) {
						return fmt.Errorf("%w (use --local when the service is not running)", err)
					}
					return err
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderStatusLine("credential", statusOK, "updated to "+credential.Mask(value), shouldColorize(out)))
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}
