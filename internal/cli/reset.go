package cli

import (
	"github.com/spf13/cobra"
)

func (c *CLI) resetCommand() *cobra.Command {
	var addr, secret string
	var rulesOnly bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Connect to a running instance's console and reset its backend state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialConsole(addr, secret)
			if err != nil {
				return err
			}
			defer client.close()

			msgType := "ResetBackend"
			if rulesOnly {
				msgType = "ResetRules"
			}
			if err := client.send(msgType, struct{}{}); err != nil {
				return err
			}
			printSuccess("sent %s", msgType)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "console address (host:port)")
	cmd.Flags().StringVar(&secret, "secret", "", "operator secret")
	cmd.Flags().BoolVar(&rulesOnly, "rules-only", false, "send ResetRules instead: return checked records to Fetched and failed metadata fetches to Pending, keeping the rest of the backend")
	cmd.MarkFlagRequired("secret")
	return cmd
}
