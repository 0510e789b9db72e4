package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func (c *CLI) statusCommand() *cobra.Command {
	var addr, secret string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Dump a one-shot snapshot of every tracked package's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialConsole(addr, secret)
			if err != nil {
				return err
			}
			defer client.close()
			printStatusSnapshot(client.First)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "console address (host:port)")
	cmd.Flags().StringVar(&secret, "secret", "", "operator secret")
	cmd.MarkFlagRequired("secret")
	return cmd
}

func printStatusSnapshot(first consoleFirstUpdate) {
	names := make([]string, 0, len(first.Snapshot))
	for name := range first.Snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, rec := range first.Snapshot[name] {
			line := fmt.Sprintf("%s@%s", name, rec.Version)
			printKeyValue(line, rec.Status)
			if rec.Detail != "" {
				printDetail("%s", rec.Detail)
			}
		}
	}
	if len(first.IgnoreList) > 0 {
		printNewline()
		printInfo("ignore list: %v", first.IgnoreList)
	}
}
