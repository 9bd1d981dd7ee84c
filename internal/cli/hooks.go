package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/watzon/hookd/internal/hooks"
)

const hooksTableWidth = 100

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Inspect hook definitions",
}

var hooksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the hooks loaded from the configured source",
	Long: `Fetch hooks from the configured source and print the ones the executor
would register, with the bus filter each one subscribes to. Invalid or
conflicting definitions are logged and left out.`,
	RunE: runHooksList,
}

func init() {
	hooksCmd.AddCommand(hooksListCmd)
	rootCmd.AddCommand(hooksCmd)
}

func runHooksList(cmd *cobra.Command, args []string) error {
	source, err := hooks.NewSource(&cfg.HookSource)
	if err != nil {
		return fmt.Errorf("creating hook source: %w", err)
	}

	registry := hooks.NewRegistry(source)
	if err := registry.Load(context.Background()); err != nil {
		return err
	}

	list := registry.List()
	out := cmd.OutOrStdout()

	if len(list) == 0 {
		fmt.Fprintln(out, "No hooks found.")
		return nil
	}

	fmt.Fprintf(out, "%-6s %-20s %-6s %-32s %-30s\n", "ID", "NAME", "TYPE", "FILTER", "COMMAND")
	fmt.Fprintln(out, strings.Repeat("-", hooksTableWidth))

	for _, h := range list {
		command := h.CommandPath(cfg.HookBasePath)
		if h.Remote {
			host := h.RemoteHost
			if host == "" {
				host = "<event host>"
			}
			command = host + ":" + command
		}
		fmt.Fprintf(out, "%-6d %-20s %-6s %-32s %-30s\n", h.ID, h.Name, h.Type, h.Filter(), command)
	}

	return nil
}
