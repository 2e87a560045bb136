package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nfrund/relay/internal/config"
	"github.com/nfrund/relay/internal/database"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var historyFormat string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the stored messages, oldest first",
	Long: `Print every stored message from the configured store in broadcast order.

The Badger store is locked while a server uses it; point BADGER_PATH at a copy
or use the SurrealDB driver to read history next to a running server.

Output formats:
  table - Human-readable table format (default)
  json  - The same JSON array served by /api/messages`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyFormat != "table" && historyFormat != "json" {
			return fmt.Errorf("invalid format %q: valid formats are table, json", historyFormat)
		}

		cfg, err := config.New()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := database.NewMessageStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open message store: %w", err)
		}
		defer store.Close()

		messages, err := store.ListAllOrderedByTime(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if historyFormat == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(messages)
		}

		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"ID", "Created", "Author", "Color", "Text"})
		table.SetAutoWrapText(false)
		for _, m := range messages {
			table.Append([]string{m.ID, m.CreatedAt.Format(time.RFC3339), m.Username, m.Color, m.Text})
		}
		table.Render()
		fmt.Fprintf(out, "%d message(s)\n", len(messages))
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "table", "Output format (table, json)")
	rootCmd.AddCommand(historyCmd)
}
