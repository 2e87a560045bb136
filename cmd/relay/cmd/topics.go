package cmd

import (
	"strings"

	_ "github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/pubsub"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// topicsCmd represents the topics command
var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the events the relay publishes on its bus",
	Long: `List every topic the relay publishes, with the payload fields of each.
Subscribers inside the process (such as presence tracking) listen on these.`,
	Run: func(cmd *cobra.Command, args []string) {
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Topic", "Payload", "Fields", "Description"})
		table.SetAutoWrapText(false)
		for _, t := range pubsub.Topics() {
			table.Append([]string{t.Name, t.TypeName, strings.Join(t.Fields, ", "), t.Description})
		}
		table.Render()
	},
}

func init() {
	rootCmd.AddCommand(topicsCmd)
}
