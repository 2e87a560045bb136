package cmd

import (
	"fmt"

	gcolor "github.com/gookit/color"
	authorcolor "github.com/nfrund/relay/internal/color"
	"github.com/spf13/cobra"
)

var colorCmd = &cobra.Command{
	Use:   "color <name>...",
	Short: "Print the color assigned to new authors",
	Long: `Print the color a display name receives the first time it posts.
Authors who already posted keep the color of their latest message.

Examples:
  relay color Alice
  relay color Alice Bob ""`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, name := range args {
			hex := authorcolor.For(name)
			swatch := gcolor.HEX(hex, true).Sprint("      ")
			fmt.Fprintf(out, "%s  %s  %s\n", swatch, hex, gcolor.HEX(hex).Sprint(displayName(name)))
		}
	},
}

func displayName(name string) string {
	if name == "" {
		return `""`
	}
	return name
}

func init() {
	rootCmd.AddCommand(colorCmd)
}
