package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/capiscio/wascap/pkg/caps"
	"github.com/spf13/cobra"
)

var capsCmd = &cobra.Command{
	Use:   "caps",
	Short: "List well-known capabilities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CAPABILITY\tNAME")
		for _, uri := range caps.WellKnown() {
			fmt.Fprintf(tw, "%s\t%s\n", uri, caps.Describe(uri))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(capsCmd)
}
