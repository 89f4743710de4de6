package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Print the search queries a run would issue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("countries") {
			cfg.Pipeline.TargetCountries, _ = cmd.Flags().GetStringSlice("countries")
		}
		qs, err := buildQueries(cfg)
		if err != nil {
			return err
		}
		if len(qs) == 0 {
			fmt.Fprintln(os.Stderr, "No queries generated.")
			return nil
		}
		for _, q := range qs {
			fmt.Println(q)
		}
		fmt.Fprintf(os.Stderr, "%d queries\n", len(qs))
		return nil
	},
}

func init() {
	queriesCmd.Flags().StringSlice("countries", nil, "restrict queries to these countries")
	rootCmd.AddCommand(queriesCmd)
}
