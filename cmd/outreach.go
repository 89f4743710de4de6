package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/outreach"
	"github.com/sells-group/leadgen-cli/internal/store"
)

var outreachCmd = &cobra.Command{
	Use:   "outreach",
	Short: "Draft outreach for stored leads",
}

var outreachDraftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Draft an email and a text message for each uncontacted lead",
	Long: "Drafts are stored alongside the lead and never sent. Claude writes them when an " +
		"Anthropic key is configured; otherwise, or when Claude fails, a template is used.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, "outreach")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		minScore, _ := cmd.Flags().GetFloat64("min-score")

		leads, err := st.ListLeads(ctx, store.LeadFilter{
			Status:   model.StatusNotContacted,
			MinScore: minScore,
			Limit:    limit,
		})
		if err != nil {
			return eris.Wrap(err, "outreach draft: list leads")
		}
		if len(leads) == 0 {
			fmt.Println("No uncontacted leads to draft for.")
			return nil
		}

		drafter := outreach.NewDrafter(initGenerator(cfg), st)
		res, err := drafter.Run(ctx, leads)
		if res != nil {
			fmt.Printf("Drafted %d emails and %d messages for %d leads (%d skipped, %d failed)\n",
				res.Emails, res.Messages, len(leads), res.Skipped, res.Failed)
		}
		return err
	},
}

func init() {
	outreachDraftCmd.Flags().Int("limit", 20, "maximum leads to draft for")
	outreachDraftCmd.Flags().Float64("min-score", 0, "only draft for leads at or above this score")
	outreachCmd.AddCommand(outreachDraftCmd)
	rootCmd.AddCommand(outreachCmd)
}
