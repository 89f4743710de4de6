package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Browse and update stored leads",
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored leads, highest score first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		city, _ := cmd.Flags().GetString("city")
		category, _ := cmd.Flags().GetString("category")
		minScore, _ := cmd.Flags().GetFloat64("min-score")
		limit, _ := cmd.Flags().GetInt("limit")

		if status != "" && !store.ValidStatus(status) {
			return eris.Wrapf(store.ErrInvalidStatus, "leads list: %q", status)
		}

		leads, err := st.ListLeads(ctx, store.LeadFilter{
			Status:   status,
			City:     city,
			Category: category,
			MinScore: minScore,
			Limit:    limit,
		})
		if err != nil {
			return eris.Wrap(err, "leads list")
		}
		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		formatLeadsList(os.Stdout, leads)
		return nil
	},
}

// -- leads status --

var leadsStatusCmd = &cobra.Command{
	Use:   "status <place-id> <status>",
	Short: "Move a lead to a new outreach status",
	Long:  `Valid statuses: "Not Contacted", "Contacted", "Replied", "Not Interested".`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.UpdateLeadStatus(ctx, args[0], args[1]); err != nil {
			return eris.Wrap(err, "leads status")
		}
		fmt.Printf("%s -> %s\n", args[0], args[1])
		return nil
	},
}

// openStore validates cfg for mode and opens the migrated store.
func openStore(ctx context.Context, mode string) (store.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	return initStore(ctx, cfg)
}

func formatLeadsList(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORE\tNAME\tCATEGORY\tCITY\tRATING\tREVIEWS\tPHONE\tSTATUS\tPLACE_ID")
	_, _ = fmt.Fprintln(w, "-----\t----\t--------\t----\t------\t-------\t-----\t------\t--------")

	for _, l := range leads {
		score := "-"
		if l.QualityScore != nil {
			score = fmt.Sprintf("%.0f", *l.QualityScore)
		}
		name := l.BusinessName
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\t%d\t%s\t%s\t%s\n",
			score, name, l.Category, l.City, l.Rating, l.ReviewsCount, l.Phone, l.Status, l.PlaceID)
	}
	_ = w.Flush()
}

func init() {
	leadsListCmd.Flags().String("status", "", "filter by status")
	leadsListCmd.Flags().String("city", "", "filter by city")
	leadsListCmd.Flags().String("category", "", "filter by category")
	leadsListCmd.Flags().Float64("min-score", 0, "minimum quality score")
	leadsListCmd.Flags().Int("limit", 50, "maximum leads to show")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsStatusCmd)
	rootCmd.AddCommand(leadsCmd)
}
