package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/model"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search, qualify and export a batch of leads",
	Long: "Generates category x city queries, searches each one, keeps businesses without a website " +
		"that clear the rating and review thresholds, and writes new leads to every enabled sink.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyRunFlags(cmd)

		qs, _ := cmd.Flags().GetStringArray("query")
		if len(qs) == 0 {
			var err error
			if qs, err = buildQueries(cfg); err != nil {
				return err
			}
		}

		env, err := initRun(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Run(ctx, qs)
		if res != nil {
			formatSummary(os.Stdout, res.Summary)
		}
		return err
	},
}

// applyRunFlags copies explicitly set flags over the loaded config.
func applyRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("premium") {
		cfg.Pipeline.Premium, _ = f.GetBool("premium")
	}
	if f.Changed("min-score") {
		cfg.Pipeline.MinQualityScore, _ = f.GetFloat64("min-score")
		cfg.Pipeline.Premium = true
	}
	if f.Changed("max-leads") {
		cfg.Pipeline.MaxLeadsPerRun, _ = f.GetInt("max-leads")
	}
	if f.Changed("countries") {
		cfg.Pipeline.TargetCountries, _ = f.GetStringSlice("countries")
	}
	if f.Changed("sinks") {
		cfg.Sinks.Enabled, _ = f.GetStringSlice("sinks")
	}
}

func formatSummary(out io.Writer, s model.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	c := s.Counters
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", s.ID)
	_, _ = fmt.Fprintf(w, "State:\t%s\n", s.State)
	if s.Premium {
		_, _ = fmt.Fprintf(w, "Mode:\tpremium\n")
	}
	_, _ = fmt.Fprintf(w, "Queries:\t%d issued, %d failed\n", c.QueriesIssued, c.QueriesFailed)
	_, _ = fmt.Fprintf(w, "Results:\t%d raw\n", c.RawResults)
	_, _ = fmt.Fprintf(w, "Rejected:\t%d filtered, %d below score, %d duplicates\n", c.FilteredOut, c.BelowScore, c.DuplicatesSkipped)
	_, _ = fmt.Fprintf(w, "Accepted:\t%d\n", c.Accepted)
	_, _ = fmt.Fprintf(w, "Est. cost:\t$%.2f\n", s.CostUSD)
	if s.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", s.Error)
	}
	_ = w.Flush()
}

func init() {
	runCmd.Flags().Bool("premium", false, "keep only leads at or above the quality score threshold")
	runCmd.Flags().Float64("min-score", 0, "premium score threshold (implies --premium)")
	runCmd.Flags().Int("max-leads", 0, "stop after this many accepted leads (default from config)")
	runCmd.Flags().StringSlice("countries", nil, "restrict generated queries to these countries")
	runCmd.Flags().StringSlice("sinks", nil, "override the enabled sinks (csv, xlsx, notion, salesforce, store)")
	runCmd.Flags().StringArray("query", nil, "search this query instead of the generated set (repeatable)")
	rootCmd.AddCommand(runCmd)
}
