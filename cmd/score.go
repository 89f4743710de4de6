package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/qualify"
	"github.com/sells-group/leadgen-cli/internal/scorer"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score and rank raw search results from a JSON file",
	Long: "Reads a JSON array of raw search results, applies the qualification filter " +
		"and prints each record with its quality score, highest first.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("file")
		explain, _ := cmd.Flags().GetBool("explain")
		minScore, _ := cmd.Flags().GetFloat64("min-score")

		records, err := readRecords(path)
		if err != nil {
			return err
		}

		th := qualify.Thresholds{MinRating: cfg.Pipeline.MinRating, MinReviews: cfg.Pipeline.MinReviews}
		ranked := scorer.RankByScore(records)
		if minScore > 0 {
			kept := ranked[:0]
			for _, r := range ranked {
				if *r.QualityScore >= minScore {
					kept = append(kept, r)
				}
			}
			ranked = kept
		}
		if len(ranked) == 0 {
			fmt.Fprintln(os.Stderr, "No records to score.")
			return nil
		}

		formatScores(os.Stdout, ranked, th, explain)
		return nil
	},
}

func readRecords(path string) ([]model.RawRecord, error) {
	var rd io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "open %s", path)
		}
		defer f.Close() //nolint:errcheck
		rd = f
	}

	var records []model.RawRecord
	if err := json.NewDecoder(rd).Decode(&records); err != nil {
		return nil, eris.Wrap(err, "decode records")
	}
	return records, nil
}

func formatScores(out io.Writer, records []model.RawRecord, th qualify.Thresholds, explain bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := "SCORE\tQUALIFIED\tNAME\tRATING\tREVIEWS\tPLACE_ID"
	if explain {
		header += "\tBREAKDOWN"
	}
	_, _ = fmt.Fprintln(w, header)

	for _, r := range records {
		qualified := "yes"
		if reason := th.Reason(r); reason != "" {
			qualified = "no (" + reason + ")"
		}
		name := r.Title
		if len(name) > 32 {
			name = name[:29] + "..."
		}
		line := fmt.Sprintf("%.0f\t%s\t%s\t%.1f\t%d\t%s",
			*r.QualityScore, qualified, name, r.RatingValue(), r.ReviewsValue(), r.PlaceID)
		if explain {
			line += "\t" + explainScore(scorer.Breakdown(r))
		}
		_, _ = fmt.Fprintln(w, line)
	}
	_ = w.Flush()
}

// explainScore renders the non-zero score components, e.g.
// "base 50, rating +10, reviews +15".
func explainScore(c scorer.Components) string {
	parts := []string{fmt.Sprintf("base %.0f", c.Baseline)}
	add := func(name string, v float64) {
		if v != 0 {
			parts = append(parts, fmt.Sprintf("%s %+.0f", name, v))
		}
	}
	add("high_value", c.HighValue)
	add("low_value", c.LowValue)
	add("high_budget", c.HighBudget)
	add("low_budget", c.LowBudget)
	add("rating", c.Rating)
	add("reviews", c.Reviews)
	add("website", c.Website)
	add("phone", c.Phone)

	if len(c.Matched) > 0 {
		keys := make([]string, 0, len(c.Matched))
		for k := range c.Matched {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var hits []string
		for _, k := range keys {
			hits = append(hits, k+"="+strings.Join(c.Matched[k], "|"))
		}
		parts = append(parts, "["+strings.Join(hits, " ")+"]")
	}
	return strings.Join(parts, ", ")
}

func init() {
	scoreCmd.Flags().String("file", "-", "JSON file of raw records (- for stdin)")
	scoreCmd.Flags().Bool("explain", false, "show the score breakdown per record")
	scoreCmd.Flags().Float64("min-score", 0, "only show records at or above this score")
	rootCmd.AddCommand(scoreCmd)
}
