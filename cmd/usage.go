package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adalundhe/architect/core/ledger"
)

var (
	usageSince time.Duration
	usageLimit int
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Summarize logged generations",
	Example: `  architect usage
  architect usage --since 24h --limit 5`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.Flags().DurationVar(&usageSince, "since", 0, "only count generations newer than this")
	usageCmd.Flags().IntVar(&usageLimit, "limit", 10, "number of recent generations to list")
}

type usageReport struct {
	Path    string          `json:"path"`
	Summary ledger.Summary  `json:"summary"`
	Recent  []ledger.Record `json:"recent"`
}

func runUsage(cmd *cobra.Command, _ []string) error {
	mgr, cfg, err := loadConfig()
	defer mgr.Close()
	if err != nil {
		return err
	}

	l, err := ledger.Open(ledgerPath(cfg), zap.NewNop())
	if err != nil {
		return err
	}
	defer l.Close()

	var since time.Time
	if usageSince > 0 {
		since = time.Now().Add(-usageSince)
	}
	summary, err := l.Summary(cmd.Context(), since)
	if err != nil {
		return err
	}
	recent, err := l.Recent(cmd.Context(), usageLimit)
	if err != nil {
		return err
	}
	report := usageReport{Path: l.Path(), Summary: summary, Recent: recent}

	w := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(w, "ledger:     %s\n", report.Path)
	fmt.Fprintf(w, "total:      %d (%d succeeded, %d cached)\n", summary.Total, summary.Succeeded, summary.CacheHits)
	fmt.Fprintf(w, "tokens:     %d in / %d out\n", summary.InputTokens, summary.OutputTokens)
	fmt.Fprintf(w, "by mode:    %s\n", counts(summary.ByMode))
	fmt.Fprintf(w, "by kind:    %s\n", counts(summary.ByKind))
	if len(summary.ByFailure) > 0 {
		fmt.Fprintf(w, "failures:   %s\n", counts(summary.ByFailure))
	}
	if len(recent) > 0 {
		fmt.Fprintln(w, "\nrecent:")
	}
	for _, r := range recent {
		status := "ok"
		if !r.Succeeded {
			status = r.FailureReason
		}
		fmt.Fprintf(w, "  %s  %-8s %-11s %-20s %s\n",
			r.CreatedAt.Local().Format(time.DateTime), r.Kind, r.Mode, status, r.Latency.Round(time.Millisecond))
	}
	return nil
}

func counts(m map[string]int) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%d", k, m[k])
	}
	return out
}
