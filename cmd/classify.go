package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adalundhe/architect/core/pipeline"
	"github.com/adalundhe/architect/core/server"
)

var classifyShowPrompt bool

var classifyCmd = &cobra.Command{
	Use:   "classify <description>|-",
	Short: "Show how a description would be classified without generating",
	Example: `  architect classify "build a calculator"
  architect classify --prompt "an app with user login backed by postgres"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().BoolVar(&classifyShowPrompt, "prompt", false, "also print the assembled prompt")
}

func runClassify(cmd *cobra.Command, args []string) error {
	text, err := readText(cmd, args)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), appOptions{offline: true})
	if err != nil {
		return err
	}
	defer a.Close()

	plan, err := a.pipeline.Plan(pipeline.Input{Text: text})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(server.ClassifyResponse{
			Mode:        plan.Request.Mode(),
			Normalized:  plan.Request.NormalizedText(),
			Signal:      plan.Signal,
			Prompt:      plan.Prompt,
			Fingerprint: string(plan.Fingerprint),
		})
	}

	sig := plan.Signal
	fmt.Fprintf(w, "mode:         %s\n", plan.Request.Mode())
	fmt.Fprintf(w, "score:        %.2f\n", sig.Score)
	fmt.Fprintf(w, "keywords:     %s\n", list(sig.KeywordHits))
	fmt.Fprintf(w, "integrations: %s\n", list(sig.RequestedIntegrations))
	fmt.Fprintf(w, "structural:   %s\n", list(sig.StructuralHits))
	fmt.Fprintf(w, "hard:         %s\n", list(sig.HardHits))
	fmt.Fprintf(w, "fingerprint:  %s\n", plan.Fingerprint.Short())
	if classifyShowPrompt {
		fmt.Fprintf(w, "\n=== SYSTEM (%s) ===\n%s\n\n=== USER ===\n%s\n",
			plan.Prompt.Version, plan.Prompt.System, plan.Prompt.User)
	}
	return nil
}

func list(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
