package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adalundhe/architect/core/orchestrator"
)

// readText joins args into the request text. A single "-" reads stdin.
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}

// readAttachment reads a file, or stdin for "-".
func readAttachment(cmd *cobra.Command, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// printResult writes the result and returns a ResultError when it failed.
func printResult(cmd *cobra.Command, r orchestrator.GenerationResult, outPath string) error {
	w := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return err
		}
	} else if r.Succeeded {
		printPlain(w, r, outPath != "")
	}

	if !r.Succeeded {
		return &ResultError{Result: r}
	}
	if outPath != "" {
		if err := os.WriteFile(outPath, []byte(ensureNewline(r.Content)), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", outPath)
	}
	return nil
}

func printPlain(w io.Writer, r orchestrator.GenerationResult, contentWritten bool) {
	if !contentWritten {
		fmt.Fprintln(w, strings.TrimRight(r.Content, "\n"))
	}
	if r.Explanation != "" {
		if !contentWritten {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, r.Explanation)
	}
	source := "generated"
	if r.CacheHit {
		source = "cached"
	}
	fmt.Fprintf(w, "\n[%s | %s | %s | %d tokens | %s]\n",
		r.Mode, r.Model, source, r.Usage.TotalTokens, r.Latency.Round(time.Millisecond))
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
