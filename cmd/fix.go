package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/adalundhe/architect/core/pipeline"
	"github.com/adalundhe/architect/core/request"
)

var (
	fixCodeFile  string
	fixErrorFile string
	fixOut       string
)

var fixCmd = &cobra.Command{
	Use:   "fix --code FILE --error FILE|- [instructions]",
	Short: "Repair previously generated code",
	Long: `Fix sends the prior code and the error it produced back to the model and
prints the corrected code.`,
	Example: `  architect fix --code app.py --error trace.txt
  streamlit run app.py 2>&1 | architect fix --code app.py --error - --out app.py`,
	RunE: runFix,
}

func init() {
	rootCmd.AddCommand(fixCmd)
	fixCmd.Flags().StringVar(&fixCodeFile, "code", "", "file with the code to repair (required)")
	fixCmd.Flags().StringVar(&fixErrorFile, "error", "", `file with the error output, or "-" for stdin`)
	fixCmd.Flags().StringVarP(&fixOut, "out", "o", "", "write the repaired code to this file")
	_ = fixCmd.MarkFlagRequired("code")
}

func runFix(cmd *cobra.Command, args []string) error {
	code, err := readAttachment(cmd, fixCodeFile)
	if err != nil {
		return err
	}
	if code == "" {
		return errors.New("--code file is empty")
	}
	errorContext, err := readAttachment(cmd, fixErrorFile)
	if err != nil {
		return err
	}
	text, err := readText(cmd, args)
	if err != nil {
		return err
	}
	if text == "" {
		text = pipeline.DefaultFixText
	}

	a, err := newApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.pipeline.Run(cmd.Context(), pipeline.Input{
		Text:         text,
		PriorCode:    code,
		ErrorContext: errorContext,
		Kind:         request.KindFix,
	})
	return printResult(cmd, result, fixOut)
}
