package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adalundhe/architect/core/pipeline"
	"github.com/adalundhe/architect/core/request"
)

var generateOut string

var generateCmd = &cobra.Command{
	Use:   "generate <description>|-",
	Short: "Generate a Streamlit app from a description",
	Long: `Generate classifies the description, picks the simple or architected
prompt and prints the generated code. Pass "-" to read the description
from stdin.`,
	Example: `  architect generate "build a calculator"
  architect generate --out app.py "a dashboard backed by postgres with user login"
  cat idea.txt | architect generate -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&generateOut, "out", "o", "", "write the code to this file")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	text, err := readText(cmd, args)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.pipeline.Run(cmd.Context(), pipeline.Input{Text: text, Kind: request.KindBuild})
	return printResult(cmd, result, generateOut)
}
