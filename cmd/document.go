package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/adalundhe/architect/core/pipeline"
	"github.com/adalundhe/architect/core/request"
)

var (
	documentCodeFile string
	documentOut      string
)

var documentCmd = &cobra.Command{
	Use:     "document --code FILE [instructions]",
	Short:   "Write documentation for generated code",
	Example: `  architect document --code app.py --out README.md`,
	RunE:    runDocument,
}

func init() {
	rootCmd.AddCommand(documentCmd)
	documentCmd.Flags().StringVar(&documentCodeFile, "code", "", "file with the code to document (required)")
	documentCmd.Flags().StringVarP(&documentOut, "out", "o", "", "write the documentation to this file")
	_ = documentCmd.MarkFlagRequired("code")
}

func runDocument(cmd *cobra.Command, args []string) error {
	code, err := readAttachment(cmd, documentCodeFile)
	if err != nil {
		return err
	}
	if code == "" {
		return errors.New("--code file is empty")
	}
	text, err := readText(cmd, args)
	if err != nil {
		return err
	}
	if text == "" {
		text = pipeline.DefaultDocumentText
	}

	a, err := newApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.pipeline.Run(cmd.Context(), pipeline.Input{
		Text:      text,
		PriorCode: code,
		Kind:      request.KindDocument,
	})
	return printResult(cmd, result, documentOut)
}
