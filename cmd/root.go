package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adalundhe/architect/core/orchestrator"
)

var (
	configFile      string
	providerName    string
	modelName       string
	logLevel        string
	jsonOutput      bool
	noCache         bool
	credentialsPath string
)

var rootCmd = &cobra.Command{
	Use:   "architect",
	Short: "Architect - adaptive Streamlit code generation",
	Long: `Architect turns a plain-language description of a Streamlit app into code.
Small requests get a single self-contained script; requests that need
integrations such as a database or user login get a layered application.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file applied after the user and project config")
	flags.StringVar(&providerName, "provider", "", "completion provider (groq, openai, anthropic, google)")
	flags.StringVar(&modelName, "model", "", "model id sent to the provider")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&jsonOutput, "json", false, "print results as JSON")
	flags.BoolVar(&noCache, "no-cache", false, "disable the result cache")
	flags.StringVar(&credentialsPath, "credentials", "", "credentials file (default: credentials.yaml in the config directory)")
}

// ResultError reports a failed generation to the shell.
type ResultError struct {
	Result orchestrator.GenerationResult
}

func (e *ResultError) Error() string {
	msg := e.Result.FailureReason.UserMessage()
	if e.Result.Error != "" {
		msg += " (" + e.Result.Error + ")"
	}
	return msg
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		var re *ResultError
		if errors.As(err, &re) {
			fmt.Fprintln(os.Stderr, "Error:", re.Error())
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	return err
}
