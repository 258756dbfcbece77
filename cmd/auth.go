package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/adalundhe/architect/core/providers"
)

var apiKey string

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage provider API keys",
	Long: `Store, inspect and remove the API keys used to reach completion providers.
Environment variables such as GROQ_API_KEY take precedence over stored keys.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set <provider>",
	Short: "Store the API key for a provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthSet,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where each provider's key comes from",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var authRemoveCmd = &cobra.Command{
	Use:   "remove <provider>",
	Short: "Remove the stored API key for a provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthRemove,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRemoveCmd)

	authSetCmd.Flags().StringVar(&apiKey, "api-key", "", "API key (prompted for, or read from stdin, if not provided)")
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	provider, err := providers.ParseProviderType(strings.ToLower(args[0]))
	if err != nil {
		return err
	}

	key := apiKey
	if key == "" {
		key, err = readKey(cmd, provider)
		if err != nil {
			return err
		}
	}
	if key == "" {
		return errors.New("empty API key")
	}

	r := credentialResolver()
	if err := r.SaveAPIKey(provider, key); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s key to %s\n", provider, r.Path)
	return nil
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	r := credentialResolver()
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Provider Status:")
	fmt.Fprintln(w, "----------------")
	for _, p := range providers.ProviderTypes() {
		src, err := r.Source(p)
		if err != nil {
			return err
		}
		status := "not configured"
		switch src {
		case providers.SourceEnv:
			status = "configured (" + providers.EnvKeyName(p) + ")"
		case providers.SourceFile:
			status = "configured (" + r.Path + ")"
		}
		fmt.Fprintf(w, "  %-12s %s\n", string(p)+":", status)
	}
	return nil
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	provider, err := providers.ParseProviderType(strings.ToLower(args[0]))
	if err != nil {
		return err
	}
	removed, err := credentialResolver().RemoveAPIKey(provider)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintf(cmd.OutOrStdout(), "No stored key for %s\n", provider)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s key\n", provider)
	return nil
}

// readKey prompts with echo disabled on a terminal and otherwise reads the
// first line of stdin.
func readKey(cmd *cobra.Command, provider providers.ProviderType) (string, error) {
	if f, ok := cmd.InOrStdin().(interface{ Fd() uintptr }); ok && term.IsTerminal(int(f.Fd())) {
		return readHidden(int(f.Fd()), fmt.Sprintf("Enter API key for %s: ", provider))
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func readHidden(fd int, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	key, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(string(key)), nil
}
