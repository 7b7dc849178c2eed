// Package main implements spectl, the command-line client for the specd daemon.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specd/internal/client"
	api "github.com/fyrsmithlabs/specd/internal/http"
	"github.com/fyrsmithlabs/specd/internal/sanitize"
)

var (
	// serverURL is the base URL for the specd HTTP server
	serverURL string
	// timeout bounds one request; a turn with a handoff can take minutes
	timeout time.Duration
	// specOut is where the spec command writes the spec ("" or "-" for stdout)
	specOut string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "spectl",
	Short: "CLI for the specd product spec daemon",
	Long: `spectl talks to a running specd daemon. It creates conversations, sends
messages, shows progress, downloads the finished product spec, and opens an
interactive chat. The eval command runs scripted and simulated founders
against the configured model without a daemon.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9090", "specd server URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "request timeout")
	specCmd.Flags().StringVarP(&specOut, "output", "o", "", "write the spec to a file instead of stdout")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(specCmd)
	rootCmd.AddCommand(deleteCmd)
}

func newClient() *client.Client {
	return client.New(serverURL, timeout)
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check specd server health",
	Long: `Check the health status of the specd HTTP server.

Examples:
  # Check health
  spectl health

  # Check health on a different server
  spectl health --server http://localhost:8080`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new conversation",
	Long: `Create a session and print its id. The conversation starts in discovery.

Examples:
  id=$(spectl new)
  spectl send "$id" "I want to build an app that chases unpaid invoices"`,
	Args: cobra.NoArgs,
	RunE: runNew,
}

var sendCmd = &cobra.Command{
	Use:   "send <session> <message...>",
	Short: "Send one message and print the reply",
	Long: `Send a message to a session and print the assistant's reply. Remaining
arguments are joined with spaces; "-" reads the message from stdin.

Examples:
  spectl send 1b4e... "Freelance illustrators, mostly"
  echo "Yes, that's right" | spectl send 1b4e... -`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSend,
}

var showCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Show a session's stage, discovery progress and scope",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var specCmd = &cobra.Command{
	Use:   "spec <session>",
	Short: "Download the finished product spec",
	Long: `Print the product spec of a finished session, or write it with -o.

Examples:
  spectl spec 1b4e... -o product-spec.md`,
	Args: cobra.ExactArgs(1),
	RunE: runSpec,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <session>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, _ []string) error {
	c := newClient()
	resp, err := c.Health(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.BaseURL(), err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server Status: %s\n", resp.Status)
	fmt.Fprintf(out, "Server URL: %s\n", c.BaseURL())
	return nil
}

func runNew(cmd *cobra.Command, _ []string) error {
	resp, err := newClient().CreateSession(commandContext(cmd))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.ID)
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	message, err := readMessage(cmd.InOrStdin(), args[1:])
	if err != nil {
		return err
	}
	resp, err := newClient().Send(commandContext(cmd), args[0], message)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, step := range resp.Steps {
		fmt.Fprintf(cmd.ErrOrStderr(), "... %s\n", step)
	}
	fmt.Fprintln(out, resp.Reply)
	if resp.Stage != resp.PreviousStage {
		fmt.Fprintf(cmd.ErrOrStderr(), "[stage: %s -> %s]\n", resp.PreviousStage, resp.Stage)
	}
	if resp.SpecReady {
		fmt.Fprintf(cmd.ErrOrStderr(), "[spec ready: spectl spec %s -o product-spec.md]\n", args[0])
	}
	return nil
}

func readMessage(stdin io.Reader, parts []string) (string, error) {
	if len(parts) == 1 && parts[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		parts = []string{string(data)}
	}
	message := strings.TrimSpace(strings.Join(parts, " "))
	if message == "" {
		return "", fmt.Errorf("no message to send")
	}
	return message, nil
}

func runShow(cmd *cobra.Command, args []string) error {
	s, err := newClient().GetSession(commandContext(cmd), args[0])
	if err != nil {
		return err
	}
	printSession(cmd.OutOrStdout(), s)
	return nil
}

func printSession(out io.Writer, s *api.SessionResponse) {
	fmt.Fprintf(out, "Session:      %s\n", s.ID)
	fmt.Fprintf(out, "Stage:        %s\n", s.Stage)
	fmt.Fprintf(out, "User turns:   %d\n", s.UserTurns)
	fmt.Fprintf(out, "Completeness: %.0f%% (%d fields)\n", s.Completeness.Score*100, s.Completeness.Filled)
	if len(s.Completeness.Gaps) > 0 {
		gaps := make([]string, 0, len(s.Completeness.Gaps))
		for _, g := range s.Completeness.Gaps {
			gaps = append(gaps, string(g))
		}
		fmt.Fprintf(out, "Gaps:         %s\n", strings.Join(gaps, ", "))
	}
	if s.Discovery.TargetUser != "" {
		fmt.Fprintf(out, "Target user:  %s\n", s.Discovery.TargetUser)
	}
	if s.Discovery.CoreProblem != "" {
		fmt.Fprintf(out, "Core problem: %s\n", s.Discovery.CoreProblem)
	}
	if s.Scoping != nil {
		fmt.Fprintf(out, "Negotiation:  %d round(s)\n", s.NegotiationRounds)
		fmt.Fprintln(out, "MVP features:")
		for _, f := range s.Scoping.MVPFeatures {
			fmt.Fprintf(out, "  [%s] %s (phase %d)\n", f.Priority, f.Name, f.Phase)
		}
		if len(s.Scoping.CutFeatures) > 0 {
			fmt.Fprintln(out, "Cut:")
			for _, f := range s.Scoping.CutFeatures {
				fmt.Fprintf(out, "  %s\n", f.Name)
			}
		}
	}
	fmt.Fprintf(out, "Spec ready:   %t\n", s.SpecReady)
}

func runSpec(cmd *cobra.Command, args []string) error {
	md, err := newClient().Spec(commandContext(cmd), args[0])
	if err != nil {
		return err
	}
	if specOut == "" || specOut == "-" {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}
	path, err := sanitize.OutputFile(specOut)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(md), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Spec written to %s\n", path)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if err := newClient().DeleteSession(commandContext(cmd), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}

// commandContext returns the command's context or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
