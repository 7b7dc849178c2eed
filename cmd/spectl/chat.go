package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specd/internal/sanitize"
	"github.com/fyrsmithlabs/specd/internal/tui"
)

var (
	chatSession  string
	chatSpecPath string
)

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "resume an existing session instead of starting one")
	chatCmd.Flags().StringVar(&chatSpecPath, "spec-path", tui.DefaultSpecPath, "where /spec saves the finished spec")
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open an interactive conversation",
	Long: `Open a full-screen chat with the specd assistant. The assistant walks you
through discovery and scoping, then writes the product spec.

Commands inside the chat:
  /spec   save the finished spec (see --spec-path)
  /quit   leave; the session id is printed so you can resume it

Examples:
  spectl chat
  spectl chat --session 1b4e... --spec-path docs/spec.md`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		specPath, err := sanitize.OutputFile(chatSpecPath)
		if err != nil {
			return fmt.Errorf("--spec-path: %w", err)
		}
		return tui.Run(commandContext(cmd), newClient(), tui.Options{
			SessionID: chatSession,
			SpecPath:  specPath,
		})
	},
}
