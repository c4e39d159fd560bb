// Package cmd implements the fieldctl CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	serverURL string

	okFmt  = color.New(color.FgGreen).SprintFunc()
	errFmt = color.New(color.FgRed, color.Bold).SprintFunc()
	dimFmt = color.New(color.Faint).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:   "fieldctl",
	Short: "Operator CLI for the field territory token service",
	Long: `fieldctl manages capability tokens against a running server.

It issues territory and block tokens, revokes them, and inspects the
credential behind a token key.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errFmt("error:"), err)
		os.Exit(1)
	}
}

func init() {
	defaultServer := os.Getenv("FIELDKEY_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "server base URL")
}
