// Package cmd provides the actiongate CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sentinelguard/actiongate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "actiongate",
	Short: "actiongate - action-authorization gateway",
	Long: `actiongate validates whether an agent may take an action, evaluating
tenant policy, per-key rate limits, and rolling aggregate limits before
an action is allowed to proceed.

Quick start:
  1. Create a config file: actiongate.yaml
  2. Run: actiongate run

Configuration is loaded from actiongate.yaml in the current directory,
$HOME/.actiongate/, or /etc/actiongate/. Environment variables override
config values with the ACTIONGATE_ prefix, e.g. ACTIONGATE_SERVER_HTTP_ADDR.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./actiongate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
