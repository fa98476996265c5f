// Parley CLI - command-line harness for chat orchestration.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley - client-side LLM chat orchestration",
	Long: `Parley composes chat requests, tool execution, and conversation
management into a middleware chain that talks to LLM providers.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: parley.yaml in the working directory)")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
