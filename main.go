package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "proofmine",
	Short: "proofmine — proof-of-inference mining backend",
	Long: `proofmine accepts work from miners, has an AI judge verify it, and
credits rewards and reputation for every verified submission.`,
	SilenceUsage: true,
}

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), configPath, serveAddr)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP(cmd.Context(), configPath)
	},
}

var (
	verifyTask   string
	verifyOutput string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Judge one miner output against a task and print the result",
	Long: `Runs a single verification outside the pipeline. Nothing is stored.

Example:
  proofmine verify --task task.json --output output.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify(cmd.Context(), configPath, verifyTask, verifyOutput, cmd.OutOrStdout())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "proofmine %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "proofmine.toml", "path to config.toml")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	verifyCmd.Flags().StringVar(&verifyTask, "task", "", "task JSON file (task_type, instructions, verification_criteria)")
	verifyCmd.Flags().StringVar(&verifyOutput, "output", "", "miner output JSON file")
	_ = verifyCmd.MarkFlagRequired("task")
	_ = verifyCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(serveCmd, mcpCmd, verifyCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
