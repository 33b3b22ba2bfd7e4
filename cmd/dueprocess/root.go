package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "dueprocess",
	Short: "Adversarial audit of a code repository against a weighted rubric",
	Long: "Dueprocess runs a digital courtroom over a repository and its\n" +
		"documentation: parallel detectives gather grounded evidence, three\n" +
		"judicial personas deliberate over it, and a chief justice synthesizes\n" +
		"deterministic per-dimension scores into a final audit report.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(serveToolsCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
