// Package main provides the entry point for the gigmatch assignment service.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var policyFile string

var rootCmd = &cobra.Command{
	Use:          "gigmatch",
	Short:        "Gigmatch candidate assignment service",
	Long:         "Gigmatch invites developers to client projects in rotating batches, enforces acceptance deadlines and assigns the first developer to accept.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "Assignment policy JSON file (overrides POLICY_FILE)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
