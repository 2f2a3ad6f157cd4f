// Package main provides the entry point for the notion-mirror CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "notion-mirror",
		Short: "Mirror Notion databases into object storage",
		Long: `notion-mirror keeps object-storage mirrors of Notion databases fresh.

It renders pages to Markdown with YAML front matter, downloads the
attachments they reference, and converges on changes through webhook
events and periodic rescans.`,
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println("notion-mirror version 0.1.0")
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
