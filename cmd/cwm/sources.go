package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured document sources",
	Long: `Sources prints every registered source: the built-in catalog plus any
overlay file named in the configuration.`,
	Args: cobra.NoArgs,
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	apiClient, err := newClient()
	if err != nil {
		return err
	}
	defer func() { _ = apiClient.Close() }()

	fmt.Printf("%-14s %-8s %-16s %s\n", "ID", "KIND", "SUBDIR", "LABEL")
	for _, src := range apiClient.Sources.List() {
		fmt.Printf("%-14s %-8s %-16s %s\n", src.ID, src.Kind, src.ContentDir(), src.Label)
	}

	return nil
}
