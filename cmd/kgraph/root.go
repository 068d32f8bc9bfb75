package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kgraph",
	Short: "Knowledge-graph ingestion and retrieval",
	Long: `kgraph ingests documents into a knowledge graph: text is chunked,
embedded and mined for entities and relations, then persisted so it can be
queried by vector similarity and entity matching.

Remote embedding and extraction models are optional; without credentials the
deterministic local strategies run instead.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
