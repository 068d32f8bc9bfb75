package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prowlhq/kgraph/engine"
	"github.com/prowlhq/kgraph/kg"
)

var (
	queryTopK      int
	queryRelations bool
	queryJSON      bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Query the knowledge graph",
	Long: `Ranks stored chunks by vector similarity to the question and matches
entities against its text. With --relations, relations between matched
entities are attached when their document appears among the returned chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "n", engine.DefaultTopK, "maximum number of chunks")
	queryCmd.Flags().BoolVar(&queryRelations, "relations", false, "include relations in the answer")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(queryCmd)
}

func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.service.Query(ctx, args[0], queryTopK, queryRelations)
	if err != nil {
		return err
	}

	if queryJSON {
		data, err := json.MarshalIndent(queryResultJSON(result), "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	if len(result.Chunks) == 0 {
		cmd.Println("No matching chunks.")
	} else {
		cmd.Println(headingStyle.Render("Chunks"))
		for i, hit := range result.Chunks {
			cmd.Printf("  [%d] %s %s\n", i+1,
				scoreStyle.Render(fmt.Sprintf("%.3f", hit.Score)),
				dimStyle.Render(hit.Chunk.ID))
			cmd.Printf("      %s\n", snippet(hit.Chunk.Content, 120))
		}
	}

	if len(result.Entities) > 0 {
		cmd.Println(headingStyle.Render("Entities"))
		for _, entity := range result.Entities {
			cmd.Printf("  %s %s\n", entity.Text, dimStyle.Render(string(entity.Type)))
		}
	}

	if len(result.Relations) > 0 {
		cmd.Println(headingStyle.Render("Relations"))
		for _, rel := range result.Relations {
			cmd.Printf("  %s -> %s %s\n", rel.SourceID, rel.TargetID,
				dimStyle.Render(fmt.Sprintf("%s %.2f", rel.Type, rel.Confidence)))
		}
	}
	return nil
}

// queryResultJSON shapes the result for machine consumption.
func queryResultJSON(result *kg.QueryResult) map[string]any {
	chunks := make([]map[string]any, len(result.Chunks))
	for i, hit := range result.Chunks {
		chunks[i] = map[string]any{
			"id":          hit.Chunk.ID,
			"document_id": hit.Chunk.DocumentID,
			"content":     hit.Chunk.Content,
			"ordinal":     hit.Chunk.Ordinal,
			"score":       hit.Score,
		}
	}

	entities := make([]map[string]any, len(result.Entities))
	for i, entity := range result.Entities {
		entities[i] = map[string]any{
			"id":          entity.ID,
			"document_id": entity.DocumentID,
			"text":        entity.Text,
			"type":        entity.Type,
		}
	}

	relations := make([]map[string]any, len(result.Relations))
	for i, rel := range result.Relations {
		relations[i] = map[string]any{
			"id":          rel.ID,
			"document_id": rel.DocumentID,
			"source_id":   rel.SourceID,
			"target_id":   rel.TargetID,
			"type":        rel.Type,
			"confidence":  rel.Confidence,
		}
	}

	return map[string]any{
		"query":     result.Query,
		"chunks":    chunks,
		"entities":  entities,
		"relations": relations,
	}
}
