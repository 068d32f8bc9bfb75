package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var graphJSON bool

var graphCmd = &cobra.Command{
	Use:   "graph [document-id]",
	Short: "Show a document's knowledge graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraph,
}

func init() {
	graphCmd.Flags().BoolVar(&graphJSON, "json", false, "output the graph as JSON")
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	graph, err := a.service.GetDocumentGraph(ctx, args[0])
	if err != nil {
		return err
	}

	if graphJSON {
		entities := make([]map[string]any, len(graph.Entities))
		for i, entity := range graph.Entities {
			entities[i] = map[string]any{
				"id":   entity.ID,
				"text": entity.Text,
				"type": entity.Type,
			}
		}
		relations := make([]map[string]any, len(graph.Relations))
		for i, rel := range graph.Relations {
			relations[i] = map[string]any{
				"id":         rel.ID,
				"source_id":  rel.SourceID,
				"target_id":  rel.TargetID,
				"type":       rel.Type,
				"confidence": rel.Confidence,
			}
		}
		data, err := json.MarshalIndent(map[string]any{
			"document_id":  graph.DocumentID,
			"title":        graph.Title,
			"metadata":     graph.Metadata,
			"entities":     entities,
			"relations":    relations,
			"chunks_count": graph.ChunksCount,
		}, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	title := graph.Title
	if title == "" {
		title = graph.DocumentID
	}
	cmd.Println(headingStyle.Render(title))
	cmd.Printf("  %s\n", dimStyle.Render(fmt.Sprintf("%d chunks", graph.ChunksCount)))

	entityText := make(map[string]string, len(graph.Entities))
	if len(graph.Entities) > 0 {
		cmd.Println(headingStyle.Render("Entities"))
		for _, entity := range graph.Entities {
			entityText[entity.ID] = entity.Text
			cmd.Printf("  %s %s\n", entity.Text, dimStyle.Render(string(entity.Type)))
		}
	}

	if len(graph.Relations) > 0 {
		cmd.Println(headingStyle.Render("Relations"))
		for _, rel := range graph.Relations {
			cmd.Printf("  %s -> %s %s\n",
				entityText[rel.SourceID], entityText[rel.TargetID],
				dimStyle.Render(fmt.Sprintf("%s %.2f", rel.Type, rel.Confidence)))
		}
	}
	return nil
}
