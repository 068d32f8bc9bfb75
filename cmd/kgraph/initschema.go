package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initSchemaCmd = &cobra.Command{
	Use:   "init-schema",
	Short: "Create the storage schema",
	RunE:  runInitSchema,
}

func init() {
	rootCmd.AddCommand(initSchemaCmd)
}

func runInitSchema(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	initializer, ok := a.graph.(schemaInitializer)
	if !ok {
		cmd.Printf("driver %s needs no schema\n", a.cfg.Driver)
		return nil
	}

	if err := initializer.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	cmd.Println(okStyle.Render("schema ready"))
	return nil
}
