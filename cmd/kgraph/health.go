package main

import (
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check storage reachability",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.service.HealthCheck(ctx); err != nil {
		cmd.Println(errorStyle.Render("unhealthy: " + err.Error()))
		return err
	}
	cmd.Println(okStyle.Render("healthy"))
	return nil
}
