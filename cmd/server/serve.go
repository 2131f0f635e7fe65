package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the HTTP trigger surface and runs the optional cron schedule.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	application, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	if err := application.Start(); err != nil {
		_ = application.Close()
		return fmt.Errorf("app start error: %w", err)
	}
	waitForShutdown(application)
	return nil
}
