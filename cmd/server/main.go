package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pokewatch/internal/app"
	"pokewatch/internal/config"
)

var rootCmd = &cobra.Command{
	Use:          "pokewatch",
	Short:        "Watches the JB Hi-Fi Pokémon card listing and posts new products to Telegram.",
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func buildApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	application, err := app.NewBuilder(&cfg).Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("app build error: %w", err)
	}
	return application, nil
}

func waitForShutdown(application *app.App) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	application.Logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		application.Logger.Error("server shutdown error", zap.Error(err))
	}
}
