package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	app "github.com/rocketscienceinc/kinarow/internal"
	"github.com/rocketscienceinc/kinarow/internal/config"
	"github.com/rocketscienceinc/kinarow/internal/entity"
	"github.com/rocketscienceinc/kinarow/internal/usecase"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "kinarow",
	Short: "Arbiter for K-in-a-row games between two external agent processes",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the WebSocket and HTTP adapters and run rounds on demand",
	RunE: func(_ *cobra.Command, _ []string) error {
		conf := config.MustLoad(configPath)
		logger := initLogger(conf)

		if err := app.RunApp(logger, conf); err != nil {
			return fmt.Errorf("app run failed: %w", err)
		}

		return nil
	},
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a single round headlessly and print the result",
	RunE: func(cmd *cobra.Command, _ []string) error {
		conf := config.MustLoad(configPath)
		logger := initLogger(conf)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		event, err := app.PlayRound(ctx, logger, conf, usecase.ProcessAgents(logger))
		if err != nil {
			return fmt.Errorf("round failed: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), describe(event))

		return nil
	},
}

// main - is the entry point of the application. It parses the command line and runs the chosen command.
func main() {
	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "recovered from panic: %v\n", err)
			os.Exit(1)
		}
	}()

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yml", "path to the config file")
	rootCmd.AddCommand(serveCmd, playCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// initialize logger.
func initLogger(conf *config.Config) *slog.Logger {
	var level slog.Level

	switch conf.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func describe(event entity.Event) string {
	switch event.Type {
	case entity.EventRoundWon:
		return fmt.Sprintf("%s wins: %s", event.Player.DisplayName, strings.Join(event.WinningLine, " "))
	case entity.EventRoundDraw:
		return "draw"
	default:
		return fmt.Sprintf("round aborted: agent %s failed: %s", event.Agent, event.Cause)
	}
}
