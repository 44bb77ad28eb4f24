package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/lattice/internal"
	pkgconfig "github.com/starford/lattice/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func logs(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithLogTail(cmd.String("url"), cmd.String("channel")),
		internal.WithOutput(os.Stdout),
	}
	if err := internal.RunLogs(ctx, opts...); err != nil {
		return fmt.Errorf("logs error: %w", err)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "lattice",
		Usage:  "Workspace tree service for the low-code builder: folders, reorders, cascade deletes, live updates",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, SSE events and import watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the workspace tree tools over MCP stdio",
				Action: mcp,
			},
			{
				Name:   "logs",
				Usage:  "Follow a log channel, reconnecting with backoff",
				Action: logs,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "url",
						Usage:   "Server base URL",
						Value:   "http://localhost:8080",
						Sources: cli.EnvVars("LATTICE_URL"),
					},
					&cli.StringFlag{
						Name:     "channel",
						Usage:    "Log channel name",
						Required: true,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
