package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/ekodi-ai/gatekeeper/internal/infra/buildinfo"
	"github.com/ekodi-ai/gatekeeper/internal/infra/confloader"
	"github.com/ekodi-ai/gatekeeper/internal/infra/shutdown"
	"github.com/ekodi-ai/gatekeeper/internal/server/app"
	"github.com/ekodi-ai/gatekeeper/internal/server/config"
	"github.com/ekodi-ai/gatekeeper/internal/storage/postgres"
	"github.com/ekodi-ai/gatekeeper/internal/telemetry/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "gatekeeper-server",
		Usage:   "Admission control and session security gateway",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				EnvVars: []string{"GATEKEEPER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "env-file",
				Usage:   "dotenv file loaded before the configuration; existing variables win",
				EnvVars: []string{"GATEKEEPER_ENV_FILE"},
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides http.addr)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error (overrides log.level)",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "check-config",
				Usage:  "Validate the configuration and print it with secrets masked",
				Action: checkConfig,
			},
			{
				Name:   "migrate",
				Usage:  "Create the PostgreSQL directory tables if missing",
				Action: migrate,
			},
		},
	}
}

// loadConfig applies file, environment and flags over the defaults.
func loadConfig(c *cli.Context) (*config.ServerConfig, *confloader.Loader, error) {
	if path := c.String("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	}

	var opts []confloader.Option
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	loader := confloader.NewLoader(opts...)

	overrides := map[string]any{}
	if v := c.String("addr"); v != "" {
		overrides["http.addr"] = v
	}
	if v := c.String("log-level"); v != "" {
		overrides["log.level"] = v
	}
	if len(overrides) > 0 {
		loader.LoadMap(overrides)
	}

	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

func serve(c *cli.Context) error {
	cfg, loader, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Verify(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, closeLog, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(log)

	log.Info("starting gatekeeper-server",
		"version", buildinfo.Get().Version,
		"commit", buildinfo.Get().Commit,
		"config", loader.FilePath(),
	)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	ctx, stop := shutdown.WithSignals(c.Context)
	defer stop()

	a, err := app.New(ctx, app.Options{Config: cfg, Loader: loader, Logger: log})
	if err != nil {
		return err
	}
	return a.Run(ctx, nil)
}

func checkConfig(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	verr := config.Verify(cfg)

	enc := yaml.NewEncoder(c.App.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(config.Sanitize(cfg)); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if verr != nil {
		return fmt.Errorf("invalid configuration: %w", verr)
	}
	fmt.Fprintln(c.App.Writer, "# configuration OK")
	return nil
}

func migrate(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is not set")
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "schema up to date")
	return nil
}
