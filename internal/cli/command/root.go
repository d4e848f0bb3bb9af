package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ekodi-ai/gatekeeper/internal/cli/config"
	"github.com/ekodi-ai/gatekeeper/internal/cli/connection"
	"github.com/ekodi-ai/gatekeeper/internal/cli/output"
	"github.com/ekodi-ai/gatekeeper/internal/infra/buildinfo"
	"github.com/ekodi-ai/gatekeeper/internal/infra/tlsroots"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "gatekeeper-cli",
		Usage:   "gatekeeper command-line client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			HealthCommand(),
			StatusCommand(),
			LoginCommand(),
			RefreshCommand(),
			LogoutCommand(),
			WhoamiCommand(),
			KeysCommand(),
			AdminCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI state file",
			EnvVars: []string{"GATEKEEPER_CLI_CONFIG"},
			Value:   config.DefaultPath(),
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "server URL (e.g., http://127.0.0.1:8080)",
			EnvVars: []string{"GATEKEEPER_SERVER"},
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "bearer token, overrides the saved session",
			EnvVars: []string{"GATEKEEPER_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
		},
		&cli.StringFlag{
			Name:  "ca-file",
			Usage: "PEM bundle trusted in addition to the system roots",
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "skip TLS certificate verification",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "request timeout",
			Value: connection.DefaultTimeout,
		},
		&cli.IntFlag{
			Name:  "retries",
			Usage: "retries when the server reports it is busy",
			Value: connection.DefaultRetries,
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "log each HTTP attempt to stderr",
		},
	}
}

// session is the per-invocation state shared by every command.
type session struct {
	cfg     *config.CLIConfig
	path    string
	client  *connection.Client
	format  output.Format
	out     io.Writer
	timeout time.Duration
}

// newSession merges the saved CLI config with the global flags.
// Flags win over the file.
func newSession(c *cli.Context) (*session, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	server := cfg.Server
	if c.IsSet("server") {
		server = c.String("server")
	}
	token := cfg.AccessToken
	if c.IsSet("token") {
		token = c.String("token")
	}
	formatName := cfg.Output
	if c.IsSet("output") {
		formatName = c.String("output")
	}
	format, err := output.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}
	caFile := cfg.CAFile
	if c.IsSet("ca-file") {
		caFile = c.String("ca-file")
	}

	opts := []connection.Option{connection.WithToken(token)}
	if d := c.Duration("timeout"); d > 0 {
		opts = append(opts, connection.WithTimeout(d))
	}
	opts = append(opts, connection.WithRetries(c.Int("retries"),
		connection.DefaultRetryWaitMin, connection.DefaultRetryWaitMax))
	if c.Bool("verbose") {
		errOut := c.App.ErrWriter
		if errOut == nil {
			errOut = os.Stderr
		}
		logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, connection.WithLogger(logger))
	}
	if strings.HasPrefix(server, "https://") || caFile != "" || c.Bool("insecure") {
		tlsCfg, err := tlsroots.ClientConfigFromFile(caFile, c.Bool("insecure"))
		if err != nil {
			return nil, fmt.Errorf("load CA file: %w", err)
		}
		opts = append(opts, connection.WithTLSConfig(tlsCfg))
	}

	out := c.App.Writer
	if out == nil {
		out = os.Stdout
	}
	return &session{
		cfg:     cfg,
		path:    path,
		client:  connection.NewClient(server, opts...),
		format:  format,
		out:     out,
		timeout: c.Duration("timeout"),
	}, nil
}

// render prints data in the chosen format. table, if non-nil, replaces the
// generic KEY/VALUE layout in table mode.
func (s *session) render(data any, table *output.Table) error {
	if s.format == output.FormatTable && table != nil {
		return table.Render(s.out)
	}
	return output.NewFormatter(s.format).Format(s.out, data)
}

// save persists the CLI config, remembering the server actually used.
func (s *session) save() error {
	s.cfg.Server = s.client.BaseURL()
	return config.Save(s.cfg, s.path)
}

func (s *session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}
