package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ekodi-ai/gatekeeper/internal/cli/output"
	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/internal/server/httpserver/handler"
)

// HealthCommand checks GET /health.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server liveness",
		Action: func(c *cli.Context) error {
			s, err := newSession(c)
			if err != nil {
				return err
			}
			var resp handler.HealthResponse
			if err := s.client.Get(c.Context, "/health", &resp); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			if s.format != output.FormatTable {
				return s.render(resp, nil)
			}
			s.printf("server %s is %s (version %s)\n", s.client.BaseURL(), resp.Status, resp.Version.Version)
			return nil
		},
	}
}

// StatusCommand prints the public monitor snapshot from GET /status.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show load and admission state",
		Action: func(c *cli.Context) error {
			s, err := newSession(c)
			if err != nil {
				return err
			}
			var snap domain.ServerSnapshot
			if err := s.client.Get(c.Context, "/status", &snap); err != nil {
				return err
			}
			return s.render(snap, snapshotTable(snap))
		},
	}
}

func snapshotTable(snap domain.ServerSnapshot) *output.Table {
	t := output.NewTable("FIELD", "VALUE")
	t.AddRow("status", string(snap.Status))
	t.AddRow("active_requests", fmt.Sprint(snap.ActiveRequests))
	t.AddRow("total_requests", fmt.Sprint(snap.TotalRequests))
	t.AddRow("total_errors", fmt.Sprint(snap.TotalErrors))
	t.AddRow("total_rejected", fmt.Sprint(snap.TotalRejected))
	t.AddRow("cpu_percent", fmt.Sprintf("%.1f", snap.CPUPercent))
	t.AddRow("memory_percent", fmt.Sprintf("%.1f", snap.MemoryPercent))
	t.AddRow("avg_response_ms", fmt.Sprintf("%.2f", snap.AvgResponseMS))
	t.AddRow("uptime_seconds", fmt.Sprintf("%.0f", snap.UptimeSeconds))
	t.AddRow("overloaded", fmt.Sprint(snap.Overloaded))
	if snap.Reason != "" {
		t.AddRow("reason", snap.Reason)
	}
	return t
}
