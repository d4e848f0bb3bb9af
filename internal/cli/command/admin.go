package command

import (
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/ekodi-ai/gatekeeper/internal/cli/output"
	"github.com/ekodi-ai/gatekeeper/internal/server/httpserver/handler"
)

// AdminCommand returns the staff-only subcommand group.
func AdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Staff operations",
		Subcommands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "Show monitor snapshot, thresholds and session totals",
				Action: adminServer,
			},
			{
				Name:   "sessions",
				Usage:  "Show live session counts per user",
				Action: adminSessions,
			},
			{
				Name:      "force-logout",
				Usage:     "Invalidate every session of a user",
				ArgsUsage: "USER_ID",
				Action:    adminForceLogout,
			},
		},
	}
}

func adminServer(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	var resp handler.ServerStatusResponse
	if err := s.client.Get(c.Context, "/admin/server", &resp); err != nil {
		return err
	}

	t := snapshotTable(resp.Snapshot)
	t.AddRow("max_concurrent", fmt.Sprint(resp.Thresholds.MaxConcurrent))
	t.AddRow("cpu_threshold", fmt.Sprintf("%.1f", resp.Thresholds.CPUPercent))
	t.AddRow("memory_threshold", fmt.Sprintf("%.1f", resp.Thresholds.MemoryPercent))
	t.AddRow("session_users", fmt.Sprint(resp.Sessions.Users))
	t.AddRow("session_total", fmt.Sprint(resp.Sessions.Total))
	return s.render(resp, t)
}

func adminSessions(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	var resp handler.SessionsResponse
	if err := s.client.Get(c.Context, "/admin/sessions", &resp); err != nil {
		return err
	}

	users := make([]string, 0, len(resp.Counts))
	for u := range resp.Counts {
		users = append(users, u)
	}
	sort.Strings(users)
	t := output.NewTable("USER_ID", "SESSIONS")
	for _, u := range users {
		t.AddRow(u, fmt.Sprint(resp.Counts[u]))
	}
	return s.render(resp, t)
}

func adminForceLogout(c *cli.Context) error {
	userID := c.Args().First()
	if userID == "" {
		return errors.New("USER_ID is required")
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	var resp handler.ForceLogoutResponse
	path := "/admin/users/" + url.PathEscape(userID) + "/force-logout"
	if err := s.client.Post(c.Context, path, nil, &resp); err != nil {
		return err
	}
	if s.format != output.FormatTable {
		return s.render(resp, nil)
	}
	s.printf("user %s logged out, %d sessions cleared\n", resp.UserID, resp.SessionsCleared)
	return nil
}
