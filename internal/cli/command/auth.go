package command

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/ekodi-ai/gatekeeper/internal/cli/connection"
	"github.com/ekodi-ai/gatekeeper/internal/cli/output"
	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/internal/server/httpserver/handler"
)

// LoginCommand exchanges credentials for a token pair and saves it.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in and store the session tokens",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "email",
				Aliases: []string{"e"},
				Usage:   "account email",
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "account password",
				EnvVars: []string{"GATEKEEPER_PASSWORD"},
			},
		},
		Action: func(c *cli.Context) error {
			s, err := newSession(c)
			if err != nil {
				return err
			}
			email := c.String("email")
			if email == "" {
				email = s.cfg.Email
			}
			password := c.String("password")
			if password == "" {
				password, err = promptPassword(c)
				if err != nil {
					return err
				}
			}
			if email == "" || password == "" {
				return errors.New("login requires --email and --password")
			}

			var resp handler.AuthResponse
			req := handler.LoginRequest{Email: email, Password: password}
			if err := s.client.Post(c.Context, "/auth/login", req, &resp); err != nil {
				return err
			}
			if resp.Tokens == nil {
				return errors.New("login response carried no tokens")
			}
			s.cfg.Email = email
			s.storeTokens(resp.Tokens)
			if err := s.save(); err != nil {
				return err
			}

			if s.format != output.FormatTable {
				return s.render(resp.User, nil)
			}
			s.printf("logged in as %s\n", email)
			if resp.User != nil {
				s.printf("  role: %s  tier: %s\n", resp.User.Role, resp.User.Tier)
			}
			s.printf("  access token expires %s\n", resp.Tokens.AccessExpiresAt.Local().Format(time.RFC3339))
			return nil
		},
	}
}

// promptPassword reads a password without echo when the app's input is a
// terminal. Otherwise it returns an empty string.
func promptPassword(c *cli.Context) (string, error) {
	in, ok := c.App.Reader.(*os.File)
	if !ok || !term.IsTerminal(int(in.Fd())) {
		return "", nil
	}
	fd := int(in.Fd())
	errOut := c.App.ErrWriter
	if errOut == nil {
		errOut = os.Stderr
	}
	fmt.Fprint(errOut, "Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(errOut)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// RefreshCommand rotates the saved refresh token.
func RefreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Exchange the saved refresh token for a new pair",
		Action: func(c *cli.Context) error {
			s, err := newSession(c)
			if err != nil {
				return err
			}
			if s.cfg.RefreshToken == "" {
				return errNotLoggedIn
			}

			var resp handler.AuthResponse
			req := handler.RefreshRequest{RefreshToken: s.cfg.RefreshToken}
			if err := s.client.Post(c.Context, "/auth/refresh", req, &resp); err != nil {
				if connection.IsStatus(err, http.StatusUnauthorized) {
					s.cfg.ClearSession()
					_ = s.save()
				}
				return err
			}
			if resp.Tokens == nil {
				return errors.New("refresh response carried no tokens")
			}
			s.storeTokens(resp.Tokens)
			if err := s.save(); err != nil {
				return err
			}
			s.printf("tokens refreshed, access token expires %s\n",
				resp.Tokens.AccessExpiresAt.Local().Format(time.RFC3339))
			return nil
		},
	}
}

// LogoutCommand revokes the current session and forgets the tokens.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Revoke the saved session",
		Action: func(c *cli.Context) error {
			s, err := newSession(c)
			if err != nil {
				return err
			}
			if s.cfg.AccessToken == "" && !c.IsSet("token") {
				return errNotLoggedIn
			}

			req := handler.LogoutRequest{RefreshToken: s.cfg.RefreshToken}
			err = s.client.Post(c.Context, "/auth/logout", req, nil)
			// An already dead session still gets cleared locally.
			if err != nil && !connection.IsStatus(err, http.StatusUnauthorized) {
				return err
			}
			s.cfg.ClearSession()
			if err := s.save(); err != nil {
				return err
			}
			s.printf("logged out\n")
			return nil
		},
	}
}

// WhoamiCommand prints the caller's identity from GET /auth/me.
func WhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the authenticated identity, limits and permissions",
		Action: func(c *cli.Context) error {
			s, err := newSession(c)
			if err != nil {
				return err
			}
			var me handler.MeResponse
			if err := s.client.Get(c.Context, "/auth/me", &me); err != nil {
				return err
			}
			return s.render(me, meTable(&me))
		},
	}
}

var errNotLoggedIn = errors.New("not logged in, run 'gatekeeper-cli login' first")

func (s *session) storeTokens(pair *domain.TokenPair) {
	s.cfg.AccessToken = pair.AccessToken
	s.cfg.RefreshToken = pair.RefreshToken
}

func meTable(me *handler.MeResponse) *output.Table {
	t := output.NewTable("FIELD", "VALUE")
	if id := me.Identity; id != nil {
		t.AddRow("user_id", id.UserID)
		t.AddRow("email", id.Email)
		t.AddRow("role", string(id.Role))
		t.AddRow("tier", string(id.Tier))
		t.AddRow("staff", fmt.Sprint(id.IsStaff))
	}
	t.AddRow("daily_prompts", limitCell(me.Limits.DailyPrompts))
	t.AddRow("max_api_keys", fmt.Sprint(me.Limits.MaxAPIKeys))
	t.AddRow("api_rate_limit", fmt.Sprint(me.Limits.APIRateLimit))
	t.AddRow("active_sessions", fmt.Sprint(me.ActiveSessions))
	t.AddRow("permissions", permissionsCell(me.Permissions))
	return t
}

func permissionsCell(perms domain.PermissionSet) string {
	if len(perms) == 0 {
		return "-"
	}
	parts := make([]string, len(perms))
	for i, p := range perms {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

func limitCell(n int) string {
	if n == domain.Unlimited {
		return "unlimited"
	}
	return fmt.Sprint(n)
}
