package command

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ekodi-ai/gatekeeper/internal/cli/output"
	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/internal/server/httpserver/handler"
)

// KeysCommand returns the API key subcommand group.
func KeysCommand() *cli.Command {
	return &cli.Command{
		Name:    "keys",
		Aliases: []string{"key"},
		Usage:   "Manage your API keys",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List API keys",
				Action: keysList,
			},
			{
				Name:  "create",
				Usage: "Create an API key; the secret is shown once",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "name",
						Aliases: []string{"n"},
						Usage:   "key name",
					},
				},
				Action: keysCreate,
			},
			{
				Name:      "revoke",
				Usage:     "Revoke an API key",
				ArgsUsage: "KEY_ID",
				Action:    keysRevoke,
			},
		},
	}
}

func keysList(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	var keys []*domain.APIKey
	if err := s.client.Get(c.Context, "/v1/keys", &keys); err != nil {
		return err
	}

	t := output.NewTable("ID", "NAME", "PREFIX", "ACTIVE", "USES", "CREATED")
	for _, k := range keys {
		t.AddRow(k.ID, output.Cell(k.Name), k.KeyPrefix, fmt.Sprint(k.Active),
			fmt.Sprint(k.UsageCount), k.CreatedAt.Local().Format(time.DateTime))
	}
	return s.render(keys, t)
}

func keysCreate(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	var resp handler.CreateAPIKeyResponse
	req := handler.CreateAPIKeyRequest{Name: c.String("name")}
	if err := s.client.Post(c.Context, "/v1/keys", req, &resp); err != nil {
		return err
	}
	if s.format != output.FormatTable {
		return s.render(resp, nil)
	}
	if resp.APIKey != nil {
		s.printf("created key %s (%s)\n", resp.APIKey.ID, resp.APIKey.KeyPrefix)
	}
	s.printf("secret: %s\n", resp.Secret)
	s.printf("store it now, it cannot be shown again\n")
	return nil
}

func keysRevoke(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("KEY_ID is required")
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	if err := s.client.Delete(c.Context, "/v1/keys/"+url.PathEscape(id)); err != nil {
		return err
	}
	s.printf("revoked key %s\n", id)
	return nil
}
