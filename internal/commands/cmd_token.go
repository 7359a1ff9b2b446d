package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/eldtechnologies/relay/internal/auth"
	"github.com/eldtechnologies/relay/internal/crypto"
)

type TokenCmd struct {
	flags *Flags

	signingKey string
	subject    string
	name       string
	ttl        time.Duration
}

// NewTokenCmd creates a new token command.
func NewTokenCmd(flags *Flags) *TokenCmd {
	return &TokenCmd{flags: flags}
}

// Register adds the token command to the application.
func (cmd *TokenCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "token",
		Usage: "Issue bearer tokens",
		Commands: []*cli.Command{
			{
				Name:      "issue",
				Usage:     "Sign a token for an existing user",
				UsageText: "relayctl token issue --subject <user-id> [--name <display name>] [--ttl 24h]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "signing-key",
						Usage:       "base64 Ed25519 seed or private key",
						Sources:     cli.EnvVars("TOKEN_SIGNING_KEY"),
						Destination: &cmd.signingKey,
					},
					&cli.StringFlag{
						Name:        "subject",
						Aliases:     []string{"s"},
						Usage:       "user ID the token authenticates",
						Required:    true,
						Destination: &cmd.subject,
					},
					&cli.StringFlag{
						Name:        "name",
						Aliases:     []string{"n"},
						Usage:       "display name carried in the token",
						Destination: &cmd.name,
					},
					&cli.DurationFlag{
						Name:        "ttl",
						Usage:       "token lifetime, 0 for no expiry",
						Sources:     cli.EnvVars("TOKEN_TTL"),
						Value:       24 * time.Hour,
						Destination: &cmd.ttl,
					},
				},
				Action: cmd.runIssue,
			},
		},
	})

	return app
}

func (cmd *TokenCmd) runIssue(_ context.Context, _ *cli.Command) error {
	if cmd.signingKey == "" {
		return errors.New("--signing-key or TOKEN_SIGNING_KEY is required")
	}
	priv, err := crypto.ValidatePrivateKey(cmd.signingKey)
	if err != nil {
		return err
	}

	token, expires, err := auth.NewSigner(priv, cmd.ttl).Issue(cmd.subject, cmd.name)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Fprintln(cmd.flags.Out, token)
	if !expires.IsZero() {
		fmt.Fprintf(cmd.flags.Out, "expires %s\n", expires.UTC().Format(time.RFC3339))
	}
	return nil
}
