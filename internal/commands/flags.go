// Package commands implements the relayctl subcommands.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/eldtechnologies/relay/internal/store"
)

// Flags holds global options shared by every subcommand.
type Flags struct {
	DatabaseURL string
	SQLitePath  string

	// Out receives command output. Defaults to stdout in main.
	Out io.Writer
}

// NewApp builds the relayctl command tree.
func NewApp(flags *Flags) *cli.Command {
	app := &cli.Command{
		Name:  "relayctl",
		Usage: "Administer a relay deployment",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "database-url",
				Usage:       "PostgreSQL URL; SQLite is used when empty",
				Sources:     cli.EnvVars("DATABASE_URL"),
				Destination: &flags.DatabaseURL,
			},
			&cli.StringFlag{
				Name:        "sqlite-path",
				Usage:       "SQLite database file",
				Sources:     cli.EnvVars("SQLITE_PATH"),
				Value:       "./data/relay.db",
				Destination: &flags.SQLitePath,
			},
		},
	}

	app = NewUserCmd(flags).Register(app)
	app = NewTokenCmd(flags).Register(app)
	return app
}

func (f *Flags) store(ctx context.Context) (store.DataStore, error) {
	db, _, err := store.Open(ctx, f.DatabaseURL, f.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return db, nil
}
