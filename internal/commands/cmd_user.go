package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"
)

type UserCmd struct {
	flags *Flags

	name      string
	email     string
	avatarURL string
}

// NewUserCmd creates a new user command.
func NewUserCmd(flags *Flags) *UserCmd {
	return &UserCmd{flags: flags}
}

// Register adds the user command to the application.
func (cmd *UserCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "user",
		Usage: "Manage directory accounts",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create an active user",
				UsageText: "relayctl user create --name <name> [--email <email>] [--avatar <url>]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true, Destination: &cmd.name},
					&cli.StringFlag{Name: "email", Destination: &cmd.email},
					&cli.StringFlag{Name: "avatar", Destination: &cmd.avatarURL},
				},
				Action: cmd.runCreate,
			},
			{
				Name:      "show",
				Usage:     "Print a user as JSON",
				UsageText: "relayctl user show <user-id>",
				Action:    cmd.runShow,
			},
			{
				Name:      "activate",
				Usage:     "Allow a user to connect and receive messages",
				UsageText: "relayctl user activate <user-id>",
				Action:    cmd.setActive(true),
			},
			{
				Name:      "deactivate",
				Usage:     "Stop a user from connecting or receiving messages",
				UsageText: "relayctl user deactivate <user-id>",
				Action:    cmd.setActive(false),
			},
		},
	})

	return app
}

func (cmd *UserCmd) runCreate(ctx context.Context, _ *cli.Command) error {
	db, err := cmd.flags.store(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := db.CreateUser(ctx, cmd.name, cmd.email, cmd.avatarURL)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintln(cmd.flags.Out, user.ID)
	return nil
}

func (cmd *UserCmd) runShow(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("user ID is required")
	}

	db, err := cmd.flags.store(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := db.GetUserByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %s not found", id)
	}

	enc := json.NewEncoder(cmd.flags.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(user)
}

func (cmd *UserCmd) setActive(active bool) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		id := c.Args().First()
		if id == "" {
			return errors.New("user ID is required")
		}

		db, err := cmd.flags.store(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := db.GetUserByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("user %s not found", id)
		}
		if err := db.SetUserActive(ctx, id, active); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		state := "deactivated"
		if active {
			state = "activated"
		}
		fmt.Fprintf(cmd.flags.Out, "%s %s\n", state, id)
		return nil
	}
}
