// relay - command line client for the relay server
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/eldtechnologies/relay/clients/go/relayclient"
)

func main() {
	var client *relayclient.Client

	app := &cli.Command{
		Name:  "relay",
		Usage: "Talk to a relay server from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "server URL",
				Sources: cli.EnvVars("RELAY_URL"),
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "bearer token (overrides saved credentials)",
				Sources: cli.EnvVars("RELAY_TOKEN"),
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			client = relayclient.NewClient(c.String("url"))
			if token := c.String("token"); token != "" {
				client.Token = token
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:      "register",
				Usage:     "Create an account and save its token",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					name := c.Args().First()
					if name == "" {
						return errors.New("usage: relay register <name>")
					}
					resp, err := client.Register(relayclient.RegisterRequest{Name: name, Email: c.String("email")}, true)
					if err != nil {
						return err
					}
					fmt.Printf("Registered as: %s\n", resp.ID)
					if resp.Token == "" {
						fmt.Println("Server did not issue a token; ask an operator for one.")
					}
					return nil
				},
			},
			{
				Name:      "user",
				Usage:     "Show a user profile",
				ArgsUsage: "<user-id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					resp, err := client.GetUser(c.Args().First())
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "online",
				Usage: "List connected users",
				Action: func(ctx context.Context, c *cli.Command) error {
					resp, err := client.GetOnlineUsers()
					if err != nil {
						return err
					}
					for _, u := range resp.Users {
						fmt.Printf("  %s  %s\n", u.ID, u.Name)
					}
					fmt.Printf("%d online\n", resp.Count)
					return nil
				},
			},
			{
				Name:      "send",
				Usage:     "Send a direct message",
				ArgsUsage: "<user-id> <text>",
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().Len() < 2 {
						return errors.New("usage: relay send <user-id> <text>")
					}
					msg, err := client.SendMessage(relayclient.SendMessageRequest{
						ReceiverID: c.Args().First(),
						Text:       strings.Join(c.Args().Tail(), " "),
					})
					if err != nil {
						return err
					}
					fmt.Printf("Sent: %s\n", msg.ID)
					return nil
				},
			},
			{
				Name:      "history",
				Usage:     "Read a conversation",
				ArgsUsage: "<user-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Value: 1},
					&cli.IntFlag{Name: "limit", Value: 20},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					resp, err := client.GetHistory(c.Args().First(), int(c.Int("page")), int(c.Int("limit")))
					if err != nil {
						return err
					}
					for _, m := range resp.Messages {
						from := m.SenderID
						if len(from) > 8 {
							from = from[:8]
						}
						fmt.Printf("[%s] %s: %s%s\n", m.CreatedAt.Local().Format("2006-01-02 15:04:05"), from, m.Text, m.Emoji)
					}
					return nil
				},
			},
			{
				Name:  "listen",
				Usage: "Connect and print events until interrupted",
				Action: func(ctx context.Context, c *cli.Command) error {
					ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
					defer stop()

					s, err := client.Dial(ctx)
					if err != nil {
						return err
					}
					defer s.Close()

					for {
						select {
						case <-ctx.Done():
							return nil
						case ev, ok := <-s.Events():
							if !ok {
								return s.Err()
							}
							fmt.Printf("%s %s\n", ev.Name, ev.Data)
						}
					}
				},
			},
			{
				Name:  "health",
				Usage: "Check server health",
				Action: func(ctx context.Context, c *cli.Command) error {
					resp, err := client.Health()
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
