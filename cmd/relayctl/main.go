package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/eldtechnologies/relay/internal/commands"
)

func main() {
	// Same .env as the server, if present
	_ = godotenv.Load()

	flags := &commands.Flags{Out: os.Stdout}
	if err := commands.NewApp(flags).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
