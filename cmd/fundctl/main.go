package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "fundctl",
		Usage: "Operator utility for the charity fund service",
		Commands: []*cli.Command{
			migrateCmd,
			tokenCmd,
			openCmd,
		},
	}
}
