package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/famledger/internal/client/cli"
	"github.com/dmitrijs2005/famledger/internal/client/config"
	"github.com/dmitrijs2005/famledger/internal/common"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	if err := cli.Execute(ctx, cfg, cli.BuildApp, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, common.ErrUnauthorized) {
			fmt.Fprintln(os.Stderr, "hint: run `famledger login <user>` first")
		}
		os.Exit(1)
	}
}
