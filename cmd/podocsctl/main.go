package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"podocs/internal/cli"
	"podocs/internal/config"
	"podocs/internal/logging"
)

func main() {
	cfg := config.Load()
	log := logging.New(os.Stderr, cfg.Location())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.RootCmd(cli.OpenFromConfig(cfg, log)).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
