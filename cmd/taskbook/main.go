package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"taskbook/cmd/taskbook/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.NewRootCommand().ExecuteContext(ctx); err != nil {
		log.Printf("taskbook: %v", err)
		stop()
		os.Exit(1)
	}
}
