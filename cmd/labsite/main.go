package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"labsite/internal/gateway/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New()
	if err != nil {
		log.Fatalf("labsite: init failed: %v", err)
	}
	if err := a.Run(ctx); err != nil {
		stop()
		log.Fatalf("labsite: %v", err)
	}
	log.Println("labsite: exited")
}
