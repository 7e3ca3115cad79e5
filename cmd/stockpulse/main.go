package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"stockpulse/config"
	"stockpulse/internal/service"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := config.Load()
	log.Printf("[stockpulse] symbols: %v, api: %s, metrics: %s",
		cfg.ParseSymbols(), cfg.APIAddr, cfg.MetricsAddr)

	svc, err := service.New(cfg)
	if err != nil {
		log.Fatalf("[stockpulse] init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[stockpulse] fatal: %v", err)
	}
}
