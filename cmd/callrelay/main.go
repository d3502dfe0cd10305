package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/edusphere/calls/config"
	"github.com/edusphere/calls/server"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Env == "dev" {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.Addr, server.NewAuth(cfg.AuthSecret))
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("relay: %v", err)
	}
	log.Info("relay stopped")
}
