package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/INFOCITY/richflyer-webpush/internal/config"
	"github.com/INFOCITY/richflyer-webpush/internal/simulator"
	webpush "github.com/SherClockHolmes/webpush-go"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if cfg.VAPID.PublicKey == "" || cfg.VAPID.PrivateKey == "" {
		privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			log.Fatalf("generate vapid keys: %v", err)
		}
		cfg.VAPID.PublicKey = publicKey
		cfg.VAPID.PrivateKey = privateKey
		log.Printf("generated ephemeral vapid key pair (public key %s)", publicKey)
	}

	registry := simulator.NewRegistry()
	issuer := simulator.NewTokenIssuer(cfg)
	pusher := simulator.NewPusher(cfg)

	srv := simulator.New(cfg, registry, issuer, pusher)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("server stopped: %v", err)
		}
	}()
	log.Printf("richflyer simulator listening on %s", cfg.HTTP.Addr)

	// graceful shutdown
	waitForSignal()
	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
