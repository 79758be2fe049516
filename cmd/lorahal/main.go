//go:build !tinygo

// Command lorahal drives an SX127x transceiver on a Linux board, sending a
// fixed uplink on every interval.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/NV4RE/lorahal"
	"github.com/NV4RE/lorahal/internal/config"
	"github.com/NV4RE/lorahal/internal/store"
	"github.com/sirupsen/logrus"
)

func main() {
	path := flag.String("config", "lorahal.json5", "config file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := cfg.Logger()

	board, err := lorahal.Open(cfg.Board, log)
	if err != nil {
		log.WithError(err).Fatal("open board")
	}
	defer board.Close()

	var st store.Store = store.NewMemory()
	if cfg.Redis.Address != "" {
		r := store.NewRedis(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		defer r.Close()
		st = r
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, board, cfg, st, log); err != nil {
		log.WithError(err).Error("run")
		os.Exit(1)
	}
}
