//go:build tinygo && rp2040

package main

import (
	"context"

	"github.com/NV4RE/lorahal"
	"github.com/NV4RE/lorahal/internal/config"
	"github.com/NV4RE/lorahal/internal/store"
	"github.com/sirupsen/logrus"
)

// There is no filesystem on the Pico; provide your own keys here.
const picoConfig = `{
	appKey: "00000000000000000000000000000000",
	devEUI: "0000000000000000",
	joinEUI: "0000000000000000",
}`

func main() {
	cfg, err := config.Parse([]byte(picoConfig))
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := cfg.Logger()

	board, err := lorahal.OpenPico(log)
	if err != nil {
		log.WithError(err).Fatal("open board")
	}

	if err := run(context.Background(), board, cfg, store.NewMemory(), log); err != nil {
		log.WithError(err).Fatal("run")
	}
}
