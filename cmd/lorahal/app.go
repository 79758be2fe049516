package main

import (
	"context"
	"math/rand"

	"github.com/NV4RE/lorahal"
	"github.com/NV4RE/lorahal/internal/beacon"
	"github.com/NV4RE/lorahal/internal/config"
	"github.com/NV4RE/lorahal/internal/store"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// run brings the chip up, wires the engine to the board and drives the loop
// until ctx is done or the engine gives up joining.
func run(ctx context.Context, board *lorahal.Board, cfg *config.Config, st store.Store, log logrus.FieldLogger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A failed identity check is reported and the loop still runs; the
	// engine's own join retries surface the problem.
	if err := board.Chip.Init(); err != nil {
		log.WithError(err).Error("chip init")
	}

	cred, err := cfg.Credentials()
	if err != nil {
		return err
	}
	snap, err := st.Load(cred.DevEUI)
	if err != nil {
		return errors.Wrap(err, "load state")
	}
	store.Restore(&cred, snap)
	log.WithFields(logrus.Fields{
		"devNonce":  snap.DevNonce,
		"joinNonce": snap.JoinNonce,
	}).Info("state restored")

	persist := store.NewPersister(st, cred.DevEUI, snap, eventHandler(log, cancel), log)
	engine := beacon.New(board.Chip, cfg.Beacon, cred, persist.Handle, log)

	if err := board.Bridge.Start(ctx); err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		board.Chip.Wake()
	}()

	uplink := lorahal.Uplink{Port: cfg.Port, Data: []byte(cfg.Payload)}
	lorahal.NewScheduler(engine, board.Bridge, board.Chip, uplink, log).Run(ctx)

	board.Bridge.Wait()
	return nil
}

func eventHandler(log logrus.FieldLogger, stop func()) lorahal.EventHandler {
	return func(ev lorahal.Event) {
		switch e := ev.(type) {
		case lorahal.EntropyEvent:
			rand.Seed(int64(e.Value))
		case lorahal.RxEvent:
			log.WithFields(logrus.Fields{
				"port":    e.Port,
				"counter": e.Counter,
				"rssi":    e.RSSI,
				"snr":     e.SNR,
			}).Infof("rx % x", e.Data)
		case lorahal.JoinCompleteEvent:
			log.WithField("devAddr", e.DevAddr).Info("joined")
		case lorahal.DataCompleteEvent:
			log.Debug("uplink sent")
		case lorahal.DataTimeoutEvent:
			log.Warn("uplink timed out")
		case lorahal.OpErrorEvent:
			log.WithError(e.Err).Warn("operation failed")
		case lorahal.JoinExhaustedEvent:
			log.Error("join attempts exhausted")
			stop()
		}
	}
}
