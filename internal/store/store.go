// Package store persists the engine state that must survive a restart: the
// session blob and the join nonces. It listens on the engine's event stream
// and saves whenever one of them changes.
package store

import (
	"sync"

	"github.com/NV4RE/lorahal"
	"github.com/sirupsen/logrus"
)

type Snapshot struct {
	Session   []byte
	DevNonce  uint32
	JoinNonce uint32
}

// Store loads and saves snapshots keyed by device EUI. A device never seen
// before loads as the zero Snapshot.
type Store interface {
	Load(devEUI [8]byte) (Snapshot, error)
	Save(devEUI [8]byte, s Snapshot) error
}

// Restore copies a loaded snapshot into cred.
func Restore(cred *lorahal.Credentials, s Snapshot) {
	cred.Session = s.Session
	cred.DevNonce = s.DevNonce
	cred.JoinNonce = s.JoinNonce
}

type Memory struct {
	mu   sync.Mutex
	data map[[8]byte]Snapshot
}

func NewMemory() *Memory {
	return &Memory{data: make(map[[8]byte]Snapshot)}
}

func (m *Memory) Load(devEUI [8]byte) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.data[devEUI]
	s.Session = append([]byte(nil), s.Session...)
	return s, nil
}

func (m *Memory) Save(devEUI [8]byte, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Session = append([]byte(nil), s.Session...)
	m.data[devEUI] = s
	return nil
}

// Persister is an event handler that saves state events before passing every
// event on to next. Save failures are logged; the engine keeps running.
type Persister struct {
	store  Store
	devEUI [8]byte
	state  Snapshot
	next   lorahal.EventHandler
	log    logrus.FieldLogger
}

func NewPersister(store Store, devEUI [8]byte, initial Snapshot, next lorahal.EventHandler, log logrus.FieldLogger) *Persister {
	return &Persister{
		store:  store,
		devEUI: devEUI,
		state:  initial,
		next:   next,
		log:    log,
	}
}

func (p *Persister) Handle(ev lorahal.Event) {
	switch e := ev.(type) {
	case lorahal.SessionUpdatedEvent:
		p.state.Session = append(p.state.Session[:0], e.Session...)
		p.save("session")
	case lorahal.DevNonceUpdatedEvent:
		p.state.DevNonce = e.NextDevNonce
		p.save("dev nonce")
	case lorahal.JoinCompleteEvent:
		p.state.JoinNonce = e.JoinNonce
		p.save("join nonce")
	}
	if p.next != nil {
		p.next(ev)
	}
}

func (p *Persister) save(what string) {
	if err := p.store.Save(p.devEUI, p.state); err != nil {
		p.log.WithError(err).WithField("state", what).Error("persist failed")
	}
}

// State returns the last snapshot handed to the store.
func (p *Persister) State() Snapshot {
	return p.state
}
