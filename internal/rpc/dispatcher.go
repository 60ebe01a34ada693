package rpc

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AlexbavGamer/enet-gameserver/internal/network"
)

var (
	// ErrUnknownMethod means the method id has no registered handler. The
	// caller logs at warn and drops the call.
	ErrUnknownMethod = errors.New("rpc method not registered")
	// ErrRegConflict is a configuration error and fatal at startup.
	ErrRegConflict = errors.New("rpc registration conflict")
)

// Handler receives the calling peer and the decoded arguments. Handlers run
// on the sim thread and must not block.
type Handler func(peer network.PeerID, args []Variant)

type entry struct {
	name    string
	handler Handler
}

// Dispatcher maintains the bijective method id <-> name table and routes
// decoded calls. Registration happens once at startup.
type Dispatcher struct {
	mu     sync.RWMutex
	byID   map[uint16]entry
	byName map[string]uint16
	nextID uint16
	logger *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		byID:   make(map[uint16]entry),
		byName: make(map[string]uint16),
		logger: logger,
	}
}

// Register assigns the next free id to name.
func (d *Dispatcher) Register(name string, handler Handler) (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byName[name]; exists {
		return 0, fmt.Errorf("%w: method %q already registered", ErrRegConflict, name)
	}

	for {
		if _, taken := d.byID[d.nextID]; !taken {
			break
		}
		d.nextID++
	}

	id := d.nextID
	d.nextID++
	d.byID[id] = entry{name: name, handler: handler}
	d.byName[name] = id
	d.logger.Info("rpc registered", "method", name, "id", id)
	return id, nil
}

// RegisterWithID pins an explicit id and fails on any collision.
func (d *Dispatcher) RegisterWithID(id uint16, name string, handler Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, taken := d.byID[id]; taken {
		return fmt.Errorf("%w: id %d already bound to %q", ErrRegConflict, id, existing.name)
	}
	if _, exists := d.byName[name]; exists {
		return fmt.Errorf("%w: method %q already registered", ErrRegConflict, name)
	}

	d.byID[id] = entry{name: name, handler: handler}
	d.byName[name] = id
	if id >= d.nextID {
		d.nextID = id + 1
	}
	d.logger.Info("rpc registered", "method", name, "id", id)
	return nil
}

func (d *Dispatcher) MethodName(id uint16) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byID[id]
	return e.name, ok
}

func (d *Dispatcher) MethodID(name string) (uint16, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byName[name]
	return id, ok
}

// Dispatch routes a decoded call to its handler.
func (d *Dispatcher) Dispatch(peer network.PeerID, methodID uint16, args []Variant) error {
	d.mu.RLock()
	e, ok := d.byID[methodID]
	d.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownMethod, methodID)
	}

	e.handler(peer, args)
	return nil
}

// Methods lists the registered (id, name) pairs for startup logging.
func (d *Dispatcher) Methods() map[uint16]string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[uint16]string, len(d.byID))
	for id, e := range d.byID {
		out[id] = e.name
	}
	return out
}
