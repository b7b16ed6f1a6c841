// Package circuit manages the registry of quantum-enhanced circuits and
// streams their lifecycle events to the monitor.
package circuit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnknownCircuit is returned when an operation names a circuit the
// controller does not hold.
var ErrUnknownCircuit = errors.New("unknown circuit")

// DefaultPathLength is the relay path length used when none is requested.
const DefaultPathLength = 3

// State of a circuit in the registry.
type State string

const (
	StateActive State = "active"
	StateClosed State = "closed"
)

// EventType classifies lifecycle events.
type EventType string

const (
	EventBuilt  EventType = "built"
	EventClosed EventType = "closed"
)

// Event is a circuit lifecycle notification.
type Event struct {
	ID        string
	CircuitID uint64
	Type      EventType
	At        time.Time
}

// Circuit is a registered quantum-enhanced circuit.
type Circuit struct {
	ID          uint64
	PathLength  int
	Path        []string
	QuantumSeed uint64
	State       State
	CreatedAt   time.Time
}

// Controller owns the circuit registry. All methods are safe for concurrent
// use. State lives in memory only; the registry is rebuilt on every run.
type Controller struct {
	mu       sync.RWMutex
	circuits map[uint64]*Circuit
	subs     map[chan Event]struct{}
	nextID   uint64
	logger   *zap.Logger
}

// NewController returns an empty registry.
func NewController(logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		circuits: make(map[uint64]*Circuit),
		subs:     make(map[chan Event]struct{}),
		logger:   logger,
	}
}

// Create registers a new quantum-enhanced circuit and returns a snapshot of
// it. Path relays are synthesized; identifiers are assigned sequentially
// starting at 1. Like Get and Active, the returned value is a copy —
// callers never share memory with the registry.
func (c *Controller) Create(ctx context.Context, pathLength int, quantumSeed uint64) (*Circuit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pathLength <= 0 {
		pathLength = DefaultPathLength
	}

	c.mu.Lock()
	c.nextID++
	circ := &Circuit{
		ID:          c.nextID,
		PathLength:  pathLength,
		Path:        relayPath(pathLength),
		QuantumSeed: quantumSeed,
		State:       StateActive,
		CreatedAt:   time.Now(),
	}
	c.circuits[circ.ID] = circ
	c.publishLocked(Event{
		ID:        uuid.NewString(),
		CircuitID: circ.ID,
		Type:      EventBuilt,
		At:        circ.CreatedAt,
	})
	snapshot := *circ
	c.mu.Unlock()

	c.logger.Info("created quantum-enhanced circuit",
		zap.Uint64("circuit_id", snapshot.ID),
		zap.Int("path_length", pathLength))
	return &snapshot, nil
}

// Get returns a snapshot of the circuit with the given identifier.
func (c *Controller) Get(id uint64) (*Circuit, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	circ, ok := c.circuits[id]
	if !ok {
		return nil, false
	}
	snapshot := *circ
	return &snapshot, true
}

// Active returns snapshots of all registered circuits.
func (c *Controller) Active() []*Circuit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Circuit, 0, len(c.circuits))
	for _, circ := range c.circuits {
		snapshot := *circ
		out = append(out, &snapshot)
	}
	return out
}

// Teardown removes a circuit from the registry.
func (c *Controller) Teardown(id uint64) error {
	c.mu.Lock()
	circ, ok := c.circuits[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("teardown circuit %d: %w", id, ErrUnknownCircuit)
	}
	circ.State = StateClosed
	delete(c.circuits, id)
	c.publishLocked(Event{
		ID:        uuid.NewString(),
		CircuitID: id,
		Type:      EventClosed,
		At:        time.Now(),
	})
	c.mu.Unlock()

	c.logger.Info("circuit torn down", zap.Uint64("circuit_id", id))
	return nil
}

// Events subscribes to lifecycle events. The channel is closed when ctx is
// cancelled. Slow consumers drop events rather than stalling the registry.
func (c *Controller) Events(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.subs, ch)
		c.mu.Unlock()
		close(ch)
	}()
	return ch
}

func (c *Controller) publishLocked(ev Event) {
	for ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func relayPath(length int) []string {
	path := make([]string, length)
	for i := range path {
		path[i] = fmt.Sprintf("relay-%d", i)
	}
	return path
}
