// Package winding implements the topological timing engine. Packet delays
// are derived from quantum phase deltas quantized to integer winding numbers,
// keeping per-circuit timing inside a bounded band while staying
// unpredictable to an outside observer.
package winding

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"

	"go.uber.org/zap"
)

// DefaultQuantum is one full winding, 2π.
const DefaultQuantum = 2 * math.Pi

// Default delay band in milliseconds.
const (
	DefaultMinDelayMs = 0.1
	DefaultMaxDelayMs = 10.0
)

// RandomSource supplies quantum randomness in [0, 1). *quantum.Cache
// satisfies this.
type RandomSource interface {
	Random() float64
}

// Config bounds the engine. Zero values fall back to the defaults above.
type Config struct {
	Quantum    float64
	MinDelayMs float64
	MaxDelayMs float64
}

// Engine computes and verifies quantum-topological delays. Per-circuit phase
// state advances on every computed delay; tearing a circuit down must Reset
// it so a reused identifier starts from zero phase.
type Engine struct {
	mu      sync.Mutex
	phases  map[uint64]float64
	quantum float64
	minMs   float64
	maxMs   float64
	rand    RandomSource
	logger  *zap.Logger
}

// NewEngine builds an engine over the given randomness source.
func NewEngine(cfg Config, rand RandomSource, logger *zap.Logger) *Engine {
	if cfg.Quantum <= 0 {
		cfg.Quantum = DefaultQuantum
	}
	if cfg.MinDelayMs <= 0 {
		cfg.MinDelayMs = DefaultMinDelayMs
	}
	if cfg.MaxDelayMs <= cfg.MinDelayMs {
		cfg.MaxDelayMs = DefaultMaxDelayMs
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		phases:  make(map[uint64]float64),
		quantum: cfg.Quantum,
		minMs:   cfg.MinDelayMs,
		maxMs:   cfg.MaxDelayMs,
		rand:    rand,
		logger:  logger,
	}
}

// ComputeDelay returns the delay in milliseconds for a packet on the given
// circuit. The phase delta since the circuit's last packet is taken modulo
// the winding quantum and quantized to the nearest integer winding before
// being mapped into the delay band.
func (e *Engine) ComputeDelay(circuitID, packetHash uint64) float64 {
	phase := e.phaseFor(circuitID, packetHash)

	e.mu.Lock()
	defer e.mu.Unlock()

	last := e.phases[circuitID]
	delta := math.Mod(phase-last, e.quantum)
	if delta < 0 {
		delta += e.quantum
	}

	// Quantize to preserve integer winding.
	k := math.Round(delta / e.quantum)

	delay := e.minMs + (k+delta/e.quantum)*(e.maxMs-e.minMs)/10.0
	delay = math.Max(e.minMs, math.Min(e.maxMs, delay))

	e.phases[circuitID] = phase

	e.logger.Debug("computed topological delay",
		zap.Uint64("circuit_id", circuitID),
		zap.Float64("delay_ms", delay))
	return delay
}

// VerifyWinding reports whether a delay preserves the integer winding
// invariant, i.e. lies inside the configured band.
func (e *Engine) VerifyWinding(circuitID uint64, delayMs float64) bool {
	return delayMs >= e.minMs && delayMs <= e.maxMs
}

// Reset clears the phase state for a circuit. Called on teardown.
func (e *Engine) Reset(circuitID uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.phases, circuitID)
}

// TrackedCircuits returns the number of circuits with live phase state.
func (e *Engine) TrackedCircuits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.phases)
}

// Band returns the configured delay bounds in milliseconds.
func (e *Engine) Band() (minMs, maxMs float64) {
	return e.minMs, e.maxMs
}

// phaseFor derives the current phase for a circuit/packet pair: a
// deterministic hash component perturbed by the quantum source.
func (e *Engine) phaseFor(circuitID, packetHash uint64) float64 {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], circuitID)
	binary.BigEndian.PutUint64(buf[8:], packetHash)
	sum := sha256.Sum256(buf[:])
	unit := float64(binary.BigEndian.Uint64(sum[:8])>>11) / (1 << 53)

	if e.rand != nil {
		unit = math.Mod(unit+e.rand.Random(), 1)
	}
	return unit * e.quantum
}
