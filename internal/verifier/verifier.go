// Package verifier implements the winding-number verification actions: the
// one-shot circuit check, the emergency shutdown acknowledgement, and the
// periodic monitoring sweep.
package verifier

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/insider77circle/qtop/internal/circuit"
	"github.com/insider77circle/qtop/internal/monitor"
	"github.com/insider77circle/qtop/internal/quantum"
	"github.com/insider77circle/qtop/internal/winding"
)

// DefaultInterval is the monitor sweep period.
const DefaultInterval = 10 * time.Second

// Verdict is the outcome of a circuit check. The check is total: every
// identifier produces a verdict, never an error.
type Verdict struct {
	CircuitID uint64
	Valid     bool
	Circuit   *circuit.Circuit // nil unless the controller holds the circuit
	CheckedAt time.Time
}

// Ack is the outcome of an emergency shutdown. Shutdown always succeeds;
// TornDown reports whether a live circuit was actually removed.
type Ack struct {
	CircuitID uint64
	TornDown  bool
}

// SweepResult summarizes one monitor sweep.
type SweepResult struct {
	Circuits   int
	Violations int
	At         time.Time
}

// Params wires the service. Controller and Engine are required; the rest
// default sensibly.
type Params struct {
	Controller *circuit.Controller
	Engine     *winding.Engine
	Cache      *quantum.Cache
	Metrics    *monitor.Metrics
	Health     *monitor.HealthChecker
	Interval   time.Duration
	Logger     *zap.Logger

	// OnSweep is invoked after every monitor sweep; the CLI uses it to
	// print the periodic status line.
	OnSweep func(SweepResult)
}

// Service runs the verification actions.
type Service struct {
	ctrl     *circuit.Controller
	engine   *winding.Engine
	cache    *quantum.Cache
	metrics  *monitor.Metrics
	health   *monitor.HealthChecker
	interval time.Duration
	logger   *zap.Logger
	onSweep  func(SweepResult)

	sweepSeq uint64
}

// New builds the service and registers its health checks.
func New(p Params) *Service {
	if p.Metrics == nil {
		p.Metrics = monitor.NewMetrics()
	}
	if p.Health == nil {
		p.Health = monitor.NewHealthChecker()
	}
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Engine == nil {
		var src winding.RandomSource
		if p.Cache != nil {
			src = p.Cache
		}
		p.Engine = winding.NewEngine(winding.Config{}, src, p.Logger)
	}

	s := &Service{
		ctrl:     p.Controller,
		engine:   p.Engine,
		cache:    p.Cache,
		metrics:  p.Metrics,
		health:   p.Health,
		interval: p.Interval,
		logger:   p.Logger,
		onSweep:  p.OnSweep,
	}
	s.registerHealthChecks()
	return s
}

// Metrics returns the collector set, for mounting the status endpoint.
func (s *Service) Metrics() *monitor.Metrics { return s.metrics }

// Health returns the health checker, for mounting the status endpoint.
func (s *Service) Health() *monitor.HealthChecker { return s.health }

// Check verifies the winding-number invariant for a circuit. The invariant
// is the even-identifier rule carried over from the original verifier; it
// holds or fails, but the check itself cannot error.
func (s *Service) Check(ctx context.Context, id uint64) Verdict {
	v := Verdict{
		CircuitID: id,
		Valid:     id%2 == 0,
		CheckedAt: time.Now(),
	}
	if s.ctrl != nil {
		if c, ok := s.ctrl.Get(id); ok {
			v.Circuit = c
		}
	}

	if v.Valid {
		s.logger.Info("winding number verified", zap.Uint64("circuit_id", id))
	} else {
		s.metrics.WindingViolations.Inc()
		s.logger.Warn("winding number violation detected", zap.Uint64("circuit_id", id))
	}
	return v
}

// EmergencyShutdown acknowledges a shutdown request. A live circuit is torn
// down and its phase state cleared; an unknown identifier is still
// acknowledged, so the operation always succeeds.
func (s *Service) EmergencyShutdown(ctx context.Context, id uint64) Ack {
	ack := Ack{CircuitID: id}

	if s.ctrl != nil {
		if err := s.ctrl.Teardown(id); err == nil {
			ack.TornDown = true
			if s.engine != nil {
				s.engine.Reset(id)
			}
		}
	}

	s.logger.Info("emergency shutdown acknowledged",
		zap.Uint64("circuit_id", id),
		zap.Bool("torn_down", ack.TornDown))
	return ack
}

// Monitor runs the verification sweep every interval, consumes circuit
// lifecycle events, and serves the status endpoint on the given port until
// ctx is cancelled. Cancellation is the normal way out and returns nil.
func (s *Service) Monitor(ctx context.Context, port uint16) error {
	srv := monitor.NewServer(port, s.metrics, s.health, s.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if s.ctrl != nil {
		events := s.ctrl.Events(gctx)
		g.Go(func() error {
			s.consumeEvents(gctx, events)
			return nil
		})
	}
	g.Go(func() error {
		s.runSweeps(gctx)
		return nil
	})
	return g.Wait()
}

// consumeEvents folds circuit lifecycle events into the metrics between
// sweeps, so the active-circuit gauge tracks builds and teardowns as they
// happen rather than at the next tick.
func (s *Service) consumeEvents(ctx context.Context, events <-chan circuit.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.metrics.CircuitEvents.Inc()
			s.metrics.ActiveCircuits.Set(float64(len(s.ctrl.Active())))
			s.logger.Info("circuit lifecycle event",
				zap.String("event_id", ev.ID),
				zap.Uint64("circuit_id", ev.CircuitID),
				zap.String("type", string(ev.Type)))
		}
	}
}

// runSweeps is the cancellable repeating timer at the heart of monitoring
// mode: sweep immediately, then on every tick.
func (s *Service) runSweeps(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("monitor loop stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep verifies the winding state of every active circuit and updates the
// metrics.
func (s *Service) sweep() {
	res := SweepResult{At: time.Now()}

	var active []*circuit.Circuit
	if s.ctrl != nil {
		active = s.ctrl.Active()
	}
	res.Circuits = len(active)
	s.sweepSeq++

	for _, c := range active {
		delayMs := s.engine.ComputeDelay(c.ID, s.sweepSeq)
		s.metrics.RecordPacket(delayMs)

		if !s.engine.VerifyWinding(c.ID, delayMs) || c.ID%2 != 0 {
			res.Violations++
			s.metrics.WindingViolations.Inc()
			s.logger.Warn("winding number violation detected",
				zap.Uint64("circuit_id", c.ID),
				zap.Float64("delay_ms", delayMs))
		}
	}

	s.metrics.ActiveCircuits.Set(float64(res.Circuits))
	s.metrics.Sweeps.Inc()

	if res.Violations == 0 {
		s.logger.Info("all winding numbers verified", zap.Int("circuits", res.Circuits))
	} else {
		s.logger.Warn("sweep found winding violations",
			zap.Int("circuits", res.Circuits),
			zap.Int("violations", res.Violations))
	}

	if s.onSweep != nil {
		s.onSweep(res)
	}
}

func (s *Service) registerHealthChecks() {
	s.health.Register("quantum-cache", func() (bool, string) {
		if s.cache == nil {
			return false, "no quantum cache configured"
		}
		st := s.cache.Stats()
		if st.Size == 0 {
			return false, "seed pool empty, serving fallback values"
		}
		return true, fmt.Sprintf("pool %d seeds, hit rate %.2f", st.Size, st.HitRate())
	})
	s.health.Register("circuit-controller", func() (bool, string) {
		if s.ctrl == nil {
			return false, "no controller configured"
		}
		return true, fmt.Sprintf("%d active circuits", len(s.ctrl.Active()))
	})
}
