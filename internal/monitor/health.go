package monitor

import (
	"fmt"
	"sync"
	"time"
)

// CheckFunc runs a single health check and returns its verdict and a short
// human-readable message.
type CheckFunc func() (healthy bool, message string)

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Status aggregates all registered checks. Healthy only when every check
// passed.
type Status struct {
	Healthy   bool                   `json:"healthy"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp time.Time              `json:"timestamp"`
}

// HealthChecker runs registered checks on demand.
type HealthChecker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewHealthChecker returns a checker with no registered checks. An empty
// checker reports healthy.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checks: make(map[string]CheckFunc)}
}

// Register adds or replaces a named check.
func (h *HealthChecker) Register(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = fn
}

// Status runs every registered check. A panicking check counts as unhealthy
// rather than taking the endpoint down with it.
func (h *HealthChecker) Status() Status {
	h.mu.RLock()
	funcs := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		funcs[name] = fn
	}
	h.mu.RUnlock()

	st := Status{
		Healthy:   true,
		Checks:    make(map[string]CheckResult, len(funcs)),
		Timestamp: time.Now(),
	}
	for name, fn := range funcs {
		res := runCheck(name, fn)
		if !res.Healthy {
			st.Healthy = false
		}
		st.Checks[name] = res
	}
	return st
}

func runCheck(name string, fn CheckFunc) (res CheckResult) {
	res = CheckResult{Name: name, Timestamp: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			res.Healthy = false
			res.Message = fmt.Sprintf("check panicked: %v", r)
		}
	}()
	res.Healthy, res.Message = fn()
	return res
}
