// Package health aggregates component checks for the /health endpoint.
package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"yield_sim/internal/core"
)

// Check reports a component problem as a non-nil error.
type Check func(ctx context.Context) error

// Pinger is implemented by the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type entry struct {
	check    Check
	critical bool
}

// ComponentStatus is the outcome of one check.
type ComponentStatus struct {
	Healthy  bool   `json:"healthy"`
	Critical bool   `json:"critical"`
	Message  string `json:"message"`
}

// HealthManager aggregates health status from different components
type HealthManager struct {
	logger  core.ILogger
	timeout time.Duration
	mu      sync.RWMutex
	checks  map[string]entry
}

// NewHealthManager creates a new health manager. Each check runs with the
// given timeout; zero means no timeout beyond the caller's context.
func NewHealthManager(logger core.ILogger, timeout time.Duration) *HealthManager {
	hm := &HealthManager{
		timeout: timeout,
		checks:  make(map[string]entry),
	}
	if logger != nil {
		hm.logger = logger.WithField("component", "health_manager")
	}
	return hm
}

// Register adds a critical check. A failing critical check makes the
// service unhealthy.
func (hm *HealthManager) Register(component string, check Check) {
	hm.register(component, check, true)
}

// RegisterOptional adds a check that is reported but never fails the service.
func (hm *HealthManager) RegisterOptional(component string, check Check) {
	hm.register(component, check, false)
}

func (hm *HealthManager) register(component string, check Check, critical bool) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[component] = entry{check: check, critical: critical}
}

// Components lists the registered component names in order.
func (hm *HealthManager) Components() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetStatus runs every check and returns the per-component results.
func (hm *HealthManager) GetStatus(ctx context.Context) map[string]ComponentStatus {
	hm.mu.RLock()
	checks := make(map[string]entry, len(hm.checks))
	for k, v := range hm.checks {
		checks[k] = v
	}
	hm.mu.RUnlock()

	status := make(map[string]ComponentStatus, len(checks))
	for component, e := range checks {
		err := hm.run(ctx, e.check)
		st := ComponentStatus{Healthy: err == nil, Critical: e.critical, Message: "Healthy"}
		if err != nil {
			st.Message = "Unhealthy: " + err.Error()
			if hm.logger != nil {
				hm.logger.Warn("Health check failed", "check", component, "critical", e.critical, "error", err)
			}
		}
		status[component] = st
	}
	return status
}

// IsHealthy returns true if all critical components are healthy
func (hm *HealthManager) IsHealthy(ctx context.Context) bool {
	for _, st := range hm.GetStatus(ctx) {
		if st.Critical && !st.Healthy {
			return false
		}
	}
	return true
}

func (hm *HealthManager) run(ctx context.Context, check Check) error {
	if hm.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, hm.timeout)
		defer cancel()
	}
	return check(ctx)
}

// StoreCheck pings the store.
func StoreCheck(p Pinger) Check {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// RatesCheck fails unless the rate provider serves live data.
func RatesCheck(p core.IRateProvider) Check {
	return func(context.Context) error {
		st := p.State()
		switch st.Status {
		case core.RateStatusLive:
			return nil
		case core.RateStatusFallback:
			return errors.New("no upstream rates yet, serving catalog defaults")
		default:
			if st.Error != "" {
				return fmt.Errorf("rates stale since %s: %s", st.LastUpdated.Format(time.RFC3339), st.Error)
			}
			return fmt.Errorf("rates stale since %s", st.LastUpdated.Format(time.RFC3339))
		}
	}
}
