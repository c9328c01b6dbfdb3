package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Status values reported by checks and probes.
const (
	StatusOK        = "ok"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc is a function that performs a health check for a component.
// It returns nil if the component is healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

// CheckResult represents the result of a single health check.
type CheckResult struct {
	// Status is StatusOK or StatusUnhealthy.
	Status string `json:"status"`

	// Message describes why the check failed.
	Message string `json:"message,omitempty"`

	// DurationMs is how long the check took, in milliseconds.
	DurationMs float64 `json:"duration_ms"`
}

// HealthStatus represents the overall health status of the process.
type HealthStatus struct {
	// Status is StatusOK for liveness, StatusReady or StatusNotReady for readiness.
	Status string `json:"status"`

	// Checks contains the status of individual components (readiness only).
	Checks map[string]CheckResult `json:"checks,omitempty"`

	// Timestamp is when the health check was performed.
	Timestamp time.Time `json:"timestamp"`
}

// Checker manages health checks for connector components.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc

	checkTimeout time.Duration
}

// ErrNoActiveModule is returned by PolicyCheck before a module is published.
var ErrNoActiveModule = errors.New("no active policy module")

// New creates a new health checker with the specified check timeout.
// If timeout is 0, defaults to 5 seconds per check.
func New(checkTimeout time.Duration) *Checker {
	if checkTimeout == 0 {
		checkTimeout = 5 * time.Second
	}

	return &Checker{
		checks:       make(map[string]CheckFunc),
		checkTimeout: checkTimeout,
	}
}

// PolicyCheck reports healthy once active returns a loaded module.
func PolicyCheck(active func() (version string, ok bool)) CheckFunc {
	return func(ctx context.Context) error {
		if _, ok := active(); !ok {
			return ErrNoActiveModule
		}
		return nil
	}
}

// RegisterCheck registers a health check function for a named component.
// If a check with the same name already exists, it will be replaced.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks[name] = check
}

// UnregisterCheck removes a health check for a named component.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.checks, name)
}

// ListChecks returns the sorted names of all registered health checks.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// CheckLiveness reports that the process is running.
func (c *Checker) CheckLiveness(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now(),
	}
}

// CheckReadiness runs every registered check concurrently. The status is
// StatusReady only if all of them pass.
func (c *Checker) CheckReadiness(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var resultMu sync.Mutex
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()

			result := c.runCheck(ctx, check)

			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
		}(name, check)
	}

	wg.Wait()

	status := StatusReady
	for _, result := range results {
		if result.Status != StatusOK {
			status = StatusNotReady
		}
	}

	return HealthStatus{
		Status:    status,
		Checks:    results,
		Timestamp: time.Now(),
	}
}

// runCheck executes a single health check with timeout.
func (c *Checker) runCheck(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()
	elapsed := func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- check(checkCtx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return CheckResult{Status: StatusUnhealthy, Message: err.Error(), DurationMs: elapsed()}
		}
		return CheckResult{Status: StatusOK, DurationMs: elapsed()}

	case <-checkCtx.Done():
		return CheckResult{Status: StatusUnhealthy, Message: "health check timeout", DurationMs: elapsed()}
	}
}
