package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ProbeStatus encodes the outcome of a dependency probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

const defaultProbeTimeout = 2 * time.Second

// ProbeResult captures one dependency check.
type ProbeResult struct {
	Component string      `json:"component"`
	Status    ProbeStatus `json:"status"`
	Details   string      `json:"details,omitempty"`
	LatencyMS int64       `json:"latencyMs"`
}

// Report aggregates probe results. Status is the worst individual status.
type Report struct {
	Status ProbeStatus   `json:"status"`
	Checks []ProbeResult `json:"checks"`
}

// Ready reports whether the service can take traffic. Degraded dependencies still serve.
func (r Report) Ready() bool {
	return r.Status != StatusDown
}

// Check is a named dependency probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) ProbeResult
}

// NewCheck constructs a check. A nil probe always reports down.
func NewCheck(name string, fn func(ctx context.Context) ProbeResult) Check {
	if fn == nil {
		fn = func(context.Context) ProbeResult {
			return ProbeResult{Status: StatusDown, Details: "probe not implemented"}
		}
	}
	return Check{Name: name, Run: fn}
}

// Readiness runs the registered checks concurrently, each bounded by a timeout.
type Readiness struct {
	mu      sync.RWMutex
	checks  []Check
	timeout time.Duration
}

// NewReadiness builds a Readiness evaluator. A non-positive timeout uses two seconds.
func NewReadiness(timeout time.Duration, checks ...Check) *Readiness {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	r := &Readiness{timeout: timeout}
	for _, check := range checks {
		r.Register(check)
	}
	return r
}

// Register appends a check. Unnamed checks are ignored.
func (r *Readiness) Register(check Check) {
	if check.Name == "" || check.Run == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, check)
}

// Evaluate runs every check and reports results in registration order.
func (r *Readiness) Evaluate(ctx context.Context) Report {
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.RLock()
	checks := append([]Check(nil), r.checks...)
	r.mu.RUnlock()

	results := make([]ProbeResult, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			results[i] = runCheck(probeCtx, check)
		}(i, check)
	}
	wg.Wait()

	report := Report{Status: StatusUp, Checks: results}
	for _, result := range results {
		switch result.Status {
		case StatusDown:
			report.Status = StatusDown
		case StatusDegraded:
			if report.Status == StatusUp {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

func runCheck(ctx context.Context, check Check) (result ProbeResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = ProbeResult{Status: StatusDown, Details: fmt.Sprint(rec)}
		}
		if result.Status == "" {
			result.Status = StatusDown
		}
		result.Component = check.Name
		result.LatencyMS = time.Since(start).Milliseconds()
	}()

	return check.Run(ctx)
}

// ResultFromError converts a probe error into a result. Timeouts count as degraded.
func ResultFromError(err error) ProbeResult {
	if err == nil {
		return ProbeResult{Status: StatusUp}
	}
	status := StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = StatusDegraded
	}
	return ProbeResult{Status: status, Details: err.Error()}
}
