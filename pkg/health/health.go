// Package health runs dependency probes for the liveness and readiness
// endpoints. A failing optional dependency (cache, store, event bus)
// degrades the service while a failing required one (corpus) takes it down.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// DefaultCheckTimeout bounds a single probe.
const DefaultCheckTimeout = 2 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Ping adapts a connectivity probe into a Check. A nil ping reports the
// dependency as degraded and not configured.
func Ping(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if ping == nil {
			return ComponentHealth{Status: StatusDegraded, Message: "not configured"}
		}
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

type probe struct {
	name     string
	check    Check
	required bool
}

type Checker struct {
	mu      sync.RWMutex
	probes  map[string]probe
	timeout time.Duration
	started time.Time
	logger  *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		probes:  make(map[string]probe),
		timeout: DefaultCheckTimeout,
		started: time.Now(),
		logger:  slog.Default().With("component", "health"),
	}
}

// SetTimeout changes the per-probe deadline.
func (c *Checker) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// Require adds a probe whose failure marks the whole service down.
func (c *Checker) Require(name string, check Check) {
	c.add(probe{name: name, check: check, required: true})
}

// Register adds a probe whose failure only degrades the service.
func (c *Checker) Register(name string, check Check) {
	c.add(probe{name: name, check: check})
}

func (c *Checker) add(p probe) {
	c.mu.Lock()
	c.probes[p.name] = p
	c.mu.Unlock()
}

// Run executes every probe concurrently, each under its own deadline.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	probes := make([]probe, 0, len(c.probes))
	for _, p := range c.probes {
		probes = append(probes, p)
	}
	timeout := c.timeout
	c.mu.RUnlock()
	sort.Slice(probes, func(i, j int) bool { return probes[i].name < probes[j].name })

	results := make([]ComponentHealth, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			res := p.check(probeCtx)
			if res.Status == StatusUp && probeCtx.Err() != nil {
				res = ComponentHealth{Status: StatusDown, Message: "probe timed out"}
			}
			res.Latency = time.Since(start).Round(time.Millisecond).String()
			results[i] = res
			return nil
		})
	}
	g.Wait()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(probes)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for i, p := range probes {
		res := results[i]
		report.Components[p.name] = res
		switch {
		case res.Status == StatusUp:
		case p.required && res.Status == StatusDown:
			report.Status = StatusDown
		case report.Status != StatusDown:
			report.Status = StatusDegraded
		}
	}
	if report.Status != StatusUp {
		c.logger.Warn("service not healthy", "status", report.Status)
	}
	return report
}

// LiveHandler answers liveness probes without touching dependencies.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(c.started).Round(time.Second).String(),
		})
	}
}

// ReadyHandler answers readiness probes. Degraded services still report
// ready.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		code := http.StatusOK
		if report.Status == StatusDown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
