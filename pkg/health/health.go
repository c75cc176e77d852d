// Package health reports whether a searcher can answer queries. The index
// check decides readiness; the query cache and build registry are optional
// and only degrade the report when unreachable.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
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

// Component names reported by the searcher.
const (
	ComponentIndex    = "index"
	ComponentCache    = "cache"
	ComponentRegistry = "registry"
)

// checkTimeout bounds a single dependency check inside a readiness request.
const checkTimeout = 2 * time.Second

// Check probes one component.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is what /health/ready returns.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// IndexState is the part of the live snapshot the index check looks at.
type IndexState struct {
	Loaded    bool
	BuildID   string
	Documents int
	Terms     int
}

// IndexCheck is down until an artifact has been loaded.
func IndexCheck(current func() IndexState) Check {
	return func(context.Context) ComponentHealth {
		s := current()
		if !s.Loaded {
			return ComponentHealth{Status: StatusDown, Message: "no index loaded"}
		}
		return ComponentHealth{
			Status:  StatusUp,
			Message: fmt.Sprintf("build %s: %d documents, %d terms", s.BuildID, s.Documents, s.Terms),
		}
	}
}

// PingCheck probes an optional dependency. A failed ping reports onFailure,
// so the cache or registry can degrade instead of going down.
func PingCheck(ping func(ctx context.Context) error, onFailure Status) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: onFailure, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// Checker holds the searcher's component checks.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]Check
}

func NewChecker() *Checker {
	return &Checker{checks: make(map[string]Check)}
}

// Register adds or replaces the check for component.
func (c *Checker) Register(component string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[component] = check
}

// Run probes every component concurrently. The report takes the worst
// component status.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := maps.Clone(c.checks)
	c.mu.RUnlock()

	results := make(map[string]ComponentHealth, len(checks))
	var mu sync.Mutex
	var g errgroup.Group
	for component, check := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			start := time.Now()
			result := check(cctx)
			result.Latency = time.Since(start).Round(time.Millisecond).String()
			mu.Lock()
			results[component] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return Report{
		Status:     worst(results),
		Components: results,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

func worst(results map[string]ComponentHealth) Status {
	status := StatusUp
	for _, r := range results {
		switch r.Status {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// LiveHandler answers as long as the process serves HTTP.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 200 only when every component is up. A degraded cache
// or registry still yields 503 so load balancers prefer healthy replicas.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusServiceUnavailable
		if report.Status == StatusUp {
			status = http.StatusOK
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
