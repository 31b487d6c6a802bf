// Package health runs periodic self-checks of the roadside unit and keeps
// the latest result of each for the API.
package health

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/roadside-lab/rsu/internal/domain"
	"github.com/roadside-lab/rsu/internal/infra/sqlite"
)

// DefaultInterval is how often checks run.
const DefaultInterval = 30 * time.Second

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// TransportState reports the ingestion loop's state and its last terminal
// error ("" if none).
type TransportState func() (domain.LoopState, string)

// Deps are the things the standard checks look at. Zero fields skip the
// corresponding check.
type Deps struct {
	Transport TransportState
	LogDir    string
	DB        *sqlite.DB
}

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
}

// NewChecker creates a checker with the standard checks for deps.
func NewChecker(deps Deps) *Checker {
	c := &Checker{interval: DefaultInterval}
	if deps.Transport != nil {
		c.checks = append(c.checks, Check{
			Name: "transport",
			CheckFn: func(ctx context.Context) error {
				return checkTransport(deps.Transport)
			},
		})
	}
	if deps.LogDir != "" {
		c.checks = append(c.checks, Check{
			Name: "log_dir",
			CheckFn: func(ctx context.Context) error {
				return checkWritable(deps.LogDir)
			},
			RecoverFn: func(ctx context.Context) error {
				return os.MkdirAll(deps.LogDir, 0o755)
			},
		})
	}
	if deps.DB != nil {
		c.checks = append(c.checks, Check{
			Name: "sqlite",
			CheckFn: func(ctx context.Context) error {
				return deps.DB.Ping()
			},
		})
	}
	return c
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce runs every check now and stores the results.
func (c *Checker) RunOnce(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Error = err.Error()
			if check.RecoverFn != nil {
				_ = check.RecoverFn(ctx)
			}
		} else {
			s.Healthy = true
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

// checkTransport fails when the last session ended on a transport error.
// Idle after an explicit stop is healthy.
func checkTransport(state TransportState) error {
	st, terminal := state()
	if st == domain.StateIdle && terminal != "" {
		return fmt.Errorf("%w: %s", domain.ErrTransportClosed, terminal)
	}
	return nil
}

func checkWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("check log dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("log path %s is not a directory", dir)
	}
	f, err := os.CreateTemp(dir, ".rsu-writecheck-*")
	if err != nil {
		return fmt.Errorf("log dir not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
