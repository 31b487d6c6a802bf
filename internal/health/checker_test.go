package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/roadside-lab/rsu/internal/domain"
	"github.com/roadside-lab/rsu/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func listening() (domain.LoopState, string) { return domain.StateListening, "" }

func statusOf(t *testing.T, c *Checker, name string) Status {
	t.Helper()
	for _, s := range c.Statuses() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("check %q not found in statuses", name)
	return Status{}
}

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestNewChecker(t *testing.T) {
	c := NewChecker(Deps{Transport: listening, LogDir: t.TempDir(), DB: newTestDB(t)})
	if len(c.checks) != 3 {
		t.Errorf("checks = %d, want 3", len(c.checks))
	}
}

func TestNewChecker_SkipsMissingDeps(t *testing.T) {
	c := NewChecker(Deps{LogDir: t.TempDir()})
	if len(c.checks) != 1 {
		t.Fatalf("checks = %d, want 1", len(c.checks))
	}
	if c.checks[0].Name != "log_dir" {
		t.Errorf("check = %q, want log_dir", c.checks[0].Name)
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	c := NewChecker(Deps{Transport: listening, LogDir: t.TempDir(), DB: newTestDB(t)})
	c.RunOnce(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 3 {
		t.Fatalf("Statuses() = %d, want 3", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	c := NewChecker(Deps{LogDir: t.TempDir()})

	// No statuses yet: vacuously healthy
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run")
	}
}

func TestChecker_Transport(t *testing.T) {
	tests := []struct {
		name     string
		state    domain.LoopState
		terminal string
		healthy  bool
	}{
		{"listening", domain.StateListening, "", true},
		{"stopped", domain.StateIdle, "", true},
		{"failed", domain.StateIdle, "receive: network is down", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(Deps{Transport: func() (domain.LoopState, string) {
				return tt.state, tt.terminal
			}})
			c.RunOnce(context.Background())

			s := statusOf(t, c, "transport")
			if s.Healthy != tt.healthy {
				t.Errorf("Healthy = %v, want %v (error %q)", s.Healthy, tt.healthy, s.Error)
			}
		})
	}
}

func TestChecker_LogDirMissingRecovers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	c := NewChecker(Deps{LogDir: dir})

	c.RunOnce(context.Background())
	if statusOf(t, c, "log_dir").Healthy {
		t.Fatal("log_dir should fail while the directory is missing")
	}

	// The recovery action created it
	c.RunOnce(context.Background())
	if s := statusOf(t, c, "log_dir"); !s.Healthy {
		t.Errorf("log_dir should be healthy after recovery, got %s", s.Error)
	}
}

func TestChecker_LogDirIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs")
	if err := os.WriteFile(path, []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewChecker(Deps{LogDir: path})
	c.RunOnce(context.Background())

	if statusOf(t, c, "log_dir").Healthy {
		t.Error("log_dir should fail when path is a file")
	}
}

func TestChecker_SQLiteClosed(t *testing.T) {
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	c := NewChecker(Deps{DB: db})
	c.RunOnce(context.Background())

	if statusOf(t, c, "sqlite").Healthy {
		t.Error("sqlite should fail on a closed database")
	}
}

func TestChecker_FailingCheck(t *testing.T) {
	recovered := false
	c := &Checker{
		checks: []Check{
			{
				Name: "always_fail",
				CheckFn: func(ctx context.Context) error {
					return os.ErrPermission
				},
				RecoverFn: func(ctx context.Context) error {
					recovered = true
					return nil
				},
			},
		},
	}

	c.RunOnce(context.Background())

	statuses := c.Statuses()
	if statuses[0].Healthy {
		t.Error("always_fail check should not be healthy")
	}
	if statuses[0].Error == "" {
		t.Error("failing check should carry an error message")
	}
	if !recovered {
		t.Error("recovery should run after a failed check")
	}
	if c.IsHealthy() {
		t.Error("IsHealthy() should be false")
	}
}
