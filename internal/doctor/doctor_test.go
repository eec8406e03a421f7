package doctor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/basket/tasktrack/internal/config"
	"github.com/basket/tasktrack/internal/persistence"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		HomeDir:        t.TempDir(),
		DBPath:         "tasks.db",
		OverdueRefresh: "* * * * *",
	}
}

func TestRun_HealthyHome(t *testing.T) {
	cfg := testConfig(t)
	d := Run(context.Background(), cfg, "test")
	if d.System.Version != "test" {
		t.Fatalf("version = %q", d.System.Version)
	}
	if n := d.Failed(); n != 0 {
		t.Fatalf("failed checks = %d: %+v", n, d.Results)
	}
	if len(d.Results) != 4 {
		t.Fatalf("results = %d, want 4", len(d.Results))
	}
}

func TestRun_NilConfig(t *testing.T) {
	d := Run(context.Background(), nil, "test")
	if d.Results[0].Status != "FAIL" {
		t.Fatalf("config check = %s, want FAIL", d.Results[0].Status)
	}
	for _, r := range d.Results[1:] {
		if r.Status != "SKIP" {
			t.Fatalf("%s = %s, want SKIP", r.Name, r.Status)
		}
	}
}

func TestCheckConfig_MissingFileWarns(t *testing.T) {
	cfg := testConfig(t)
	cfg.FileMissing = true
	if r := checkConfig(context.Background(), cfg); r.Status != "WARN" {
		t.Fatalf("status = %s, want WARN", r.Status)
	}
}

func TestCheckDatabase_LockedWarns(t *testing.T) {
	cfg := testConfig(t)
	held, err := persistence.Open(filepath.Join(cfg.HomeDir, "tasks.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer held.Close()

	r := checkDatabase(context.Background(), cfg)
	if r.Status != "WARN" {
		t.Fatalf("status = %s (%s), want WARN", r.Status, r.Message)
	}
}

func TestCheckDatabase_ReportsSchemaAndCount(t *testing.T) {
	cfg := testConfig(t)
	r := checkDatabase(context.Background(), cfg)
	if r.Status != "PASS" || r.Message != "Schema v1, 0 tasks" {
		t.Fatalf("result = %+v", r)
	}
}

func TestCheckSchedule_InvalidExpression(t *testing.T) {
	cfg := testConfig(t)
	cfg.OverdueRefresh = "every minute"
	if r := checkSchedule(context.Background(), cfg); r.Status != "FAIL" {
		t.Fatalf("status = %s, want FAIL", r.Status)
	}
}
