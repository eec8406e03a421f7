package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/basket/tasktrack/internal/config"
	"github.com/basket/tasktrack/internal/cron"
	"github.com/basket/tasktrack/internal/persistence"
)

type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "PASS", "FAIL", "WARN", "SKIP"
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type Diagnosis struct {
	Timestamp time.Time     `json:"timestamp"`
	System    SystemInfo    `json:"system"`
	Results   []CheckResult `json:"results"`
}

type SystemInfo struct {
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	Go      string `json:"go_version"`
	Version string `json:"version"`
}

// Failed counts FAIL results.
func (d Diagnosis) Failed() int {
	n := 0
	for _, r := range d.Results {
		if r.Status == "FAIL" {
			n++
		}
	}
	return n
}

// Run executes all diagnostic checks.
func Run(ctx context.Context, cfg *config.Config, version string) Diagnosis {
	d := Diagnosis{
		Timestamp: time.Now().UTC(),
		System: SystemInfo{
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
			Go:      runtime.Version(),
			Version: version,
		},
	}

	checks := []func(context.Context, *config.Config) CheckResult{
		checkConfig,
		checkPermissions,
		checkDatabase,
		checkSchedule,
	}

	for _, check := range checks {
		d.Results = append(d.Results, check(ctx, cfg))
	}

	return d
}

func checkConfig(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Config", Status: "FAIL", Message: "Configuration not loaded"}
	}
	if cfg.FileMissing {
		return CheckResult{
			Name:    "Config",
			Status:  "WARN",
			Message: "config.yaml missing, using defaults",
			Detail:  "Run `tasktrack config init` to write one",
		}
	}
	return CheckResult{Name: "Config", Status: "PASS", Message: fmt.Sprintf("Loaded from %s", config.ConfigPath(cfg.HomeDir)), Detail: cfg.Fingerprint()}
}

func checkPermissions(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Permissions", Status: "SKIP", Message: "Config missing"}
	}

	testFile := filepath.Join(cfg.HomeDir, ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return CheckResult{Name: "Permissions", Status: "FAIL", Message: fmt.Sprintf("Home dir unwritable: %v", err)}
	}
	os.Remove(testFile)

	return CheckResult{Name: "Permissions", Status: "PASS", Message: "Home directory writable"}
}

func checkDatabase(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Database", Status: "SKIP", Message: "Config missing"}
	}
	path := cfg.ResolvedDBPath()

	store, err := persistence.Open(path, nil)
	if errors.Is(err, persistence.ErrLocked) {
		return CheckResult{Name: "Database", Status: "WARN", Message: "Database is open in another tasktrack process", Detail: path}
	}
	if err != nil {
		return CheckResult{Name: "Database", Status: "FAIL", Message: fmt.Sprintf("Open failed: %v", err), Detail: path}
	}
	defer store.Close()

	if err := store.IntegrityCheck(ctx); err != nil {
		return CheckResult{Name: "Database", Status: "FAIL", Message: err.Error(), Detail: path}
	}
	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return CheckResult{Name: "Database", Status: "FAIL", Message: err.Error(), Detail: path}
	}
	n, err := store.Count(ctx)
	if err != nil {
		return CheckResult{Name: "Database", Status: "FAIL", Message: fmt.Sprintf("Query failed: %v", err), Detail: path}
	}

	return CheckResult{
		Name:    "Database",
		Status:  "PASS",
		Message: fmt.Sprintf("Schema v%d, %d tasks", version, n),
		Detail:  path,
	}
}

func checkSchedule(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Overdue Refresh", Status: "SKIP", Message: "Config missing"}
	}
	next, err := cron.NextRunTime(cfg.OverdueRefresh, time.Now())
	if err != nil {
		return CheckResult{Name: "Overdue Refresh", Status: "FAIL", Message: fmt.Sprintf("Invalid overdue_refresh %q: %v", cfg.OverdueRefresh, err)}
	}
	return CheckResult{Name: "Overdue Refresh", Status: "PASS", Message: fmt.Sprintf("Next refresh at %s", next.Format(time.RFC3339))}
}
