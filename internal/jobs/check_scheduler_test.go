package jobs

import (
	"sync"
	"testing"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/probes"
	"github.com/pulsewatch/pulsewatch/internal/services"
	"github.com/pulsewatch/pulsewatch/internal/testhelpers"
)

// stubMetrics records RecordResult calls in memory
type stubMetrics struct {
	mu    sync.Mutex
	calls int
}

func (m *stubMetrics) RecordResult(checkID uint, success bool, latencyMS int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
}

func newTestScheduler(t *testing.T, store *database.Store, cfg CheckSchedulerConfig) *CheckScheduler {
	t.Helper()
	propagator := services.NewStatusPropagator(store)
	return NewCheckScheduler(store, propagator, nil, cfg)
}

func seedCheck(t *testing.T, store *database.Store, name string) database.MonitoringCheck {
	t.Helper()
	check := testhelpers.NewCheckBuilder().WithName(name).Build()
	if err := store.DB().Create(&check).Error; err != nil {
		t.Fatalf("create check: %v", err)
	}
	return check
}

func TestRunExecutesDueChecks(t *testing.T) {
	store := testhelpers.NewTestStore(t)
	check := seedCheck(t, store, "due-check")

	scheduler := newTestScheduler(t, store, CheckSchedulerConfig{BatchLimit: 10})
	var probed []uint
	scheduler.SetProber(func(c *database.MonitoringCheck) probes.Outcome {
		probed = append(probed, c.ID)
		return probes.Outcome{Success: true, StatusCode: 200, LatencyMS: 12}
	})

	summary, err := scheduler.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Found != 1 || summary.Processed != 1 || summary.Succeeded != 1 {
		t.Errorf("unexpected summary %s", summary)
	}
	if len(probed) != 1 || probed[0] != check.ID {
		t.Errorf("probed %v, want [%d]", probed, check.ID)
	}

	result, err := store.LatestResult(check.ID)
	if err != nil {
		t.Fatalf("LatestResult: %v", err)
	}
	if result == nil || !result.Success || result.StatusCode != 200 {
		t.Errorf("unexpected persisted result %+v", result)
	}
}

func TestRunSkipsChecksWithinInterval(t *testing.T) {
	store := testhelpers.NewTestStore(t)
	check := seedCheck(t, store, "fresh-check")
	if err := store.InsertResult(&database.CheckResult{
		CheckID:   check.ID,
		Success:   true,
		CheckedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert result: %v", err)
	}

	scheduler := newTestScheduler(t, store, CheckSchedulerConfig{BatchLimit: 10})
	scheduler.SetProber(func(c *database.MonitoringCheck) probes.Outcome {
		t.Errorf("check %d probed despite a fresh result", c.ID)
		return probes.Outcome{Success: true}
	})

	summary, err := scheduler.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Found != 0 {
		t.Errorf("Found = %d, want 0", summary.Found)
	}
}

func TestRunFailureDrivesPropagation(t *testing.T) {
	store := testhelpers.NewTestStore(t)
	check := seedCheck(t, store, "failing-check")

	service := testhelpers.NewServiceBuilder().Build()
	if err := store.DB().Create(&service).Error; err != nil {
		t.Fatalf("create service: %v", err)
	}
	if err := store.DB().Create(&database.ServiceCheckAssociation{
		ServiceID:               service.ID,
		CheckID:                 check.ID,
		FailureThresholdMinutes: 0,
	}).Error; err != nil {
		t.Fatalf("create association: %v", err)
	}

	scheduler := newTestScheduler(t, store, CheckSchedulerConfig{BatchLimit: 10})
	scheduler.SetProber(func(c *database.MonitoringCheck) probes.Outcome {
		return probes.Outcome{Success: false, Error: "connection refused"}
	})

	summary, err := scheduler.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}

	reloaded, err := store.ServiceByID(service.ID)
	if err != nil {
		t.Fatalf("reload service: %v", err)
	}
	if reloaded.Status != database.ServiceStatusDown {
		t.Errorf("service status = %s, want down after failing result", reloaded.Status)
	}
}

func TestRunForcedIgnoresDueness(t *testing.T) {
	store := testhelpers.NewTestStore(t)
	check := seedCheck(t, store, "forced-check")
	if err := store.InsertResult(&database.CheckResult{
		CheckID:   check.ID,
		Success:   true,
		CheckedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert result: %v", err)
	}

	scheduler := newTestScheduler(t, store, CheckSchedulerConfig{BatchLimit: 10})
	probed := 0
	scheduler.SetProber(func(c *database.MonitoringCheck) probes.Outcome {
		probed++
		return probes.Outcome{Success: true}
	})

	summary, err := scheduler.RunForced(5)
	if err != nil {
		t.Fatalf("RunForced: %v", err)
	}
	if probed != 1 || summary.Processed != 1 {
		t.Errorf("forced run processed %d (probed %d), want 1", summary.Processed, probed)
	}
}

func TestRunBudgetExhaustedIsPartial(t *testing.T) {
	store := testhelpers.NewTestStore(t)
	seedCheck(t, store, "check-a")
	seedCheck(t, store, "check-b")

	scheduler := newTestScheduler(t, store, CheckSchedulerConfig{
		BatchLimit: 10,
		RunBudget:  time.Nanosecond,
	})
	scheduler.SetProber(func(c *database.MonitoringCheck) probes.Outcome {
		return probes.Outcome{Success: true}
	})

	// Let the budget deadline pass before the first iteration
	time.Sleep(time.Millisecond)

	summary, err := scheduler.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.Partial {
		t.Error("expected a partial run on an exhausted budget")
	}
	if summary.Processed != 0 {
		t.Errorf("Processed = %d, want 0", summary.Processed)
	}
}

func TestExecuteOne(t *testing.T) {
	store := testhelpers.NewTestStore(t)
	check := seedCheck(t, store, "single-check")

	scheduler := newTestScheduler(t, store, CheckSchedulerConfig{BatchLimit: 10})
	scheduler.SetProber(func(c *database.MonitoringCheck) probes.Outcome {
		return probes.Outcome{Success: true, StatusCode: 204, LatencyMS: 7}
	})

	outcome, result, err := scheduler.ExecuteOne(check.ID, "eu-west")
	if err != nil {
		t.Fatalf("ExecuteOne: %v", err)
	}
	if !outcome.Success {
		t.Error("expected a successful outcome")
	}
	if result == nil || result.ID == 0 {
		t.Fatal("expected a persisted result")
	}
	if result.Location != "eu-west" {
		t.Errorf("Location = %q, want eu-west", result.Location)
	}
}

func TestExecuteOneUnknownCheck(t *testing.T) {
	store := testhelpers.NewTestStore(t)
	scheduler := newTestScheduler(t, store, CheckSchedulerConfig{BatchLimit: 10})

	if _, _, err := scheduler.ExecuteOne(9999, ""); err == nil {
		t.Fatal("expected error for unknown check")
	}
}

func TestRunRecordsMetrics(t *testing.T) {
	store := testhelpers.NewTestStore(t)
	seedCheck(t, store, "metered-check")

	recorder := &stubMetrics{}
	propagator := services.NewStatusPropagator(store)
	scheduler := NewCheckScheduler(store, propagator, recorder, CheckSchedulerConfig{BatchLimit: 10})
	scheduler.SetProber(func(c *database.MonitoringCheck) probes.Outcome {
		return probes.Outcome{Success: true, LatencyMS: 3}
	})

	if _, err := scheduler.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if recorder.calls != 1 {
		t.Errorf("metrics recorded %d times, want 1", recorder.calls)
	}
}
