package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/jobs"
	"github.com/pulsewatch/pulsewatch/internal/notify"
	"github.com/pulsewatch/pulsewatch/internal/probes"
	"github.com/pulsewatch/pulsewatch/internal/services"
	"github.com/pulsewatch/pulsewatch/internal/testhelpers"
)

func newCronTestMux(t *testing.T, secret string) (*http.ServeMux, *database.Store) {
	t.Helper()
	store := testhelpers.NewTestStore(t)
	propagator := services.NewStatusPropagator(store)

	scheduler := jobs.NewCheckScheduler(store, propagator, nil, jobs.CheckSchedulerConfig{BatchLimit: 10})
	scheduler.SetProber(func(c *database.MonitoringCheck) probes.Outcome {
		return probes.Outcome{Success: true, StatusCode: 200}
	})
	escalator := jobs.NewEscalationDriver(store, notify.NewLogDispatcher(), jobs.EscalationDriverConfig{BatchLimit: 10})

	mux := http.NewServeMux()
	NewCronHandler(scheduler, escalator, secret).SetupRoutes(mux)
	return mux, store
}

func TestCronChecksNoSecretConfigured(t *testing.T) {
	mux, _ := newCronTestMux(t, "")

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/cron/checks", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		AssertBodyContains(`"found":0`)
}

func TestCronChecksRejectsBadSecret(t *testing.T) {
	mux, _ := newCronTestMux(t, "topsecret")

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/cron/checks", nil).
		WithHeader("X-Cron-Secret", "wrong").
		Execute(mux).
		AssertStatus(http.StatusUnauthorized)
}

func TestCronChecksAcceptsSecret(t *testing.T) {
	mux, store := newCronTestMux(t, "topsecret")

	check := testhelpers.NewCheckBuilder().Build()
	if err := store.DB().Create(&check).Error; err != nil {
		t.Fatalf("create check: %v", err)
	}

	var summary jobs.RunSummary
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/cron/checks", nil).
		WithHeader("X-Cron-Secret", "topsecret").
		Execute(mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&summary)

	if summary.Processed != 1 || summary.Succeeded != 1 {
		t.Errorf("unexpected summary %s", summary)
	}
}

func TestCronChecksForced(t *testing.T) {
	mux, store := newCronTestMux(t, "")

	check := testhelpers.NewCheckBuilder().Build()
	if err := store.DB().Create(&check).Error; err != nil {
		t.Fatalf("create check: %v", err)
	}
	// Fresh result: the check is not due, only the forced run picks it up
	if err := store.InsertResult(&database.CheckResult{CheckID: check.ID, Success: true, CheckedAt: time.Now()}); err != nil {
		t.Fatalf("insert result: %v", err)
	}

	var summary jobs.RunSummary
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/cron/checks?force=1&limit=5", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&summary)

	if summary.Processed != 1 {
		t.Errorf("forced run processed %d, want 1", summary.Processed)
	}
}

func TestCronEscalationsEmpty(t *testing.T) {
	mux, _ := newCronTestMux(t, "")

	var summary jobs.RunSummary
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/cron/escalations", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&summary)

	if summary.Found != 0 {
		t.Errorf("Found = %d, want 0", summary.Found)
	}
}

func TestCronEscalationsRejectsBadSecret(t *testing.T) {
	mux, _ := newCronTestMux(t, "topsecret")

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/cron/escalations", nil).
		Execute(mux).
		AssertStatus(http.StatusUnauthorized)
}
