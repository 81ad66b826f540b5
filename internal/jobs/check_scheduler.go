package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/probes"
	"github.com/pulsewatch/pulsewatch/internal/utils"
)

// CheckStore is the repository surface the scheduler needs
type CheckStore interface {
	DueChecks(now time.Time, limit int) ([]database.MonitoringCheck, error)
	RecentChecks(limit int) ([]database.MonitoringCheck, error)
	CheckByID(id uint) (*database.MonitoringCheck, error)
	InsertResult(result *database.CheckResult) error
}

// ResultPropagator consumes a persisted check result
type ResultPropagator interface {
	Apply(check *database.MonitoringCheck, result *database.CheckResult) error
}

// MetricsRecorder records per-check counters. Implementations must never
// block a run; a nil recorder disables metrics entirely.
type MetricsRecorder interface {
	RecordResult(checkID uint, success bool, latencyMS int64)
}

// Prober runs one probe. Injectable so tests can avoid real network calls.
type Prober func(check *database.MonitoringCheck) probes.Outcome

// CheckSchedulerConfig tunes one scheduler run
type CheckSchedulerConfig struct {
	// BatchLimit caps how many due checks one run processes
	BatchLimit int
	// Pacing is the fixed delay between successive check executions,
	// keeping a batch from hammering monitored targets all at once
	Pacing time.Duration
	// RunBudget bounds the wall-clock time of one run
	RunBudget time.Duration
}

// DefaultCheckSchedulerConfig returns the production defaults
func DefaultCheckSchedulerConfig() CheckSchedulerConfig {
	return CheckSchedulerConfig{
		BatchLimit: 50,
		Pacing:     500 * time.Millisecond,
		RunBudget:  4 * time.Minute,
	}
}

// CheckScheduler decides which checks are due and drives their execution
// within a bounded batch and time budget.
type CheckScheduler struct {
	store      CheckStore
	prober     Prober
	propagator ResultPropagator
	metrics    MetricsRecorder
	cfg        CheckSchedulerConfig
}

// NewCheckScheduler creates a scheduler. prober may be nil to use the real
// probe executors; metrics may be nil to disable metrics.
func NewCheckScheduler(store CheckStore, propagator ResultPropagator, metrics MetricsRecorder, cfg CheckSchedulerConfig) *CheckScheduler {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 50
	}
	if cfg.RunBudget <= 0 {
		cfg.RunBudget = 4 * time.Minute
	}
	return &CheckScheduler{
		store:      store,
		prober:     probes.Execute,
		propagator: propagator,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// SetProber overrides the probe executor (tests)
func (s *CheckScheduler) SetProber(prober Prober) {
	s.prober = prober
}

// Run executes one scheduler invocation over the due checks. Failing to
// even list the due checks is the one run-fatal condition; everything else
// is recorded in the summary and the batch continues.
func (s *CheckScheduler) Run() (RunSummary, error) {
	start := time.Now()
	checks, err := s.store.DueChecks(start, s.cfg.BatchLimit)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to list due checks: %w", err)
	}
	summary := s.execute(checks)
	log.Printf("Check scheduler run: %s in %s", summary, utils.FormatDuration(time.Since(start)))
	return summary, nil
}

// RunForced re-runs the most-recently-created n active checks regardless
// of due-ness, for operator testing. It shares all other run semantics.
func (s *CheckScheduler) RunForced(n int) (RunSummary, error) {
	if n <= 0 || n > s.cfg.BatchLimit {
		n = s.cfg.BatchLimit
	}
	checks, err := s.store.RecentChecks(n)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to list recent checks: %w", err)
	}
	summary := s.execute(checks)
	log.Printf("Check scheduler forced run: %s", summary)
	return summary, nil
}

// ExecuteOne runs a single check immediately and returns the outcome with
// the persisted result. Used by the single-check execution endpoint.
func (s *CheckScheduler) ExecuteOne(checkID uint, location string) (probes.Outcome, *database.CheckResult, error) {
	check, err := s.store.CheckByID(checkID)
	if err != nil {
		return probes.Outcome{}, nil, fmt.Errorf("failed to load check %d: %w", checkID, err)
	}

	outcome := s.prober(check)
	result := resultFromOutcome(check, outcome)
	result.Location = location

	if err := s.store.InsertResult(result); err != nil {
		return outcome, nil, fmt.Errorf("failed to persist result for check %d: %w", checkID, err)
	}
	s.recordMetrics(check.ID, outcome)

	if err := s.propagator.Apply(check, result); err != nil {
		log.Printf("Status propagation failed for check %d: %v", check.ID, err)
	}
	return outcome, result, nil
}

// execute runs the batch with pacing, a wall-clock budget and per-check
// isolation. Committed results stay committed when the budget runs out.
func (s *CheckScheduler) execute(checks []database.MonitoringCheck) RunSummary {
	summary := RunSummary{Found: len(checks)}
	deadline := time.Now().Add(s.cfg.RunBudget)

	for i := range checks {
		if time.Now().After(deadline) {
			summary.Partial = true
			break
		}
		check := &checks[i]

		outcome := s.prober(check)
		result := resultFromOutcome(check, outcome)

		if err := s.store.InsertResult(result); err != nil {
			summary.addError("check %d: failed to persist result: %v", check.ID, err)
			continue
		}
		s.recordMetrics(check.ID, outcome)

		summary.Processed++
		if outcome.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}

		if err := s.propagator.Apply(check, result); err != nil {
			summary.addError("check %d: status propagation: %v", check.ID, err)
		}

		if i < len(checks)-1 && s.cfg.Pacing > 0 {
			time.Sleep(s.cfg.Pacing)
		}
	}
	return summary
}

func (s *CheckScheduler) recordMetrics(checkID uint, outcome probes.Outcome) {
	if s.metrics != nil {
		s.metrics.RecordResult(checkID, outcome.Success, outcome.LatencyMS)
	}
}

// resultFromOutcome converts a probe outcome to its persisted form
func resultFromOutcome(check *database.MonitoringCheck, outcome probes.Outcome) *database.CheckResult {
	result := &database.CheckResult{
		CheckID:    check.ID,
		Success:    outcome.Success,
		LatencyMS:  outcome.LatencyMS,
		StatusCode: outcome.StatusCode,
		Error:      outcome.Error,
		CheckedAt:  time.Now(),
	}
	if outcome.Evidence != nil {
		result.Evidence = database.JSONB(outcome.Evidence)
	}
	return result
}
