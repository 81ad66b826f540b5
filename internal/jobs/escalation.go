package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/notify"
	"github.com/pulsewatch/pulsewatch/internal/services"
	"github.com/pulsewatch/pulsewatch/internal/utils"
)

// EscalationStore is the repository surface the escalation driver needs.
// It embeds target resolution so one store serves the whole run.
type EscalationStore interface {
	services.TargetStore

	OverdueEscalations(now time.Time, limit int) ([]database.OverdueEscalation, error)
	IncidentByID(id uint) (*database.Incident, error)
	UpdateEscalation(escalationID uint, updates map[string]interface{}) error
}

// EscalationDriverConfig tunes one escalation run
type EscalationDriverConfig struct {
	// BatchLimit caps how many overdue escalations one run advances;
	// the excess is picked up by the next run
	BatchLimit int
	// RunBudget bounds the wall-clock time of one run
	RunBudget time.Duration
	// DispatchTimeout bounds one notification fan-out
	DispatchTimeout time.Duration
}

// DefaultEscalationDriverConfig returns the production defaults
func DefaultEscalationDriverConfig() EscalationDriverConfig {
	return EscalationDriverConfig{
		BatchLimit:      10,
		RunBudget:       4 * time.Minute,
		DispatchTimeout: 30 * time.Second,
	}
}

// EscalationDriver advances overdue incident escalations by one step each,
// or terminates them. State is persisted per escalation, not batched, so a
// run cut short by its budget is safely resumed by the next invocation.
type EscalationDriver struct {
	store      EscalationStore
	dispatcher notify.Dispatcher
	cfg        EscalationDriverConfig
}

// NewEscalationDriver creates a new escalation driver
func NewEscalationDriver(store EscalationStore, dispatcher notify.Dispatcher, cfg EscalationDriverConfig) *EscalationDriver {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 10
	}
	if cfg.RunBudget <= 0 {
		cfg.RunBudget = 4 * time.Minute
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 30 * time.Second
	}
	return &EscalationDriver{
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// Run selects the overdue escalations, most overdue first, and advances
// each under the run budget. Failing to even list them is the one
// run-fatal condition.
func (d *EscalationDriver) Run() (RunSummary, error) {
	overdue, err := d.store.OverdueEscalations(time.Now(), d.cfg.BatchLimit)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to list overdue escalations: %w", err)
	}

	summary := RunSummary{Found: len(overdue)}
	deadline := time.Now().Add(d.cfg.RunBudget)

	for _, item := range overdue {
		if time.Now().After(deadline) {
			summary.Partial = true
			break
		}

		advanced, cancelled, err := d.advance(item)
		if err != nil {
			summary.addError("escalation %s: %v", item.Escalation.UUID, err)
			continue
		}
		summary.Processed++
		if cancelled {
			summary.Cancelled++
		} else if advanced {
			summary.Succeeded++
		}
	}

	log.Printf("Escalation driver run: %s", summary)
	return summary, nil
}

// advance moves one escalation forward: cancel if the incident no longer
// warrants escalation, terminate when the policy is exhausted, otherwise
// notify the current step's targets and bump the step index.
func (d *EscalationDriver) advance(item database.OverdueEscalation) (advanced, cancelled bool, err error) {
	esc := item.Escalation

	// Guard: re-check the incident before acting; never notify for a
	// stale condition.
	incident, err := d.store.IncidentByID(esc.IncidentID)
	if err != nil {
		return false, false, fmt.Errorf("failed to load incident %d: %w", esc.IncidentID, err)
	}
	if !incident.IsOpen() {
		note := fmt.Sprintf("cancelled: incident is %s, no longer escalating", incident.Status)
		err := d.store.UpdateEscalation(esc.ID, map[string]interface{}{
			"status": database.EscalationStatusCancelled,
			"note":   note,
		})
		if err != nil {
			return false, false, fmt.Errorf("failed to cancel: %w", err)
		}
		log.Printf("Escalation %s cancelled (incident %s is %s)", esc.UUID, incident.UUID, incident.Status)
		return false, true, nil
	}

	step := item.Policy.StepAt(esc.CurrentStep)
	if step == nil {
		// All steps exhausted without acknowledgment
		err := d.store.UpdateEscalation(esc.ID, map[string]interface{}{
			"status": database.EscalationStatusEscalated,
			"note":   fmt.Sprintf("policy exhausted after %d steps", esc.CurrentStep),
		})
		if err != nil {
			return false, false, fmt.Errorf("failed to mark escalated: %w", err)
		}
		log.Printf("Escalation %s exhausted its policy after %d steps", esc.UUID, esc.CurrentStep)
		return true, false, nil
	}

	sent, failed, resolveErrors := d.notifyStep(incident, step)
	for _, resolveErr := range resolveErrors {
		log.Printf("Escalation %s step %d: %v", esc.UUID, step.Level, resolveErr)
	}

	// The step counts as notified once dispatch was attempted for every
	// resolved target; delivery confirmation lives outside this engine.
	now := time.Now()
	note := fmt.Sprintf("step %d: dispatched %d ok, %d failed, %d targets unresolvable",
		step.Level, sent, failed, len(resolveErrors))
	err = d.store.UpdateEscalation(esc.ID, map[string]interface{}{
		"status":           database.EscalationStatusNotified,
		"current_step":     esc.CurrentStep + 1,
		"last_notified_at": now,
		"note":             note,
	})
	if err != nil {
		return false, false, fmt.Errorf("failed to advance: %w", err)
	}

	log.Printf("Escalation %s advanced to step %d (%s)", esc.UUID, esc.CurrentStep+1, note)
	return true, false, nil
}

// notifyStep resolves every target of a step and fans the notifications
// out concurrently, waiting for all of them to settle. A target that fails
// to resolve never blocks the remaining targets.
func (d *EscalationDriver) notifyStep(incident *database.Incident, step *database.EscalationStep) (sent, failed int, resolveErrors []error) {
	var recipients []notify.Recipient
	for _, target := range step.Targets {
		resolved, err := services.ResolveTarget(d.store, target)
		if err != nil {
			resolveErrors = append(resolveErrors, fmt.Errorf("target %s/%d: %w", target.Kind, target.TargetID, err))
			continue
		}
		recipients = append(recipients, resolved...)
	}
	if len(recipients) == 0 {
		return 0, 0, resolveErrors
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DispatchTimeout)
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, recipient := range recipients {
		wg.Add(1)
		go func(r notify.Recipient) {
			defer wg.Done()
			resp, err := d.dispatcher.Dispatch(ctx, d.requestFor(incident, r))

			mu.Lock()
			defer mu.Unlock()
			if err != nil || !resp.Succeeded() {
				failed++
				log.Printf("Notification dispatch failed for %s <%s>: %v", r.Name, r.Email, err)
			} else {
				sent++
			}
		}(recipient)
	}
	wg.Wait()

	return sent, failed, resolveErrors
}

// requestFor builds the send request for one recipient. The message-based
// channel is always included; phone channels only for urgent incidents
// when the recipient has a phone number on file.
func (d *EscalationDriver) requestFor(incident *database.Incident, recipient notify.Recipient) notify.Request {
	channels := []notify.Channel{notify.ChannelEmail}
	priority := notify.PriorityNormal
	if incident.Severity.IsUrgent() {
		priority = notify.PriorityUrgent
		if recipient.Phone != "" {
			channels = append(channels, notify.ChannelSMS, notify.ChannelVoice)
		}
	}

	return notify.Request{
		Channels:  channels,
		Recipient: recipient,
		Subject:   fmt.Sprintf("[%s] Incident: %s", incident.Severity, utils.TruncateText(incident.Title, 120)),
		Body: fmt.Sprintf("Incident %s (%s) requires attention. Severity: %s, open for %s.",
			incident.Title, incident.UUID, incident.Severity, utils.FormatDuration(time.Since(incident.CreatedAt))),
		Priority:         priority,
		IncidentUUID:     incident.UUID,
		IncidentTitle:    incident.Title,
		IncidentSeverity: incident.Severity,
	}
}

// NotifyStepDirect dispatches a synthetic notification for one policy step
// without touching escalation state. Operator testing only.
func (d *EscalationDriver) NotifyStepDirect(policy *database.EscalationPolicy, stepIndex int, incident *database.Incident) (sent, failed int, resolveErrors []error) {
	step := policy.StepAt(stepIndex)
	if step == nil {
		return 0, 0, []error{fmt.Errorf("policy %d has no step %d", policy.ID, stepIndex)}
	}
	return d.notifyStep(incident, step)
}
