package services

import (
	"fmt"
	"log"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// StatusStore is the repository surface the propagator needs
type StatusStore interface {
	AssociationsForCheck(checkID uint) ([]database.ServiceCheckAssociation, error)
	ActiveAssociationsForService(serviceID uint) ([]database.ServiceCheckAssociation, error)
	FailingSince(checkID uint) (time.Time, bool, error)
	ServiceByID(id uint) (*database.Service, error)
	UpdateServiceStatus(serviceID uint, status database.ServiceStatus) error
	InsertNarrative(narrative *database.StatusNarrative) error
}

// TransitionFunc observes committed service status transitions
type TransitionFunc func(service *database.Service, status database.ServiceStatus, message string)

// StatusPropagator translates a new check result into possible service
// status transitions via the service's check associations.
type StatusPropagator struct {
	store        StatusStore
	onTransition TransitionFunc
}

// NewStatusPropagator creates a new status propagator
func NewStatusPropagator(store StatusStore) *StatusPropagator {
	return &StatusPropagator{store: store}
}

// OnTransition registers an observer called after each committed transition
func (p *StatusPropagator) OnTransition(fn TransitionFunc) {
	p.onTransition = fn
}

// Apply processes one persisted check result. Per-association errors are
// logged and skipped so one broken service cannot block the others.
func (p *StatusPropagator) Apply(check *database.MonitoringCheck, result *database.CheckResult) error {
	assocs, err := p.store.AssociationsForCheck(result.CheckID)
	if err != nil {
		return fmt.Errorf("failed to load associations for check %d: %w", result.CheckID, err)
	}

	for _, assoc := range assocs {
		if result.Success {
			err = p.applyRecovery(check, assoc)
		} else {
			err = p.applyFailure(check, assoc)
		}
		if err != nil {
			log.Printf("Status propagation failed for service %d (check %d): %v",
				assoc.ServiceID, result.CheckID, err)
		}
	}
	return nil
}

// applyFailure transitions a service to its impacted state once the check
// has been failing for at least the association's threshold duration.
func (p *StatusPropagator) applyFailure(check *database.MonitoringCheck, assoc database.ServiceCheckAssociation) error {
	service, err := p.store.ServiceByID(assoc.ServiceID)
	if err != nil {
		return err
	}

	// Maintenance is externally set and never overwritten by probe outcomes
	if service.Status == database.ServiceStatusMaintenance {
		return nil
	}
	// Already impacted
	if service.Status == database.ServiceStatusDown || service.Status == database.ServiceStatusDegraded {
		return nil
	}

	since, failing, err := p.store.FailingSince(assoc.CheckID)
	if err != nil {
		return err
	}
	if !failing || time.Since(since) < assoc.FailureThreshold() {
		return nil
	}

	target := database.ServiceStatusDown
	if assoc.Impact == database.ImpactDegraded {
		target = database.ServiceStatusDegraded
	}

	if err := p.store.UpdateServiceStatus(service.ID, target); err != nil {
		return err
	}

	message := assoc.CustomFailureMessage
	if message == "" {
		message = fmt.Sprintf("%s is %s: check %q has been failing since %s",
			service.Name, target, check.Name, since.Format(time.RFC3339))
	}
	p.publish(service, target, message)

	log.Printf("Service %d (%s) transitioned to %s (check %d failing since %s)",
		service.ID, service.Name, target, assoc.CheckID, since.Format(time.RFC3339))
	return nil
}

// applyRecovery returns a service to operational once no other active
// associated check is still failing, provided auto-recovery is enabled.
func (p *StatusPropagator) applyRecovery(check *database.MonitoringCheck, assoc database.ServiceCheckAssociation) error {
	service, err := p.store.ServiceByID(assoc.ServiceID)
	if err != nil {
		return err
	}

	if service.Status == database.ServiceStatusMaintenance {
		return nil
	}
	if service.Status == database.ServiceStatusOperational {
		return nil
	}
	if !service.AutoRecovery {
		return nil
	}

	// Only checks currently marked active are consulted; disabled or
	// removed checks never block recovery.
	active, err := p.store.ActiveAssociationsForService(service.ID)
	if err != nil {
		return err
	}
	for _, other := range active {
		_, failing, err := p.store.FailingSince(other.CheckID)
		if err != nil {
			return err
		}
		if failing {
			return nil
		}
	}

	if err := p.store.UpdateServiceStatus(service.ID, database.ServiceStatusOperational); err != nil {
		return err
	}

	message := fmt.Sprintf("%s has recovered and is operational again", service.Name)
	p.publish(service, database.ServiceStatusOperational, message)

	log.Printf("Service %d (%s) recovered to operational after check %d succeeded",
		service.ID, service.Name, check.ID)
	return nil
}

// publish records the narrative and notifies the transition observer
func (p *StatusPropagator) publish(service *database.Service, status database.ServiceStatus, message string) {
	narrative := &database.StatusNarrative{
		ServiceID: service.ID,
		Status:    status,
		Message:   message,
	}
	if err := p.store.InsertNarrative(narrative); err != nil {
		log.Printf("Failed to insert status narrative for service %d: %v", service.ID, err)
	}

	if p.onTransition != nil {
		p.onTransition(service, status, message)
	}
}
