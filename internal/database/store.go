package database

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// Store is the gorm-backed repository handed to the engine components.
// Each component consumes a narrow interface satisfied by this type, so
// tests can swap in an in-memory SQLite database.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store on top of an open gorm connection
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for migrations and wiring
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ========== Check operations ==========

// DueChecks returns active checks that are due for execution at the given
// time, least-recently-checked first, capped at limit. A check is due when
// it has no prior result or its most recent result is older than the
// check's interval.
//
// Due-ness is computed in Go rather than SQL so the same query works on
// PostgreSQL and the SQLite test database; the candidate set is the active
// checks, which is small relative to the result table.
func (s *Store) DueChecks(now time.Time, limit int) ([]MonitoringCheck, error) {
	var checks []MonitoringCheck
	if err := s.db.Where("active = ?", true).Find(&checks).Error; err != nil {
		return nil, fmt.Errorf("failed to list active checks: %w", err)
	}

	lastChecked, err := s.lastCheckedTimes()
	if err != nil {
		return nil, err
	}

	type dueCheck struct {
		check MonitoringCheck
		last  time.Time // zero when never checked
	}

	due := make([]dueCheck, 0, len(checks))
	for _, c := range checks {
		last, ok := lastChecked[c.ID]
		if !ok {
			due = append(due, dueCheck{check: c})
			continue
		}
		if !last.After(now.Add(-c.Interval())) {
			due = append(due, dueCheck{check: c, last: last})
		}
	}

	// Never-checked first, then least recently checked
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].last.Before(due[j].last)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	out := make([]MonitoringCheck, 0, len(due))
	for _, d := range due {
		out = append(out, d.check)
	}
	return out, nil
}

// lastCheckedTimes returns the most recent result timestamp per check
func (s *Store) lastCheckedTimes() (map[uint]time.Time, error) {
	type row struct {
		CheckID uint
		Last    time.Time
	}
	var rows []row
	err := s.db.Model(&CheckResult{}).
		Select("check_id, MAX(checked_at) AS last").
		Group("check_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load last check times: %w", err)
	}

	out := make(map[uint]time.Time, len(rows))
	for _, r := range rows {
		out[r.CheckID] = r.Last
	}
	return out, nil
}

// RecentChecks returns the most-recently-created active checks, newest
// first, for the scheduler's force mode.
func (s *Store) RecentChecks(limit int) ([]MonitoringCheck, error) {
	var checks []MonitoringCheck
	err := s.db.Where("active = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Find(&checks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent checks: %w", err)
	}
	return checks, nil
}

// ListChecks returns a page of checks, newest first, with the total count
func (s *Store) ListChecks(offset, limit int) ([]MonitoringCheck, int64, error) {
	var total int64
	if err := s.db.Model(&MonitoringCheck{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var checks []MonitoringCheck
	err := s.db.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&checks).Error
	if err != nil {
		return nil, 0, err
	}
	return checks, total, nil
}

// ResultsForCheck returns a page of results for a check, newest first,
// with the total count
func (s *Store) ResultsForCheck(checkID uint, offset, limit int) ([]CheckResult, int64, error) {
	var total int64
	err := s.db.Model(&CheckResult{}).
		Where("check_id = ?", checkID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	var results []CheckResult
	err = s.db.Where("check_id = ?", checkID).
		Order("checked_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// CheckByID retrieves a check by ID
func (s *Store) CheckByID(id uint) (*MonitoringCheck, error) {
	var check MonitoringCheck
	if err := s.db.First(&check, id).Error; err != nil {
		return nil, err
	}
	return &check, nil
}

// InsertResult appends a check result. Results are immutable once written.
func (s *Store) InsertResult(result *CheckResult) error {
	return s.db.Create(result).Error
}

// LatestResult returns the most recent result for a check, or nil when the
// check has never run.
func (s *Store) LatestResult(checkID uint) (*CheckResult, error) {
	var result CheckResult
	err := s.db.Where("check_id = ?", checkID).
		Order("checked_at DESC").
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FailingSince returns the start of the current consecutive failure streak
// for a check. ok is false when the check's latest result is a success or
// the check has never run.
func (s *Store) FailingSince(checkID uint) (time.Time, bool, error) {
	latest, err := s.LatestResult(checkID)
	if err != nil {
		return time.Time{}, false, err
	}
	if latest == nil || latest.Success {
		return time.Time{}, false, nil
	}

	// Find the last success; the streak starts with the first failure after it
	var lastSuccess CheckResult
	err = s.db.Where("check_id = ? AND success = ?", checkID, true).
		Order("checked_at DESC").
		First(&lastSuccess).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return time.Time{}, false, err
	}

	query := s.db.Where("check_id = ? AND success = ?", checkID, false)
	if err == nil {
		query = query.Where("checked_at > ?", lastSuccess.CheckedAt)
	}

	var firstFailure CheckResult
	if err := query.Order("checked_at ASC").First(&firstFailure).Error; err != nil {
		return time.Time{}, false, err
	}
	return firstFailure.CheckedAt, true, nil
}

// UptimeRatio returns the percentage of successful results for a check
// since the given time. Returns 100 when no results exist in the window.
func (s *Store) UptimeRatio(checkID uint, since time.Time) (float64, error) {
	var total, up int64
	err := s.db.Model(&CheckResult{}).
		Where("check_id = ? AND checked_at > ?", checkID, since).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 100, nil
	}
	err = s.db.Model(&CheckResult{}).
		Where("check_id = ? AND checked_at > ? AND success = ?", checkID, since, true).
		Count(&up).Error
	if err != nil {
		return 0, err
	}
	return float64(up) / float64(total) * 100, nil
}

// ========== Service status operations ==========

// AssociationsForCheck returns every service association influenced by a check
func (s *Store) AssociationsForCheck(checkID uint) ([]ServiceCheckAssociation, error) {
	var assocs []ServiceCheckAssociation
	if err := s.db.Where("check_id = ?", checkID).Find(&assocs).Error; err != nil {
		return nil, err
	}
	return assocs, nil
}

// ActiveAssociationsForService returns the associations of a service whose
// underlying check is still active. Disabled checks never block recovery.
func (s *Store) ActiveAssociationsForService(serviceID uint) ([]ServiceCheckAssociation, error) {
	var assocs []ServiceCheckAssociation
	err := s.db.
		Joins("JOIN monitoring_checks ON monitoring_checks.id = service_check_associations.check_id").
		Where("service_check_associations.service_id = ? AND monitoring_checks.active = ?", serviceID, true).
		Find(&assocs).Error
	if err != nil {
		return nil, err
	}
	return assocs, nil
}

// ListServices returns every service, name-ordered, for the status overview
func (s *Store) ListServices() ([]Service, error) {
	var services []Service
	if err := s.db.Order("name ASC").Find(&services).Error; err != nil {
		return nil, err
	}
	return services, nil
}

// NarrativesForService returns the most recent status narratives for a
// service, newest first
func (s *Store) NarrativesForService(serviceID uint, limit int) ([]StatusNarrative, error) {
	var narratives []StatusNarrative
	err := s.db.Where("service_id = ?", serviceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&narratives).Error
	if err != nil {
		return nil, err
	}
	return narratives, nil
}

// ServiceByID retrieves a service by ID
func (s *Store) ServiceByID(id uint) (*Service, error) {
	var service Service
	if err := s.db.First(&service, id).Error; err != nil {
		return nil, err
	}
	return &service, nil
}

// UpdateServiceStatus sets a service's status
func (s *Store) UpdateServiceStatus(serviceID uint, status ServiceStatus) error {
	return s.db.Model(&Service{}).
		Where("id = ?", serviceID).
		Update("status", status).Error
}

// InsertNarrative publishes a status narrative
func (s *Store) InsertNarrative(narrative *StatusNarrative) error {
	return s.db.Create(narrative).Error
}

// ========== Escalation operations ==========

// OverdueEscalation pairs an in-flight escalation with its policy and how
// far past its step timeout it is.
type OverdueEscalation struct {
	Escalation IncidentEscalation
	Policy     EscalationPolicy
	Overdue    time.Duration
}

// OverdueEscalations returns every pending or notified escalation whose
// current step has exceeded its timeout, most overdue first, capped at
// limit. Escalations whose step index is already past the end of the
// policy are returned as immediately overdue so the driver can terminate
// them; escalations referencing a missing policy are skipped.
func (s *Store) OverdueEscalations(now time.Time, limit int) ([]OverdueEscalation, error) {
	var escalations []IncidentEscalation
	err := s.db.Where("status IN ?", []EscalationStatus{
		EscalationStatusPending,
		EscalationStatusNotified,
	}).Find(&escalations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active escalations: %w", err)
	}
	if len(escalations) == 0 {
		return nil, nil
	}

	policyIDs := make([]uint, 0, len(escalations))
	seen := make(map[uint]bool)
	for _, e := range escalations {
		if !seen[e.PolicyID] {
			seen[e.PolicyID] = true
			policyIDs = append(policyIDs, e.PolicyID)
		}
	}

	var policies []EscalationPolicy
	err = s.db.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("escalation_steps.level ASC")
	}).Preload("Steps.Targets", func(db *gorm.DB) *gorm.DB {
		return db.Order("escalation_targets.position ASC")
	}).Where("id IN ?", policyIDs).Find(&policies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load escalation policies: %w", err)
	}

	policyByID := make(map[uint]EscalationPolicy, len(policies))
	for _, p := range policies {
		policyByID[p.ID] = p
	}

	var overdue []OverdueEscalation
	for _, e := range escalations {
		policy, ok := policyByID[e.PolicyID]
		if !ok {
			continue
		}
		deadline := e.StepStartedAt()
		if step := policy.StepAt(e.CurrentStep); step != nil {
			deadline = deadline.Add(step.StepTimeout())
		}
		if now.After(deadline) {
			overdue = append(overdue, OverdueEscalation{
				Escalation: e,
				Policy:     policy,
				Overdue:    now.Sub(deadline),
			})
		}
	}

	sort.SliceStable(overdue, func(i, j int) bool {
		return overdue[i].Overdue > overdue[j].Overdue
	})

	if limit > 0 && len(overdue) > limit {
		overdue = overdue[:limit]
	}
	return overdue, nil
}

// IncidentByID retrieves an incident by ID
func (s *Store) IncidentByID(id uint) (*Incident, error) {
	var incident Incident
	if err := s.db.First(&incident, id).Error; err != nil {
		return nil, err
	}
	return &incident, nil
}

// PolicyByID retrieves a policy with its ordered steps and targets
func (s *Store) PolicyByID(id uint) (*EscalationPolicy, error) {
	var policy EscalationPolicy
	err := s.db.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("escalation_steps.level ASC")
	}).Preload("Steps.Targets", func(db *gorm.DB) *gorm.DB {
		return db.Order("escalation_targets.position ASC")
	}).First(&policy, id).Error
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

// UpdateEscalation applies a partial update to an escalation record
func (s *Store) UpdateEscalation(escalationID uint, updates map[string]interface{}) error {
	return s.db.Model(&IncidentEscalation{}).
		Where("id = ?", escalationID).
		Updates(updates).Error
}

// ScheduleWithMembers retrieves an on-call schedule with its rotation
// members ordered by position, users preloaded.
func (s *Store) ScheduleWithMembers(id uint) (*OnCallSchedule, error) {
	var schedule OnCallSchedule
	err := s.db.Preload("Members", func(db *gorm.DB) *gorm.DB {
		return db.Order("schedule_members.position ASC")
	}).Preload("Members.User").First(&schedule, id).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

// TeamWithMembers retrieves a team with its members, users preloaded
func (s *Store) TeamWithMembers(id uint) (*Team, error) {
	var team Team
	err := s.db.Preload("Members").Preload("Members.User").First(&team, id).Error
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// UserByID retrieves a user by ID
func (s *Store) UserByID(id uint) (*User, error) {
	var user User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
