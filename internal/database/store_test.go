package database

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return NewStore(db)
}

func mustCreate(t *testing.T, s *Store, value interface{}) {
	t.Helper()
	if err := s.DB().Create(value).Error; err != nil {
		t.Fatalf("failed to create %T: %v", value, err)
	}
}

// --- Due check selection ---

func TestDueChecksNeverCheckedIsDue(t *testing.T) {
	s := setupTestStore(t)
	mustCreate(t, s, &MonitoringCheck{Name: "fresh", Type: CheckTypeHTTP, Target: "https://a", IntervalSeconds: 60, Active: true})

	due, err := s.DueChecks(time.Now(), 10)
	if err != nil {
		t.Fatalf("DueChecks: %v", err)
	}
	if len(due) != 1 || due[0].Name != "fresh" {
		t.Fatalf("expected the never-checked check to be due, got %v", due)
	}
}

func TestDueChecksRespectsInterval(t *testing.T) {
	s := setupTestStore(t)
	check := MonitoringCheck{Name: "c", Type: CheckTypeHTTP, Target: "https://a", IntervalSeconds: 60, Active: true}
	mustCreate(t, s, &check)

	now := time.Now()

	// A result 30s ago: not due for a 60s interval
	mustCreate(t, s, &CheckResult{CheckID: check.ID, Success: true, CheckedAt: now.Add(-30 * time.Second)})
	due, err := s.DueChecks(now, 10)
	if err != nil {
		t.Fatalf("DueChecks: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected no due checks, got %d", len(due))
	}

	// A result 90s ago: due
	s.DB().Where("check_id = ?", check.ID).Delete(&CheckResult{})
	mustCreate(t, s, &CheckResult{CheckID: check.ID, Success: true, CheckedAt: now.Add(-90 * time.Second)})
	due, err = s.DueChecks(now, 10)
	if err != nil {
		t.Fatalf("DueChecks: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due check, got %d", len(due))
	}
}

func TestDueChecksSkipsInactive(t *testing.T) {
	s := setupTestStore(t)
	mustCreate(t, s, &MonitoringCheck{Name: "off", Type: CheckTypeHTTP, Target: "https://a", IntervalSeconds: 60, Active: false})

	due, err := s.DueChecks(time.Now(), 10)
	if err != nil {
		t.Fatalf("DueChecks: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected inactive check to be skipped, got %d", len(due))
	}
}

func TestDueChecksOrderAndLimit(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now()

	older := MonitoringCheck{Name: "older", Type: CheckTypeHTTP, Target: "https://a", IntervalSeconds: 60, Active: true}
	newer := MonitoringCheck{Name: "newer", Type: CheckTypeHTTP, Target: "https://b", IntervalSeconds: 60, Active: true}
	never := MonitoringCheck{Name: "never", Type: CheckTypeHTTP, Target: "https://c", IntervalSeconds: 60, Active: true}
	mustCreate(t, s, &older)
	mustCreate(t, s, &newer)
	mustCreate(t, s, &never)

	mustCreate(t, s, &CheckResult{CheckID: older.ID, Success: true, CheckedAt: now.Add(-10 * time.Minute)})
	mustCreate(t, s, &CheckResult{CheckID: newer.ID, Success: true, CheckedAt: now.Add(-5 * time.Minute)})

	due, err := s.DueChecks(now, 10)
	if err != nil {
		t.Fatalf("DueChecks: %v", err)
	}
	if len(due) != 3 {
		t.Fatalf("expected 3 due checks, got %d", len(due))
	}
	// Never-checked first, then least recently checked
	if due[0].Name != "never" || due[1].Name != "older" || due[2].Name != "newer" {
		t.Errorf("unexpected order: %s, %s, %s", due[0].Name, due[1].Name, due[2].Name)
	}

	// Limit caps the batch
	due, err = s.DueChecks(now, 2)
	if err != nil {
		t.Fatalf("DueChecks: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(due))
	}
}

func TestRecentChecks(t *testing.T) {
	s := setupTestStore(t)
	base := time.Now()
	for i, name := range []string{"first", "second", "third"} {
		mustCreate(t, s, &MonitoringCheck{
			Name: name, Type: CheckTypeHTTP, Target: "https://x",
			Active: true, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	recent, err := s.RecentChecks(2)
	if err != nil {
		t.Fatalf("RecentChecks: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(recent))
	}
	if recent[0].Name != "third" || recent[1].Name != "second" {
		t.Errorf("unexpected order: %s, %s", recent[0].Name, recent[1].Name)
	}
}

// --- Result queries ---

func TestLatestResultNilWhenNeverRun(t *testing.T) {
	s := setupTestStore(t)
	check := MonitoringCheck{Name: "c", Type: CheckTypeTCP, Target: "db", Port: 5432, Active: true}
	mustCreate(t, s, &check)

	latest, err := s.LatestResult(check.ID)
	if err != nil {
		t.Fatalf("LatestResult: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected nil, got %v", latest)
	}
}

func TestFailingSinceStreakStart(t *testing.T) {
	s := setupTestStore(t)
	check := MonitoringCheck{Name: "c", Type: CheckTypeHTTP, Target: "https://a", Active: true}
	mustCreate(t, s, &check)
	now := time.Now()

	mustCreate(t, s, &CheckResult{CheckID: check.ID, Success: true, CheckedAt: now.Add(-20 * time.Minute)})
	mustCreate(t, s, &CheckResult{CheckID: check.ID, Success: false, CheckedAt: now.Add(-15 * time.Minute)})
	mustCreate(t, s, &CheckResult{CheckID: check.ID, Success: false, CheckedAt: now.Add(-10 * time.Minute)})

	since, failing, err := s.FailingSince(check.ID)
	if err != nil {
		t.Fatalf("FailingSince: %v", err)
	}
	if !failing {
		t.Fatal("expected failing streak")
	}
	want := now.Add(-15 * time.Minute)
	if since.Sub(want) > time.Second || want.Sub(since) > time.Second {
		t.Errorf("streak start = %v, want ~%v", since, want)
	}
}

func TestFailingSinceClearedBySuccess(t *testing.T) {
	s := setupTestStore(t)
	check := MonitoringCheck{Name: "c", Type: CheckTypeHTTP, Target: "https://a", Active: true}
	mustCreate(t, s, &check)
	now := time.Now()

	mustCreate(t, s, &CheckResult{CheckID: check.ID, Success: false, CheckedAt: now.Add(-10 * time.Minute)})
	mustCreate(t, s, &CheckResult{CheckID: check.ID, Success: true, CheckedAt: now.Add(-5 * time.Minute)})

	_, failing, err := s.FailingSince(check.ID)
	if err != nil {
		t.Fatalf("FailingSince: %v", err)
	}
	if failing {
		t.Fatal("expected streak cleared after success")
	}
}

func TestFailingSinceAllFailures(t *testing.T) {
	s := setupTestStore(t)
	check := MonitoringCheck{Name: "c", Type: CheckTypeHTTP, Target: "https://a", Active: true}
	mustCreate(t, s, &check)
	now := time.Now()

	mustCreate(t, s, &CheckResult{CheckID: check.ID, Success: false, CheckedAt: now.Add(-30 * time.Minute)})
	mustCreate(t, s, &CheckResult{CheckID: check.ID, Success: false, CheckedAt: now.Add(-20 * time.Minute)})

	since, failing, err := s.FailingSince(check.ID)
	if err != nil {
		t.Fatalf("FailingSince: %v", err)
	}
	if !failing {
		t.Fatal("expected failing streak")
	}
	want := now.Add(-30 * time.Minute)
	if since.Sub(want) > time.Second || want.Sub(since) > time.Second {
		t.Errorf("streak start = %v, want ~%v", since, want)
	}
}

func TestUptimeRatio(t *testing.T) {
	s := setupTestStore(t)
	check := MonitoringCheck{Name: "c", Type: CheckTypeHTTP, Target: "https://a", Active: true}
	mustCreate(t, s, &check)
	now := time.Now()

	for i := 0; i < 3; i++ {
		mustCreate(t, s, &CheckResult{CheckID: check.ID, Success: true, CheckedAt: now.Add(-time.Duration(i+1) * time.Minute)})
	}
	mustCreate(t, s, &CheckResult{CheckID: check.ID, Success: false, CheckedAt: now.Add(-4 * time.Minute)})

	ratio, err := s.UptimeRatio(check.ID, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("UptimeRatio: %v", err)
	}
	if ratio != 75 {
		t.Errorf("ratio = %v, want 75", ratio)
	}
}

func TestUptimeRatioEmptyWindow(t *testing.T) {
	s := setupTestStore(t)
	check := MonitoringCheck{Name: "c", Type: CheckTypeHTTP, Target: "https://a", Active: true}
	mustCreate(t, s, &check)

	ratio, err := s.UptimeRatio(check.ID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("UptimeRatio: %v", err)
	}
	if ratio != 100 {
		t.Errorf("ratio = %v, want 100 for empty window", ratio)
	}
}

func TestResultsForCheckPagination(t *testing.T) {
	s := setupTestStore(t)
	check := MonitoringCheck{Name: "c", Type: CheckTypeHTTP, Target: "https://a", Active: true}
	mustCreate(t, s, &check)
	now := time.Now()

	for i := 0; i < 5; i++ {
		mustCreate(t, s, &CheckResult{CheckID: check.ID, Success: true, CheckedAt: now.Add(-time.Duration(i) * time.Minute)})
	}

	results, total, err := s.ResultsForCheck(check.ID, 0, 2)
	if err != nil {
		t.Fatalf("ResultsForCheck: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(results) != 2 {
		t.Fatalf("len = %d, want 2", len(results))
	}
	if !results[0].CheckedAt.After(results[1].CheckedAt) {
		t.Error("expected newest first")
	}
}

// --- Service status ---

func TestActiveAssociationsForServiceFiltersInactiveChecks(t *testing.T) {
	s := setupTestStore(t)

	service := Service{Name: "svc", Status: ServiceStatusOperational, AutoRecovery: true}
	mustCreate(t, s, &service)

	active := MonitoringCheck{Name: "on", Type: CheckTypeHTTP, Target: "https://a", Active: true}
	inactive := MonitoringCheck{Name: "off", Type: CheckTypeHTTP, Target: "https://b", Active: false}
	mustCreate(t, s, &active)
	mustCreate(t, s, &inactive)

	mustCreate(t, s, &ServiceCheckAssociation{ServiceID: service.ID, CheckID: active.ID})
	mustCreate(t, s, &ServiceCheckAssociation{ServiceID: service.ID, CheckID: inactive.ID})

	assocs, err := s.ActiveAssociationsForService(service.ID)
	if err != nil {
		t.Fatalf("ActiveAssociationsForService: %v", err)
	}
	if len(assocs) != 1 || assocs[0].CheckID != active.ID {
		t.Fatalf("expected only the active check's association, got %v", assocs)
	}
}

func TestUpdateServiceStatusAndNarrative(t *testing.T) {
	s := setupTestStore(t)
	service := Service{Name: "svc", Status: ServiceStatusOperational}
	mustCreate(t, s, &service)

	if err := s.UpdateServiceStatus(service.ID, ServiceStatusDown); err != nil {
		t.Fatalf("UpdateServiceStatus: %v", err)
	}
	got, err := s.ServiceByID(service.ID)
	if err != nil {
		t.Fatalf("ServiceByID: %v", err)
	}
	if got.Status != ServiceStatusDown {
		t.Errorf("status = %s, want down", got.Status)
	}

	narrative := &StatusNarrative{ServiceID: service.ID, Status: ServiceStatusDown, Message: "svc is down"}
	if err := s.InsertNarrative(narrative); err != nil {
		t.Fatalf("InsertNarrative: %v", err)
	}
	if narrative.UUID == "" {
		t.Error("expected narrative UUID to be assigned")
	}

	narratives, err := s.NarrativesForService(service.ID, 10)
	if err != nil {
		t.Fatalf("NarrativesForService: %v", err)
	}
	if len(narratives) != 1 || narratives[0].Message != "svc is down" {
		t.Fatalf("unexpected narratives %v", narratives)
	}
}

// --- Escalations ---

func seedPolicy(t *testing.T, s *Store, timeouts ...int) EscalationPolicy {
	t.Helper()
	policy := EscalationPolicy{Name: "p"}
	mustCreate(t, s, &policy)
	for level, timeout := range timeouts {
		step := EscalationStep{PolicyID: policy.ID, Level: level, TimeoutMinutes: timeout}
		mustCreate(t, s, &step)
	}
	loaded, err := s.PolicyByID(policy.ID)
	if err != nil {
		t.Fatalf("PolicyByID: %v", err)
	}
	return *loaded
}

func TestOverdueEscalationsSelectsExpiredSteps(t *testing.T) {
	s := setupTestStore(t)
	policy := seedPolicy(t, s, 15, 30)

	incident := Incident{Title: "inc", Status: IncidentStatusOpen, Severity: IncidentSeverityHigh}
	mustCreate(t, s, &incident)

	now := time.Now()
	overdueEsc := IncidentEscalation{
		IncidentID: incident.ID, PolicyID: policy.ID,
		Status: EscalationStatusPending, StartedAt: now.Add(-20 * time.Minute),
	}
	freshEsc := IncidentEscalation{
		IncidentID: incident.ID, PolicyID: policy.ID,
		Status: EscalationStatusPending, StartedAt: now.Add(-5 * time.Minute),
	}
	mustCreate(t, s, &overdueEsc)
	mustCreate(t, s, &freshEsc)

	overdue, err := s.OverdueEscalations(now, 10)
	if err != nil {
		t.Fatalf("OverdueEscalations: %v", err)
	}
	if len(overdue) != 1 {
		t.Fatalf("expected 1 overdue escalation, got %d", len(overdue))
	}
	if overdue[0].Escalation.ID != overdueEsc.ID {
		t.Errorf("wrong escalation selected")
	}
	if len(overdue[0].Policy.Steps) != 2 {
		t.Errorf("expected preloaded steps, got %d", len(overdue[0].Policy.Steps))
	}
}

func TestOverdueEscalationsUsesLastNotifiedAt(t *testing.T) {
	s := setupTestStore(t)
	policy := seedPolicy(t, s, 15, 30)

	incident := Incident{Title: "inc", Status: IncidentStatusOpen}
	mustCreate(t, s, &incident)

	now := time.Now()
	notified := now.Add(-10 * time.Minute)
	esc := IncidentEscalation{
		IncidentID: incident.ID, PolicyID: policy.ID,
		CurrentStep: 1, Status: EscalationStatusNotified,
		StartedAt: now.Add(-2 * time.Hour), LastNotifiedAt: &notified,
	}
	mustCreate(t, s, &esc)

	// Step 1 has a 30 minute timeout; notified 10 minutes ago is not overdue
	overdue, err := s.OverdueEscalations(now, 10)
	if err != nil {
		t.Fatalf("OverdueEscalations: %v", err)
	}
	if len(overdue) != 0 {
		t.Fatalf("expected no overdue escalations, got %d", len(overdue))
	}
}

func TestOverdueEscalationsPastPolicyEnd(t *testing.T) {
	s := setupTestStore(t)
	policy := seedPolicy(t, s, 15)

	incident := Incident{Title: "inc", Status: IncidentStatusOpen}
	mustCreate(t, s, &incident)

	now := time.Now()
	notified := now.Add(-time.Minute)
	esc := IncidentEscalation{
		IncidentID: incident.ID, PolicyID: policy.ID,
		CurrentStep: 1, Status: EscalationStatusNotified,
		StartedAt: now.Add(-time.Hour), LastNotifiedAt: &notified,
	}
	mustCreate(t, s, &esc)

	// Step index 1 is past the single-step policy: immediately overdue so
	// the driver can terminate it
	overdue, err := s.OverdueEscalations(now, 10)
	if err != nil {
		t.Fatalf("OverdueEscalations: %v", err)
	}
	if len(overdue) != 1 {
		t.Fatalf("expected exhausted escalation to surface, got %d", len(overdue))
	}
}

func TestOverdueEscalationsSkipsTerminalStates(t *testing.T) {
	s := setupTestStore(t)
	policy := seedPolicy(t, s, 1)

	incident := Incident{Title: "inc", Status: IncidentStatusOpen}
	mustCreate(t, s, &incident)

	for _, status := range []EscalationStatus{
		EscalationStatusCancelled,
		EscalationStatusEscalated,
		EscalationStatusResolved,
	} {
		mustCreate(t, s, &IncidentEscalation{
			IncidentID: incident.ID, PolicyID: policy.ID,
			Status: status, StartedAt: time.Now().Add(-time.Hour),
		})
	}

	overdue, err := s.OverdueEscalations(time.Now(), 10)
	if err != nil {
		t.Fatalf("OverdueEscalations: %v", err)
	}
	if len(overdue) != 0 {
		t.Fatalf("expected terminal escalations to be skipped, got %d", len(overdue))
	}
}

func TestUpdateEscalation(t *testing.T) {
	s := setupTestStore(t)
	policy := seedPolicy(t, s, 1)
	incident := Incident{Title: "inc", Status: IncidentStatusOpen}
	mustCreate(t, s, &incident)

	esc := IncidentEscalation{IncidentID: incident.ID, PolicyID: policy.ID, Status: EscalationStatusPending, StartedAt: time.Now()}
	mustCreate(t, s, &esc)

	now := time.Now()
	err := s.UpdateEscalation(esc.ID, map[string]interface{}{
		"status":           EscalationStatusNotified,
		"current_step":     1,
		"last_notified_at": now,
	})
	if err != nil {
		t.Fatalf("UpdateEscalation: %v", err)
	}

	var got IncidentEscalation
	if err := s.DB().First(&got, esc.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != EscalationStatusNotified || got.CurrentStep != 1 || got.LastNotifiedAt == nil {
		t.Errorf("unexpected state after update: %+v", got)
	}
}

// --- People resolution ---

func TestScheduleWithMembersOrdering(t *testing.T) {
	s := setupTestStore(t)

	alice := User{Name: "Alice", Email: "alice@example.com", Active: true}
	bob := User{Name: "Bob", Email: "bob@example.com", Active: true}
	mustCreate(t, s, &alice)
	mustCreate(t, s, &bob)

	schedule := OnCallSchedule{Name: "primary"}
	mustCreate(t, s, &schedule)
	mustCreate(t, s, &ScheduleMember{ScheduleID: schedule.ID, UserID: bob.ID, Position: 1})
	mustCreate(t, s, &ScheduleMember{ScheduleID: schedule.ID, UserID: alice.ID, Position: 0})

	got, err := s.ScheduleWithMembers(schedule.ID)
	if err != nil {
		t.Fatalf("ScheduleWithMembers: %v", err)
	}
	if len(got.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(got.Members))
	}
	if got.Members[0].User.Name != "Alice" {
		t.Errorf("expected Alice first by position, got %s", got.Members[0].User.Name)
	}
}
