// Package testhelpers: data builders for the domain models
package testhelpers

import (
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// ========================================
// Check Builder
// ========================================

// CheckBuilder builds MonitoringCheck instances for testing
type CheckBuilder struct {
	check database.MonitoringCheck
}

// NewCheckBuilder creates a new check builder with defaults
func NewCheckBuilder() *CheckBuilder {
	return &CheckBuilder{
		check: database.MonitoringCheck{
			Name:            "test-check",
			Type:            database.CheckTypeHTTP,
			Target:          "https://example.com/health",
			IntervalSeconds: 60,
			TimeoutSeconds:  5,
			Active:          true,
		},
	}
}

// WithName sets the check name
func (b *CheckBuilder) WithName(name string) *CheckBuilder {
	b.check.Name = name
	return b
}

// WithType sets the check type
func (b *CheckBuilder) WithType(t database.CheckType) *CheckBuilder {
	b.check.Type = t
	return b
}

// WithTarget sets the probe target
func (b *CheckBuilder) WithTarget(target string) *CheckBuilder {
	b.check.Target = target
	return b
}

// WithPort sets the TCP port
func (b *CheckBuilder) WithPort(port int) *CheckBuilder {
	b.check.Port = port
	return b
}

// WithInterval sets the check interval in seconds
func (b *CheckBuilder) WithInterval(seconds int) *CheckBuilder {
	b.check.IntervalSeconds = seconds
	return b
}

// WithTimeout sets the probe timeout in seconds
func (b *CheckBuilder) WithTimeout(seconds int) *CheckBuilder {
	b.check.TimeoutSeconds = seconds
	return b
}

// WithKeyword sets the keyword rule
func (b *CheckBuilder) WithKeyword(keyword string, mode database.KeywordMatchMode) *CheckBuilder {
	b.check.Keyword = keyword
	b.check.KeywordMatchMode = mode
	return b
}

// WithExpectedStatusCodes sets the expected status code list
func (b *CheckBuilder) WithExpectedStatusCodes(codes string) *CheckBuilder {
	b.check.ExpectedStatusCodes = codes
	return b
}

// Inactive disables the check
func (b *CheckBuilder) Inactive() *CheckBuilder {
	b.check.Active = false
	return b
}

// Build returns the constructed check
func (b *CheckBuilder) Build() database.MonitoringCheck {
	return b.check
}

// ========================================
// Service Builder
// ========================================

// ServiceBuilder builds Service instances for testing
type ServiceBuilder struct {
	service database.Service
}

// NewServiceBuilder creates a new service builder with defaults
func NewServiceBuilder() *ServiceBuilder {
	return &ServiceBuilder{
		service: database.Service{
			Name:         "test-service",
			Status:       database.ServiceStatusOperational,
			AutoRecovery: true,
		},
	}
}

// WithName sets the service name
func (b *ServiceBuilder) WithName(name string) *ServiceBuilder {
	b.service.Name = name
	return b
}

// WithStatus sets the current status
func (b *ServiceBuilder) WithStatus(status database.ServiceStatus) *ServiceBuilder {
	b.service.Status = status
	return b
}

// WithoutAutoRecovery disables auto recovery
func (b *ServiceBuilder) WithoutAutoRecovery() *ServiceBuilder {
	b.service.AutoRecovery = false
	return b
}

// Build returns the constructed service
func (b *ServiceBuilder) Build() database.Service {
	return b.service
}

// ========================================
// Incident Builder
// ========================================

// IncidentBuilder builds Incident instances for testing
type IncidentBuilder struct {
	incident database.Incident
}

// NewIncidentBuilder creates a new incident builder with defaults
func NewIncidentBuilder() *IncidentBuilder {
	return &IncidentBuilder{
		incident: database.Incident{
			Title:     "Test Incident",
			Status:    database.IncidentStatusOpen,
			Severity:  database.IncidentSeverityMedium,
			CreatedAt: time.Now(),
		},
	}
}

// WithTitle sets the title
func (b *IncidentBuilder) WithTitle(title string) *IncidentBuilder {
	b.incident.Title = title
	return b
}

// WithStatus sets the status
func (b *IncidentBuilder) WithStatus(status database.IncidentStatus) *IncidentBuilder {
	b.incident.Status = status
	return b
}

// WithSeverity sets the severity
func (b *IncidentBuilder) WithSeverity(severity database.IncidentSeverity) *IncidentBuilder {
	b.incident.Severity = severity
	return b
}

// WithServiceID sets the affected service
func (b *IncidentBuilder) WithServiceID(id uint) *IncidentBuilder {
	b.incident.ServiceID = id
	return b
}

// Build returns the constructed incident
func (b *IncidentBuilder) Build() database.Incident {
	return b.incident
}

// ========================================
// User Builder
// ========================================

// UserBuilder builds User instances for testing
type UserBuilder struct {
	user database.User
}

// NewUserBuilder creates a new user builder with defaults
func NewUserBuilder(name, email string) *UserBuilder {
	return &UserBuilder{
		user: database.User{
			Name:   name,
			Email:  email,
			Active: true,
		},
	}
}

// WithPhone sets the phone number
func (b *UserBuilder) WithPhone(phone string) *UserBuilder {
	b.user.Phone = phone
	return b
}

// Inactive marks the user inactive
func (b *UserBuilder) Inactive() *UserBuilder {
	b.user.Active = false
	return b
}

// Build returns the constructed user
func (b *UserBuilder) Build() database.User {
	return b.user
}

// ========================================
// Escalation Policy Builder
// ========================================

// PolicyBuilder builds EscalationPolicy instances with steps and targets
type PolicyBuilder struct {
	policy database.EscalationPolicy
}

// NewPolicyBuilder creates a new policy builder
func NewPolicyBuilder(name string) *PolicyBuilder {
	return &PolicyBuilder{
		policy: database.EscalationPolicy{Name: name},
	}
}

// WithStep appends a step at the next level with the given timeout and targets
func (b *PolicyBuilder) WithStep(timeoutMinutes int, targets ...database.EscalationTarget) *PolicyBuilder {
	level := len(b.policy.Steps)
	for i := range targets {
		targets[i].Position = i
	}
	b.policy.Steps = append(b.policy.Steps, database.EscalationStep{
		Level:          level,
		TimeoutMinutes: timeoutMinutes,
		Targets:        targets,
	})
	return b
}

// Build returns the constructed policy
func (b *PolicyBuilder) Build() database.EscalationPolicy {
	return b.policy
}

// UserTarget builds a user escalation target
func UserTarget(userID uint) database.EscalationTarget {
	return database.EscalationTarget{Kind: database.TargetKindUser, TargetID: userID}
}

// ScheduleTarget builds a schedule escalation target
func ScheduleTarget(scheduleID uint) database.EscalationTarget {
	return database.EscalationTarget{Kind: database.TargetKindSchedule, TargetID: scheduleID}
}

// TeamTarget builds a team escalation target
func TeamTarget(teamID uint) database.EscalationTarget {
	return database.EscalationTarget{Kind: database.TargetKindTeam, TargetID: teamID}
}
