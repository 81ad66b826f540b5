package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// CheckType represents the kind of network probe a check performs
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
	CheckTypePing CheckType = "ping"
	CheckTypeSSL  CheckType = "ssl"
)

// KeywordMatchMode controls how a keyword rule is evaluated against a response body
type KeywordMatchMode string

const (
	KeywordMatchContains KeywordMatchMode = "contains"
	KeywordMatchExact    KeywordMatchMode = "exact"
	KeywordMatchPattern  KeywordMatchMode = "pattern"
)

// MonitoringCheck is a configured, repeatable probe against a target
type MonitoringCheck struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:255;not null" json:"name"`
	Type            CheckType `gorm:"type:varchar(20);not null;index" json:"type"`
	Target          string    `gorm:"size:2048;not null" json:"target"` // URL for http/ssl, host for tcp/ping
	Port            int       `json:"port"`                             // tcp only
	Method          string    `gorm:"size:10" json:"method"`            // http only, defaults to GET
	Headers         JSONB     `gorm:"type:jsonb" json:"headers"`        // http only, extra request headers
	IntervalSeconds int       `gorm:"default:60" json:"interval_seconds"`
	TimeoutSeconds  int       `gorm:"default:30" json:"timeout_seconds"`

	// Expected result configuration (http only)
	ExpectedStatusCodes  string           `gorm:"size:255" json:"expected_status_codes"` // comma-separated, empty = any 2xx/3xx
	Keyword              string           `gorm:"size:512" json:"keyword"`
	KeywordMatchMode     KeywordMatchMode `gorm:"type:varchar(20);default:'contains'" json:"keyword_match_mode"`
	KeywordCaseSensitive bool             `gorm:"default:false" json:"keyword_case_sensitive"`

	// Checks are soft-disabled, never deleted while results reference them
	// No gorm default on purpose: a default tag makes gorm drop explicit
	// false values at insert, which would resurrect disabled checks.
	Active    bool      `gorm:"index" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Interval returns the check interval as a duration
func (c *MonitoringCheck) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Timeout returns the probe timeout as a duration
func (c *MonitoringCheck) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ExpectedSet parses ExpectedStatusCodes into a set of status codes.
// Returns nil when no explicit codes are configured.
func (c *MonitoringCheck) ExpectedSet() map[int]bool {
	if strings.TrimSpace(c.ExpectedStatusCodes) == "" {
		return nil
	}
	set := make(map[int]bool)
	for _, part := range strings.Split(c.ExpectedStatusCodes, ",") {
		code, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		set[code] = true
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// CheckResult is one probe execution outcome. Append-only: never mutated
// or deleted once written.
type CheckResult struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CheckID    uint      `gorm:"not null;index:idx_check_results_check_time" json:"check_id"`
	Location   string    `gorm:"size:64" json:"location"` // probe location identifier, empty for default
	Success    bool      `gorm:"index" json:"success"`
	LatencyMS  int64     `json:"latency_ms"`
	StatusCode int       `json:"status_code"`
	Error      string    `gorm:"type:text" json:"error"`
	Evidence   JSONB     `gorm:"type:jsonb" json:"evidence"` // headers, body snippet, keyword match detail
	CheckedAt  time.Time `gorm:"not null;index:idx_check_results_check_time" json:"checked_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// BeforeCreate hook to set CheckedAt
func (r *CheckResult) BeforeCreate(tx *gorm.DB) error {
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now()
	}
	return nil
}

// ServiceStatus represents the displayed health of a service
type ServiceStatus string

const (
	ServiceStatusOperational ServiceStatus = "operational"
	ServiceStatusDegraded    ServiceStatus = "degraded"
	ServiceStatusDown        ServiceStatus = "down"
	ServiceStatusMaintenance ServiceStatus = "maintenance"
)

// Service is a health-tracked unit shown on status pages. Status is the only
// field the engine mutates; everything else is external CRUD.
type Service struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	Name         string        `gorm:"size:255;not null" json:"name"`
	Status       ServiceStatus `gorm:"type:varchar(20);not null;default:'operational'" json:"status"`
	AutoRecovery bool          `json:"auto_recovery"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// AssociationImpact controls which state a service enters when the
// associated check fails past its threshold
type AssociationImpact string

const (
	ImpactDown     AssociationImpact = "down"
	ImpactDegraded AssociationImpact = "degraded"
)

// ServiceCheckAssociation links a service to a check that influences its health
type ServiceCheckAssociation struct {
	ID                      uint              `gorm:"primaryKey" json:"id"`
	ServiceID               uint              `gorm:"not null;index" json:"service_id"`
	CheckID                 uint              `gorm:"not null;index" json:"check_id"`
	// No gorm default: zero is a valid threshold (impact on first failure)
	// and a default tag would overwrite it at insert.
	FailureThresholdMinutes int               `json:"failure_threshold_minutes"`
	Impact                  AssociationImpact `gorm:"type:varchar(20);default:'down'" json:"impact"`
	CustomFailureMessage    string            `gorm:"type:text" json:"custom_failure_message"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
}

// FailureThreshold returns the threshold as a duration
func (a *ServiceCheckAssociation) FailureThreshold() time.Duration {
	if a.FailureThresholdMinutes < 0 {
		return 0
	}
	return time.Duration(a.FailureThresholdMinutes) * time.Minute
}

// StatusNarrative is a published note attached to a service status transition
type StatusNarrative struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	UUID      string        `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	ServiceID uint          `gorm:"not null;index" json:"service_id"`
	Status    ServiceStatus `gorm:"type:varchar(20);not null" json:"status"`
	Message   string        `gorm:"type:text" json:"message"`
	CreatedAt time.Time     `json:"created_at"`
}

// BeforeCreate hook to assign a UUID
func (n *StatusNarrative) BeforeCreate(tx *gorm.DB) error {
	if n.UUID == "" {
		n.UUID = uuid.NewString()
	}
	return nil
}

// User is a notification recipient
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Phone     string    `gorm:"size:64" json:"phone"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Team is a group of users notified together
type Team struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Members []TeamMember `gorm:"foreignKey:TeamID" json:"members,omitempty"`
}

// TeamMember links a user to a team
type TeamMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    uint      `gorm:"not null;index" json:"team_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// OnCallSchedule is a named rotation of users, one of whom is on duty
type OnCallSchedule struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Members []ScheduleMember `gorm:"foreignKey:ScheduleID" json:"members,omitempty"`
}

// ScheduleMember is one slot in an on-call rotation, ordered by Position
type ScheduleMember struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ScheduleID uint      `gorm:"not null;index" json:"schedule_id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	Position   int       `gorm:"not null" json:"position"`
	CreatedAt  time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// IncidentStatus represents the lifecycle of an incident
type IncidentStatus string

const (
	IncidentStatusOpen         IncidentStatus = "open"
	IncidentStatusAcknowledged IncidentStatus = "acknowledged"
	IncidentStatusResolved     IncidentStatus = "resolved"
)

// IncidentSeverity represents the impact level of an incident
type IncidentSeverity string

const (
	IncidentSeverityLow      IncidentSeverity = "low"
	IncidentSeverityMedium   IncidentSeverity = "medium"
	IncidentSeverityHigh     IncidentSeverity = "high"
	IncidentSeverityCritical IncidentSeverity = "critical"
)

// IsUrgent reports whether the severity warrants phone-based channels
func (s IncidentSeverity) IsUrgent() bool {
	return s == IncidentSeverityHigh || s == IncidentSeverityCritical
}

// Incident is the unit of work an escalation walks a policy for.
// Created and resolved by external surfaces; read-only to the engine.
type Incident struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	UUID           string           `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	ServiceID      uint             `gorm:"index" json:"service_id"`
	Title          string           `gorm:"size:255" json:"title"`
	Status         IncidentStatus   `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	Severity       IncidentSeverity `gorm:"type:varchar(20);not null;default:'medium'" json:"severity"`
	AcknowledgedAt *time.Time       `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time       `json:"resolved_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// BeforeCreate hook to assign a UUID
func (i *Incident) BeforeCreate(tx *gorm.DB) error {
	if i.UUID == "" {
		i.UUID = uuid.NewString()
	}
	return nil
}

// IsOpen reports whether the incident still warrants escalation
func (i *Incident) IsOpen() bool {
	return i.Status == IncidentStatusOpen
}

// EscalationPolicy is an ordered list of escalation steps. Read-only to the engine.
type EscalationPolicy struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID uint      `gorm:"index" json:"organization_id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Steps []EscalationStep `gorm:"foreignKey:PolicyID" json:"steps,omitempty"`
}

// StepAt returns the step for the given zero-based level, or nil past the end
func (p *EscalationPolicy) StepAt(level int) *EscalationStep {
	for i := range p.Steps {
		if p.Steps[i].Level == level {
			return &p.Steps[i]
		}
	}
	return nil
}

// EscalationStep is one level in a policy. Immutable once a policy version
// is in use by an in-flight escalation.
type EscalationStep struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	PolicyID       uint      `gorm:"not null;index" json:"policy_id"`
	Level          int       `gorm:"not null" json:"level"`
	TimeoutMinutes int       `gorm:"default:15" json:"timeout_minutes"`
	CreatedAt      time.Time `json:"created_at"`

	Targets []EscalationTarget `gorm:"foreignKey:StepID" json:"targets,omitempty"`
}

// StepTimeout returns the step timeout as a duration
func (s *EscalationStep) StepTimeout() time.Duration {
	if s.TimeoutMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.TimeoutMinutes) * time.Minute
}

// TargetKind discriminates the escalation target variants
type TargetKind string

const (
	TargetKindUser     TargetKind = "user"
	TargetKindSchedule TargetKind = "schedule"
	TargetKindTeam     TargetKind = "team"
)

// EscalationTarget names one notification target within a step
type EscalationTarget struct {
	ID       uint       `gorm:"primaryKey" json:"id"`
	StepID   uint       `gorm:"not null;index" json:"step_id"`
	Position int        `gorm:"not null" json:"position"`
	Kind     TargetKind `gorm:"type:varchar(20);not null" json:"kind"`
	TargetID uint       `gorm:"not null" json:"target_id"` // user, schedule or team ID per Kind
}

// EscalationStatus represents the state of an in-flight escalation
type EscalationStatus string

// A timed-out step is never persisted as its own state: the driver advances
// an overdue escalation straight to notified for the next step in one update.
const (
	EscalationStatusPending   EscalationStatus = "pending"
	EscalationStatusNotified  EscalationStatus = "notified"
	EscalationStatusEscalated EscalationStatus = "escalated"
	EscalationStatusCancelled EscalationStatus = "cancelled"
	EscalationStatusResolved  EscalationStatus = "resolved"
)

// IsActive reports whether the escalation can still be advanced
func (s EscalationStatus) IsActive() bool {
	return s == EscalationStatusPending || s == EscalationStatusNotified
}

// IncidentEscalation tracks one incident's progress through a policy.
// CurrentStep only ever increases; the escalation terminates instead of reverting.
type IncidentEscalation struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	UUID           string           `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	IncidentID     uint             `gorm:"not null;index" json:"incident_id"`
	PolicyID       uint             `gorm:"not null;index" json:"policy_id"`
	CurrentStep    int              `gorm:"default:0" json:"current_step"`
	Status         EscalationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Note           string           `gorm:"type:text" json:"note"`
	StartedAt      time.Time        `gorm:"not null" json:"started_at"`
	LastNotifiedAt *time.Time       `json:"last_notified_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// BeforeCreate hook to set UUID and StartedAt
func (e *IncidentEscalation) BeforeCreate(tx *gorm.DB) error {
	if e.UUID == "" {
		e.UUID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	return nil
}

// StepStartedAt returns the reference time the current step's timeout counts from
func (e *IncidentEscalation) StepStartedAt() time.Time {
	if e.LastNotifiedAt != nil {
		return *e.LastNotifiedAt
	}
	return e.StartedAt
}

// TableName overrides for explicit table naming
func (MonitoringCheck) TableName() string {
	return "monitoring_checks"
}

func (CheckResult) TableName() string {
	return "check_results"
}

func (Service) TableName() string {
	return "services"
}

func (ServiceCheckAssociation) TableName() string {
	return "service_check_associations"
}

func (StatusNarrative) TableName() string {
	return "status_narratives"
}

func (User) TableName() string {
	return "users"
}

func (Team) TableName() string {
	return "teams"
}

func (TeamMember) TableName() string {
	return "team_members"
}

func (OnCallSchedule) TableName() string {
	return "on_call_schedules"
}

func (ScheduleMember) TableName() string {
	return "schedule_members"
}

func (Incident) TableName() string {
	return "incidents"
}

func (EscalationPolicy) TableName() string {
	return "escalation_policies"
}

func (EscalationStep) TableName() string {
	return "escalation_steps"
}

func (EscalationTarget) TableName() string {
	return "escalation_targets"
}

func (IncidentEscalation) TableName() string {
	return "incident_escalations"
}
