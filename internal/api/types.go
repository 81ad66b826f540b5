package api

import (
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// ========== Engine Trigger Types ==========

// EscalationTestRequest is the request body for POST /api/escalations/test.
// It dispatches a synthetic notification for one policy step without
// touching escalation state.
type EscalationTestRequest struct {
	PolicyID  uint   `json:"policy_id" validate:"required"`
	StepIndex int    `json:"step_index" validate:"min=0"`
	Title     string `json:"title" validate:"omitempty,max=255"`
	Severity  string `json:"severity" validate:"omitempty,oneof=low medium high critical"`
}

// EscalationTestResponse reports how the synthetic dispatch went.
type EscalationTestResponse struct {
	Sent          int      `json:"sent"`
	Failed        int      `json:"failed"`
	ResolveErrors []string `json:"resolve_errors"`
}

// ========== Pagination Types ==========

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// ========== Mapper Output Types ==========

// CheckListItem is a compact representation of a monitoring check for list
// views. It omits request headers and keyword configuration.
type CheckListItem struct {
	ID              uint               `json:"id"`
	Name            string             `json:"name"`
	Type            database.CheckType `json:"type"`
	Target          string             `json:"target"`
	IntervalSeconds int                `json:"interval_seconds"`
	Active          bool               `json:"active"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// ResultListItem is a compact representation of a check result for list
// views. It omits the evidence payload to reduce response size.
type ResultListItem struct {
	ID         uint      `json:"id"`
	CheckID    uint      `json:"check_id"`
	Location   string    `json:"location,omitempty"`
	Success    bool      `json:"success"`
	LatencyMS  int64     `json:"latency_ms"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// ServiceOverview is one row of the status page overview.
type ServiceOverview struct {
	ID           uint                   `json:"id"`
	Name         string                 `json:"name"`
	Status       database.ServiceStatus `json:"status"`
	AutoRecovery bool                   `json:"auto_recovery"`
	UpdatedAt    time.Time              `json:"updated_at"`
}
