// Package probes implements the network probe executors. Executors are pure
// with respect to external state: they perform one probe and return an
// Outcome, never writing anywhere and never blocking past the check timeout.
package probes

import (
	"fmt"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// Outcome is the immediate result of running one probe once
type Outcome struct {
	Success    bool                   `json:"success"`
	LatencyMS  int64                  `json:"latency_ms"`
	StatusCode int                    `json:"status_code,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Evidence   map[string]interface{} `json:"evidence,omitempty"`
}

// failure builds a failing outcome with the elapsed latency and error text
func failure(start time.Time, err error) Outcome {
	return Outcome{
		Success:   false,
		LatencyMS: time.Since(start).Milliseconds(),
		Error:     err.Error(),
	}
}

// Execute runs the probe configured on the check and returns its outcome.
// Unknown check types produce a failing outcome rather than an error: the
// probe set is closed, so an unknown type is a data problem, not a caller
// problem.
func Execute(check *database.MonitoringCheck) Outcome {
	switch check.Type {
	case database.CheckTypeHTTP:
		return ExecuteHTTP(check)
	case database.CheckTypeTCP:
		return ExecuteTCP(check)
	case database.CheckTypePing:
		return ExecutePing(check)
	case database.CheckTypeSSL:
		return ExecuteSSL(check)
	default:
		return Outcome{
			Success: false,
			Error:   fmt.Sprintf("unsupported check type: %s", check.Type),
		}
	}
}
