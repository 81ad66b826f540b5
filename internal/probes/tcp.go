package probes

import (
	"fmt"
	"net"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// ExecuteTCP attempts a TCP connection to host:port within the check
// timeout. The failure reason distinguishes a timeout from a refusal.
func ExecuteTCP(check *database.MonitoringCheck) Outcome {
	address := net.JoinHostPort(check.Target, fmt.Sprintf("%d", check.Port))

	start := time.Now()
	conn, err := net.DialTimeout("tcp", address, check.Timeout())
	latency := time.Since(start).Milliseconds()

	if err != nil {
		reason := "connection refused or unreachable"
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			reason = "connection timed out"
		}
		return Outcome{
			Success:   false,
			LatencyMS: latency,
			Error:     fmt.Sprintf("%s: %v", reason, err),
		}
	}
	conn.Close()

	return Outcome{
		Success:   true,
		LatencyMS: latency,
		Evidence: map[string]interface{}{
			"address": address,
		},
	}
}
