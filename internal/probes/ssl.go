package probes

import (
	"net/http"
	"strings"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// ExecuteSSL verifies that an HTTPS handshake and response complete without
// a TLS error. Any status below 500 counts as success.
//
// This check is deliberately shallow: it validates TLS reachability, not
// certificate chain trust or expiry. Certificate-specific alerting needs a
// dedicated inspection step.
func ExecuteSSL(check *database.MonitoringCheck) Outcome {
	client := &http.Client{Timeout: check.Timeout()}

	target := check.Target
	if strings.HasPrefix(target, "http://") {
		target = "https://" + strings.TrimPrefix(target, "http://")
	} else if !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}

	start := time.Now()
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return failure(start, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return failure(start, err)
	}
	resp.Body.Close()

	latency := time.Since(start).Milliseconds()
	if resp.StatusCode >= 500 {
		return Outcome{
			Success:    false,
			LatencyMS:  latency,
			StatusCode: resp.StatusCode,
			Error:      "server error after TLS handshake",
		}
	}

	return Outcome{
		Success:    true,
		LatencyMS:  latency,
		StatusCode: resp.StatusCode,
		Evidence: map[string]interface{}{
			"tls": "handshake completed",
		},
	}
}
