package probes

import (
	"net/http"
	"strings"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// ExecutePing checks host reachability. Raw ICMP is usually unavailable in
// the runtime, so this is approximated with an HTTP HEAD request against
// the host: any response at all counts as reachable, regardless of status
// code.
func ExecutePing(check *database.MonitoringCheck) Outcome {
	client := &http.Client{Timeout: check.Timeout()}

	target := check.Target
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "http://" + target
	}

	start := time.Now()
	req, err := http.NewRequest(http.MethodHead, target, nil)
	if err != nil {
		return failure(start, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return failure(start, err)
	}
	resp.Body.Close()

	return Outcome{
		Success:    true,
		LatencyMS:  time.Since(start).Milliseconds(),
		StatusCode: resp.StatusCode,
		Evidence: map[string]interface{}{
			"method": "HEAD fallback (ICMP unavailable)",
		},
	}
}
