package probes

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

const (
	// maxBodyBytes bounds how much of a response body is read for keyword
	// matching and evidence capture
	maxBodyBytes = 64 * 1024

	// snippetBytes is how much of the body is kept as evidence
	snippetBytes = 256

	userAgent = "PulseWatch/1.0"
)

// ExecuteHTTP issues the configured HTTP request and evaluates the expected
// status set and optional keyword rule. Network failures and timeouts are
// returned as failing outcomes, never as panics or errors to the caller.
func ExecuteHTTP(check *database.MonitoringCheck) Outcome {
	client := &http.Client{Timeout: check.Timeout()}

	method := check.Method
	if method == "" {
		method = http.MethodGet
	}

	start := time.Now()
	req, err := http.NewRequest(method, check.Target, nil)
	if err != nil {
		return failure(start, err)
	}

	req.Header.Set("User-Agent", userAgent)
	for key, value := range check.Headers {
		if str, ok := value.(string); ok {
			req.Header.Set(key, str)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return failure(start, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	latency := time.Since(start).Milliseconds()

	outcome := Outcome{
		Success:    true,
		LatencyMS:  latency,
		StatusCode: resp.StatusCode,
		Evidence: map[string]interface{}{
			"content_type": resp.Header.Get("Content-Type"),
			"body_snippet": snippet(body),
		},
	}

	if expected := check.ExpectedSet(); expected != nil {
		if !expected[resp.StatusCode] {
			outcome.Success = false
			outcome.Error = fmt.Sprintf("unexpected status code %d (expected %s)",
				resp.StatusCode, check.ExpectedStatusCodes)
		}
	} else if resp.StatusCode >= 400 {
		outcome.Success = false
		outcome.Error = fmt.Sprintf("unexpected status code %d", resp.StatusCode)
	}

	if check.Keyword != "" {
		matched, err := matchKeyword(string(body), check)
		if err != nil {
			outcome.Success = false
			outcome.Error = err.Error()
		} else {
			outcome.Evidence["keyword"] = check.Keyword
			outcome.Evidence["keyword_matched"] = matched
			if matched {
				// A satisfied keyword rule is the authoritative signal
				outcome.Success = true
				outcome.Error = ""
			} else {
				outcome.Success = false
				outcome.Error = fmt.Sprintf("keyword %q not found in response body", check.Keyword)
			}
		}
	}

	return outcome
}

// matchKeyword evaluates the check's keyword rule against the body
func matchKeyword(body string, check *database.MonitoringCheck) (bool, error) {
	keyword := check.Keyword
	subject := body
	if !check.KeywordCaseSensitive {
		keyword = strings.ToLower(keyword)
		subject = strings.ToLower(subject)
	}

	switch check.KeywordMatchMode {
	case database.KeywordMatchExact:
		return strings.TrimSpace(subject) == keyword, nil
	case database.KeywordMatchPattern:
		pattern := check.Keyword
		if !check.KeywordCaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("invalid keyword pattern: %w", err)
		}
		return re.MatchString(body), nil
	case database.KeywordMatchContains, "":
		return strings.Contains(subject, keyword), nil
	default:
		return false, fmt.Errorf("unsupported keyword match mode: %s", check.KeywordMatchMode)
	}
}

func snippet(body []byte) string {
	if len(body) > snippetBytes {
		body = body[:snippetBytes]
	}
	return string(body)
}
