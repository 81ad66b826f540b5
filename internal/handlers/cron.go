package handlers

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strconv"

	"github.com/pulsewatch/pulsewatch/internal/api"
	"github.com/pulsewatch/pulsewatch/internal/jobs"
)

// CronHandler exposes the periodic trigger surface for the check scheduler
// and the escalation driver. An external scheduler hits these endpoints
// with the shared-secret header; the in-process cron calls the same run
// methods directly.
type CronHandler struct {
	scheduler  *jobs.CheckScheduler
	escalator  *jobs.EscalationDriver
	cronSecret string
}

// NewCronHandler creates a new cron trigger handler. An empty secret
// disables the shared-secret check (local development).
func NewCronHandler(scheduler *jobs.CheckScheduler, escalator *jobs.EscalationDriver, cronSecret string) *CronHandler {
	return &CronHandler{
		scheduler:  scheduler,
		escalator:  escalator,
		cronSecret: cronSecret,
	}
}

// SetupRoutes sets up the trigger routes
func (h *CronHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /cron/checks", h.handleRunChecks)
	mux.HandleFunc("POST /cron/escalations", h.handleRunEscalations)
}

// handleRunChecks handles POST /cron/checks. The optional force parameter
// re-runs the most-recently-created active checks regardless of due-ness.
func (h *CronHandler) handleRunChecks(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		api.RespondError(w, http.StatusUnauthorized, "Invalid cron secret")
		return
	}

	var summary jobs.RunSummary
	var err error
	if r.URL.Query().Get("force") == "1" || r.URL.Query().Get("force") == "true" {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		summary, err = h.scheduler.RunForced(limit)
	} else {
		summary, err = h.scheduler.Run()
	}
	if err != nil {
		// Run-fatal: could not even list the due checks. The next
		// invocation retries; report the failure rather than crash.
		log.Printf("Check scheduler run failed: %v", err)
		api.RespondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   err.Error(),
			"summary": summary,
		})
		return
	}

	api.RespondJSON(w, http.StatusOK, summary)
}

// handleRunEscalations handles POST /cron/escalations
func (h *CronHandler) handleRunEscalations(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		api.RespondError(w, http.StatusUnauthorized, "Invalid cron secret")
		return
	}

	summary, err := h.escalator.Run()
	if err != nil {
		log.Printf("Escalation driver run failed: %v", err)
		api.RespondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   err.Error(),
			"summary": summary,
		})
		return
	}

	api.RespondJSON(w, http.StatusOK, summary)
}

// authorized validates the shared-secret header with a constant-time
// comparison. No secret configured means the check is disabled.
func (h *CronHandler) authorized(r *http.Request) bool {
	if h.cronSecret == "" {
		return true
	}
	provided := r.Header.Get("X-Cron-Secret")
	return subtle.ConstantTimeCompare([]byte(provided), []byte(h.cronSecret)) == 1
}
