package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/api"
	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/jobs"
)

// APIStore is the repository surface the operator API needs
type APIStore interface {
	ListChecks(offset, limit int) ([]database.MonitoringCheck, int64, error)
	ResultsForCheck(checkID uint, offset, limit int) ([]database.CheckResult, int64, error)
	ListServices() ([]database.Service, error)
	NarrativesForService(serviceID uint, limit int) ([]database.StatusNarrative, error)
	PolicyByID(id uint) (*database.EscalationPolicy, error)
	UptimeRatio(checkID uint, since time.Time) (float64, error)
}

// APIHandler exposes the operator-facing engine endpoints: check and
// status reads, single-check execution, manual runs and escalation
// dispatch testing. All of these sit behind JWT authentication.
type APIHandler struct {
	scheduler *jobs.CheckScheduler
	escalator *jobs.EscalationDriver
	store     APIStore
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(scheduler *jobs.CheckScheduler, escalator *jobs.EscalationDriver, store APIStore) *APIHandler {
	return &APIHandler{
		scheduler: scheduler,
		escalator: escalator,
		store:     store,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/checks", h.handleListChecks)
	mux.HandleFunc("GET /api/checks/{id}/results", h.handleCheckResults)
	mux.HandleFunc("GET /api/checks/{id}/uptime", h.handleCheckUptime)
	mux.HandleFunc("POST /api/checks/{id}/execute", h.handleExecuteCheck)
	mux.HandleFunc("GET /api/services", h.handleListServices)
	mux.HandleFunc("GET /api/services/{id}/narratives", h.handleServiceNarratives)
	mux.HandleFunc("POST /api/run/checks", h.handleManualChecks)
	mux.HandleFunc("POST /api/run/escalations", h.handleManualEscalations)
	mux.HandleFunc("POST /api/escalations/test", h.handleEscalationTest)
}

// handleListChecks handles GET /api/checks
func (h *APIHandler) handleListChecks(w http.ResponseWriter, r *http.Request) {
	p := api.ParsePagination(r)

	checks, total, err := h.store.ListChecks(p.Offset(), p.PerPage)
	if err != nil {
		log.Printf("Failed to list checks: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list checks")
		return
	}

	api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
		Data: api.ChecksToListItems(checks),
		Pagination: api.PaginationMeta{
			Page:       p.Page,
			PerPage:    p.PerPage,
			Total:      total,
			TotalPages: p.TotalPages(total),
		},
	})
}

// handleCheckResults handles GET /api/checks/{id}/results
func (h *APIHandler) handleCheckResults(w http.ResponseWriter, r *http.Request) {
	checkID, ok := parseUintPathValue(r, "id")
	if !ok {
		api.RespondError(w, http.StatusBadRequest, "Invalid check ID")
		return
	}

	p := api.ParsePagination(r)
	results, total, err := h.store.ResultsForCheck(checkID, p.Offset(), p.PerPage)
	if err != nil {
		log.Printf("Failed to list results for check %d: %v", checkID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list results")
		return
	}

	api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
		Data: api.ResultsToListItems(results),
		Pagination: api.PaginationMeta{
			Page:       p.Page,
			PerPage:    p.PerPage,
			Total:      total,
			TotalPages: p.TotalPages(total),
		},
	})
}

// handleCheckUptime handles GET /api/checks/{id}/uptime
func (h *APIHandler) handleCheckUptime(w http.ResponseWriter, r *http.Request) {
	checkID, ok := parseUintPathValue(r, "id")
	if !ok {
		api.RespondError(w, http.StatusBadRequest, "Invalid check ID")
		return
	}

	hours, err := strconv.Atoi(r.URL.Query().Get("hours"))
	if err != nil || hours <= 0 {
		hours = 24
	}

	ratio, err := h.store.UptimeRatio(checkID, time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to compute uptime")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"check_id":       checkID,
		"window_hours":   hours,
		"uptime_percent": ratio,
	})
}

// ExecuteCheckResponse pairs the probe outcome with the persisted result
type ExecuteCheckResponse struct {
	Outcome interface{}           `json:"outcome"`
	Result  *database.CheckResult `json:"result"`
}

// handleExecuteCheck handles POST /api/checks/{id}/execute
func (h *APIHandler) handleExecuteCheck(w http.ResponseWriter, r *http.Request) {
	checkID, ok := parseUintPathValue(r, "id")
	if !ok {
		api.RespondError(w, http.StatusBadRequest, "Invalid check ID")
		return
	}

	location := r.URL.Query().Get("location")
	outcome, result, err := h.scheduler.ExecuteOne(checkID, location)
	if err != nil {
		log.Printf("Single-check execution failed for check %d: %v", checkID, err)
		api.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	api.RespondJSON(w, http.StatusOK, ExecuteCheckResponse{
		Outcome: outcome,
		Result:  result,
	})
}

// handleListServices handles GET /api/services
func (h *APIHandler) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.store.ListServices()
	if err != nil {
		log.Printf("Failed to list services: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list services")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.ServicesToOverviews(services))
}

// handleServiceNarratives handles GET /api/services/{id}/narratives
func (h *APIHandler) handleServiceNarratives(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := parseUintPathValue(r, "id")
	if !ok {
		api.RespondError(w, http.StatusBadRequest, "Invalid service ID")
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	narratives, err := h.store.NarrativesForService(serviceID, limit)
	if err != nil {
		log.Printf("Failed to list narratives for service %d: %v", serviceID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list narratives")
		return
	}
	api.RespondJSON(w, http.StatusOK, narratives)
}

// handleManualChecks handles POST /api/run/checks, the operator-triggered
// variant of the cron trigger. Accepts the same force flag.
func (h *APIHandler) handleManualChecks(w http.ResponseWriter, r *http.Request) {
	var summary jobs.RunSummary
	var err error
	if r.URL.Query().Get("force") == "1" || r.URL.Query().Get("force") == "true" {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		summary, err = h.scheduler.RunForced(limit)
	} else {
		summary, err = h.scheduler.Run()
	}
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.RespondJSON(w, http.StatusOK, summary)
}

// handleManualEscalations handles POST /api/run/escalations
func (h *APIHandler) handleManualEscalations(w http.ResponseWriter, r *http.Request) {
	summary, err := h.escalator.Run()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.RespondJSON(w, http.StatusOK, summary)
}

// handleEscalationTest handles POST /api/escalations/test. It resolves and
// notifies one policy step with synthetic incident data without touching
// any escalation state.
func (h *APIHandler) handleEscalationTest(w http.ResponseWriter, r *http.Request) {
	var req api.EscalationTestRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	policy, err := h.store.PolicyByID(req.PolicyID)
	if err != nil {
		api.RespondError(w, http.StatusNotFound, "Policy not found")
		return
	}

	title := req.Title
	if title == "" {
		title = "Escalation test"
	}
	severity := database.IncidentSeverity(req.Severity)
	if severity == "" {
		severity = database.IncidentSeverityHigh
	}

	incident := &database.Incident{
		UUID:      "test",
		Title:     title,
		Status:    database.IncidentStatusOpen,
		Severity:  severity,
		CreatedAt: time.Now(),
	}

	sent, failed, resolveErrors := h.escalator.NotifyStepDirect(policy, req.StepIndex, incident)
	errs := make([]string, 0, len(resolveErrors))
	for _, e := range resolveErrors {
		errs = append(errs, e.Error())
	}

	api.RespondJSON(w, http.StatusOK, api.EscalationTestResponse{
		Sent:          sent,
		Failed:        failed,
		ResolveErrors: errs,
	})
}

// parseUintPathValue extracts a positive integer path parameter
func parseUintPathValue(r *http.Request, name string) (uint, bool) {
	value, err := strconv.ParseUint(r.PathValue(name), 10, 32)
	if err != nil || value == 0 {
		return 0, false
	}
	return uint(value), true
}
