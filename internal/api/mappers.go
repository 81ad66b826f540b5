package api

import "github.com/pulsewatch/pulsewatch/internal/database"

// CheckToListItem converts a database MonitoringCheck to a compact list
// representation.
func CheckToListItem(c database.MonitoringCheck) CheckListItem {
	return CheckListItem{
		ID:              c.ID,
		Name:            c.Name,
		Type:            c.Type,
		Target:          c.Target,
		IntervalSeconds: c.IntervalSeconds,
		Active:          c.Active,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// ChecksToListItems converts a slice of database MonitoringChecks to list items.
func ChecksToListItems(checks []database.MonitoringCheck) []CheckListItem {
	items := make([]CheckListItem, len(checks))
	for i, c := range checks {
		items[i] = CheckToListItem(c)
	}
	return items
}

// ResultToListItem converts a database CheckResult to a compact list
// representation. It omits the evidence payload.
func ResultToListItem(r database.CheckResult) ResultListItem {
	return ResultListItem{
		ID:         r.ID,
		CheckID:    r.CheckID,
		Location:   r.Location,
		Success:    r.Success,
		LatencyMS:  r.LatencyMS,
		StatusCode: r.StatusCode,
		Error:      r.Error,
		CheckedAt:  r.CheckedAt,
	}
}

// ResultsToListItems converts a slice of database CheckResults to list items.
func ResultsToListItems(results []database.CheckResult) []ResultListItem {
	items := make([]ResultListItem, len(results))
	for i, r := range results {
		items[i] = ResultToListItem(r)
	}
	return items
}

// ServiceToOverview converts a database Service to a status page row.
func ServiceToOverview(s database.Service) ServiceOverview {
	return ServiceOverview{
		ID:           s.ID,
		Name:         s.Name,
		Status:       s.Status,
		AutoRecovery: s.AutoRecovery,
		UpdatedAt:    s.UpdatedAt,
	}
}

// ServicesToOverviews converts a slice of database Services to status page rows.
func ServicesToOverviews(services []database.Service) []ServiceOverview {
	items := make([]ServiceOverview, len(services))
	for i, s := range services {
		items[i] = ServiceToOverview(s)
	}
	return items
}
