package api

import (
	"testing"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

func TestCheckToListItem(t *testing.T) {
	now := time.Now()
	check := database.MonitoringCheck{
		ID:              7,
		Name:            "API uptime",
		Type:            database.CheckTypeHTTP,
		Target:          "https://api.example.com/health",
		Method:          "GET",
		Headers:         database.JSONB{"X-Probe": "1"},
		IntervalSeconds: 60,
		Keyword:         "ok",
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	item := CheckToListItem(check)

	if item.ID != 7 {
		t.Errorf("ID = %d, want 7", item.ID)
	}
	if item.Name != "API uptime" {
		t.Errorf("Name = %q, want 'API uptime'", item.Name)
	}
	if item.Type != database.CheckTypeHTTP {
		t.Errorf("Type = %s, want http", item.Type)
	}
	if item.Target != "https://api.example.com/health" {
		t.Errorf("unexpected Target %q", item.Target)
	}
	if !item.Active {
		t.Error("expected Active to carry over")
	}
}

func TestChecksToListItems(t *testing.T) {
	checks := []database.MonitoringCheck{
		{ID: 1, Name: "a", Type: database.CheckTypeTCP},
		{ID: 2, Name: "b", Type: database.CheckTypePing},
	}

	items := ChecksToListItems(checks)

	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].ID != 1 || items[1].ID != 2 {
		t.Errorf("IDs = [%d %d], want [1 2]", items[0].ID, items[1].ID)
	}
}

func TestChecksToListItemsEmpty(t *testing.T) {
	items := ChecksToListItems(nil)
	if items == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(items) != 0 {
		t.Errorf("len = %d, want 0", len(items))
	}
}

func TestResultToListItemOmitsEvidence(t *testing.T) {
	result := database.CheckResult{
		ID:         3,
		CheckID:    7,
		Success:    false,
		LatencyMS:  1250,
		StatusCode: 503,
		Error:      "unexpected status code 503",
		Evidence:   database.JSONB{"body_snippet": "Service Unavailable"},
		CheckedAt:  time.Now(),
	}

	item := ResultToListItem(result)

	if item.CheckID != 7 {
		t.Errorf("CheckID = %d, want 7", item.CheckID)
	}
	if item.Success {
		t.Error("expected failure to carry over")
	}
	if item.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want 503", item.StatusCode)
	}
	if item.Error != "unexpected status code 503" {
		t.Errorf("unexpected Error %q", item.Error)
	}
}

func TestServiceToOverview(t *testing.T) {
	service := database.Service{
		ID:           5,
		Name:         "Billing",
		Status:       database.ServiceStatusDegraded,
		AutoRecovery: true,
	}

	overview := ServiceToOverview(service)

	if overview.Name != "Billing" {
		t.Errorf("Name = %q, want Billing", overview.Name)
	}
	if overview.Status != database.ServiceStatusDegraded {
		t.Errorf("Status = %s, want degraded", overview.Status)
	}
	if !overview.AutoRecovery {
		t.Error("expected AutoRecovery to carry over")
	}
}
