package notify

import (
	"context"
	"testing"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

func TestLogDispatcherAcceptsEveryChannel(t *testing.T) {
	d := NewLogDispatcher()
	resp, err := d.Dispatch(context.Background(), Request{
		Channels:  []Channel{ChannelEmail, ChannelSMS, ChannelVoice},
		Recipient: Recipient{Name: "Alice", Email: "alice@example.com"},
		Subject:   "test",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("got %d channel results, want 3", len(resp.Results))
	}
	if !resp.Succeeded() {
		t.Error("expected the response to report success")
	}
}

func TestResponseSucceeded(t *testing.T) {
	tests := []struct {
		name    string
		results []ChannelResult
		want    bool
	}{
		{"empty", nil, false},
		{"all failed", []ChannelResult{{Channel: ChannelEmail}, {Channel: ChannelSMS}}, false},
		{"one succeeded", []ChannelResult{{Channel: ChannelEmail}, {Channel: ChannelSMS, Success: true}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Response{Results: tt.results}).Succeeded(); got != tt.want {
				t.Errorf("Succeeded() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSeverityEmoji(t *testing.T) {
	tests := []struct {
		severity database.IncidentSeverity
		want     string
	}{
		{database.IncidentSeverityCritical, ":red_circle:"},
		{database.IncidentSeverityHigh, ":large_orange_circle:"},
		{database.IncidentSeverityMedium, ":large_yellow_circle:"},
		{database.IncidentSeverityLow, ":large_blue_circle:"},
		{"", ":white_circle:"},
	}
	for _, tt := range tests {
		if got := severityEmoji(tt.severity); got != tt.want {
			t.Errorf("severityEmoji(%q) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}
