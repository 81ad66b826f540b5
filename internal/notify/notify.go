// Package notify defines the boundary between the escalation engine and
// outbound notification delivery. The engine decides what to send and to
// whom; channel transmission, provider retries and delivery confirmation
// live entirely behind the Dispatcher interface.
package notify

import (
	"context"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// Channel is a delivery channel hint passed to the dispatcher
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelVoice Channel = "voice"
)

// Priority indicates how aggressively the dispatcher should deliver
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// Recipient identifies who receives a notification
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Request is a structured send request. Channels are hints, not delivery
// guarantees; the dispatcher decides what it can actually transmit.
type Request struct {
	Channels  []Channel `json:"channels"`
	Recipient Recipient `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Priority  Priority  `json:"priority"`

	// Related incident context
	IncidentUUID     string                    `json:"incident_uuid,omitempty"`
	IncidentTitle    string                    `json:"incident_title,omitempty"`
	IncidentSeverity database.IncidentSeverity `json:"incident_severity,omitempty"`
}

// ChannelResult is the per-channel send outcome
type ChannelResult struct {
	Channel Channel `json:"channel"`
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
}

// Response aggregates the per-channel outcomes of one send request
type Response struct {
	Results []ChannelResult `json:"results"`
}

// Succeeded reports whether at least one channel accepted the request
func (r Response) Succeeded() bool {
	for _, res := range r.Results {
		if res.Success {
			return true
		}
	}
	return false
}

// Dispatcher accepts send requests. Implementations must be safe for
// concurrent use: the escalation driver fans out one call per recipient.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (Response, error)
}
