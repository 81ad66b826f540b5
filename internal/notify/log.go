package notify

import (
	"context"
	"log"
)

// LogDispatcher records send requests in the process log without delivering
// anything. It is the default dispatcher when no provider is configured and
// the test double of choice for the escalation driver.
type LogDispatcher struct{}

// NewLogDispatcher creates a log-only dispatcher
func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{}
}

// Dispatch logs the request and reports every channel as accepted
func (d *LogDispatcher) Dispatch(ctx context.Context, req Request) (Response, error) {
	log.Printf("Notification (log only): to=%s <%s> channels=%v priority=%s subject=%q",
		req.Recipient.Name, req.Recipient.Email, req.Channels, req.Priority, req.Subject)

	var resp Response
	for _, ch := range req.Channels {
		resp.Results = append(resp.Results, ChannelResult{Channel: ch, Success: true})
	}
	return resp, nil
}
