package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// SlackDispatcher delivers notifications into a Slack channel. It carries
// the message-based channel; sms/voice hints are forwarded in the message
// text so the on-call reader can see the intended urgency.
type SlackDispatcher struct {
	client  *slack.Client
	channel string
}

// NewSlackDispatcher creates a dispatcher posting to the given channel
func NewSlackDispatcher(token, channel string) *SlackDispatcher {
	return &SlackDispatcher{
		client:  slack.New(token),
		channel: channel,
	}
}

// Dispatch posts the notification to Slack. Every requested channel shares
// the outcome of the post: Slack is the single transport here.
func (d *SlackDispatcher) Dispatch(ctx context.Context, req Request) (Response, error) {
	text := fmt.Sprintf("%s *%s*\n%s\n_for: %s <%s>, priority: %s_",
		severityEmoji(req.IncidentSeverity), req.Subject, req.Body,
		req.Recipient.Name, req.Recipient.Email, req.Priority)

	_, _, err := d.client.PostMessageContext(ctx, d.channel,
		slack.MsgOptionText(text, false))

	var resp Response
	for _, ch := range req.Channels {
		result := ChannelResult{Channel: ch, Success: err == nil}
		if err != nil {
			result.Error = err.Error()
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, err
}

func severityEmoji(severity database.IncidentSeverity) string {
	switch severity {
	case database.IncidentSeverityCritical:
		return ":red_circle:"
	case database.IncidentSeverityHigh:
		return ":large_orange_circle:"
	case database.IncidentSeverityMedium:
		return ":large_yellow_circle:"
	case database.IncidentSeverityLow:
		return ":large_blue_circle:"
	default:
		return ":white_circle:"
	}
}
