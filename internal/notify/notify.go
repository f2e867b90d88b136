// Package notify posts sync run summaries to Slack. Delivery is
// best-effort: a failed post is logged, never fatal to the run.
package notify

import (
	"fmt"
	"log"

	slackapi "github.com/slack-go/slack"

	"github.com/quayside/rtmirror/internal/sync"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier posts run summaries to one channel.
type Notifier struct {
	client  slackClient
	channel string
}

// Opts holds parameters for creating a Notifier.
type Opts struct {
	Token   string // xoxb-... bot token
	Channel string

	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Notifier, or nil when no token is configured: callers can
// hold a nil *Notifier and PostSummary becomes a no-op.
func New(opts Opts) (*Notifier, error) {
	if opts.Channel == "" && (opts.Token != "" || opts.Client != nil) {
		return nil, fmt.Errorf("notify: channel is required")
	}
	client := opts.Client
	if client == nil {
		if opts.Token == "" {
			return nil, nil
		}
		client = slackapi.New(opts.Token)
	}
	return &Notifier{client: client, channel: opts.Channel}, nil
}

// PostSummary sends one run's outcome. Safe on a nil receiver.
func (n *Notifier) PostSummary(projectKey, pass string, res *sync.Result) {
	if n == nil {
		return
	}
	text := fmt.Sprintf("*%s* %s: %s", projectKey, pass, res.Summary())
	if len(res.Failures) > 0 {
		text += "\n"
		limit := len(res.Failures)
		if limit > 10 {
			limit = 10
		}
		for _, f := range res.Failures[:limit] {
			text += fmt.Sprintf("• `%s %s`: %v\n", f.Scope, f.Key, f.Err)
		}
		if len(res.Failures) > limit {
			text += fmt.Sprintf("… and %d more\n", len(res.Failures)-limit)
		}
	}
	if _, _, err := n.client.PostMessage(n.channel, slackapi.MsgOptionText(text, false)); err != nil {
		log.Printf("notify: post summary: %v", err)
	}
}
