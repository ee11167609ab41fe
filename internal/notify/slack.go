package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API method we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Slack posts notices to a channel with a bot token.
type Slack struct {
	client    slackClient
	channelID string
}

// SlackOpts holds parameters for creating a Slack notifier.
type SlackOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a Slack notifier.
func NewSlack(opts SlackOpts) (*Slack, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: slack: channel is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &Slack{client: client, channelID: opts.ChannelID}, nil
}

// Notify implements Notifier.
func (s *Slack) Notify(ctx context.Context, text string) error {
	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := s.client.PostMessageContext(ctx, s.channelID, slackapi.MsgOptionText(text, false))
		return postErr
	})
	if err != nil {
		return fmt.Errorf("notify: slack: post message: %w", err)
	}
	return nil
}
