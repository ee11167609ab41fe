// Package notify forwards admin notifications (new registrations and the
// like) to chat channels and local hooks.
package notify

import (
	"context"
	"errors"

	"github.com/zulandar/bikereg/internal/config"
)

// Notifier delivers a plain-text notice.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Multi fans a notice out to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier. Every target is attempted even if one fails.
func (m Multi) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the notifiers enabled in cfg. It returns nil when none
// are configured.
func FromConfig(cfg config.NotifyConfig) (Notifier, error) {
	var m Multi
	if cfg.Slack.Enabled() {
		s, err := NewSlack(SlackOpts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		m = append(m, s)
	}
	if cfg.Discord.Enabled() {
		d, err := NewDiscord(DiscordOpts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		m = append(m, d)
	}
	if cfg.Command != "" {
		c, err := NewCommand(CommandOpts{Template: cfg.Command})
		if err != nil {
			return nil, err
		}
		m = append(m, c)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
