package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// discordSession abstracts the discordgo.Session method we use.
type discordSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts notices to a channel over the REST API. No gateway
// connection is opened.
type Discord struct {
	sess      discordSession
	channelID string
}

// DiscordOpts holds parameters for creating a Discord notifier.
type DiscordOpts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real Discord API.
	Session discordSession
}

// NewDiscord creates a Discord notifier.
func NewDiscord(opts DiscordOpts) (*Discord, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: discord: channel is required")
	}
	sess := opts.Session
	if sess == nil {
		s, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("notify: discord: create session: %w", err)
		}
		sess = s
	}
	return &Discord{sess: sess, channelID: opts.ChannelID}, nil
}

// Notify implements Notifier.
func (d *Discord) Notify(ctx context.Context, text string) error {
	err := retryOnRateLimit(ctx, func() error {
		_, sendErr := d.sess.ChannelMessageSend(d.channelID, text, discordgo.WithContext(ctx))
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("notify: discord: send message: %w", err)
	}
	return nil
}
