package discordimpl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/fx"

	"github.com/datnguyendev/social-watch-discord-bot/internal/discord"
	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
	"github.com/datnguyendev/social-watch-discord-bot/internal/ratelimit"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/config"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/formatter"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/logger"
)

const maxTextLength = 300

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type DiscordImpl struct {
	Session *discordgo.Session
	Logger  logger.Logger
	Limiter ratelimit.Limiter
}

func New(opts Opts) (*DiscordImpl, error) {
	session, err := discordgo.New("Bot " + opts.Config.Discord.Token)
	if err != nil {
		opts.Logger.Error("Error creating discord session", "Error", err)
		return nil, err
	}

	return &DiscordImpl{
		Session: session,
		Logger:  opts.Logger.WithComponent("DiscordSink"),
		Limiter: ratelimit.NewInMemoryLimiter(1, 2*time.Second, 3),
	}, nil
}

var _ discord.Sink = (*DiscordImpl)(nil)

func (d *DiscordImpl) Deliver(ctx context.Context, post *domain.Post, sub *domain.Subscription) error {
	if !d.Limiter.Allow(sub.ChannelID) {
		return fmt.Errorf("rate limited for channel %s", sub.ChannelID)
	}

	embed := d.buildEmbed(post)
	_, err := d.Session.ChannelMessageSendEmbed(sub.ChannelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send to channel %s: %w", sub.ChannelID, err)
	}

	d.Logger.Debug("Delivered post", "channel", sub.ChannelID, "uri", post.URI)
	return nil
}

func (d *DiscordImpl) buildEmbed(post *domain.Post) *discordgo.MessageEmbed {
	text := formatter.Truncate(formatter.EscapeMarkdown(post.Text), maxTextLength)
	if post.Sensitive {
		text = "||" + text + "||"
	}

	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name: fmt.Sprintf("@%s on %s", post.AuthorHandle, post.Platform),
		},
		Description: text,
		URL:         postURL(post),
		Timestamp:   post.Timestamp.Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: string(post.Platform),
		},
	}
	if len(post.MediaURLs) > 0 && !post.Sensitive {
		embed.Image = &discordgo.MessageEmbedImage{URL: post.MediaURLs[0]}
	}
	return embed
}

// postURL turns a platform-native URI into something clickable. Bluesky
// AT-URIs are rewritten to their bsky.app form; Mastodon URIs already are
// https URLs.
func postURL(post *domain.Post) string {
	if post.Platform != domain.PlatformBluesky {
		return post.URI
	}
	parts := strings.SplitN(strings.TrimPrefix(post.URI, "at://"), "/", 3)
	if len(parts) != 3 {
		return post.URI
	}
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", parts[0], parts[2])
}
