package domain

import "time"

// Subscription binds one Discord channel to one tracked account.
// Unique per (GuildID, Platform, AccountHandle).
type Subscription struct {
	ID            int64
	GuildID       string
	ChannelID     string
	Platform      Platform
	AccountHandle string

	// High-water mark of what has already been announced to the channel.
	LastPostURI       string
	LastPostTimestamp *time.Time

	CreatedAt time.Time
}
