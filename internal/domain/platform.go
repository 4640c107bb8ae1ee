package domain

// Platform identifies which social network an account lives on.
type Platform string

const (
	PlatformBluesky  Platform = "bluesky"
	PlatformMastodon Platform = "mastodon"
)

func (p Platform) Valid() bool {
	return p == PlatformBluesky || p == PlatformMastodon
}
