package domain

import (
	"strings"
	"time"
)

// Post is one unit of content from either platform. It is never persisted;
// only URI and Timestamp survive, attached to a Subscription.
type Post struct {
	URI          string
	CID          string
	AuthorHandle string
	Text         string
	Timestamp    time.Time
	Platform     Platform
	MediaURLs    []string
	Sensitive    bool
	Labels       []string
}

// NormalizeURI canonicalizes a post URI for comparison.
func NormalizeURI(uri string) string {
	return strings.ToLower(strings.TrimSpace(uri))
}

// NormalizeHandle canonicalizes an account handle.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.Trim(handle, "@ "))
}
