package mastodonimpl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/fx"

	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
	"github.com/datnguyendev/social-watch-discord-bot/internal/fetcher"
	"github.com/datnguyendev/social-watch-discord-bot/internal/mastodon"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/config"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/logger"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/retry"
)

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type MastodonImpl struct {
	DefaultServer string
	FetchTimeout  time.Duration
	HTTPClient    *http.Client
	Logger        logger.Logger
}

func New(opts Opts) *MastodonImpl {
	return &MastodonImpl{
		DefaultServer: opts.Config.Mastodon.DefaultServer,
		FetchTimeout:  opts.Config.Monitor.FetchTimeout,
		HTTPClient:    &http.Client{},
		Logger:        opts.Logger.WithComponent("MastodonClient"),
	}
}

var _ mastodon.Client = (*MastodonImpl)(nil)

// Handles look like user@server.tld; a bare user falls back to the default server.
var handleRe = regexp.MustCompile(`^[a-zA-Z0-9_]+(@[a-zA-Z0-9][a-zA-Z0-9.-]*\.[a-zA-Z]{2,})?$`)

var tagRe = regexp.MustCompile(`<[^>]*>`)

func (c *MastodonImpl) Platform() domain.Platform {
	return domain.PlatformMastodon
}

func (c *MastodonImpl) IsValidAccount(handle string) bool {
	return handleRe.MatchString(domain.NormalizeHandle(handle))
}

type account struct {
	ID   string `json:"id"`
	Acct string `json:"acct"`
}

type status struct {
	URI       string    `json:"uri"`
	URL       string    `json:"url"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Sensitive bool      `json:"sensitive"`
	Account   struct {
		Acct string `json:"acct"`
	} `json:"account"`
	MediaAttachments []struct {
		URL string `json:"url"`
	} `json:"media_attachments"`
}

func (c *MastodonImpl) FetchLatestPost(ctx context.Context, handle string) (*domain.Post, error) {
	server, localPart := c.splitHandle(handle)

	var acct account
	lookupURL := fmt.Sprintf("%s/api/v1/accounts/lookup?acct=%s", server, url.QueryEscape(localPart))
	if err := c.getJSON(ctx, lookupURL, &acct); err != nil {
		return nil, err
	}

	var statuses []status
	statusesURL := fmt.Sprintf(
		"%s/api/v1/accounts/%s/statuses?limit=1&exclude_replies=true&exclude_reblogs=true",
		server, url.PathEscape(acct.ID),
	)
	if err := c.getJSON(ctx, statusesURL, &statuses); err != nil {
		return nil, err
	}

	if len(statuses) == 0 {
		return nil, nil
	}

	s := statuses[0]
	post := &domain.Post{
		URI:          s.URI,
		AuthorHandle: domain.NormalizeHandle(handle),
		Text:         stripHTML(s.Content),
		Timestamp:    s.CreatedAt,
		Platform:     domain.PlatformMastodon,
		Sensitive:    s.Sensitive,
	}
	for _, media := range s.MediaAttachments {
		post.MediaURLs = append(post.MediaURLs, media.URL)
	}
	return post, nil
}

// splitHandle returns the server base URL and the local account name.
func (c *MastodonImpl) splitHandle(handle string) (string, string) {
	handle = domain.NormalizeHandle(handle)
	local, server, found := strings.Cut(handle, "@")
	if !found {
		return c.DefaultServer, handle
	}
	return "https://" + server, local
}

func stripHTML(content string) string {
	content = strings.ReplaceAll(content, "</p>", "\n\n")
	content = strings.ReplaceAll(content, "<br>", "\n")
	content = strings.ReplaceAll(content, "<br/>", "\n")
	content = strings.ReplaceAll(content, "<br />", "\n")
	return strings.TrimSpace(tagRe.ReplaceAllString(content, ""))
}

func (c *MastodonImpl) getJSON(ctx context.Context, endpoint string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.FetchTimeout)
	defer cancel()

	return retry.Do(ctx, c.Logger, "mastodon GET", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fetcher.ErrAccountNotFound)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		return json.NewDecoder(resp.Body).Decode(out)
	}, retry.DefaultConfig())
}
