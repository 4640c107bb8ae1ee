package blueskyimpl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/fx"

	"github.com/datnguyendev/social-watch-discord-bot/internal/bluesky"
	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
	"github.com/datnguyendev/social-watch-discord-bot/internal/fetcher"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/config"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/logger"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/retry"
)

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type BlueskyImpl struct {
	BaseURL      string
	FetchTimeout time.Duration
	HTTPClient   *http.Client
	Logger       logger.Logger
}

func New(opts Opts) *BlueskyImpl {
	return &BlueskyImpl{
		BaseURL:      opts.Config.Bluesky.AppViewURL,
		FetchTimeout: opts.Config.Monitor.FetchTimeout,
		HTTPClient:   &http.Client{},
		Logger:       opts.Logger.WithComponent("BlueskyClient"),
	}
}

var _ bluesky.Client = (*BlueskyImpl)(nil)

var handleRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.-]*\.[a-zA-Z]{2,}$`)

func (c *BlueskyImpl) Platform() domain.Platform {
	return domain.PlatformBluesky
}

func (c *BlueskyImpl) IsValidAccount(handle string) bool {
	return handleRe.MatchString(domain.NormalizeHandle(handle))
}

// Resolve maps a handle to its DID via com.atproto.identity.resolveHandle.
func (c *BlueskyImpl) Resolve(ctx context.Context, handle string) (string, error) {
	endpoint := fmt.Sprintf(
		"%s/xrpc/com.atproto.identity.resolveHandle?handle=%s",
		c.BaseURL, url.QueryEscape(domain.NormalizeHandle(handle)),
	)

	var resp struct {
		Did string `json:"did"`
	}
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return "", err
	}
	if resp.Did == "" {
		return "", fetcher.ErrAccountNotFound
	}
	return resp.Did, nil
}

type feedResponse struct {
	Feed []struct {
		Post struct {
			Uri    string `json:"uri"`
			Cid    string `json:"cid"`
			Author struct {
				Handle string `json:"handle"`
			} `json:"author"`
			Record struct {
				Text      string    `json:"text"`
				CreatedAt time.Time `json:"createdAt"`
			} `json:"record"`
			Embed struct {
				Images []struct {
					Fullsize string `json:"fullsize"`
				} `json:"images"`
			} `json:"embed"`
			Labels []struct {
				Val string `json:"val"`
			} `json:"labels"`
		} `json:"post"`
		Reason *json.RawMessage `json:"reason"`
	} `json:"feed"`
}

func (c *BlueskyImpl) FetchLatestPost(ctx context.Context, handle string) (*domain.Post, error) {
	endpoint := fmt.Sprintf(
		"%s/xrpc/app.bsky.feed.getAuthorFeed?actor=%s&limit=5&filter=posts_no_replies",
		c.BaseURL, url.QueryEscape(domain.NormalizeHandle(handle)),
	)

	var resp feedResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	for _, item := range resp.Feed {
		// Reposts carry a reason and would show another author's content.
		if item.Reason != nil {
			continue
		}

		post := &domain.Post{
			URI:          item.Post.Uri,
			CID:          item.Post.Cid,
			AuthorHandle: item.Post.Author.Handle,
			Text:         item.Post.Record.Text,
			Timestamp:    item.Post.Record.CreatedAt,
			Platform:     domain.PlatformBluesky,
		}
		for _, img := range item.Post.Embed.Images {
			post.MediaURLs = append(post.MediaURLs, img.Fullsize)
		}
		for _, label := range item.Post.Labels {
			post.Labels = append(post.Labels, label.Val)
		}
		post.Sensitive = len(post.Labels) > 0
		return post, nil
	}

	return nil, nil
}

func (c *BlueskyImpl) getJSON(ctx context.Context, endpoint string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.FetchTimeout)
	defer cancel()

	return retry.Do(ctx, c.Logger, "bluesky GET", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fetcher.ErrAccountNotFound)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		return json.NewDecoder(resp.Body).Decode(out)
	}, retry.DefaultConfig())
}
