package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/datnguyendev/social-watch-discord-bot/pkg/logger"
)

var (
	ErrWatchLimit    = errors.New("watched identifier limit reached")
	ErrMaxReconnects = errors.New("maximum reconnect attempts exceeded")
)

// PostRecord is the decoded app.bsky.feed.post record payload.
type PostRecord struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Langs     []string  `json:"langs"`
}

// PostEvent is one surfaced create-commit for a watched identifier.
type PostEvent struct {
	Did    string
	URI    string
	CID    string
	Record PostRecord
	TimeUS int64
}

// frame is the wire shape of one Jetstream message.
type frame struct {
	Did    string `json:"did"`
	TimeUS int64  `json:"time_us"`
	Kind   string `json:"kind"`
	Commit struct {
		Operation  string          `json:"operation"`
		Collection string          `json:"collection"`
		Rkey       string          `json:"rkey"`
		Record     json.RawMessage `json:"record"`
		Cid        string          `json:"cid"`
	} `json:"commit"`
}

// optionsUpdate is the in-band frame that changes the live filter
// without reconnecting.
type optionsUpdate struct {
	Type    string `json:"type"`
	Payload struct {
		WantedCollections []string `json:"wantedCollections"`
		WantedDids        []string `json:"wantedDids"`
	} `json:"payload"`
}

type Config struct {
	URL               string
	Collection        string
	MaxWatchedDids    int
	ReconnectBase     time.Duration
	ReconnectMax      time.Duration
	MaxReconnects     int // 0 means retry forever
	HeartbeatInterval time.Duration
	StaleThreshold    time.Duration
}

// Client maintains one filtered firehose connection. Identifiers can be
// added and removed at runtime without reconnecting.
type Client struct {
	cfg    Config
	logger logger.Logger
	id     string

	mu       sync.Mutex
	conn     *websocket.Conn
	dids     map[string]struct{}
	running  bool
	stopped  bool
	dialing  bool
	attempts int
	done     chan struct{}

	cursor    atomic.Int64
	lastMsgAt atomic.Int64
	connected atomic.Bool

	events chan PostEvent
	errs   chan error
}

func NewClient(cfg Config, log logger.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: log.WithComponent("StreamClient"),
		id:     uuid.NewString(),
		dids:   make(map[string]struct{}),
		events: make(chan PostEvent, 64),
		errs:   make(chan error, 8),
	}
}

func (c *Client) Events() <-chan PostEvent {
	return c.events
}

func (c *Client) Errors() <-chan error {
	return c.errs
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Cursor returns the last processed sequence position in microseconds.
func (c *Client) Cursor() int64 {
	return c.cursor.Load()
}

// Connect starts the connection manager. It is a no-op when already running.
// With an empty watch set no dial happens: Jetstream treats a missing
// wantedDids filter as "every DID", which would pull the whole firehose.
// The first AddIdentifier starts the connection instead.
func (c *Client) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.stopped = false
	c.done = make(chan struct{})
	if len(c.dids) > 0 {
		c.dialing = true
		go c.run(c.done)
	}
}

// Disconnect closes the connection and stops reconnecting. Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.stopped = true
	c.dialing = false
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.logger.Info("Disconnected", "instance", c.id)
}

// AddIdentifier registers a DID for watching. Returns false when the DID is
// already watched. While connected, the live filter is updated in-band.
func (c *Client) AddIdentifier(did string) (bool, error) {
	c.mu.Lock()
	if _, ok := c.dids[did]; ok {
		c.mu.Unlock()
		return false, nil
	}
	if c.cfg.MaxWatchedDids > 0 && len(c.dids) >= c.cfg.MaxWatchedDids {
		c.mu.Unlock()
		return false, ErrWatchLimit
	}
	c.dids[did] = struct{}{}
	conn := c.conn
	update := c.buildOptionsUpdateLocked()
	startRun := c.running && !c.dialing
	if startRun {
		c.dialing = true
	}
	done := c.done
	c.mu.Unlock()

	if startRun {
		go c.run(done)
		return true, nil
	}
	if conn != nil {
		c.sendOptionsUpdate(conn, update)
	}
	return true, nil
}

// RemoveIdentifier stops watching a DID. Returns false when it was not watched.
func (c *Client) RemoveIdentifier(did string) bool {
	c.mu.Lock()
	if _, ok := c.dids[did]; !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.dids, did)
	conn := c.conn
	update := c.buildOptionsUpdateLocked()
	empty := len(c.dids) == 0
	c.mu.Unlock()

	if empty {
		// Closing the socket makes the manager observe the empty watch
		// set and pause instead of reconnecting.
		if conn != nil {
			conn.Close()
		}
		return true
	}
	if conn != nil {
		c.sendOptionsUpdate(conn, update)
	}
	return true
}

func (c *Client) WatchedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dids)
}

func (c *Client) run(done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		if c.pauseIfUnwatched() {
			return
		}

		conn, err := c.dial()
		if err == nil {
			c.mu.Lock()
			c.conn = conn
			c.attempts = 0
			c.mu.Unlock()
			c.connected.Store(true)
			c.lastMsgAt.Store(time.Now().UnixNano())
			c.logger.Info("Connected", "instance", c.id, "cursor", c.cursor.Load())

			hbStop := make(chan struct{})
			go c.heartbeat(conn, hbStop)
			c.readLoop(conn, done)
			close(hbStop)

			c.connected.Store(false)
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()

			if c.pauseIfUnwatched() {
				return
			}
		} else {
			c.logger.Warn("Dial failed", "instance", c.id, "error", err)
		}

		c.mu.Lock()
		if c.stopped {
			c.mu.Unlock()
			return
		}
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()

		if c.cfg.MaxReconnects > 0 && attempt > c.cfg.MaxReconnects {
			c.logger.Error("Giving up on reconnecting", "instance", c.id, "attempts", attempt-1)
			c.mu.Lock()
			c.dialing = false
			c.mu.Unlock()
			c.errs <- ErrMaxReconnects
			return
		}

		var jitter time.Duration
		if c.cfg.ReconnectBase > 0 {
			jitter = time.Duration(rand.Int63n(int64(c.cfg.ReconnectBase)))
		}
		delay := reconnectDelay(attempt, c.cfg.ReconnectBase, c.cfg.ReconnectMax, jitter)
		c.logger.Info("Reconnecting", "instance", c.id, "attempt", attempt, "delay", delay.String())

		select {
		case <-time.After(delay):
		case <-done:
			return
		}
	}
}

// pauseIfUnwatched reports whether the manager should stop because nothing
// is watched. The next AddIdentifier starts a fresh manager.
func (c *Client) pauseIfUnwatched() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || len(c.dids) > 0 {
		return false
	}
	c.dialing = false
	c.attempts = 0
	c.logger.Info("No identifiers watched, stream paused", "instance", c.id)
	return true
}

// reconnectDelay computes min(base*2^attempt + jitter, max).
func reconnectDelay(attempt int, base, max, jitter time.Duration) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	delay := base << uint(attempt)
	if delay <= 0 || delay > max {
		return max
	}
	delay += jitter
	if delay > max {
		return max
	}
	return delay
}

func (c *Client) dial() (*websocket.Conn, error) {
	c.mu.Lock()
	dids := make([]string, 0, len(c.dids))
	for did := range c.dids {
		dids = append(dids, did)
	}
	c.mu.Unlock()

	endpoint, err := c.subscribeURL(dids)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) subscribeURL(dids []string) (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("bad stream url: %w", err)
	}

	q := u.Query()
	q.Set("wantedCollections", c.cfg.Collection)
	for _, did := range dids {
		q.Add("wantedDids", did)
	}
	if cursor := c.cursor.Load(); cursor > 0 {
		q.Set("cursor", fmt.Sprintf("%d", cursor))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
			) {
				c.logger.Warn("Unexpected close", "instance", c.id, "error", err)
			}
			return
		}

		c.lastMsgAt.Store(time.Now().UnixNano())

		var f frame
		if err := json.Unmarshal(msg, &f); err != nil {
			c.logger.Warn("Malformed frame, skipping", "instance", c.id, "error", err)
			continue
		}

		if f.TimeUS > c.cursor.Load() {
			c.cursor.Store(f.TimeUS)
		}

		if f.Kind != "commit" ||
			f.Commit.Operation != "create" ||
			f.Commit.Collection != c.cfg.Collection {
			continue
		}

		c.mu.Lock()
		_, watched := c.dids[f.Did]
		c.mu.Unlock()
		if !watched {
			continue
		}

		var record PostRecord
		if err := json.Unmarshal(f.Commit.Record, &record); err != nil {
			c.logger.Warn("Malformed post record, skipping", "instance", c.id, "error", err)
			continue
		}

		ev := PostEvent{
			Did:    f.Did,
			URI:    fmt.Sprintf("at://%s/%s/%s", f.Did, f.Commit.Collection, f.Commit.Rkey),
			CID:    f.Commit.Cid,
			Record: record,
			TimeUS: f.TimeUS,
		}
		// A send into a full buffer must not outlive Disconnect.
		select {
		case c.events <- ev:
		case <-done:
			return
		}
	}
}

// heartbeat force-closes the socket when no message has arrived within the
// stale threshold while at least one identifier is watched. A silently dead
// socket never delivers a close event on its own.
func (c *Client) heartbeat(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if c.WatchedCount() == 0 {
				continue
			}
			last := time.Unix(0, c.lastMsgAt.Load())
			if time.Since(last) > c.cfg.StaleThreshold {
				c.logger.Warn("Stream stale, forcing reconnect", "instance", c.id, "last_message", last.Format(time.RFC3339))
				conn.Close()
				return
			}
		}
	}
}

func (c *Client) buildOptionsUpdateLocked() optionsUpdate {
	update := optionsUpdate{Type: "options_update"}
	update.Payload.WantedCollections = []string{c.cfg.Collection}
	update.Payload.WantedDids = make([]string, 0, len(c.dids))
	for did := range c.dids {
		update.Payload.WantedDids = append(update.Payload.WantedDids, did)
	}
	return update
}

func (c *Client) sendOptionsUpdate(conn *websocket.Conn, update optionsUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	if err := conn.WriteJSON(update); err != nil {
		c.logger.Warn("Failed to send options update", "instance", c.id, "error", err)
		c.errs <- fmt.Errorf("options update: %w", err)
	}
}
