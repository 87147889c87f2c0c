// Package relay connects the worker to the chat relay over WebSocket.
//
// The relay owns the chat service credentials. It pushes updates to the
// worker and performs sends, edits and callback answers the worker asks
// for. A Client keeps one connection open, reconnecting with capped
// exponential backoff, and implements chat.Responder on top of it.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/xdg/telecommand/internal/chat"
	"github.com/xdg/telecommand/internal/clog"
)

const (
	DefaultReconnectMin = time.Second
	DefaultReconnectMax = time.Minute
	DefaultReplyTimeout = 10 * time.Second

	readLimit = 1 << 20
)

// ErrDisconnected is returned by replies attempted while no relay
// connection is open.
var ErrDisconnected = errors.New("relay not connected")

// Handler consumes updates. chat.Bot implements it.
type Handler interface {
	Handle(ctx context.Context, u chat.Update) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, u chat.Update) error

func (f HandlerFunc) Handle(ctx context.Context, u chat.Update) error { return f(ctx, u) }

// Client is a reconnecting relay connection.
type Client struct {
	URL          string
	Token        string
	UserAgent    string
	HTTPClient   *http.Client
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	ReplyTimeout time.Duration

	mu      sync.Mutex
	current *session
	nextRef atomic.Uint64
}

// NewClient returns a Client for the relay at url.
func NewClient(url, token string) *Client {
	return &Client{URL: url, Token: token}
}

var _ chat.Responder = (*Client)(nil)

// Run connects to the relay and feeds updates to h, one at a time and in
// arrival order, until ctx is canceled. It returns nil on cancellation.
func (c *Client) Run(ctx context.Context, h Handler) error {
	updates := newUpdateQueue()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			u, ok := updates.pop()
			if !ok {
				return
			}
			if err := h.Handle(ctx, u); err != nil {
				clog.Warn("relay: update %d: %v", u.ID, err)
			}
		}
	}()
	defer func() {
		updates.close()
		<-done
	}()

	minWait, maxWait := c.backoffBounds()
	wait := minWait
	for {
		connected, err := c.serve(ctx, updates)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			wait = minWait
		}
		clog.Warn("relay: %v; reconnecting in %s", err, wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		wait = nextBackoff(wait, maxWait)
	}
}

func (c *Client) backoffBounds() (time.Duration, time.Duration) {
	minWait, maxWait := c.ReconnectMin, c.ReconnectMax
	if minWait <= 0 {
		minWait = DefaultReconnectMin
	}
	if maxWait <= 0 {
		maxWait = DefaultReconnectMax
	}
	if maxWait < minWait {
		maxWait = minWait
	}
	return minWait, maxWait
}

func nextBackoff(cur, limit time.Duration) time.Duration {
	next := cur * 2
	if next > limit || next <= 0 {
		return limit
	}
	return next
}

// serve runs one connection until it fails. connected reports whether the
// dial succeeded.
func (c *Client) serve(ctx context.Context, updates *updateQueue) (connected bool, err error) {
	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.UserAgent != "" {
		header.Set("User-Agent", c.UserAgent)
	}
	conn, _, err := websocket.Dial(ctx, c.URL, &websocket.DialOptions{
		HTTPClient: c.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		return false, fmt.Errorf("dialing relay: %w", err)
	}
	conn.SetReadLimit(readLimit)
	clog.Info("relay: connected to %s", c.URL)

	s := newSession(conn)
	c.setSession(s)
	defer func() {
		c.setSession(nil)
		s.shutdown()
		if cerr := conn.Close(websocket.StatusNormalClosure, ""); cerr != nil {
			clog.Debug("relay: close: %v", cerr)
		}
	}()

	for {
		var env Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return true, fmt.Errorf("reading from relay: %w", err)
		}
		switch env.Type {
		case TypeUpdate:
			if env.Update == nil {
				clog.Debug("relay: update frame without payload")
				continue
			}
			updates.push(env.Update.toUpdate())
		case TypeSent:
			if env.Sent != nil {
				s.deliver(*env.Sent)
			}
		default:
			clog.Debug("relay: ignoring frame type %q", env.Type)
		}
	}
}

func (c *Client) setSession(s *session) {
	c.mu.Lock()
	c.current = s
	c.mu.Unlock()
}

// request sends f on the current connection and waits for its
// acknowledgement.
func (c *Client) request(ctx context.Context, f ReplyFrame) (SentFrame, error) {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s == nil {
		return SentFrame{}, ErrDisconnected
	}

	timeout := c.ReplyTimeout
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	f.Ref = c.nextRef.Add(1)
	return s.request(ctx, f)
}

// Send implements chat.Responder.
func (c *Client) Send(ctx context.Context, chatID int64, r chat.Reply) (int64, error) {
	ack, err := c.request(ctx, replyFrame(ActionSend, chatID, 0, r))
	if err != nil {
		return 0, err
	}
	return ack.MessageID, nil
}

// Edit implements chat.Responder.
func (c *Client) Edit(ctx context.Context, chatID, messageID int64, r chat.Reply) error {
	_, err := c.request(ctx, replyFrame(ActionEdit, chatID, messageID, r))
	return err
}

// Answer implements chat.Responder.
func (c *Client) Answer(ctx context.Context, callbackID, text string, alert bool) error {
	_, err := c.request(ctx, ReplyFrame{
		Action:     ActionAnswer,
		CallbackID: callbackID,
		Text:       text,
		Alert:      alert,
	})
	return err
}
