// Package stream is the realtime feed: a websocket subscription delivering
// ticks to the tick store, order lifecycle events to the order cache and
// account patches to the account state.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"

	"github.com/rustyeddy/fxdesk/account"
	"github.com/rustyeddy/fxdesk/market"
	"github.com/rustyeddy/fxdesk/orders"
	"github.com/rustyeddy/fxdesk/session"
)

const (
	EventTick           = "tick"
	EventAccountUpdated = "AccountUpdated"
	EventSubscribe      = "subscribe"

	// DefaultTickChannel carries the public quotes.
	DefaultTickChannel = "ticks"
)

// ErrAlreadyStarted is returned by Start on a running subscription.
var ErrAlreadyStarted = errors.New("stream: already started")

// AccountChannel is the private channel of one account.
func AccountChannel(accountID string) string {
	return "private-account." + accountID
}

// Message is the envelope of every frame, in both directions.
type Message struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Auth    string          `json:"auth,omitempty"`
}

// Sinks receive decoded messages. Nil sinks are skipped.
type Sinks struct {
	Ticks   *market.TickStore
	Orders  *orders.Cache
	Account *account.State

	// OnMessage runs after a message was applied.
	OnMessage func(Message)
}

type Options struct {
	URL         string
	AccountID   string
	TickChannel string
	Session     *session.Session

	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration
}

// Stats count what the subscription has seen since Start.
type Stats struct {
	Ticks      int64
	Events     int64
	Dropped    int64
	Reconnects int64
}

// Subscription is a cancellable feed with an explicit Start/Stop lifecycle.
type Subscription struct {
	opts  Options
	sinks Sinks

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	conn    *websocket.Conn
	stopped bool
	err     error

	ticks, events, dropped, reconnects atomic.Int64
}

func New(opts Options, sinks Sinks) *Subscription {
	if opts.TickChannel == "" {
		opts.TickChannel = DefaultTickChannel
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 15 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = time.Second
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = 30 * time.Second
	}
	return &Subscription{opts: opts, sinks: sinks}
}

// Start connects in the background and keeps reconnecting until Stop or
// ctx is done.
func (s *Subscription) Start(ctx context.Context) error {
	if strings.TrimSpace(s.opts.URL) == "" {
		return errors.New("stream: url is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return ErrAlreadyStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
	return nil
}

// Stop cancels the subscription and waits for it to finish. No sink is
// touched after Stop returns.
func (s *Subscription) Stop() {
	s.mu.Lock()
	if s.done == nil {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.cancel()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	done := s.done
	s.mu.Unlock()
	<-done
}

// Done is closed when the subscription has ended.
func (s *Subscription) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err is the reason the subscription ended on its own, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) Stats() Stats {
	return Stats{
		Ticks:      s.ticks.Load(),
		Events:     s.events.Load(),
		Dropped:    s.dropped.Load(),
		Reconnects: s.reconnects.Load(),
	}
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	log := logger.WithField("url", s.opts.URL)

	backoff := s.opts.ReconnectMin
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			s.reconnects.Add(1)
			log.WithField("in", backoff).Info("reconnecting stream")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > s.opts.ReconnectMax {
				backoff = s.opts.ReconnectMax
			}
		}

		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, session.ErrUnauthorized) {
			log.WithError(err).Warn("stream stopped: not signed in")
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}
		if connected {
			backoff = s.opts.ReconnectMin
		}
		if err != nil {
			log.WithError(err).Warn("stream disconnected")
		}
	}
}

// session runs one connection until it fails. connected reports whether the
// handshake succeeded.
func (s *Subscription) session(ctx context.Context) (connected bool, err error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = conn.Close()
		return true, nil
	}
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		_ = conn.Close()
	}()

	if err := s.subscribe(conn); err != nil {
		return true, err
	}

	stopPing := s.keepalive(conn)
	defer stopPing()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("stream: read: %w", err)
		}
		if ctx.Err() != nil {
			return true, nil
		}
		s.Handle(raw)
	}
}

func (s *Subscription) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	var tok string
	if s.opts.Session != nil {
		var err error
		if tok, err = s.opts.Session.Token(); err != nil {
			return nil, err
		}
		header.Set("Authorization", "Bearer "+tok)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: s.opts.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, resp, err := dialer.DialContext(ctx, s.opts.URL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized && s.opts.Session != nil {
			err = fmt.Errorf("stream: handshake: %w", session.ErrUnauthorized)
			s.opts.Session.Logout(err)
			return nil, err
		}
		return nil, fmt.Errorf("stream: dial: %w", err)
	}
	return conn, nil
}

func (s *Subscription) subscribe(conn *websocket.Conn) error {
	frames := []Message{{Event: EventSubscribe, Channel: s.opts.TickChannel}}
	if s.opts.AccountID != "" {
		auth := ""
		if s.opts.Session != nil {
			auth, _ = s.opts.Session.Token()
		}
		frames = append(frames, Message{Event: EventSubscribe, Channel: AccountChannel(s.opts.AccountID), Auth: auth})
	}
	for _, f := range frames {
		if err := conn.WriteJSON(f); err != nil {
			return fmt.Errorf("stream: subscribe %s: %w", f.Channel, err)
		}
	}
	return nil
}

// keepalive pings the server; a missing pong lets the read deadline expire.
func (s *Subscription) keepalive(conn *websocket.Conn) func() {
	wait := s.opts.PingInterval * 2
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})

	stop := make(chan struct{})
	go func() {
		t := time.NewTicker(s.opts.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()
	return func() { close(stop) }
}

// Handle decodes one frame and applies it. Malformed frames and events for
// channels this subscription does not own are dropped. It reports whether
// the frame changed any state.
func (s *Subscription) Handle(raw []byte) bool {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return s.drop("malformed frame", err)
	}
	m.Data = unwrapData(m.Data)

	var applied bool
	switch {
	case m.Event == EventTick:
		var ev market.TickEvent
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			return s.drop("malformed tick", err)
		}
		if s.sinks.Ticks == nil || !s.sinks.Ticks.Apply(ev) {
			return s.drop("tick not applied", nil)
		}
		s.ticks.Add(1)
		applied = true

	case orders.EventType(m.Event).Known():
		if !s.ownChannel(m.Channel) {
			return s.drop("order event on foreign channel", nil)
		}
		ev, err := orders.DecodeEvent(orders.EventType(m.Event), m.Data)
		if err != nil {
			return s.drop("malformed order event", err)
		}
		if s.sinks.Orders == nil {
			return false
		}
		if err := s.sinks.Orders.ApplyEvent(ev); err != nil {
			return s.drop("order event not applied", err)
		}
		s.events.Add(1)
		applied = true

	case m.Event == EventAccountUpdated:
		if !s.ownChannel(m.Channel) {
			return s.drop("account event on foreign channel", nil)
		}
		if s.sinks.Account == nil {
			return false
		}
		fields, err := s.sinks.Account.MergeJSON(m.Data)
		if err != nil {
			return s.drop("malformed account patch", err)
		}
		s.events.Add(1)
		applied = len(fields) > 0

	default:
		// protocol chatter: subscription acks, pings
		return false
	}

	if applied && s.sinks.OnMessage != nil {
		s.sinks.OnMessage(m)
	}
	return applied
}

func (s *Subscription) ownChannel(ch string) bool {
	return ch == "" || s.opts.AccountID == "" || ch == AccountChannel(s.opts.AccountID)
}

func (s *Subscription) drop(why string, err error) bool {
	s.dropped.Add(1)
	entry := logger.WithField("why", why)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Debug("dropping stream message")
	return false
}

// unwrapData accepts data sent as a JSON string holding JSON.
func unwrapData(d json.RawMessage) json.RawMessage {
	d = bytes.TrimSpace(d)
	if len(d) == 0 || d[0] != '"' {
		return d
	}
	var inner string
	if err := json.Unmarshal(d, &inner); err != nil {
		return d
	}
	return json.RawMessage(inner)
}
