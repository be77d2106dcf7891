// Package wsfeed subscribes to match documents pushed over a WebSocket.
package wsfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/logging"
)

const (
	defaultName = "websocket"
	minBackoff  = 1 * time.Second
	maxBackoff  = 30 * time.Second
	readTimeout = 90 * time.Second
	pongWait    = 5 * time.Second
)

// ErrNoURL is returned when subscribing without an upstream URL.
var ErrNoURL = errors.New("wsfeed: no url configured")

// Config controls the upstream connection.
type Config struct {
	URL         string
	Collections []string
	Header      http.Header
	Dialer      *websocket.Dialer
	ReadTimeout time.Duration
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	Now         func() time.Time
	Logger      *slog.Logger
}

// Feed keeps one WebSocket open for the watched pair and reconnects with
// capped exponential backoff when it drops.
type Feed struct {
	url         string
	collections []string
	header      http.Header
	dialer      *websocket.Dialer
	readTimeout time.Duration
	minBackoff  time.Duration
	maxBackoff  time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

func New(cfg Config) *Feed {
	f := &Feed{
		url:         cfg.URL,
		collections: cfg.Collections,
		header:      cfg.Header,
		dialer:      cfg.Dialer,
		readTimeout: cfg.ReadTimeout,
		minBackoff:  cfg.MinBackoff,
		maxBackoff:  cfg.MaxBackoff,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
	if f.dialer == nil {
		f.dialer = websocket.DefaultDialer
	}
	if f.readTimeout <= 0 {
		f.readTimeout = readTimeout
	}
	if f.minBackoff <= 0 {
		f.minBackoff = minBackoff
	}
	if f.maxBackoff <= 0 {
		f.maxBackoff = maxBackoff
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

func (f *Feed) Name() string { return defaultName }

func (f *Feed) Subscribe(ctx context.Context, filter feed.Filter, onUpdate feed.UpdateFunc, onError feed.ErrorFunc) (feed.Unsubscribe, error) {
	if f.url == "" {
		return nil, ErrNoURL
	}
	target, err := f.endpoint(filter)
	if err != nil {
		return nil, err
	}
	return feed.Start(ctx, onUpdate, onError, func(ctx context.Context, gate *feed.Gate) {
		f.connectWithRetry(ctx, target, filter, gate)
	}), nil
}

// connectWithRetry blocks until ctx is cancelled.
func (f *Feed) connectWithRetry(ctx context.Context, target string, filter feed.Filter, gate *feed.Gate) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.minBackoff
	b.MaxInterval = f.maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		err := f.session(ctx, target, filter, gate, b)
		if ctx.Err() != nil {
			return
		}

		attempt++
		delay := b.NextBackOff()
		if err != nil {
			gate.Error(feed.Wrap(defaultName, err))
			logging.Warn(f.logger, "wsfeed connection lost",
				slog.Int("attempt", attempt),
				slog.Int64("retry_in_ms", delay.Milliseconds()),
				slog.Any("err", err),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (f *Feed) session(ctx context.Context, target string, filter feed.Filter, gate *feed.Gate, b backoff.BackOff) error {
	conn, _, err := f.dialer.DialContext(ctx, target, f.header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	b.Reset()

	// Unblock ReadMessage when the subscription ends.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(f.readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(pongWait))
	})
	logging.Info(f.logger, "wsfeed connected", slog.String("url", redact(target)))

	for {
		_ = conn.SetReadDeadline(time.Now().Add(f.readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.handle(raw, filter, gate)
	}
}

func (f *Feed) handle(raw []byte, filter feed.Filter, gate *feed.Gate) {
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		gate.Error(feed.Wrap(defaultName, fmt.Errorf("decode message: %w", err)))
		return
	}
	source := msg.Collection
	if source == "" {
		source = defaultName
	}

	switch msg.Type {
	case typeEmpty:
		gate.Update(feed.EmptyUpdate(source, f.now()))
	case typeSnapshot:
		snap, err := match.Decode(msg.Document)
		if err != nil {
			gate.Error(feed.Wrap(source, err))
			return
		}
		if snap.Key() != filter.Key() {
			return
		}
		if !filter.Matches(snap) {
			gate.Update(feed.EmptyUpdate(source, f.now()))
			return
		}
		gate.Update(feed.SnapshotUpdate(source, snap, f.now()))
	default:
		logging.Debug(f.logger, "wsfeed unknown message type", slog.String("type", msg.Type))
	}
}

func (f *Feed) endpoint(filter feed.Filter) (string, error) {
	u, err := url.Parse(f.url)
	if err != nil {
		return "", fmt.Errorf("wsfeed: parse url: %w", err)
	}
	q := u.Query()
	q.Set("eventID", filter.EventID)
	q.Set("court", filter.CourtID)
	if filter.LiveOnly {
		q.Set("live", "true")
	}
	if len(f.collections) > 0 {
		q.Set("collections", strings.Join(f.collections, ","))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func redact(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
