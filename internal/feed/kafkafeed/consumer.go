// Package kafkafeed consumes match documents from a compacted Kafka topic
// keyed by "eventID|court". Each subscription replays every partition from
// the first retained offset, so the latest document for the key is always
// delivered; offsets are never committed.
package kafkafeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/logging"
)

const (
	defaultPollTimeout = 5 * time.Second
	defaultErrorPause  = time.Second
)

// Config wires one collection to its topic.
type Config struct {
	Brokers     []string
	TopicPrefix string
	Collection  string
	PollTimeout time.Duration
	ErrorPause  time.Duration
	NewReader   ReaderFactory
	Partitions  PartitionLister
	Now         func() time.Time
	Logger      *slog.Logger
}

// Feed delivers one update per record for the watched key.
type Feed struct {
	collection  string
	topic       string
	pollTimeout time.Duration
	errorPause  time.Duration
	newReader   ReaderFactory
	partitions  PartitionLister
	now         func() time.Time
	logger      *slog.Logger
}

func New(cfg Config) (*Feed, error) {
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, errors.New("kafkafeed: collection must not be empty")
	}
	newReader, partitions := cfg.NewReader, cfg.Partitions
	if newReader == nil {
		if len(cfg.Brokers) == 0 {
			return nil, errors.New("kafkafeed: at least one broker is required")
		}
		newReader = newPartitionReader(cfg.Brokers)
		if partitions == nil {
			partitions = lookupPartitions(cfg.Brokers)
		}
	}
	if partitions == nil {
		partitions = singlePartition
	}
	f := &Feed{
		collection:  cfg.Collection,
		topic:       cfg.TopicPrefix + cfg.Collection,
		pollTimeout: cfg.PollTimeout,
		errorPause:  cfg.ErrorPause,
		newReader:   newReader,
		partitions:  partitions,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
	if f.pollTimeout <= 0 {
		f.pollTimeout = defaultPollTimeout
	}
	if f.errorPause <= 0 {
		f.errorPause = defaultErrorPause
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f, nil
}

func (f *Feed) Name() string { return f.collection }

// Topic returns the topic this feed reads.
func (f *Feed) Topic() string { return f.topic }

func (f *Feed) Subscribe(ctx context.Context, filter feed.Filter, onUpdate feed.UpdateFunc, onError feed.ErrorFunc) (feed.Unsubscribe, error) {
	ids, err := f.partitions(ctx, f.topic)
	if err != nil {
		return nil, err
	}
	readers := make([]MessageReader, 0, len(ids))
	for _, id := range ids {
		r := f.newReader(f.topic, id)
		if r == nil {
			for _, opened := range readers {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("kafkafeed: no reader for topic %s partition %d", f.topic, id)
		}
		readers = append(readers, r)
	}

	return feed.Start(ctx, onUpdate, onError, func(ctx context.Context, gate *feed.Gate) {
		logging.Info(f.logger, "kafkafeed consumer started",
			slog.String("topic", f.topic),
			slog.Int("partitions", len(readers)),
			slog.String(logging.FieldEventID, filter.EventID),
			slog.String(logging.FieldCourtID, filter.CourtID),
		)
		defer logging.Info(f.logger, "kafkafeed consumer stopped", slog.String("topic", f.topic))

		var wg sync.WaitGroup
		for _, r := range readers {
			wg.Add(1)
			go func(r MessageReader) {
				defer wg.Done()
				defer r.Close()
				f.run(ctx, r, filter, gate)
			}(r)
		}
		wg.Wait()
	}), nil
}

// run reads one partition until ctx ends. A key lives in one partition, so
// per-key order is kept.
func (f *Feed) run(ctx context.Context, reader MessageReader, filter feed.Filter, gate *feed.Gate) {
	for {
		if ctx.Err() != nil {
			return
		}

		fetchCtx, cancel := context.WithTimeout(ctx, f.pollTimeout)
		msg, err := reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			gate.Error(feed.Wrap(f.collection, fmt.Errorf("fetch: %w", err)))
			select {
			case <-ctx.Done():
				return
			case <-time.After(f.errorPause):
			}
			continue
		}

		f.handle(msg, filter, gate)
	}
}

func (f *Feed) handle(msg kafka.Message, filter feed.Filter, gate *feed.Gate) {
	if string(msg.Key) != filter.Key() {
		return
	}
	if len(msg.Value) == 0 {
		gate.Update(feed.EmptyUpdate(f.collection, f.now()))
		return
	}
	snap, err := match.Decode(msg.Value)
	if err != nil {
		logging.Warn(f.logger, "kafkafeed decode failed", slog.String("topic", f.topic), slog.Int64("offset", msg.Offset))
		gate.Error(feed.Wrap(f.collection, err))
		return
	}
	if snap.EventID == "" && snap.CourtID == "" {
		snap.EventID, snap.CourtID = filter.EventID, filter.CourtID
	}
	if !filter.Matches(snap) {
		gate.Update(feed.EmptyUpdate(f.collection, f.now()))
		return
	}
	gate.Update(feed.SnapshotUpdate(f.collection, snap, f.now()))
}
