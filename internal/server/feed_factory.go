package server

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/config"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed/docstore"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed/fixture"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed/kafkafeed"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed/wsfeed"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/logging"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/metrics"
)

var errNoCollections = errors.New("no feed collections configured")

type feedFactory struct {
	logger   *slog.Logger
	recorder *metrics.Recorder
}

func newFeedFactory(logger *slog.Logger, recorder *metrics.Recorder) feedFactory {
	return feedFactory{logger: logger, recorder: recorder}
}

// build returns the configured feed. Sources with several collections are
// merged into one feed. Unknown providers fall back to the fixture.
func (f feedFactory) build(cfg config.FeedConfig) (feed.Feed, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case config.FeedDocstore:
		return f.docstore(cfg)
	case config.FeedWebSocket:
		return f.websocket(cfg), nil
	case config.FeedKafka:
		return f.kafka(cfg)
	case config.FeedFixture, "":
		return f.fixture(cfg)
	default:
		logging.Warn(f.logger, "unknown feed provider, using fixture",
			slog.String(logging.FieldSource, cfg.Provider))
		return f.fixture(cfg)
	}
}

func (f feedFactory) fixture(cfg config.FeedConfig) (feed.Feed, error) {
	script, err := fixture.LoadScript(cfg.FixturePath)
	if err != nil {
		return nil, fmt.Errorf("load fixture script: %w", err)
	}
	return fixture.New(fixture.Config{
		Name:     config.FeedFixture,
		Script:   script,
		Interval: cfg.FixtureInterval,
		Logger:   f.logger,
	})
}

func (f feedFactory) docstore(cfg config.FeedConfig) (feed.Feed, error) {
	if len(cfg.Collections) == 0 {
		return nil, errNoCollections
	}
	client := docstore.NewClient(docstore.Config{
		BaseURL: cfg.DocstoreBaseURL,
		APIKey:  cfg.DocstoreAPIKey,
	})
	// One limiter shared by every collection keeps the total request rate bounded.
	fetcher := docstore.NewRetryingFetcher(
		docstore.NewRateLimitedFetcher(
			docstore.NewInstrumentedFetcher(client, f.recorder),
			cfg.MinRequestInterval, f.logger),
		f.logger, cfg.MaxRetries, 0)

	feeds := make([]feed.Feed, 0, len(cfg.Collections))
	for _, c := range cfg.Collections {
		feeds = append(feeds, docstore.NewFeed(docstore.FeedConfig{
			Collection: c,
			Fetcher:    fetcher,
			Interval:   cfg.PollInterval,
			Logger:     f.logger,
		}))
	}
	return feed.Merge(feeds...), nil
}

func (f feedFactory) websocket(cfg config.FeedConfig) feed.Feed {
	return wsfeed.New(wsfeed.Config{
		URL:         cfg.WebSocketURL,
		Collections: cfg.Collections,
		Logger:      f.logger,
	})
}

func (f feedFactory) kafka(cfg config.FeedConfig) (feed.Feed, error) {
	if len(cfg.Collections) == 0 {
		return nil, errNoCollections
	}
	feeds := make([]feed.Feed, 0, len(cfg.Collections))
	for _, c := range cfg.Collections {
		kf, err := kafkafeed.New(kafkafeed.Config{
			Brokers:     cfg.KafkaBrokers,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Collection:  c,
			Logger:      f.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("kafka feed %s: %w", c, err)
		}
		feeds = append(feeds, kf)
	}
	return feed.Merge(feeds...), nil
}
