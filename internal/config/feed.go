package config

import "time"

// Feed provider names accepted by FEED_PROVIDER.
const (
	FeedFixture   = "fixture"
	FeedDocstore  = "docstore"
	FeedWebSocket = "websocket"
	FeedKafka     = "kafka"
)

// FeedConfig selects and configures the upstream match feed.
type FeedConfig struct {
	Provider    string
	Collections []string

	FixturePath     string
	FixtureInterval time.Duration

	DocstoreBaseURL    string
	DocstoreAPIKey     string
	PollInterval       time.Duration
	MinRequestInterval time.Duration
	MaxRetries         int

	WebSocketURL string

	KafkaBrokers     []string
	KafkaTopicPrefix string
}

func loadFeed() FeedConfig {
	return FeedConfig{
		Provider:           envOrDefault(envFeedProvider, defaultFeedProvider),
		Collections:        listEnvOrDefault(envCollections, defaultCollections),
		FixturePath:        envOrDefault(envFixturePath, ""),
		FixtureInterval:    durationEnvOrDefault(envFixtureRate, defaultFixtureRate),
		DocstoreBaseURL:    envOrDefault(envDocstoreURL, ""),
		DocstoreAPIKey:     envOrDefault(envDocstoreKey, ""),
		PollInterval:       durationEnvOrDefault(envPollInterval, defaultPollInterval),
		MinRequestInterval: durationEnvOrDefault(envMinRequestGap, defaultMinRequestGap),
		MaxRetries:         intEnvOrDefault(envFeedRetries, defaultFeedRetries),
		WebSocketURL:       envOrDefault(envWSURL, ""),
		KafkaBrokers:       listEnvOrDefault(envKafkaBrokers, ""),
		KafkaTopicPrefix:   envOrDefault(envKafkaPrefix, ""),
	}
}
