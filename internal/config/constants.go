package config

import "time"

const (
	envPort           = "PORT"
	envEventID        = "EVENT_ID"
	envCourtID        = "COURT_ID"
	envLogLevel       = "LOG_LEVEL"
	envLogFormat      = "LOG_FORMAT"
	envAdminToken     = "ADMIN_TOKEN"
	envCORSOrigins    = "CORS_ALLOWED_ORIGINS"
	envMetricsPort    = "METRICS_PORT"
	envMetricsOn      = "METRICS_ENABLED"
	envOtelEndpoint   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOtelService    = "OTEL_SERVICE_NAME"
	envOtelInsecure   = "OTEL_EXPORTER_OTLP_INSECURE"
	envFeedProvider   = "FEED_PROVIDER"
	envCollections    = "FEED_COLLECTIONS"
	envFixturePath    = "FEED_FIXTURE_PATH"
	envFixtureRate    = "FEED_FIXTURE_INTERVAL"
	envDocstoreURL    = "DOCSTORE_BASE_URL"
	envDocstoreKey    = "DOCSTORE_API_KEY"
	envPollInterval   = "FEED_POLL_INTERVAL"
	envMinRequestGap  = "FEED_MIN_REQUEST_INTERVAL"
	envFeedRetries    = "FEED_MAX_RETRIES"
	envWSURL          = "FEED_WS_URL"
	envKafkaBrokers   = "KAFKA_BROKERS"
	envKafkaPrefix    = "KAFKA_TOPIC_PREFIX"
	envResetAfter     = "RESET_AFTER"
	envTickInterval   = "TICK_INTERVAL"
	envHighlightFor   = "HIGHLIGHT_DURATION"
	envStreamSendSize = "STREAM_SEND_BUFFER"

	defaultPort           = "4000"
	defaultEventID        = "2024 MLP6"
	defaultCourtID        = "Grandstand"
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
	defaultCORSOrigins    = "*"
	defaultMetricsPort    = "9090"
	defaultServiceName    = "mlp-scoreboard-service"
	defaultFeedProvider   = "fixture"
	defaultCollections    = "mlpmatches"
	defaultFixtureRate    = 2 * Duration(time.Second)
	defaultPollInterval   = 2 * Duration(time.Second)
	defaultMinRequestGap  = 500 * Duration(time.Millisecond)
	defaultFeedRetries    = 3
	defaultResetAfter     = 180 * Duration(time.Second)
	defaultTickInterval   = Duration(time.Second)
	defaultHighlightFor   = Duration(time.Second)
	defaultStreamSendSize = 16
)
