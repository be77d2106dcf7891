package docstore

import "time"

const (
	defaultHTTPTimeout  = 10 * time.Second
	defaultMaxPages     = 5
	defaultPollInterval = 2 * time.Second
	defaultMaxRetries   = 3
	defaultBaseBackoff  = 200 * time.Millisecond
	defaultMaxBackoff   = 5 * time.Second
	errorBodyLimit      = 512
)
