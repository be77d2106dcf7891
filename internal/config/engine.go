package config

import "time"

// EngineConfig holds reconciliation timing.
type EngineConfig struct {
	ResetAfter        time.Duration // countdown started when a match is decided
	TickInterval      time.Duration // clock period driving countdowns and highlights
	HighlightDuration time.Duration // how long a score change stays highlighted
}

func loadEngine() EngineConfig {
	return EngineConfig{
		ResetAfter:        durationEnvOrDefault(envResetAfter, defaultResetAfter),
		TickInterval:      durationEnvOrDefault(envTickInterval, defaultTickInterval),
		HighlightDuration: durationEnvOrDefault(envHighlightFor, defaultHighlightFor),
	}
}

// StreamConfig tunes the WebSocket view stream.
type StreamConfig struct {
	SendBuffer int
}

func loadStream() StreamConfig {
	return StreamConfig{
		SendBuffer: intEnvOrDefault(envStreamSendSize, defaultStreamSendSize),
	}
}
