// Package embedclient implements the embedding HTTP client: a
// coalescing queue that batches texts into POST requests against an
// external GPU embedding service, with adaptive batch sizing,
// concurrency-bounded dispatch, and exponential-backoff retry. The wire
// contract is {texts, model} -> {embeddings}.
package embedclient

import "time"

// Config holds the batching, concurrency, and retry knobs.
type Config struct {
	ServiceURL string
	Model      string

	MinBatch     int
	MaxBatch     int
	InitialBatch int

	FlushInterval time.Duration
	MaxConcurrent int

	RetryAttempts int
	RetryDelays   []time.Duration

	TargetLatency time.Duration
	GlobalTimeout time.Duration
}

// DefaultConfig returns the standard defaults.
func DefaultConfig(serviceURL, model string) Config {
	return Config{
		ServiceURL:    serviceURL,
		Model:         model,
		MinBatch:      50,
		MaxBatch:      150,
		InitialBatch:  100,
		FlushInterval: 500 * time.Millisecond,
		MaxConcurrent: 3,
		RetryAttempts: 3,
		RetryDelays: []time.Duration{
			100 * time.Millisecond,
			500 * time.Millisecond,
			2 * time.Second,
		},
		TargetLatency: 3 * time.Second,
		GlobalTimeout: 60 * time.Second,
	}
}

// Snapshot reports the client's live observability fields.
type Snapshot struct {
	QueueDepth      int
	Inflight        int
	TotalProcessed  int64
	TotalFailed     int64
	AvgLatencyMS    float64
	AvgBatchSize    float64
	CurrentBatchSize int
}
