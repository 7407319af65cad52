package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/basinlabs/symgraph/internal/sgerrors"
)

// request is one caller's text awaiting embedding in the coalescing
// queue.
type request struct {
	text   string
	result chan result
}

type result struct {
	vector []float32
	err    error
}

// Client is the adaptive-batching embedding queue. Callers call
// Embed/EmbedBatch; a background dispatcher coalesces pending requests
// into HTTP batches, bounded by MaxConcurrent inflight batches, and
// steers the batch size toward TargetLatency.
type Client struct {
	cfg        Config
	httpClient *http.Client

	requests chan *request
	sem      chan struct{} // bounds inflight batches to MaxConcurrent

	mu               sync.Mutex
	currentBatchSize int
	totalProcessed   int64
	totalFailed      int64
	latencySamples   []time.Duration
	batchSizeSamples []int
	inflight         int
	queueDepth       int

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

const requestQueueCapacity = 4096

// New builds a Client and starts its background dispatch loop. Callers
// must call Close to drain the dispatcher.
func New(cfg Config) *Client {
	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.GlobalTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxConcurrent * 2,
				MaxIdleConnsPerHost: cfg.MaxConcurrent * 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		requests:         make(chan *request, requestQueueCapacity),
		sem:              make(chan struct{}, cfg.MaxConcurrent),
		currentBatchSize: cfg.InitialBatch,
		closed:           make(chan struct{}),
	}
	c.wg.Add(1)
	go c.dispatchLoop()
	return c
}

// Embed enqueues a single text and blocks until its vector is ready, the
// context is cancelled, or the client is closed.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch enqueues N texts as independent queue items (so they may be
// coalesced with other callers' texts into a single wire batch) and waits
// for all results.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	reqs := make([]*request, len(texts))
	for i, t := range texts {
		reqs[i] = &request{text: t, result: make(chan result, 1)}
	}

	for _, r := range reqs {
		select {
		case c.requests <- r:
			c.mu.Lock()
			c.queueDepth++
			c.mu.Unlock()
		case <-ctx.Done():
			return nil, sgerrors.CancelledErr("embedclient: enqueue cancelled")
		case <-c.closed:
			return nil, sgerrors.New(sgerrors.KindEmbedding, sgerrors.CodeEmbeddingFailed, "embedclient: client closed", nil)
		}
	}

	out := make([][]float32, len(reqs))
	for i, r := range reqs {
		select {
		case res := <-r.result:
			if res.err != nil {
				return nil, res.err
			}
			out[i] = res.vector
		case <-ctx.Done():
			return nil, sgerrors.CancelledErr("embedclient: wait cancelled")
		}
	}
	return out, nil
}

// Close stops accepting new dispatch cycles and waits for inflight
// batches to finish.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	c.wg.Wait()
}

// Snapshot returns a point-in-time view of queue/dispatch metrics for the
// CLI's observability surface.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var avgLatency, avgBatch float64
	if n := len(c.latencySamples); n > 0 {
		var sum time.Duration
		for _, d := range c.latencySamples {
			sum += d
		}
		avgLatency = float64(sum.Milliseconds()) / float64(n)
	}
	if n := len(c.batchSizeSamples); n > 0 {
		var sum int
		for _, b := range c.batchSizeSamples {
			sum += b
		}
		avgBatch = float64(sum) / float64(n)
	}

	return Snapshot{
		QueueDepth:       c.queueDepth,
		Inflight:         c.inflight,
		TotalProcessed:   c.totalProcessed,
		TotalFailed:      c.totalFailed,
		AvgLatencyMS:     avgLatency,
		AvgBatchSize:     avgBatch,
		CurrentBatchSize: c.currentBatchSize,
	}
}

// dispatchLoop coalesces pending requests into batches and dispatches
// each once a concurrency slot is free, flushing early on a timer so a
// lone straggler request never waits longer than FlushInterval.
func (c *Client) dispatchLoop() {
	defer c.wg.Done()

	pending := make([]*request, 0, c.cfg.MaxBatch)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		c.mu.Lock()
		batchSize := c.currentBatchSize
		c.mu.Unlock()
		if batchSize > len(pending) {
			batchSize = len(pending)
		}
		batch := pending[:batchSize]
		pending = append([]*request{}, pending[batchSize:]...)

		c.mu.Lock()
		c.queueDepth -= len(batch)
		c.mu.Unlock()

		c.sem <- struct{}{}
		c.mu.Lock()
		c.inflight++
		c.mu.Unlock()

		c.wg.Add(1)
		go c.runBatch(batch)
	}

	for {
		select {
		case r := <-c.requests:
			pending = append(pending, r)
			if len(pending) >= c.currentBatchSizeSnapshot() {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-c.closed:
			// Drain whatever is left without waiting for more arrivals.
			for {
				select {
				case r := <-c.requests:
					pending = append(pending, r)
				default:
					for len(pending) > 0 {
						flush()
					}
					return
				}
			}
		}
	}
}

func (c *Client) currentBatchSizeSnapshot() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentBatchSize
}

// runBatch dispatches a single wire batch with retry, records latency,
// and steers currentBatchSize toward TargetLatency.
func (c *Client) runBatch(batch []*request) {
	defer c.wg.Done()
	defer func() {
		<-c.sem
		c.mu.Lock()
		c.inflight--
		c.mu.Unlock()
	}()

	texts := make([]string, len(batch))
	for i, r := range batch {
		texts[i] = r.text
	}

	start := time.Now()
	vectors, err := c.callWithRetry(context.Background(), texts)
	elapsed := time.Since(start)

	c.mu.Lock()
	c.latencySamples = append(c.latencySamples, elapsed)
	if len(c.latencySamples) > 50 {
		c.latencySamples = c.latencySamples[len(c.latencySamples)-50:]
	}
	c.batchSizeSamples = append(c.batchSizeSamples, len(batch))
	if len(c.batchSizeSamples) > 50 {
		c.batchSizeSamples = c.batchSizeSamples[len(c.batchSizeSamples)-50:]
	}
	c.adjustBatchSizeLocked(elapsed)
	if err != nil {
		c.totalFailed += int64(len(batch))
	} else {
		c.totalProcessed += int64(len(batch))
	}
	c.mu.Unlock()

	for i, r := range batch {
		if err != nil {
			r.result <- result{err: err}
			continue
		}
		r.result <- result{vector: vectors[i]}
	}
}

// adjustBatchSizeLocked implements the adaptive batching steer: batches
// that finish well under TargetLatency grow (more throughput per round
// trip), batches that exceed it by more than half shrink, always clamped to
// [MinBatch, MaxBatch]. Caller holds c.mu.
func (c *Client) adjustBatchSizeLocked(elapsed time.Duration) {
	target := c.cfg.TargetLatency
	switch {
	case elapsed > target+target/2:
		shrunk := int(float64(c.currentBatchSize) * 0.8)
		if shrunk < c.cfg.MinBatch {
			shrunk = c.cfg.MinBatch
		}
		c.currentBatchSize = shrunk
	case elapsed < target/2:
		grown := int(float64(c.currentBatchSize) * 1.2)
		if grown > c.cfg.MaxBatch {
			grown = c.cfg.MaxBatch
		}
		c.currentBatchSize = grown
	}
	if c.currentBatchSize < c.cfg.MinBatch {
		c.currentBatchSize = c.cfg.MinBatch
	}
	if c.currentBatchSize > c.cfg.MaxBatch {
		c.currentBatchSize = c.cfg.MaxBatch
	}
}

type embedRequestBody struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type embedResponseBody struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// callWithRetry performs the wire POST {service_url} with exponential
// backoff: the first wait is RetryDelays[0], each later wait doubles, and
// no wait exceeds the last entry. Entries between the first and the last
// are not used.
func (c *Client) callWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	retryCfg := sgerrors.RetryConfig{
		MaxRetries:   c.cfg.RetryAttempts - 1,
		InitialDelay: c.cfg.RetryDelays[0],
		MaxDelay:     c.cfg.RetryDelays[len(c.cfg.RetryDelays)-1],
		Multiplier:   2.0,
	}
	if retryCfg.MaxRetries < 0 {
		retryCfg.MaxRetries = 0
	}

	vectors, err := sgerrors.RetryWithResult(ctx, retryCfg, func() ([][]float32, error) {
		return c.call(ctx, texts)
	})
	if err != nil {
		return nil, sgerrors.EmbeddingErr(fmt.Sprintf("embedding request failed after %d attempts", c.cfg.RetryAttempts), err)
	}
	return vectors, nil
}

func (c *Client) call(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(embedRequestBody{Texts: texts, Model: c.cfg.Model})
	if err != nil {
		return nil, sgerrors.EmbeddingErr("encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ServiceURL, bytes.NewReader(payload))
	if err != nil {
		return nil, sgerrors.EmbeddingErr("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, sgerrors.CancelledErr("embedding request cancelled")
		}
		return nil, sgerrors.EmbeddingErr("embedding request transport error", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, sgerrors.EmbeddingErr("read embedding response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, sgerrors.EmbeddingErr(fmt.Sprintf("embedding service returned %d", resp.StatusCode), fmt.Errorf("%s", body))
	}

	var decoded embedResponseBody
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, sgerrors.EmbeddingErr("decode embedding response", err)
	}
	if len(decoded.Embeddings) != len(texts) {
		return nil, sgerrors.EmbeddingErr(fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(decoded.Embeddings)), nil)
	}
	return decoded.Embeddings, nil
}
