package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tendant/simple-study-pipeline/internal/logger"
	"github.com/tendant/simple-study-pipeline/internal/metrics"
	"github.com/tendant/simple-study-pipeline/internal/study"
)

// Results caches successful processing results
type Results struct {
	store   Store
	ttl     time.Duration
	log     *logger.Logger
	metrics *metrics.Recorder
}

// NewResults wraps store. A nil *Results is valid and never hits.
func NewResults(store Store, ttl time.Duration, log *logger.Logger, m *metrics.Recorder) *Results {
	if log == nil {
		log = logger.Nop()
	}
	return &Results{store: store, ttl: ttl, log: log, metrics: m}
}

// Key identifies a result by image content and the options it was built with
func Key(image []byte, options any) (string, error) {
	h := sha256.New()
	h.Write(image)
	opts, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("encode cache options: %w", err)
	}
	h.Write([]byte{0})
	h.Write(opts)
	return "result:" + hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns a cached result. Store errors are logged and reported as a miss.
func (r *Results) Get(ctx context.Context, key string) (study.ProcessingResult, bool) {
	if r == nil || r.store == nil {
		return study.ProcessingResult{}, false
	}
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			r.log.Warn("result cache read failed", "key", key, "error", err)
		}
		r.metrics.CacheLookup(false)
		return study.ProcessingResult{}, false
	}
	var res study.ProcessingResult
	if err := json.Unmarshal(data, &res); err != nil {
		r.log.Warn("result cache entry unreadable", "key", key, "error", err)
		r.metrics.CacheLookup(false)
		return study.ProcessingResult{}, false
	}
	r.metrics.CacheLookup(true)
	return res, true
}

// Put stores res when it succeeded cleanly. Failed and degraded results are
// never cached.
func (r *Results) Put(ctx context.Context, key string, res study.ProcessingResult) error {
	if r == nil || r.store == nil || !res.Success || res.Degraded {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := r.store.Set(ctx, key, data, r.ttl); err != nil {
		return fmt.Errorf("cache result: %w", err)
	}
	return nil
}
