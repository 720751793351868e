package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-study-pipeline/internal/metrics"
	"github.com/tendant/simple-study-pipeline/internal/study"
)

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Minute)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, s.Set(ctx, "forever", []byte("x"), 0))
	now = now.Add(24 * time.Hour)
	_, err = s.Get(ctx, "forever")
	assert.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "forever"))
	_, err = s.Get(ctx, "forever")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestKey(t *testing.T) {
	type opts struct{ Quiz int }
	a, err := Key([]byte("img"), opts{Quiz: 5})
	require.NoError(t, err)
	b, _ := Key([]byte("img"), opts{Quiz: 5})
	c, _ := Key([]byte("img"), opts{Quiz: 3})
	d, _ := Key([]byte("other"), opts{Quiz: 5})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Regexp(t, `^result:[0-9a-f]{64}$`, a)
}

func TestResults_OnlySuccessIsCached(t *testing.T) {
	m := metrics.New()
	r := NewResults(NewMemoryStore(), time.Hour, nil, m)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, "bad", study.ProcessingResult{Success: false, ErrorMessage: "too low"}))
	_, ok := r.Get(ctx, "bad")
	assert.False(t, ok)

	want := study.ProcessingResult{
		Success:        true,
		TextExtraction: study.TextExtractionResult{Text: "hello world", ToolUsed: study.ToolGeneralOCR},
		Warnings:       []string{},
	}
	require.NoError(t, r.Put(ctx, "good", want))
	got, ok := r.Get(ctx, "good")
	require.True(t, ok)
	assert.Equal(t, want, got)

	// one hit series and one miss series
	n, err := testutil.GatherAndCount(m.Registry(), "study_pipeline_result_cache_lookups_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestResults_DegradedIsNotCached(t *testing.T) {
	r := NewResults(NewMemoryStore(), time.Hour, nil, metrics.New())
	ctx := context.Background()

	degraded := study.ProcessingResult{
		Success:  true,
		Degraded: true,
		Summary:  &study.SummaryResult{Summary: "Summary generation failed: quota exceeded"},
		Warnings: []string{},
	}
	require.NoError(t, r.Put(ctx, "fallback", degraded))
	_, ok := r.Get(ctx, "fallback")
	assert.False(t, ok)
}

func TestResults_NilIsDisabled(t *testing.T) {
	var r *Results
	_, ok := r.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.NoError(t, r.Put(context.Background(), "k", study.ProcessingResult{Success: true}))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, RedisConfig{Addr: addr, Prefix: "study-test:"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
