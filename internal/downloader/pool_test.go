package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xscraper/pkg/logger"
	"xscraper/pkg/models"
)

type fakeMaterializer struct {
	dir      string
	delay    time.Duration
	inFlight int32
	peak     int32
	calls    int32
}

func (f *fakeMaterializer) Materialize(ctx context.Context, url string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if strings.Contains(url, "broken") {
		return "", errors.New("404")
	}
	p := filepath.Join(f.dir, filepath.Base(url))
	if err := os.WriteFile(p, []byte(url), 0644); err != nil {
		return "", err
	}
	return p, nil
}

func refs(urls ...string) []models.MediaRef {
	out := make([]models.MediaRef, len(urls))
	for i, u := range urls {
		out[i] = models.MediaRef{SourceURL: u, Kind: models.MediaPhoto}
	}
	return out
}

func TestRunPreservesOrderAndReportsFailures(t *testing.T) {
	m := &fakeMaterializer{dir: t.TempDir(), delay: 5 * time.Millisecond}

	results := Run(context.Background(), 3, m, refs("https://x/a.jpg", "https://x/broken.jpg", "https://x/c.jpg"), logger.NewNopLogger())

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Error)
	assert.Equal(t, "a.jpg", filepath.Base(results[0].Path))
	assert.Positive(t, results[0].Size)

	assert.Error(t, results[1].Error)
	assert.Empty(t, results[1].Path)

	assert.Equal(t, "c.jpg", filepath.Base(results[2].Path))
}

func TestRunBoundsConcurrency(t *testing.T) {
	m := &fakeMaterializer{dir: t.TempDir(), delay: 20 * time.Millisecond}
	urls := make([]string, 12)
	for i := range urls {
		urls[i] = "https://x/" + string(rune('a'+i)) + ".jpg"
	}

	results := Run(context.Background(), 2, m, refs(urls...), logger.NewNopLogger())

	require.Len(t, results, 12)
	assert.LessOrEqual(t, atomic.LoadInt32(&m.peak), int32(2))
	assert.Equal(t, int32(12), atomic.LoadInt32(&m.calls))
}

func TestRunEmpty(t *testing.T) {
	assert.Empty(t, Run(context.Background(), 4, &fakeMaterializer{}, nil, nil))
}

func TestRunCancelled(t *testing.T) {
	m := &fakeMaterializer{dir: t.TempDir(), delay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results := Run(ctx, 2, m, refs("https://x/a.jpg", "https://x/b.jpg", "https://x/c.jpg", "https://x/d.jpg"), logger.NewNopLogger())

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	for _, r := range results {
		assert.Error(t, r.Error)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, &fakeMaterializer{}, logger.NewNopLogger())
	pool.Start()
	pool.Stop()

	assert.Error(t, pool.Submit(Job{}))
}
