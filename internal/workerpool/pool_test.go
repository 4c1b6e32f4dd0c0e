package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoReturnsJobResult(t *testing.T) {
	p := New(2, 4)
	defer p.Close()

	ran := false
	require.NoError(t, p.Do(context.Background(), func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)

	boom := errors.New("boom")
	assert.ErrorIs(t, p.Do(context.Background(), func(context.Context) error { return boom }), boom)
}

func TestBoundedConcurrency(t *testing.T) {
	const workers = 3
	p := New(workers, 0)
	defer p.Close()

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func(context.Context) error {
				n := active.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(workers))
	assert.Positive(t, peak.Load())
}

func TestDoAfterClose(t *testing.T) {
	p := New(1, 1)
	p.Close()
	p.Close()

	err := p.Do(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestCloseDrainsQueuedJobs(t *testing.T) {
	p := New(1, 8)

	release := make(chan struct{})
	var done atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Do(context.Background(), func(context.Context) error {
				<-release
				done.Add(1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}

	// let the submitters enqueue before closing
	require.Eventually(t, func() bool { return len(p.jobs) == 4 }, time.Second, time.Millisecond)
	close(release)
	p.Close()
	wg.Wait()

	assert.Equal(t, int32(5), done.Load())
}

func TestCancelledContextSkipsJob(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := p.Do(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestPanicBecomesError(t *testing.T) {
	p := New(1, 0)
	defer p.Close()

	err := p.Do(context.Background(), func(context.Context) error { panic("nope") })
	assert.ErrorContains(t, err, "nope")

	// the worker survives
	assert.NoError(t, p.Do(context.Background(), func(context.Context) error { return nil }))
}
