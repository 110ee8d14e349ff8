package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type failures struct {
	mu   sync.Mutex
	errs map[string][]error
}

func (f *failures) handle(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.errs == nil {
		f.errs = make(map[string][]error)
	}
	f.errs[key] = append(f.errs[key], err)
}

func (f *failures) get(key string) []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errs[key]...)
}

func TestJobsOfOneKeyRunInOrderWithoutOverlap(t *testing.T) {
	svc := NewService(context.Background(), 16, nil)

	var (
		mu      sync.Mutex
		order   []int
		running int
		overlap bool
	)

	for i := 0; i < 10; i++ {
		require.True(t, svc.Add("room", func(context.Context) error {
			mu.Lock()
			running++
			if running > 1 {
				overlap = true
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			running--
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}

	require.NoError(t, svc.Shutdown())

	assert.False(t, overlap)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestKeysRunIndependently(t *testing.T) {
	svc := NewService(context.Background(), 4, nil)

	release := make(chan struct{})
	done := make(chan struct{})

	svc.Add("slow", func(context.Context) error {
		<-release
		return nil
	})
	svc.Add("fast", func(context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fast key was blocked by slow key")
	}

	close(release)
	require.NoError(t, svc.Shutdown())
}

func TestAddDropsWhenFull(t *testing.T) {
	svc := NewService(context.Background(), 1, nil)

	started := make(chan struct{})
	release := make(chan struct{})

	require.True(t, svc.Add("room", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	assert.True(t, svc.Add("room", func(context.Context) error { return nil }))
	assert.False(t, svc.Add("room", func(context.Context) error { return nil }))

	close(release)
	require.NoError(t, svc.Shutdown())
}

func TestErrorsAndPanicsAreReported(t *testing.T) {
	var f failures
	svc := NewService(context.Background(), 4, f.handle)

	svc.Add("room", func(context.Context) error {
		return errors.New("gateway down")
	})
	svc.Add("room", func(context.Context) error {
		panic("nil map")
	})
	ran := false
	svc.Add("room", func(context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, svc.Shutdown())

	errs := f.get("room")
	require.Len(t, errs, 2)
	assert.EqualError(t, errs[0], "gateway down")
	assert.Contains(t, errs[1].Error(), "nil map")
	assert.True(t, ran, "worker survives a panic")
}

func TestJobsReceiveServiceContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(ctx, 1, nil)

	var got error
	svc.Add("room", func(ctx context.Context) error {
		got = ctx.Err()
		return nil
	})
	require.NoError(t, svc.Shutdown())

	assert.ErrorIs(t, got, context.Canceled)
}

func TestAddAfterShutdown(t *testing.T) {
	svc := NewService(context.Background(), 1, nil)
	require.NoError(t, svc.Shutdown())
	require.NoError(t, svc.Shutdown())

	assert.False(t, svc.Add("room", func(context.Context) error { return nil }))
}
