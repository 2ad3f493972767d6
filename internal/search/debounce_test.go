package search

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThreeChangesOneFetchWithLastValue(t *testing.T) {
	var calls atomic.Int64
	var lastQuery atomic.Value
	d := NewDebouncer(Config{Delay: 60 * time.Millisecond}, func(ctx context.Context, query string) ([]string, error) {
		calls.Add(1)
		lastQuery.Store(query)
		return []string{"hit:" + query}, nil
	})

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, q := range []string{"b", "ba"} {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			_, errs[i] = d.Do(ctx, q)
		}(i, q)
		time.Sleep(10 * time.Millisecond)
	}

	res, err := d.Do(ctx, "ban")
	wg.Wait()

	require.NoError(t, err)
	require.Equal(t, []string{"hit:ban"}, res)
	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, "ban", lastQuery.Load())
	require.ErrorIs(t, errs[0], ErrSuperseded)
	require.ErrorIs(t, errs[1], ErrSuperseded)
}

func TestEmptyQueryClearsWithoutFetch(t *testing.T) {
	var calls atomic.Int64
	d := NewDebouncer(Config{Delay: 20 * time.Millisecond}, func(ctx context.Context, query string) ([]string, error) {
		calls.Add(1)
		return nil, nil
	})

	res, err := d.Do(context.Background(), "   ")
	require.NoError(t, err)
	require.Nil(t, res)

	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 0, calls.Load())
}

func TestMinQueryLengthClearsWithoutFetch(t *testing.T) {
	var calls atomic.Int64
	d := NewDebouncer(Config{Delay: 20 * time.Millisecond, MinQuery: 3}, func(ctx context.Context, query string) ([]string, error) {
		calls.Add(1)
		return []string{query}, nil
	})

	res, err := d.Do(context.Background(), "ab")
	require.NoError(t, err)
	require.Nil(t, res)

	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 0, calls.Load())
}

func TestLateResponseIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	var fetched atomic.Int64
	d := NewDebouncer(Config{Delay: 10 * time.Millisecond}, func(ctx context.Context, query string) (string, error) {
		if fetched.Add(1) == 1 {
			<-release
			return "stale:" + query, nil
		}
		return "fresh:" + query, nil
	})

	ctx := context.Background()
	firstErr := make(chan error, 1)
	go func() {
		_, err := d.Do(ctx, "old")
		firstErr <- err
	}()

	// Wait until the first fetch is in flight, then supersede it.
	require.Eventually(t, d.Loading, time.Second, 5*time.Millisecond)

	secondDone := make(chan struct{})
	var secondRes string
	var secondErrVal error
	go func() {
		secondRes, secondErrVal = d.Do(ctx, "new")
		close(secondDone)
	}()

	require.ErrorIs(t, <-firstErr, ErrSuperseded)
	close(release)

	<-secondDone
	require.NoError(t, secondErrVal)
	require.Equal(t, "fresh:new", secondRes)
}

func TestLoadingClearedAfterError(t *testing.T) {
	d := NewDebouncer(Config{Delay: 10 * time.Millisecond}, func(ctx context.Context, query string) (string, error) {
		return "", context.DeadlineExceeded
	})

	_, err := d.Do(context.Background(), "q")
	require.Error(t, err)
	require.False(t, d.Loading())
}

func TestPoolIsolatesSessions(t *testing.T) {
	p := NewPool(Config{Delay: 10 * time.Millisecond}, func(ctx context.Context, query string) (string, error) {
		return query, nil
	})

	a := p.Get("session-a")
	b := p.Get("session-b")
	require.NotSame(t, a, b)
	require.Same(t, a, p.Get("session-a"))
}
