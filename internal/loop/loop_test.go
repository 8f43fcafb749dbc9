package loop_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/matchlink/internal/loop"
)

func TestLoopRunsInPostOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l := loop.New()
	go l.Run(ctx)

	var got []int
	for i := range 100 {
		l.Post(func() { got = append(got, i) })
	}
	require.NoError(t, l.Do(ctx, func() {}))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoopPostFromInsideCallbackRunsAfterCurrent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l := loop.New()
	go l.Run(ctx)

	var got []string
	require.NoError(t, l.Do(ctx, func() {
		l.Post(func() { got = append(got, "inner") })
		got = append(got, "outer")
	}))
	require.NoError(t, l.Do(ctx, func() {}))

	assert.Equal(t, []string{"outer", "inner"}, got)
}

func TestLoopPostFromManyGoroutines(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l := loop.New()
	go l.Run(ctx)

	count := 0
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				l.Post(func() { count++ })
			}
		}()
	}
	wg.Wait()
	require.NoError(t, l.Do(ctx, func() {}))

	assert.Equal(t, 1000, count)
}

func TestLoopAfterFuncFiresOnLoop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l := loop.New()
	go l.Run(ctx)

	fired := make(chan struct{})
	l.AfterFunc(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-ctx.Done():
		t.Fatal("timer did not fire")
	}
}

func TestLoopAfterFuncStop(t *testing.T) {
	l := loop.New()
	timer := l.AfterFunc(time.Hour, func() {})
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
}

func TestLoopDoHonorsContext(t *testing.T) {
	l := loop.New() // never run
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Do(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
