package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapping-viewer/internal/common/logger"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New(logger.NewNoOpLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(cancel)
	return l
}

func TestLoop_PostRunsInOrder(t *testing.T) {
	l := startLoop(t)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoop_AfterAndCancel(t *testing.T) {
	l := startLoop(t)

	fired := make(chan string, 2)
	l.After(10*time.Millisecond, func() { fired <- "kept" })
	cancel := l.After(5*time.Millisecond, func() { fired <- "canceled" })
	cancel()

	select {
	case v := <-fired:
		assert.Equal(t, "kept", v)
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestLoop_SurvivesPanickingTask(t *testing.T) {
	l := startLoop(t)

	l.Post(func() { panic("boom") })
	ran := false
	require.NoError(t, l.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestLoop_DoAfterStop(t *testing.T) {
	l := New(logger.NewNoOpLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { l.Run(ctx); close(done) }()
	cancel()
	<-done

	err := l.Do(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestFetch_DeliversOnLoop(t *testing.T) {
	l := startLoop(t)

	var mu sync.Mutex
	result := make(chan int, 1)
	Fetch(l, context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	}, func(v int, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.NoError(t, err)
		result <- v
	})

	select {
	case v := <-result:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("fetch never completed")
	}
}

func TestManual_VirtualTime(t *testing.T) {
	m := NewManual()
	var order []string

	m.After(100*time.Millisecond, func() {
		order = append(order, "100ms")
		m.After(50*time.Millisecond, func() { order = append(order, "150ms") })
	})
	m.After(100*time.Millisecond, func() { order = append(order, "100ms-second") })
	cancel := m.After(120*time.Millisecond, func() { order = append(order, "canceled") })
	m.Post(func() { order = append(order, "posted") })
	cancel()

	m.Advance(99 * time.Millisecond)
	assert.Equal(t, []string{"posted"}, order)

	m.Advance(time.Second)
	assert.Equal(t, []string{"posted", "100ms", "100ms-second", "150ms"}, order)
	assert.Equal(t, 0, m.ActiveTimers())
	assert.Equal(t, 1099*time.Millisecond, m.Now())
}

func TestManual_HeldSpawns(t *testing.T) {
	m := NewManual()
	m.HoldSpawns(true)

	var got error
	Fetch(m, context.Background(), func(ctx context.Context) (string, error) {
		return "", errors.New("late")
	}, func(_ string, err error) { got = err })

	m.Drain()
	assert.Nil(t, got)
	assert.Equal(t, 1, m.Pending())

	m.ReleaseSpawned()
	assert.EqualError(t, got, "late")
	assert.Equal(t, 0, m.Pending())
}
