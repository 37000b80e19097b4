package workerpool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p := New(4, 16, nil)
	defer p.Close()

	var n int64
	const total = 50
	for i := 0; i < total; i++ {
		require.NoError(t, p.Submit(func() { atomic.AddInt64(&n, 1) }))
	}

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt64(&n) != total && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.EqualValues(t, total, atomic.LoadInt64(&n))
}

func TestPoolRejectsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	p := New(1, 1, nil)
	defer func() {
		close(block)
		p.Close()
	}()

	// Occupy the single worker so the queue fills up behind it.
	require.NoError(t, p.Submit(func() { <-block }))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.Submit(func() {}))
	require.ErrorIs(t, p.Submit(func() {}), ErrQueueFull)
	require.EqualValues(t, 1, p.Snapshot().Rejected)
}

func TestPoolRecoversFromPanickingTask(t *testing.T) {
	p := New(2, 8, nil)
	defer p.Close()

	done := make(chan struct{})
	require.NoError(t, p.Submit(func() { panic("boom") }))
	require.NoError(t, p.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not recover from panicking task")
	}
}

func TestClosePreventsNewSubmissions(t *testing.T) {
	p := New(2, 8, nil)
	p.Close()
	require.ErrorIs(t, p.Submit(func() {}), ErrClosed)
}
