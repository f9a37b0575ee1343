package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_SendReceive(t *testing.T) {
	q := NewQueue[int](10, 0)

	for i := 0; i < 5; i++ {
		require.True(t, q.Send(i), "Send(%d)", i)
	}
	assert.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		val, ok := q.TryReceive()
		require.True(t, ok, "item %d", i)
		assert.Equal(t, i, val)
	}

	_, ok := q.TryReceive()
	assert.False(t, ok, "empty queue")
}

func TestQueue_GrowsUnbounded(t *testing.T) {
	q := NewQueue[int](4, 0)

	for i := 0; i < 100; i++ {
		q.Send(i)
	}

	stats := q.Stats()
	assert.GreaterOrEqual(t, stats.Capacity, 100)
	assert.GreaterOrEqual(t, stats.ResizeCount, 3)

	for i := 0; i < 100; i++ {
		val, ok := q.TryReceive()
		require.True(t, ok)
		require.Equal(t, i, val)
	}
}

func TestQueue_GrowthClampedToLimit(t *testing.T) {
	q := NewQueue[int](4, 10)

	for i := 0; i < 10; i++ {
		q.Send(i)
	}

	stats := q.Stats()
	assert.Equal(t, 10, stats.Capacity)
	assert.Equal(t, 10, stats.Count)
	assert.Zero(t, stats.BlockedSends)
}

func TestQueue_SendBlocksAtLimit(t *testing.T) {
	q := NewQueue[int](2, 2)
	q.Send(1)
	q.Send(2)

	sent := make(chan bool, 1)
	go func() {
		sent <- q.Send(3)
	}()

	select {
	case <-sent:
		t.Fatal("Send should block while the queue is full at its limit")
	case <-time.After(20 * time.Millisecond):
	}

	val, ok := q.Receive()
	require.True(t, ok)
	require.Equal(t, 1, val)

	select {
	case ok := <-sent:
		assert.True(t, ok, "blocked Send succeeds once room is made")
	case <-time.After(time.Second):
		t.Fatal("Send was not released by Receive")
	}

	assert.Equal(t, int64(1), q.Stats().BlockedSends)
	assert.Equal(t, []int{2, 3}, q.DrainTo(0))
}

func TestQueue_TrySendAtLimit(t *testing.T) {
	q := NewQueue[int](2, 2)

	assert.True(t, q.TrySend(1))
	assert.True(t, q.TrySend(2))
	assert.False(t, q.TrySend(3), "full at limit")
	assert.Zero(t, q.Stats().BlockedSends)

	q.TryReceive()
	assert.True(t, q.TrySend(4), "room after a receive")
	assert.Equal(t, []int{2, 4}, q.DrainTo(0))

	q.Close()
	assert.False(t, q.TrySend(5), "closed")
}

func TestQueue_TrySendGrows(t *testing.T) {
	q := NewQueue[int](2, 0)
	for i := 0; i < 50; i++ {
		require.True(t, q.TrySend(i))
	}
	assert.Equal(t, 50, q.Len())
	assert.Positive(t, q.Stats().ResizeCount)
}

func TestQueue_CloseReleasesBlockedSend(t *testing.T) {
	q := NewQueue[int](1, 1)
	q.Send(1)

	sent := make(chan bool, 1)
	go func() {
		sent <- q.Send(2)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-sent:
		assert.False(t, ok, "Send returns false when closed while blocked")
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Send")
	}
}

func TestQueue_BlockingReceive(t *testing.T) {
	q := NewQueue[int](10, 0)

	received := make(chan int, 1)
	go func() {
		val, ok := q.Receive()
		if ok {
			received <- val
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Send(42)

	select {
	case val := <-received:
		assert.Equal(t, 42, val)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for blocked receive")
	}
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue[int](10, 0)
	q.Send(1)
	q.Send(2)
	q.Close()

	assert.False(t, q.Send(3), "Send after Close")

	for _, want := range []int{1, 2} {
		val, ok := q.Receive()
		require.True(t, ok)
		assert.Equal(t, want, val)
	}

	_, ok := q.Receive()
	assert.False(t, ok, "closed and empty")
}

func TestQueue_CloseUnblocksReceive(t *testing.T) {
	q := NewQueue[int](10, 0)

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Receive()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok, "closed and empty")
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Receive")
	}
}

func TestQueue_DrainTo(t *testing.T) {
	q := NewQueue[int](10, 0)
	for i := 0; i < 10; i++ {
		q.Send(i)
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, q.DrainTo(5))
	assert.Len(t, q.DrainTo(0), 5)
	assert.Zero(t, q.Len())
	assert.Nil(t, q.DrainTo(0), "empty queue")
}

func TestQueue_WrapAround(t *testing.T) {
	q := NewQueue[int](5, 0)

	q.Send(1)
	q.Send(2)
	q.Send(3)
	q.TryReceive()
	q.TryReceive()

	for i := 4; i <= 8; i++ {
		q.Send(i)
	}

	assert.Equal(t, []int{3, 4, 5, 6, 7, 8}, q.DrainTo(0))
}

func TestQueue_ConcurrentSendReceive(t *testing.T) {
	q := NewQueue[int](4, 16)
	const numItems = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < numItems; i++ {
			q.Send(i)
		}
	}()

	received := make([]int, 0, numItems)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < numItems; i++ {
			val, ok := q.Receive()
			if ok {
				received = append(received, val)
			}
		}
	}()

	wg.Wait()

	require.Len(t, received, numItems)
	// Single producer and single consumer keep FIFO order.
	for i, val := range received {
		require.Equal(t, i, val, "received[%d]", i)
	}
}

func TestNewQueue_Bounds(t *testing.T) {
	q := NewQueue[int](0, 0)
	assert.Equal(t, 1, q.Stats().Capacity, "initial capacity 0")

	q = NewQueue[int](8, 3)
	assert.Equal(t, 8, q.Stats().Limit, "limit raised to initial capacity")
}
