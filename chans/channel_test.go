package chans

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestChannelBufferedRoundTrip tests that a buffered channel delivers items
// in FIFO order and reports closure once drained.
func TestChannelBufferedRoundTrip(t *testing.T) {
	t.Parallel()

	ch := New[int](3)

	require.True(t, ch.Send(1))
	require.True(t, ch.Send(2))
	require.True(t, ch.Send(3))
	require.Equal(t, 3, ch.Len())

	ch.Close()

	for want := 1; want <= 3; want++ {
		v, ok := ch.Receive()
		require.True(t, ok)
		require.Equal(t, want, v)
	}

	// Closed and drained: the two-valued receive reports closure.
	_, ok := ch.Receive()
	require.False(t, ok)
}

// TestChannelFIFOProperty verifies that for any sent sequence, the receiver
// observes exactly that sequence followed by the closed indication.
func TestChannelFIFOProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		items := rapid.SliceOfN(rapid.Int(), 0, 50).Draw(t, "items")

		ch := New[int](len(items) + 1)
		for _, v := range items {
			if !ch.Send(v) {
				t.Fatal("send on open channel failed")
			}
		}
		ch.Close()

		for i, want := range items {
			v, ok := ch.Receive()
			if !ok {
				t.Fatalf("channel closed early at %d", i)
			}
			if v != want {
				t.Fatalf("item %d: got %d, want %d", i, v,
					want)
			}
		}

		if _, ok := ch.Receive(); ok {
			t.Fatal("expected closed indication after drain")
		}
	})
}

// TestChannelRendezvous tests the rendezvous protocol: the sender's Send
// does not return until a receiver has observed the value.
func TestChannelRendezvous(t *testing.T) {
	t.Parallel()

	ch := New[int](0)

	sendReturned := make(chan struct{})
	go func() {
		defer close(sendReturned)

		ok := ch.Send(42)
		require.True(t, ok)
	}()

	// Give the sender a head start; it must stay blocked with no
	// receiver present.
	time.Sleep(50 * time.Millisecond)
	select {
	case <-sendReturned:
		t.Fatal("send returned before a receiver arrived")
	default:
	}

	v, ok := ch.Receive()
	require.True(t, ok)
	require.Equal(t, 42, v)

	select {
	case <-sendReturned:
	case <-time.After(time.Second):
		t.Fatal("send did not return after the value was received")
	}
}

// TestChannelRendezvousSenderBlocks tests that a rendezvous sender with no
// receiver does not complete.
func TestChannelRendezvousSenderBlocks(t *testing.T) {
	t.Parallel()

	ch := New[int](0)

	done := make(chan struct{})
	go func() {
		ch.Send(1)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("rendezvous send completed without a receiver")
	case <-time.After(100 * time.Millisecond):
	}

	// Unblock the sender so the goroutine exits.
	ch.Close()
	<-done
}

// TestChannelSendOnClosed tests that sending on a closed channel fails
// without panicking.
func TestChannelSendOnClosed(t *testing.T) {
	t.Parallel()

	ch := New[int](2)
	ch.Close()

	require.False(t, ch.Send(1))
	require.False(t, ch.TrySend(1))
	require.Equal(t, 0, ch.Len())
}

// TestChannelCloseIdempotent tests that repeated Close calls are no-ops.
func TestChannelCloseIdempotent(t *testing.T) {
	t.Parallel()

	ch := New[int](1)
	require.True(t, ch.Send(7))

	ch.Close()
	ch.Close()
	ch.Close()

	require.True(t, ch.IsClosed())

	// The buffered item survives the extra closes.
	v, ok := ch.Receive()
	require.True(t, ok)
	require.Equal(t, 7, v)
}

// TestChannelCloseWakesBlockedParties tests that Close unblocks both a
// blocked sender and a blocked receiver.
func TestChannelCloseWakesBlockedParties(t *testing.T) {
	t.Parallel()

	// Separate channels so the blocked sender and receiver cannot simply
	// rendezvous with each other.
	sendCh := New[int](0)
	recvCh := New[int](0)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()

		ok := sendCh.Send(1)
		require.False(t, ok)
	}()
	go func() {
		defer wg.Done()

		_, ok := recvCh.Receive()
		require.False(t, ok)
	}()

	time.Sleep(50 * time.Millisecond)
	sendCh.Close()
	recvCh.Close()

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-time.After(time.Second):
		t.Fatal("close did not wake the blocked parties")
	}
}

// TestChannelTryOps tests the non-blocking send and receive paths.
func TestChannelTryOps(t *testing.T) {
	t.Parallel()

	ch := New[string](1)

	_, ok := ch.TryReceive()
	require.False(t, ok, "receive on empty channel should not block")

	require.True(t, ch.TrySend("a"))
	require.False(t, ch.TrySend("b"), "channel is full")

	v, ok := ch.TryReceive()
	require.True(t, ok)
	require.Equal(t, "a", v)
}

// TestChannelInvalidCapacity tests that a negative capacity is rejected.
func TestChannelInvalidCapacity(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		New[int](-1)
	})
}
