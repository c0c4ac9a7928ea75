package chans

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Select blocks until one of the given channels has an item or is closed,
// then returns the index of that channel together with the received value.
// The boolean mirrors Receive: false means the selected channel is closed
// and drained. Select panics on an empty channel slice.
func Select[T any](channels []*Channel[T]) (int, T, bool) {
	idx, v, ok, _ := selectChannels(nil, channels)
	return idx, v, ok
}

// SelectCtx is Select bound to a context. When the context fires first it
// returns an index of -1 and the context's error.
func SelectCtx[T any](ctx context.Context,
	channels []*Channel[T]) (int, T, bool, error) {

	idx, v, ok, err := selectChannels(ctx.Done(), channels)
	if err != nil {
		err = fmt.Errorf("select cancelled: %w", ctx.Err())
	}

	return idx, v, ok, err
}

// selectChannels implements the dynamic select. Each channel contributes two
// cases: one for its item channel and one for its close signal, so a closed
// channel wakes the select even when it has no items.
func selectChannels[T any](done <-chan struct{},
	channels []*Channel[T]) (int, T, bool, error) {

	var zero T

	if len(channels) == 0 {
		panic("select requires at least one channel")
	}

	cases := make([]reflect.SelectCase, 0, 2*len(channels)+1)
	for _, c := range channels {
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(c.ch),
		})
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(c.closeCh),
		})
	}

	// The optional context case sits last so channel indices stay a
	// simple halving of the chosen case index.
	if done != nil {
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(done),
		})
	}

	for {
		chosen, recv, _ := reflect.Select(cases)

		if done != nil && chosen == len(cases)-1 {
			return -1, zero, false, fmt.Errorf(
				"select cancelled: %w", context.Canceled,
			)
		}

		idx := chosen / 2
		if chosen%2 == 0 {
			// Item received. The underlying channel is never
			// closed directly, so the value is always genuine.
			return idx, recv.Interface().(T), true, nil
		}

		// Close signal fired. Buffered items still win over the
		// closed indication.
		if v, ok := channels[idx].TryReceive(); ok {
			return idx, v, true, nil
		}

		return idx, zero, false, nil
	}
}

// FanOut distributes items from src across n freshly created output
// channels in round-robin order: item i goes to output i mod n. The outputs
// share src's capacity. All outputs are closed once src is closed and
// drained. FanOut panics if n is not positive.
func FanOut[T any](src *Channel[T], n int) []*Channel[T] {
	if n <= 0 {
		panic(fmt.Sprintf("fan-out width must be > 0, got %d", n))
	}

	outs := make([]*Channel[T], n)
	for i := range outs {
		outs[i] = New[T](src.Cap())
	}

	go func() {
		defer func() {
			for _, out := range outs {
				out.Close()
			}
		}()

		for i := 0; ; i++ {
			v, ok := src.Receive()
			if !ok {
				return
			}

			outs[i%n].Send(v)
		}
	}()

	return outs
}

// FanIn merges the given source channels into a single output channel,
// preserving only arrival order. The output closes once every source has
// closed and drained.
func FanIn[T any](srcs ...*Channel[T]) *Channel[T] {
	out := New[T](0)

	var wg sync.WaitGroup
	wg.Add(len(srcs))
	for _, src := range srcs {
		go func() {
			defer wg.Done()

			for {
				v, ok := src.Receive()
				if !ok {
					return
				}

				out.Send(v)
			}
		}()
	}

	go func() {
		wg.Wait()
		out.Close()
	}()

	return out
}

// Pipeline returns an output channel fed by a single worker that applies fn
// to every item received from in, in order. The output shares in's capacity
// and closes once in is closed and drained.
func Pipeline[T, U any](in *Channel[T], fn func(T) U) *Channel[U] {
	out := New[U](in.Cap())

	go func() {
		defer out.Close()

		for {
			v, ok := in.Receive()
			if !ok {
				return
			}

			out.Send(fn(v))
		}
	}()

	return out
}
