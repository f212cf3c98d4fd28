package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/casualjim/oachat/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunc(t *testing.T) {
	var got []string
	s := Func(func(_ context.Context, d api.ChoiceDelta) error {
		got = append(got, d.Content)
		return nil
	})
	require.NoError(t, s.Deliver(context.Background(), api.ChoiceDelta{Content: "a"}))
	require.NoError(t, s.Deliver(context.Background(), api.ChoiceDelta{Content: "b"}))
	assert.Equal(t, []string{"a", "b"}, got)

	require.NoError(t, Discard.Deliver(context.Background(), api.ChoiceDelta{}))
}

func TestMulti(t *testing.T) {
	t.Run("fans out in order", func(t *testing.T) {
		var order []string
		record := func(name string) Sink {
			return Func(func(context.Context, api.ChoiceDelta) error {
				order = append(order, name)
				return nil
			})
		}
		s := Multi(record("first"), nil, record("second"))
		require.NoError(t, s.Deliver(context.Background(), api.ChoiceDelta{}))
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("stops at the first error", func(t *testing.T) {
		boom := errors.New("boom")
		var reached bool
		s := Multi(
			Func(func(context.Context, api.ChoiceDelta) error { return boom }),
			Func(func(context.Context, api.ChoiceDelta) error { reached = true; return nil }),
		)
		require.ErrorIs(t, s.Deliver(context.Background(), api.ChoiceDelta{}), boom)
		assert.False(t, reached)
	})
}

func TestChannel(t *testing.T) {
	t.Run("delivers to a buffered channel", func(t *testing.T) {
		ch := make(chan api.ChoiceDelta, 2)
		s := Channel(ch)
		require.NoError(t, s.Deliver(context.Background(), api.ChoiceDelta{Content: "x"}))
		assert.Equal(t, "x", (<-ch).Content)
	})

	t.Run("slow consumer times out", func(t *testing.T) {
		ch := make(chan api.ChoiceDelta)
		s := Channel(ch).WithSlowConsumerTimeout(10 * time.Millisecond)
		err := s.Deliver(context.Background(), api.ChoiceDelta{})
		require.ErrorIs(t, err, ErrSlowConsumer)
	})

	t.Run("cancelled context wins", func(t *testing.T) {
		ch := make(chan api.ChoiceDelta)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Channel(ch).WithSlowConsumerTimeout(time.Second).Deliver(ctx, api.ChoiceDelta{})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("cancelled context never hands over to a ready reader", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		for range 50 {
			ch := make(chan api.ChoiceDelta, 1)
			err := Channel(ch).Deliver(ctx, api.ChoiceDelta{Content: "late"})
			require.ErrorIs(t, err, context.Canceled)
			assert.Empty(t, ch)
		}
	})

	t.Run("no timeout waits for the reader", func(t *testing.T) {
		ch := make(chan api.ChoiceDelta)
		s := Channel(ch).WithSlowConsumerTimeout(0)
		go func() {
			time.Sleep(20 * time.Millisecond)
			<-ch
		}()
		require.NoError(t, s.Deliver(context.Background(), api.ChoiceDelta{}))
	})
}

func TestCollector(t *testing.T) {
	var c Collector
	ctx := context.Background()
	require.NoError(t, c.Deliver(ctx, api.ChoiceDelta{Index: 0, Content: "Hel"}))
	require.NoError(t, c.Deliver(ctx, api.ChoiceDelta{Index: 1, Content: "Other"}))
	require.NoError(t, c.Deliver(ctx, api.ChoiceDelta{Index: 0, Content: "lo"}))

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "Hello", c.Content(0))
	assert.Equal(t, "Other", c.Content(1))

	deltas := c.Deltas()
	deltas[0].Content = "changed"
	assert.Equal(t, "Hel", c.Deltas()[0].Content)
}
