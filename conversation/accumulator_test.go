package conversation

import (
	"context"
	"testing"

	"github.com/casualjim/oachat/api"
	"github.com/go-openapi/swag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func delta(index int, content string, reason ...string) api.ChoiceDelta {
	d := api.ChoiceDelta{Index: index, Content: content}
	if len(reason) > 0 {
		d.FinishReason = swag.String(reason[0])
	}
	return d
}

func TestAccumulator(t *testing.T) {
	ctx := context.Background()

	t.Run("commits the finished reply", func(t *testing.T) {
		th := New(WithMessages(api.UserMessage("hi")))
		acc := NewAccumulator(th)

		first := delta(0, "Hel")
		first.Role = api.RoleAssistant
		require.NoError(t, acc.Deliver(ctx, first))
		require.NoError(t, acc.Deliver(ctx, delta(0, "lo")))
		assert.Equal(t, 1, th.Len())
		assert.False(t, acc.Committed())

		require.NoError(t, acc.Deliver(ctx, delta(0, "", api.FinishReasonStop)))
		assert.True(t, acc.Committed())
		assert.Equal(t, "Hello", acc.Content(0))
		assert.Equal(t, api.FinishReasonStop, acc.FinishReason(0))

		last, ok := th.Last()
		require.True(t, ok)
		assert.Equal(t, api.AssistantMessage("Hello"), last)
	})

	t.Run("only the first finished choice is committed", func(t *testing.T) {
		th := New()
		acc := NewAccumulator(th)

		require.NoError(t, acc.Deliver(ctx, delta(0, "a")))
		require.NoError(t, acc.Deliver(ctx, delta(1, "b")))
		require.NoError(t, acc.Deliver(ctx, delta(1, "", api.FinishReasonLength)))
		require.NoError(t, acc.Deliver(ctx, delta(0, "", api.FinishReasonStop)))

		assert.Equal(t, []int{0, 1}, acc.Choices())
		assert.Equal(t, []api.ChatMessage{api.AssistantMessage("b")}, th.Messages())
	})

	t.Run("commit after cancellation keeps the partial reply", func(t *testing.T) {
		th := New()
		acc := NewAccumulator(th)
		require.NoError(t, acc.Deliver(ctx, delta(1, "second")))
		require.NoError(t, acc.Deliver(ctx, delta(0, "partial")))

		assert.True(t, acc.Commit())
		assert.False(t, acc.Commit())
		assert.Equal(t, []api.ChatMessage{api.AssistantMessage("partial")}, th.Messages())
	})

	t.Run("commit without content does nothing", func(t *testing.T) {
		th := New()
		acc := NewAccumulator(th)
		assert.False(t, acc.Commit())

		require.NoError(t, acc.Deliver(ctx, delta(0, "")))
		assert.False(t, acc.Commit())
		assert.Equal(t, 0, th.Len())
	})

	t.Run("nil thread only accumulates", func(t *testing.T) {
		acc := NewAccumulator(nil)
		require.NoError(t, acc.Deliver(ctx, delta(0, "x", api.FinishReasonStop)))
		assert.True(t, acc.Committed())
		assert.Equal(t, "x", acc.Content(0))
		assert.Empty(t, acc.Content(3))
	})
}
