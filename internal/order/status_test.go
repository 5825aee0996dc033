package order_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlane/backend-shop/internal/order"
)

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"processing", "shipped", "delivered", "cancelled"} {
		s, err := order.ParseStatus(raw)
		require.NoError(t, err)
		require.Equal(t, raw, string(s))
	}
	_, err := order.ParseStatus("refunded")
	require.Error(t, err)
	_, err = order.ParseStatus("")
	require.Error(t, err)
}

func TestTransitions(t *testing.T) {
	allowed := []struct{ from, to order.Status }{
		{order.StatusProcessing, order.StatusShipped},
		{order.StatusProcessing, order.StatusCancelled},
		{order.StatusShipped, order.StatusDelivered},
		{order.StatusShipped, order.StatusCancelled},
	}
	for _, tc := range allowed {
		require.True(t, order.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to order.Status }{
		{order.StatusProcessing, order.StatusDelivered},
		{order.StatusShipped, order.StatusProcessing},
		{order.StatusDelivered, order.StatusShipped},
		{order.StatusDelivered, order.StatusCancelled},
		{order.StatusCancelled, order.StatusProcessing},
		{order.StatusProcessing, order.StatusProcessing},
	}
	for _, tc := range denied {
		require.False(t, order.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStates(t *testing.T) {
	require.True(t, order.IsTerminal(order.StatusDelivered))
	require.True(t, order.IsTerminal(order.StatusCancelled))
	require.False(t, order.IsTerminal(order.StatusProcessing))
	require.False(t, order.IsTerminal(order.StatusShipped))
}
