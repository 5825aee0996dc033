package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlane/backend-shop/internal/money"
	"github.com/emberlane/backend-shop/internal/pricing"
)

func item(price string, qty int, cost string) pricing.LineItem {
	return pricing.LineItem{
		ProductID: "prod-1",
		Name:      "widget",
		Qty:       qty,
		UnitPrice: money.MustParse(price),
		UnitCost:  money.MustParse(cost),
	}
}

func TestShippingQuoteTiers(t *testing.T) {
	cases := []struct {
		subtotal string
		want     string
	}{
		{"0", "6.99"},
		{"20", "6.99"},
		{"34.99", "6.99"},
		{"35", "4.99"},
		{"50", "4.99"},
		{"74.99", "4.99"},
		{"75", "0.00"},
		{"1000", "0.00"},
	}
	for _, tc := range cases {
		got := pricing.ShippingQuote(money.MustParse(tc.subtotal), 1)
		require.Equal(t, money.MustParse(tc.want).String(), got.String(),
			"subtotal %s", tc.subtotal)
	}
}

func TestShippingQuoteIgnoresItemCount(t *testing.T) {
	subtotal := money.MustParse("40")
	require.Equal(t, pricing.ShippingQuote(subtotal, 1), pricing.ShippingQuote(subtotal, 50))
}

func TestDeriveEmptyOrder(t *testing.T) {
	_, err := pricing.Derive(nil, money.Zero, money.Zero)
	require.ErrorIs(t, err, pricing.ErrEmptyOrder)

	_, err = pricing.Derive([]pricing.LineItem{}, money.Zero, money.Zero)
	require.ErrorIs(t, err, pricing.ErrEmptyOrder)
}

func TestDeriveRejectsInvalidItems(t *testing.T) {
	_, err := pricing.Derive([]pricing.LineItem{item("10", 0, "2")}, money.Zero, money.Zero)
	require.ErrorIs(t, err, pricing.ErrInvalidItem)

	_, err = pricing.Derive([]pricing.LineItem{item("-1", 1, "0")}, money.Zero, money.Zero)
	require.ErrorIs(t, err, pricing.ErrInvalidItem)

	_, err = pricing.Derive([]pricing.LineItem{item("10", -3, "2")}, money.Zero, money.Zero)
	require.ErrorIs(t, err, pricing.ErrInvalidItem)
}

func TestDeriveFinancials(t *testing.T) {
	items := []pricing.LineItem{
		item("19.99", 2, "5.50"),
		item("10.00", 1, "2.25"),
	}
	shipping := pricing.ShippingQuote(money.MustParse("49.98"), 3)
	require.Equal(t, "4.99", shipping.String())

	fin, err := pricing.Derive(items, shipping, money.Zero)
	require.NoError(t, err)

	require.Equal(t, "49.98", fin.Subtotal.String())
	require.Equal(t, "4.99", fin.ShippingCost.String())
	require.Equal(t, "0.00", fin.Tax.String())
	// total = round2(49.98 + 4.99 + 0) = 54.97
	require.Equal(t, "54.97", fin.Total.String())
	// fee = round2(54.97 * 0.029 + 0.30) = round2(1.89413) = 1.89
	require.Equal(t, "1.89", fin.ProcessorFee.String())
	// cogs = 2*5.50 + 2.25 = 13.25
	require.Equal(t, "13.25", fin.TotalCost.String())
	// profit = round2(54.97 - (13.25 + 1.89 + 4.99)) = 34.84
	require.Equal(t, "34.84", fin.TotalProfit.String())
}

func TestDeriveWithTax(t *testing.T) {
	items := []pricing.LineItem{item("100.00", 1, "40.00")}
	shipping := pricing.ShippingQuote(money.MustParse("100.00"), 1)
	require.True(t, shipping.IsZero())

	fin, err := pricing.Derive(items, shipping, money.MustParse("8.25"))
	require.NoError(t, err)
	require.Equal(t, "108.25", fin.Total.String())
	// fee = round2(108.25 * 0.029 + 0.30) = round2(3.43925) = 3.44
	require.Equal(t, "3.44", fin.ProcessorFee.String())
	// profit = round2(108.25 - (40 + 3.44 + 0)) = 64.81
	require.Equal(t, "64.81", fin.TotalProfit.String())
}

func TestDeriveDeterminism(t *testing.T) {
	items := []pricing.LineItem{
		item("3.33", 3, "1.11"),
		item("7.77", 2, "0.99"),
	}
	shipping := money.MustParse("6.99")
	tax := money.MustParse("1.23")

	first, err := pricing.Derive(items, shipping, tax)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		again, err := pricing.Derive(items, shipping, tax)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestItemCount(t *testing.T) {
	require.Equal(t, 0, pricing.ItemCount(nil))
	require.Equal(t, 5, pricing.ItemCount([]pricing.LineItem{
		item("1", 2, "0"),
		item("2", 3, "0"),
	}))
}
