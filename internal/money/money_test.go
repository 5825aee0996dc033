package money_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/emberlane/backend-shop/internal/money"
)

func TestParseAndString(t *testing.T) {
	m, err := money.Parse("19.99")
	require.NoError(t, err)
	require.Equal(t, "19.99", m.String())

	m, err = money.Parse("5")
	require.NoError(t, err)
	require.Equal(t, "5.00", m.String())

	_, err = money.Parse("not-a-number")
	require.Error(t, err)
}

func TestRound2HalfUp(t *testing.T) {
	cases := map[string]string{
		"1.005":  "1.01",
		"1.004":  "1.00",
		"2.675":  "2.68",
		"-1.005": "-1.01",
		"0":      "0.00",
	}
	for in, want := range cases {
		m := money.MustParse(in).Round2()
		require.Equal(t, want, m.String(), "round2(%s)", in)
	}
}

func TestArithmetic(t *testing.T) {
	a := money.MustParse("10.10")
	b := money.MustParse("0.90")

	require.Equal(t, "11.00", a.Add(b).String())
	require.Equal(t, "9.20", a.Sub(b).String())
	require.Equal(t, "30.30", a.MulQty(3).String())

	rate := decimal.RequireFromString("0.029")
	require.Equal(t, "0.29", a.MulRate(rate).Round2().String())
}

func TestCents(t *testing.T) {
	require.Equal(t, int64(1999), money.MustParse("19.99").Cents())
	require.Equal(t, int64(500), money.MustParse("5").Cents())
	require.Equal(t, int64(0), money.Zero.Cents())
}

func TestFloatNoise(t *testing.T) {
	// The classic binary float trap: 0.1 + 0.2 must still be exactly 0.30.
	sum := money.FromFloat(0.1).Add(money.FromFloat(0.2)).Round2()
	require.Equal(t, "0.30", sum.String())
	require.True(t, sum.Equal(money.MustParse("0.3")))
}

func TestJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		Price money.Money `json:"price"`
	}
	out, err := json.Marshal(wrapper{Price: money.MustParse("49.99")})
	require.NoError(t, err)
	require.JSONEq(t, `{"price":49.99}`, string(out))

	var in wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"price":49.99}`), &in))
	require.Equal(t, "49.99", in.Price.String())

	// Stringified numbers also appear in metadata blobs.
	require.NoError(t, json.Unmarshal([]byte(`{"price":"12.50"}`), &in))
	require.Equal(t, "12.50", in.Price.String())
}

func TestComparisons(t *testing.T) {
	require.True(t, money.MustParse("-1").IsNegative())
	require.False(t, money.Zero.IsNegative())
	require.True(t, money.Zero.IsZero())
	require.Equal(t, 1, money.MustParse("2").Cmp(money.MustParse("1.99")))
	require.Equal(t, 0, money.MustParse("2.00").Cmp(money.MustParse("2")))
}
