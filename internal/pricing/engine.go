package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/emberlane/backend-shop/internal/money"
)

// ErrEmptyOrder is returned when a derivation is attempted over zero items.
var ErrEmptyOrder = errors.New("order must contain at least one item")

// ErrInvalidItem is returned when a line item fails validation.
var ErrInvalidItem = errors.New("invalid line item")

// Processor fee model: 2.9% of the total plus a fixed 30 cents. An estimate
// of the charge, not the authoritative amount billed by the processor.
var (
	feeRate  = decimal.RequireFromString("0.029")
	feeFixed = money.MustParse("0.30")
)

// Shipping tiers by order subtotal.
var (
	freeShippingAt  = money.MustParse("75")
	midShippingAt   = money.MustParse("35")
	midShippingCost = money.MustParse("4.99")
	baseShipping    = money.MustParse("6.99")
)

// LineItem is one product/quantity/price entry within a cart or order.
// UnitCost is the per-unit cost of goods sold and defaults to zero.
type LineItem struct {
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	Qty       int         `json:"quantity"`
	UnitPrice money.Money `json:"price"`
	UnitCost  money.Money `json:"cost"`
}

// Financials aggregates the derived monetary components of an order.
// All fields are rounded to two decimal places at each derivation step.
type Financials struct {
	Subtotal     money.Money `json:"subtotal"`
	ShippingCost money.Money `json:"shippingCost"`
	Tax          money.Money `json:"tax"`
	Total        money.Money `json:"total"`
	ProcessorFee money.Money `json:"processorFee"`
	TotalCost    money.Money `json:"totalCost"`
	TotalProfit  money.Money `json:"totalProfit"`
}

// ShippingQuote maps an order subtotal and item count to a shipping cost.
// Pure and total: 75+ ships free, 35+ ships at 4.99, everything else 6.99.
func ShippingQuote(subtotal money.Money, itemCount int) money.Money {
	_ = itemCount
	if subtotal.Cmp(freeShippingAt) >= 0 {
		return money.Zero
	}
	if subtotal.Cmp(midShippingAt) >= 0 {
		return midShippingCost
	}
	return baseShipping
}

// ValidateItems rejects line items with non-positive quantities or negative
// prices. Invalid values are rejected, never clamped.
func ValidateItems(items []LineItem) error {
	for i, it := range items {
		if it.Qty < 1 {
			return fmt.Errorf("item %d: quantity must be at least 1: %w", i, ErrInvalidItem)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("item %d: price must not be negative: %w", i, ErrInvalidItem)
		}
		if it.UnitCost.IsNegative() {
			return fmt.Errorf("item %d: cost must not be negative: %w", i, ErrInvalidItem)
		}
	}
	return nil
}

// Derive computes the financial summary for an order. The same derivation
// runs at checkout preview and at payment confirmation; confirmation values
// are authoritative. Each step rounds to two places so the result is
// reproducible regardless of where it runs.
func Derive(items []LineItem, shipping, tax money.Money) (Financials, error) {
	if len(items) == 0 {
		return Financials{}, ErrEmptyOrder
	}
	if err := ValidateItems(items); err != nil {
		return Financials{}, err
	}

	var subtotal, totalCost money.Money
	for _, it := range items {
		subtotal = subtotal.Add(it.UnitPrice.MulQty(it.Qty))
		totalCost = totalCost.Add(it.UnitCost.MulQty(it.Qty))
	}
	subtotal = subtotal.Round2()
	totalCost = totalCost.Round2()

	total := subtotal.Add(shipping).Add(tax).Round2()
	fee := total.MulRate(feeRate).Add(feeFixed).Round2()
	profit := total.Sub(totalCost.Add(fee).Add(shipping)).Round2()

	return Financials{
		Subtotal:     subtotal,
		ShippingCost: shipping.Round2(),
		Tax:          tax.Round2(),
		Total:        total,
		ProcessorFee: fee,
		TotalCost:    totalCost,
		TotalProfit:  profit,
	}, nil
}

// ItemCount sums the quantities across line items.
func ItemCount(items []LineItem) int {
	var n int
	for _, it := range items {
		n += it.Qty
	}
	return n
}
