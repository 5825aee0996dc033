package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/emberlane/backend-shop/internal/money"
)

// SalesSummary aggregates order financials over a period. Cancelled orders
// are excluded.
type SalesSummary struct {
	Orders       int         `json:"orders"`
	UnitsSold    int         `json:"unitsSold"`
	Revenue      money.Money `json:"revenue"`
	ProcessorFee money.Money `json:"processorFees"`
	ShippingCost money.Money `json:"shippingCosts"`
	GoodsCost    money.Money `json:"goodsCosts"`
	Profit       money.Money `json:"profit"`
}

// ProductSales ranks one product by units sold over a period.
type ProductSales struct {
	ProductID uuid.UUID   `json:"productId"`
	Name      string      `json:"name"`
	UnitsSold int         `json:"unitsSold"`
	Revenue   money.Money `json:"revenue"`
}

// SalesSummarySince aggregates confirmed orders created at or after the
// given time.
func (s *Store) SalesSummarySince(ctx context.Context, since time.Time) (SalesSummary, error) {
	var (
		summary                               SalesSummary
		revenue, fees, shipping, cost, profit string
	)
	row := s.Pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE((SELECT SUM(oi.qty) FROM order_items oi
				JOIN orders o2 ON o2.id = oi.order_id
				WHERE o2.created_at >= $1 AND o2.status <> 'cancelled'), 0),
			COALESCE(SUM(total), 0)::text,
			COALESCE(SUM(processor_fee), 0)::text,
			COALESCE(SUM(shipping_cost), 0)::text,
			COALESCE(SUM(total_cost), 0)::text,
			COALESCE(SUM(total_profit), 0)::text
		FROM orders
		WHERE created_at >= $1 AND status <> 'cancelled'`, since)
	if err := row.Scan(&summary.Orders, &summary.UnitsSold, &revenue, &fees, &shipping, &cost, &profit); err != nil {
		return SalesSummary{}, err
	}
	var err error
	if summary.Revenue, err = money.Parse(revenue); err != nil {
		return SalesSummary{}, err
	}
	if summary.ProcessorFee, err = money.Parse(fees); err != nil {
		return SalesSummary{}, err
	}
	if summary.ShippingCost, err = money.Parse(shipping); err != nil {
		return SalesSummary{}, err
	}
	if summary.GoodsCost, err = money.Parse(cost); err != nil {
		return SalesSummary{}, err
	}
	if summary.Profit, err = money.Parse(profit); err != nil {
		return SalesSummary{}, err
	}
	return summary, nil
}

// TopProductsSince ranks products by units sold at or after the given time.
func (s *Store) TopProductsSince(ctx context.Context, since time.Time, limit int) ([]ProductSales, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT oi.product_id, MAX(oi.name), SUM(oi.qty),
			COALESCE(SUM(oi.unit_price * oi.qty), 0)::text
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.created_at >= $1 AND o.status <> 'cancelled'
			AND oi.product_id IS NOT NULL
		GROUP BY oi.product_id
		ORDER BY SUM(oi.qty) DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProductSales
	for rows.Next() {
		var (
			ps      ProductSales
			revenue string
		)
		if err := rows.Scan(&ps.ProductID, &ps.Name, &ps.UnitsSold, &revenue); err != nil {
			return nil, err
		}
		if ps.Revenue, err = money.Parse(revenue); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}
