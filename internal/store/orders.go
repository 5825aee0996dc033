package store

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/emberlane/backend-shop/internal/money"
)

// Order is the persisted record produced by a confirmed payment. It is
// immutable after creation except for status and tracking metadata.
type Order struct {
	ID               uuid.UUID   `json:"id"`
	UserID           *uuid.UUID  `json:"userId,omitempty"`
	CustomerName     string      `json:"customerName"`
	CustomerEmail    string      `json:"customerEmail"`
	Items            []OrderItem `json:"items"`
	Subtotal         money.Money `json:"subtotal"`
	ShippingCost     money.Money `json:"shippingCost"`
	Tax              money.Money `json:"tax"`
	Total            money.Money `json:"total"`
	ProcessorFee     money.Money `json:"processorFee"`
	TotalCost        money.Money `json:"totalCost"`
	TotalProfit      money.Money `json:"totalProfit"`
	Status           string      `json:"status"`
	ShippingAddress  []byte      `json:"shippingAddress,omitempty"`
	TrackingNumber   string      `json:"trackingNumber"`
	Carrier          string      `json:"carrier"`
	PaymentRef       string      `json:"paymentRef"`
	SessionID        string      `json:"sessionId"`
	ChargeID         string      `json:"chargeId,omitempty"`
	CustomerNotified bool        `json:"customerNotified"`
	OwnerNotified    bool        `json:"ownerNotified"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// OrderItem records the price and cost of a product at the time the order
// was confirmed.
type OrderItem struct {
	ID        uuid.UUID   `json:"id"`
	ProductID *uuid.UUID  `json:"productId,omitempty"`
	Name      string      `json:"name"`
	Qty       int         `json:"quantity"`
	UnitPrice money.Money `json:"price"`
	UnitCost  money.Money `json:"cost"`
}

const orderColumns = `id, user_id, customer_name, customer_email,
	subtotal::text, shipping_cost::text, tax::text, total::text,
	processor_fee::text, total_cost::text, total_profit::text,
	status, shipping_address, tracking_number, carrier,
	payment_ref, session_id, charge_id,
	customer_notified, owner_notified, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var (
		o                              Order
		subtotal, shipping, tax, total string
		fee, cost, profit              string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.CustomerName, &o.CustomerEmail,
		&subtotal, &shipping, &tax, &total,
		&fee, &cost, &profit,
		&o.Status, &o.ShippingAddress, &o.TrackingNumber, &o.Carrier,
		&o.PaymentRef, &o.SessionID, &o.ChargeID,
		&o.CustomerNotified, &o.OwnerNotified, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	for _, pair := range []struct {
		dst *money.Money
		src string
	}{
		{&o.Subtotal, subtotal}, {&o.ShippingCost, shipping}, {&o.Tax, tax},
		{&o.Total, total}, {&o.ProcessorFee, fee}, {&o.TotalCost, cost},
		{&o.TotalProfit, profit},
	} {
		if *pair.dst, err = money.Parse(pair.src); err != nil {
			return Order{}, err
		}
	}
	return o, nil
}

func (s *Store) loadOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, product_id, name, qty, unit_price::text, unit_cost::text
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var (
			it          OrderItem
			price, cost string
		)
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Name, &it.Qty, &price, &cost); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = money.Parse(price); err != nil {
			return nil, err
		}
		if it.UnitCost, err = money.Parse(cost); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CreateOrder persists an order with its items atomically. The payment_ref
// unique constraint guarantees at most one order per confirmed payment.
func (s *Store) CreateOrder(ctx context.Context, o Order) (Order, error) {
	var stored Order
	err := s.InTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO orders (user_id, customer_name, customer_email,
				subtotal, shipping_cost, tax, total,
				processor_fee, total_cost, total_profit,
				status, shipping_address, payment_ref, session_id, charge_id)
			VALUES ($1, $2, $3,
				$4::numeric, $5::numeric, $6::numeric, $7::numeric,
				$8::numeric, $9::numeric, $10::numeric,
				$11, $12, $13, $14, $15)
			RETURNING `+orderColumns,
			o.UserID, o.CustomerName, o.CustomerEmail,
			o.Subtotal.String(), o.ShippingCost.String(), o.Tax.String(), o.Total.String(),
			o.ProcessorFee.String(), o.TotalCost.String(), o.TotalProfit.String(),
			o.Status, o.ShippingAddress, o.PaymentRef, o.SessionID, o.ChargeID)
		inserted, err := scanOrder(row)
		if err != nil {
			return err
		}
		for _, it := range o.Items {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_items (order_id, product_id, name, qty, unit_price, unit_cost)
				VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)`,
				inserted.ID, it.ProductID, it.Name, it.Qty,
				it.UnitPrice.String(), it.UnitCost.String()); err != nil {
				return err
			}
		}
		inserted.Items = o.Items
		stored = inserted
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return stored, nil
}

// GetOrder fetches an order and its items by id.
func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, notFound(err)
	}
	if o.Items, err = s.loadOrderItems(ctx, o.ID); err != nil {
		return Order{}, err
	}
	return o, nil
}

// GetOrderByPaymentRef fetches the order created for a processor payment
// identifier. Used as the idempotency check during webhook handling.
func (s *Store) GetOrderByPaymentRef(ctx context.Context, ref string) (Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_ref = $1`, ref)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, notFound(err)
	}
	if o.Items, err = s.loadOrderItems(ctx, o.ID); err != nil {
		return Order{}, err
	}
	return o, nil
}

// ListOrdersParams filters the admin order listing.
type ListOrdersParams struct {
	UserID *uuid.UUID
	Status string
	Limit  int
	Offset int
}

// ListOrders returns orders newest first, optionally filtered by owner and
// status. Items are not loaded for listings.
func (s *Store) ListOrders(ctx context.Context, params ListOrdersParams) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	args := []any{}
	idx := 1
	if params.UserID != nil {
		query += ` AND user_id = $1`
		args = append(args, *params.UserID)
		idx++
	}
	if params.Status != "" {
		query += ` AND status = $` + strconv.Itoa(idx)
		args = append(args, params.Status)
		idx++
	}
	query += ` ORDER BY created_at DESC`
	if params.Limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(idx) + ` OFFSET $` + strconv.Itoa(idx+1)
		args = append(args, params.Limit, params.Offset)
	}
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateOrderStatus transitions an order and optionally records tracking
// metadata. Transition legality is validated by the caller.
func (s *Store) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status, trackingNumber, carrier string) (Order, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE orders SET
			status = $2,
			tracking_number = COALESCE(NULLIF($3, ''), tracking_number),
			carrier = COALESCE(NULLIF($4, ''), carrier),
			updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, id, status, trackingNumber, carrier)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, notFound(err)
	}
	return o, nil
}

// MarkOrderNotified flips the notified flags after emails go out.
func (s *Store) MarkOrderNotified(ctx context.Context, id uuid.UUID, customer, owner bool) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE orders SET
			customer_notified = customer_notified OR $2,
			owner_notified = owner_notified OR $3,
			updated_at = now()
		WHERE id = $1`, id, customer, owner)
	return err
}
