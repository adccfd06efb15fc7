package api

import (
	"context"
	"errors"

	"github.com/bookbarn/storefront-go/localstore"
	"github.com/bookbarn/storefront-go/model"
)

// PendingCheckout bridges the multi-step checkout flow (cart → address
// → payment). It is staged locally so an interrupted flow can resume.
type PendingCheckout struct {
	UserID        int64             `json:"userId"`
	Items         []model.OrderItem `json:"items"`
	Address       string            `json:"address"`
	Phone         string            `json:"phone"`
	PaymentMethod string            `json:"paymentMethod"`
	Totals        model.Totals      `json:"totals"`
}

func (c *Client) StagePendingCheckout(ctx context.Context, pc PendingCheckout) error {
	return c.kv.PutJSON(ctx, localstore.KeyPendingCheckout, pc)
}

// PendingCheckoutState returns the staged checkout, if any. A corrupted
// blob reads as absent.
func (c *Client) PendingCheckoutState(ctx context.Context) (*PendingCheckout, bool, error) {
	var pc PendingCheckout
	ok, err := c.kv.GetJSON(ctx, localstore.KeyPendingCheckout, &pc)
	if err != nil || !ok {
		return nil, false, err
	}
	return &pc, true, nil
}

func (c *Client) ClearPendingCheckout(ctx context.Context) error {
	return c.kv.Delete(ctx, localstore.KeyPendingCheckout)
}

// LastCompletedOrder returns the snapshot shown by the post-purchase
// confirmation view.
func (c *Client) LastCompletedOrder(ctx context.Context) ([]model.Order, bool, error) {
	var orders []model.Order
	ok, err := c.kv.GetJSON(ctx, localstore.KeyLastOrder, &orders)
	if err != nil || !ok {
		return nil, false, err
	}
	return orders, true, nil
}

// CompleteCheckout runs the tail of the purchase flow against the
// staged checkout: process payment, place the order(s), clear the cart
// best-effort, snapshot the result for the confirmation view.
func (c *Client) CompleteCheckout(ctx context.Context) ([]model.Order, error) {
	pc, ok, err := c.PendingCheckoutState(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoPendingCheckout
	}

	if err := c.ProcessPayment(ctx, PaymentRequest{
		UserID: pc.UserID,
		Amount: pc.Totals.Total,
		Method: pc.PaymentMethod,
	}); err != nil {
		return nil, err
	}

	orders, err := c.PlaceOrder(ctx, PlaceOrderRequest{
		UserID:        pc.UserID,
		Items:         pc.Items,
		Address:       pc.Address,
		Phone:         pc.Phone,
		PaymentMethod: pc.PaymentMethod,
		Total:         pc.Totals.Total,
	})
	if err != nil {
		return nil, err
	}

	// Cart cleanup is best-effort; the server already owns the orders.
	if lines, lerr := c.CartLines(ctx, pc.UserID); lerr == nil {
		for _, line := range lines {
			if derr := c.DeleteCartLine(ctx, line.ID); derr != nil && !errors.Is(derr, context.Canceled) {
				c.log.Warn().Err(derr).Int64("line", line.ID).Msg("cart cleanup failed")
			}
		}
	}

	if err := c.kv.PutJSON(ctx, localstore.KeyLastOrder, orders); err != nil {
		return nil, err
	}
	if err := c.ClearPendingCheckout(ctx); err != nil {
		return nil, err
	}
	return orders, nil
}
