package vm

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bookbarn/storefront-go/model"
)

// UpdateQty optimistically changes a cart line's quantity, then
// confirms it with the server. On failure the pre-mutation snapshot is
// restored and the error surfaced to the caller.
func (v *View) UpdateQty(ctx context.Context, lineID int64, qty int) error {
	if qty < 1 {
		return ErrQuantity
	}

	v.mu.Lock()
	e, ok := v.cart[lineID]
	if !ok || e.deleted {
		v.mu.Unlock()
		return ErrUnknownEntity
	}
	e.snapshot = e.line
	e.state = statePending
	e.line.Quantity = qty
	updated := e.line
	v.mu.Unlock()

	mutID := uuid.NewString()
	v.log.Debug().Str("mutation", mutID).Int64("line", lineID).Int("qty", qty).Msg("cart update")

	line, err := v.backend.UpdateCartLine(ctx, updated)

	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok = v.cart[lineID]
	if !ok {
		return err
	}
	if err != nil {
		if e.state == statePending {
			e.line = e.snapshot
			e.state = stateError
		}
		v.log.Warn().Str("mutation", mutID).Err(err).Msg("cart update rolled back")
		return err
	}
	if e.state == statePending {
		if line.ID != 0 {
			e.line = line // server's representation wins when provided
		}
		e.state = stateClean
	}
	return nil
}

// DeleteLine optimistically drops a cart line; the row reappears if the
// server refuses.
func (v *View) DeleteLine(ctx context.Context, lineID int64) error {
	v.mu.Lock()
	e, ok := v.cart[lineID]
	if !ok || e.deleted {
		v.mu.Unlock()
		return ErrUnknownEntity
	}
	e.snapshot = e.line
	e.state = statePending
	e.deleted = true
	v.mu.Unlock()

	err := v.backend.DeleteCartLine(ctx, lineID)

	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok = v.cart[lineID]
	if !ok {
		return err
	}
	if err != nil {
		if e.state == statePending {
			e.deleted = false
			e.line = e.snapshot
			e.state = stateError
		}
		return err
	}
	delete(v.cart, lineID)
	return nil
}

// UpdateStatus requests an order status transition. Transitions the
// actor's role may not make from the order's current status are
// rejected locally, before any network call.
func (v *View) UpdateStatus(ctx context.Context, orderID int64, next model.OrderStatus) error {
	v.mu.Lock()
	e, ok := v.orders[orderID]
	if !ok {
		v.mu.Unlock()
		return ErrUnknownEntity
	}
	if !model.AllowedTransition(v.actor.Role, e.order.Status, next) {
		v.mu.Unlock()
		return ErrInvalidTransition
	}
	e.snapshot = cloneOrder(e.order)
	e.state = statePending
	e.order.Status = next
	e.order.History = append(e.order.History, model.StatusEntry{Status: next, Timestamp: time.Now()})
	v.mu.Unlock()

	mutID := uuid.NewString()
	v.log.Info().Str("mutation", mutID).Int64("order", orderID).Str("to", string(next)).Msg("status transition")

	err := v.backend.UpdateOrderStatus(ctx, orderID, next)

	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok = v.orders[orderID]
	if !ok {
		return err
	}
	if err != nil {
		if e.state == statePending {
			e.order = e.snapshot
			e.state = stateError
		}
		v.log.Warn().Str("mutation", mutID).Err(err).Msg("status transition rolled back")
		return err
	}
	if e.state == statePending {
		e.state = stateClean
	}
	return nil
}

// Cancel is the customer-facing shorthand for the cancel transition.
func (v *View) Cancel(ctx context.Context, orderID int64) error {
	return v.UpdateStatus(ctx, orderID, model.StatusCancelled)
}

// MarkRead marks one notification read. Marking an already-read
// notification is a no-op, not an error, and read state never reverts
// to unread on success.
func (v *View) MarkRead(ctx context.Context, id int64) error {
	v.mu.Lock()
	e, ok := v.notifs[id]
	if !ok {
		v.mu.Unlock()
		return ErrUnknownEntity
	}
	if e.notif.Read {
		v.mu.Unlock()
		return nil
	}
	e.snapshot = e.notif
	e.state = statePending
	e.notif.Read = true
	v.mu.Unlock()

	err := v.backend.MarkNotificationRead(ctx, id)

	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok = v.notifs[id]
	if !ok {
		return err
	}
	if err != nil {
		if e.state == statePending {
			e.notif = e.snapshot
			e.state = stateError
		}
		return err
	}
	if e.state == statePending {
		e.state = stateClean
	}
	return nil
}

// MarkAllRead marks every unread notification read in one optimistic
// sweep backed by a single request.
func (v *View) MarkAllRead(ctx context.Context) error {
	v.mu.Lock()
	var touched []int64
	for id, e := range v.notifs {
		if e.notif.Read {
			continue
		}
		e.snapshot = e.notif
		e.state = statePending
		e.notif.Read = true
		touched = append(touched, id)
	}
	v.mu.Unlock()
	if len(touched) == 0 {
		return nil
	}

	err := v.backend.MarkAllNotificationsRead(ctx, v.actor)

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, id := range touched {
		e, ok := v.notifs[id]
		if !ok || e.state != statePending {
			continue
		}
		if err != nil {
			e.notif = e.snapshot
			e.state = stateError
		} else {
			e.state = stateClean
		}
	}
	return err
}

func cloneOrder(o model.Order) model.Order {
	c := o
	c.Items = append([]model.OrderItem(nil), o.Items...)
	c.History = append([]model.StatusEntry(nil), o.History...)
	return c
}
