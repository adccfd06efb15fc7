// Package vm maintains the locally rendered view of orders, cart and
// notifications: optimistic mutations with rollback, local transition
// gating, and merge of authoritative push/poll updates.
package vm

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bookbarn/storefront-go/model"
)

var (
	ErrInvalidTransition = errors.New("status transition not allowed from current state")
	ErrQuantity          = errors.New("quantity must be at least 1")
	ErrUnknownEntity     = errors.New("entity not in view")
)

// Backend is the slice of the API client the view-model mutates
// through. *api.Client satisfies it.
type Backend interface {
	UpdateCartLine(ctx context.Context, line model.CartLine) (model.CartLine, error)
	DeleteCartLine(ctx context.Context, lineID int64) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context, actor model.Actor) error
}

// entityState is the per-entity write lifecycle: Clean, a pending
// optimistic write holding its rollback snapshot, or Error after a
// rolled-back failure.
type entityState int

const (
	stateClean entityState = iota
	statePending
	stateError
)

type orderEntry struct {
	order    model.Order
	state    entityState
	snapshot model.Order
}

type cartEntry struct {
	line     model.CartLine
	state    entityState
	snapshot model.CartLine
	deleted  bool
}

type notifEntry struct {
	notif    model.Notification
	state    entityState
	snapshot model.Notification
}

type View struct {
	mu      sync.Mutex
	actor   model.Actor
	backend Backend
	log     zerolog.Logger

	orders map[int64]*orderEntry
	cart   map[int64]*cartEntry
	notifs map[int64]*notifEntry
	books  map[int64]model.Book
	stock  map[int64]int
}

func New(actor model.Actor, backend Backend, log zerolog.Logger) *View {
	return &View{
		actor:   actor,
		backend: backend,
		log:     log.With().Str("component", "vm").Str("role", string(actor.Role)).Logger(),
		orders:  make(map[int64]*orderEntry),
		cart:    make(map[int64]*cartEntry),
		notifs:  make(map[int64]*notifEntry),
		books:   make(map[int64]model.Book),
		stock:   make(map[int64]int),
	}
}

// SetOrders replaces the order view with an authoritative listing, as
// after an initial fetch or a poll. Server truth replaces local state
// unconditionally, pending or not.
func (v *View) SetOrders(orders []model.Order) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.orders = make(map[int64]*orderEntry, len(orders))
	for _, o := range orders {
		v.orders[o.ID] = &orderEntry{order: o}
	}
}

func (v *View) SetCart(lines []model.CartLine) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cart = make(map[int64]*cartEntry, len(lines))
	for _, l := range lines {
		v.cart[l.ID] = &cartEntry{line: l}
	}
}

func (v *View) SetNotifications(notifs []model.Notification) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notifs = make(map[int64]*notifEntry, len(notifs))
	for _, n := range notifs {
		v.notifs[n.ID] = &notifEntry{notif: n}
	}
}

func (v *View) SetBooks(books []model.Book) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, b := range books {
		v.books[b.ID] = b
	}
}

func (v *View) Order(id int64) (model.Order, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.orders[id]
	if !ok {
		return model.Order{}, false
	}
	return e.order, true
}

func (v *View) Orders() []model.Order {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]model.Order, 0, len(v.orders))
	for _, e := range v.orders {
		out = append(out, e.order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v *View) CartLines() []model.CartLine {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]model.CartLine, 0, len(v.cart))
	for _, e := range v.cart {
		if e.deleted {
			continue
		}
		out = append(out, e.line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v *View) Notifications() []model.Notification {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]model.Notification, 0, len(v.notifs))
	for _, e := range v.notifs {
		out = append(out, e.notif)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// UnreadCount is derived on the fly, never stored.
func (v *View) UnreadCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, e := range v.notifs {
		if !e.notif.Read {
			n++
		}
	}
	return n
}

// Stock reports the latest pushed stock level for a book, if any.
func (v *View) Stock(bookID int64) (int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	n, ok := v.stock[bookID]
	return n, ok
}

// CartTotals prices the visible cart lines with the shared money rule,
// so the cart badge, the summary and the checkout all agree.
func (v *View) CartTotals() model.Totals {
	v.mu.Lock()
	defer v.mu.Unlock()
	var subtotal int64
	for _, e := range v.cart {
		if e.deleted {
			continue
		}
		if b, ok := v.books[e.line.BookID]; ok {
			subtotal += b.Price * int64(e.line.Quantity)
		}
	}
	return model.ComputeTotals(subtotal)
}
