package vm

import (
	"encoding/json"

	"github.com/bookbarn/storefront-go/model"
	"github.com/bookbarn/storefront-go/realtime"
)

// ApplyMessage merges one authoritative push event into the view. For
// the entity the event names, server truth wins even over a pending
// optimistic write; every other entity's in-flight state is untouched.
// Unknown types are logged and ignored, never fatal.
func (v *View) ApplyMessage(msg realtime.Message) {
	switch msg.Type {
	case realtime.MsgNewOrder, realtime.MsgOrderUpdate:
		var o model.Order
		if err := json.Unmarshal(msg.Payload, &o); err != nil {
			v.log.Error().Err(err).Str("type", msg.Type).Msg("bad order payload")
			return
		}
		v.mu.Lock()
		v.orders[o.ID] = &orderEntry{order: o}
		v.mu.Unlock()
		v.log.Debug().Int64("order", o.ID).Str("status", string(o.Status)).Msg("order merged from push")

	case realtime.MsgInventoryUpdate:
		var p struct {
			BookID int64 `json:"bookId"`
			Stock  int   `json:"stock"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			v.log.Error().Err(err).Msg("bad inventory payload")
			return
		}
		v.mu.Lock()
		v.stock[p.BookID] = p.Stock
		if b, ok := v.books[p.BookID]; ok {
			b.Stock = p.Stock
			v.books[p.BookID] = b
		}
		v.mu.Unlock()

	case realtime.MsgNotification:
		var n model.Notification
		if err := json.Unmarshal(msg.Payload, &n); err != nil {
			v.log.Error().Err(err).Msg("bad notification payload")
			return
		}
		v.mu.Lock()
		if prev, ok := v.notifs[n.ID]; ok && prev.notif.Read {
			n.Read = true // read state never reverts
		}
		v.notifs[n.ID] = &notifEntry{notif: n}
		v.mu.Unlock()

	default:
		v.log.Warn().Str("type", msg.Type).Msg("unknown push message type, ignoring")
	}
}
