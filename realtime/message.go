package realtime

import "encoding/json"

// Message is the wire shape of every push event: a type tag plus an
// opaque payload the view-model decodes per type.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const (
	MsgNewOrder        = "NEW_ORDER"
	MsgOrderUpdate     = "ORDER_UPDATE"
	MsgInventoryUpdate = "INVENTORY_UPDATE"
	MsgNotification    = "NOTIFICATION"
)

// Handler consumes decoded push messages.
type Handler func(Message)
