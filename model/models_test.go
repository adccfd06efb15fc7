package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationAge(t *testing.T) {
	n := Notification{CreatedAt: time.Now().Add(-3 * time.Minute)}
	assert.True(t, strings.Contains(n.Age(), "minutes ago"), "got %q", n.Age())
}

func TestStatusValid(t *testing.T) {
	for _, s := range []OrderStatus{StatusNew, StatusPending, StatusDelivered, StatusCancelled} {
		assert.True(t, s.Valid(), "%s", s)
	}
	assert.False(t, OrderStatus("REFUNDED").Valid())
}

func TestOrderJSONShape(t *testing.T) {
	raw := `{
		"id": 9, "userId": 1, "status": "OUT_FOR_DELIVERY",
		"items": [{"bookId": 42, "quantity": 2, "price": 240}],
		"statusHistory": [{"status": "SHIPPED", "timestamp": "2026-08-01T10:00:00Z"}],
		"total": 554
	}`
	var o Order
	require.NoError(t, json.Unmarshal([]byte(raw), &o))
	assert.Equal(t, StatusOutForDelivery, o.Status)
	assert.Equal(t, int64(480), o.Subtotal())
	require.Len(t, o.History, 1)
	assert.Equal(t, StatusShipped, o.History[0].Status)
}
