package model

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Role identifies which kind of actor owns a session.
type Role string

const (
	RoleCustomer      Role = "CUSTOMER"
	RoleVendor        Role = "VENDOR"
	RoleDeliveryAgent Role = "DELIVERY_AGENT"
	RoleAdmin         Role = "ADMIN"
)

// Actor is the authenticated identity driving a session.
type Actor struct {
	ID      int64  `json:"id"`
	Name    string `json:"username"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Role    Role   `json:"role"`
}

// Credentials holds the bearer token(s) issued at login. Only customer
// sessions carry a refresh token; vendor and delivery sessions are
// single-token and die on 401/403.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type Book struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Price    int64  `json:"price"`
	Stock    int    `json:"stock"`
	VendorID int64  `json:"vendorId,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// CartLine is one row of a customer's cart. The id is server-assigned.
type CartLine struct {
	ID       int64 `json:"id"`
	UserID   int64 `json:"userId"`
	BookID   int64 `json:"bookId"`
	Quantity int   `json:"quantity"`
}

type OrderItem struct {
	BookID    int64  `json:"bookId"`
	Title     string `json:"title,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"price"`
}

type StatusEntry struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

type Order struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"userId"`
	Items         []OrderItem   `json:"items"`
	Address       string        `json:"address"`
	Phone         string        `json:"phone"`
	PaymentMethod string        `json:"paymentMethod"`
	Status        OrderStatus   `json:"status"`
	AgentID       int64         `json:"deliveryAgentId,omitempty"`
	History       []StatusEntry `json:"statusHistory,omitempty"`
	Total         int64         `json:"total"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Subtotal sums the line totals of the order's items.
func (o Order) Subtotal() int64 {
	var sum int64
	for _, it := range o.Items {
		sum += it.UnitPrice * int64(it.Quantity)
	}
	return sum
}

type Notification struct {
	ID        int64     `json:"id"`
	ActorID   int64     `json:"recipientId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Age renders the notification's age for display ("3 minutes ago").
func (n Notification) Age() string {
	return humanize.Time(n.CreatedAt)
}
