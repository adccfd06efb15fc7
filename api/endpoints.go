package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bookbarn/storefront-go/model"
)

// Login authenticates a customer (or admin) and activates the session.
// input may be a username or an email.
func (c *Client) Login(ctx context.Context, input, password string) (*model.Actor, error) {
	var resp struct {
		AccessToken  string      `json:"accessToken"`
		RefreshToken string      `json:"refreshToken"`
		User         model.Actor `json:"user"`
	}
	body := map[string]string{"input": input, "password": password}
	if err := c.roundTrip(ctx, http.MethodPost, "/user/login", "", body, &resp); err != nil {
		return nil, err
	}
	if resp.User.Role == "" {
		resp.User.Role = model.RoleCustomer
	}
	creds := model.Credentials{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if err := c.sessions.Activate(ctx, resp.User, creds); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) VendorLogin(ctx context.Context, email, password string) (*model.Actor, error) {
	var resp struct {
		Token  string      `json:"token"`
		Vendor model.Actor `json:"vendor"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.roundTrip(ctx, http.MethodPost, "/vendor/login", "", body, &resp); err != nil {
		return nil, err
	}
	resp.Vendor.Role = model.RoleVendor
	if err := c.sessions.Activate(ctx, resp.Vendor, model.Credentials{AccessToken: resp.Token}); err != nil {
		return nil, err
	}
	return &resp.Vendor, nil
}

func (c *Client) DeliveryLogin(ctx context.Context, email, password string) (*model.Actor, error) {
	var resp struct {
		Token string      `json:"token"`
		Agent model.Actor `json:"agent"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.roundTrip(ctx, http.MethodPost, "/delivery/login", "", body, &resp); err != nil {
		return nil, err
	}
	resp.Agent.Role = model.RoleDeliveryAgent
	if err := c.sessions.Activate(ctx, resp.Agent, model.Credentials{AccessToken: resp.Token}); err != nil {
		return nil, err
	}
	return &resp.Agent, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.sessions.ClearAll(ctx)
}

// ---- orders ----

func (c *Client) Orders(ctx context.Context, userID int64) ([]model.Order, error) {
	var out []model.Order
	err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/orders/user/%d", userID), nil, &out)
	return out, err
}

func (c *Client) VendorOrders(ctx context.Context, vendorID int64) ([]model.Order, error) {
	var out []model.Order
	err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/orders/vendor/%d", vendorID), nil, &out)
	return out, err
}

func (c *Client) DeliveryOrders(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	err := c.Do(ctx, http.MethodGet, "/delivery/orders", nil, &out)
	return out, err
}

func (c *Client) Order(ctx context.Context, id int64) (*model.Order, error) {
	var out model.Order
	if err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type PlaceOrderRequest struct {
	UserID        int64             `json:"userId"`
	Items         []model.OrderItem `json:"items"`
	Address       string            `json:"address"`
	Phone         string            `json:"phone"`
	PaymentMethod string            `json:"paymentMethod"`
	Total         int64             `json:"total"`
}

// PlaceOrder creates order(s) from a checkout. The server may split one
// checkout into several orders (one per vendor); the response is
// normalized to a slice either way.
func (c *Client) PlaceOrder(ctx context.Context, req PlaceOrderRequest) ([]model.Order, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodPost, "/orders/place", req, &raw); err != nil {
		return nil, err
	}
	var many []model.Order
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one model.Order
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("unexpected place-order response: %w", err)
	}
	return []model.Order{one}, nil
}

// UpdateOrderStatus requests a status transition. Delivery agents go
// through their own endpoint; vendors and admins share the generic one.
// The server remains the authority on legality.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	sess, err := c.sessions.Active(ctx)
	if err != nil {
		return err
	}
	if sess.Actor.Role == model.RoleDeliveryAgent {
		return c.Do(ctx, http.MethodPost, fmt.Sprintf("/delivery/status/%d/%s", orderID, status), nil, nil)
	}
	q := url.Values{}
	q.Set("id", fmt.Sprint(orderID))
	q.Set("status", string(status))
	return c.Do(ctx, http.MethodPost, "/orders/update-status?"+q.Encode(), nil, nil)
}

// ---- cart ----

func (c *Client) CartLines(ctx context.Context, userID int64) ([]model.CartLine, error) {
	var out []model.CartLine
	err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/cart/%d", userID), nil, &out)
	return out, err
}

func (c *Client) AddCartLine(ctx context.Context, line model.CartLine) (model.CartLine, error) {
	var out model.CartLine
	err := c.Do(ctx, http.MethodPost, "/cart/add", line, &out)
	return out, err
}

func (c *Client) UpdateCartLine(ctx context.Context, line model.CartLine) (model.CartLine, error) {
	var out model.CartLine
	err := c.Do(ctx, http.MethodPost, "/cart/update", line, &out)
	return out, err
}

func (c *Client) DeleteCartLine(ctx context.Context, lineID int64) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/cart/%d", lineID), nil, nil)
}

// ---- notifications ----

func notifScope(role model.Role) string {
	switch role {
	case model.RoleVendor:
		return "vendor"
	case model.RoleDeliveryAgent:
		return "delivery"
	default:
		return "user"
	}
}

func (c *Client) Notifications(ctx context.Context, actor model.Actor) ([]model.Notification, error) {
	var out []model.Notification
	path := fmt.Sprintf("/notifications/%s/%d", notifScope(actor.Role), actor.ID)
	err := c.Do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.Do(ctx, http.MethodPut, fmt.Sprintf("/notifications/%d/read", id), nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context, actor model.Actor) error {
	path := fmt.Sprintf("/notifications/%s/%d/read-all", notifScope(actor.Role), actor.ID)
	return c.Do(ctx, http.MethodPost, path, nil, nil)
}

// ---- books ----

func (c *Client) Books(ctx context.Context) ([]model.Book, error) {
	var out []model.Book
	if err := c.Do(ctx, http.MethodGet, "/books", nil, &out); err != nil {
		return nil, err
	}
	for _, b := range out {
		c.books.Add(b.ID, b)
	}
	return out, nil
}

// Book fetches one book, serving repeats from the LRU cache. Cart views
// resolve every line's book this way.
func (c *Client) Book(ctx context.Context, id int64) (model.Book, error) {
	if b, ok := c.books.Get(id); ok {
		return b, nil
	}
	var out model.Book
	if err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/books/%d", id), nil, &out); err != nil {
		return model.Book{}, err
	}
	c.books.Add(out.ID, out)
	return out, nil
}

// ---- misc ----

type PaymentRequest struct {
	UserID int64  `json:"userId"`
	Amount int64  `json:"amount"`
	Method string `json:"method"`
}

func (c *Client) ProcessPayment(ctx context.Context, req PaymentRequest) error {
	return c.Do(ctx, http.MethodPost, "/payment/process", req, nil)
}

func (c *Client) UpdateProfile(ctx context.Context, userID int64, fields map[string]any) error {
	return c.Do(ctx, http.MethodPut, fmt.Sprintf("/user/%d/profile", userID), fields, nil)
}
