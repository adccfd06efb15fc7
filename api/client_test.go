package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/bookbarn/storefront-go/localstore"
	"github.com/bookbarn/storefront-go/model"
	"github.com/bookbarn/storefront-go/session"
)

func newFixture(t *testing.T, handler http.Handler) (*Client, *session.Store) {
	t.Helper()
	kv, err := localstore.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sessions := session.New(kv, zerolog.Nop())
	c, err := New(srv.URL, sessions, kv, zerolog.Nop())
	require.NoError(t, err)
	return c, sessions
}

func activate(t *testing.T, s *session.Store, role model.Role, creds model.Credentials) {
	t.Helper()
	require.NoError(t, s.Activate(context.Background(),
		model.Actor{ID: 1, Name: "x", Role: role}, creds))
}

func TestBearerPrecedenceOnTheWire(t *testing.T) {
	var got atomic.Value
	c, sessions := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))

	ctx := context.Background()
	activate(t, sessions, model.RoleCustomer, model.Credentials{AccessToken: "c-tok"})
	require.NoError(t, c.Do(ctx, http.MethodGet, "/books", nil, nil))
	require.Equal(t, "Bearer c-tok", got.Load())

	activate(t, sessions, model.RoleDeliveryAgent, model.Credentials{AccessToken: "d-tok"})
	require.NoError(t, c.Do(ctx, http.MethodGet, "/books", nil, nil))
	require.Equal(t, "Bearer d-tok", got.Load())
}

func TestVendorAuthFailureIsFatal(t *testing.T) {
	c, sessions := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	ctx := context.Background()
	activate(t, sessions, model.RoleVendor, model.Credentials{AccessToken: "v-tok"})

	err := c.Do(ctx, http.MethodGet, "/vendor/profile", nil, nil)
	require.ErrorIs(t, err, ErrSessionExpired)

	_, err = sessions.Active(ctx)
	require.ErrorIs(t, err, session.ErrNotLoggedIn)
}

func TestCustomerRefreshRetriesExactlyOnce(t *testing.T) {
	var calls, refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/user/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"accessToken": "fresh-tok"})
	})
	mux.HandleFunc("/orders/user/1", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh-tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[]`))
	})
	c, sessions := newFixture(t, mux)
	ctx := context.Background()
	activate(t, sessions, model.RoleCustomer,
		model.Credentials{AccessToken: "stale-tok", RefreshToken: "ref-tok"})

	_, err := c.Orders(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load()) // original + one retry
	require.Equal(t, int32(1), refreshes.Load())

	// the refreshed token is persisted for the next request
	sess, err := sessions.Active(ctx)
	require.NoError(t, err)
	require.Equal(t, "fresh-tok", sess.Token)
}

func TestCustomerSecondRejectionLogsOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/refresh", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"accessToken": "still-bad"})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c, sessions := newFixture(t, mux)
	ctx := context.Background()
	activate(t, sessions, model.RoleCustomer,
		model.Credentials{AccessToken: "stale", RefreshToken: "ref"})

	err := c.Do(ctx, http.MethodGet, "/cart/1", nil, nil)
	require.ErrorIs(t, err, ErrSessionExpired)
	_, err = sessions.Active(ctx)
	require.ErrorIs(t, err, session.ErrNotLoggedIn)
}

func TestRefreshFailureLogsOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c, sessions := newFixture(t, mux)
	activate(t, sessions, model.RoleCustomer,
		model.Credentials{AccessToken: "stale", RefreshToken: "dead-ref"})

	err := c.Do(context.Background(), http.MethodGet, "/cart/1", nil, nil)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestNonAuthErrorsPropagateUnchanged(t *testing.T) {
	c, sessions := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	activate(t, sessions, model.RoleCustomer, model.Credentials{AccessToken: "tok"})

	err := c.Do(context.Background(), http.MethodGet, "/books", nil, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusInternalServerError, se.Status)

	// session survives a 500
	_, err = sessions.Active(context.Background())
	require.NoError(t, err)
}

func TestBookCacheServesRepeats(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/books/42", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(model.Book{ID: 42, Title: "Dune", Price: 240})
	})
	c, sessions := newFixture(t, mux)
	activate(t, sessions, model.RoleCustomer, model.Credentials{AccessToken: "tok"})

	ctx := context.Background()
	b1, err := c.Book(ctx, 42)
	require.NoError(t, err)
	b2, err := c.Book(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, b1, b2)
	require.Equal(t, int32(1), hits.Load())
}

func TestPlaceOrderNormalizesObjectAndArray(t *testing.T) {
	single := true
	mux := http.NewServeMux()
	mux.HandleFunc("/orders/place", func(w http.ResponseWriter, r *http.Request) {
		if single {
			json.NewEncoder(w).Encode(model.Order{ID: 10, Status: model.StatusPending})
			return
		}
		json.NewEncoder(w).Encode([]model.Order{{ID: 11}, {ID: 12}})
	})
	c, sessions := newFixture(t, mux)
	activate(t, sessions, model.RoleCustomer, model.Credentials{AccessToken: "tok"})
	ctx := context.Background()

	orders, err := c.PlaceOrder(ctx, PlaceOrderRequest{UserID: 1})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, int64(10), orders[0].ID)

	single = false
	orders, err = c.PlaceOrder(ctx, PlaceOrderRequest{UserID: 1})
	require.NoError(t, err)
	require.Len(t, orders, 2)
}

func TestCheckoutStaging(t *testing.T) {
	c, _ := newFixture(t, http.NewServeMux())
	ctx := context.Background()

	_, ok, err := c.PendingCheckoutState(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	pc := PendingCheckout{
		UserID:        1,
		Items:         []model.OrderItem{{BookID: 42, Quantity: 2, UnitPrice: 240}},
		Address:       "12 Shelf Rd",
		PaymentMethod: "COD",
		Totals:        model.ComputeTotals(480),
	}
	require.NoError(t, c.StagePendingCheckout(ctx, pc))

	got, ok, err := c.PendingCheckoutState(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pc, *got)

	require.NoError(t, c.ClearPendingCheckout(ctx))
	_, ok, err = c.PendingCheckoutState(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCompleteCheckoutFlow(t *testing.T) {
	var paid, placed, cleared atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/payment/process", func(w http.ResponseWriter, r *http.Request) {
		paid.Add(1)
	})
	mux.HandleFunc("/orders/place", func(w http.ResponseWriter, r *http.Request) {
		placed.Add(1)
		json.NewEncoder(w).Encode([]model.Order{{ID: 77, Status: model.StatusPending, Total: 554}})
	})
	mux.HandleFunc("/cart/1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]model.CartLine{{ID: 5, UserID: 1, BookID: 42, Quantity: 2}})
	})
	mux.HandleFunc("/cart/5", func(w http.ResponseWriter, r *http.Request) {
		cleared.Add(1)
	})
	c, sessions := newFixture(t, mux)
	activate(t, sessions, model.RoleCustomer, model.Credentials{AccessToken: "tok"})
	ctx := context.Background()

	require.NoError(t, c.StagePendingCheckout(ctx, PendingCheckout{
		UserID:        1,
		Items:         []model.OrderItem{{BookID: 42, Quantity: 2, UnitPrice: 240}},
		PaymentMethod: "COD",
		Totals:        model.ComputeTotals(480),
	}))

	orders, err := c.CompleteCheckout(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, int32(1), paid.Load())
	require.Equal(t, int32(1), placed.Load())
	require.Equal(t, int32(1), cleared.Load())

	// staged state consumed, confirmation snapshot written
	_, ok, err := c.PendingCheckoutState(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	last, ok, err := c.LastCompletedOrder(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(77), last[0].ID)

	// a second call has nothing staged
	_, err = c.CompleteCheckout(ctx)
	require.ErrorIs(t, err, ErrNoPendingCheckout)
}
