package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/bookbarn/storefront-go/localstore"
	"github.com/bookbarn/storefront-go/model"
)

func newStore(t *testing.T) (*Store, *localstore.Store) {
	t.Helper()
	kv, err := localstore.Open(filepath.Join(t.TempDir(), "s.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return New(kv, zerolog.Nop()), kv
}

func TestActivateIsMutuallyExclusive(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)

	require.NoError(t, s.Activate(ctx,
		model.Actor{ID: 1, Name: "cust", Role: model.RoleCustomer},
		model.Credentials{AccessToken: "c-tok", RefreshToken: "c-ref"}))

	require.NoError(t, s.Activate(ctx,
		model.Actor{ID: 9, Name: "shop", Role: model.RoleVendor},
		model.Credentials{AccessToken: "v-tok"}))

	sess, err := s.Active(ctx)
	require.NoError(t, err)
	require.Equal(t, model.RoleVendor, sess.Actor.Role)
	require.Equal(t, "v-tok", sess.Token)

	// the customer credential must be gone, not just shadowed
	_, ok, err := kv.Get(ctx, localstore.KeyAccessToken)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = kv.Get(ctx, localstore.KeyRefreshToken)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPrecedenceDeliveryFirst(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)

	// force all three roles live, bypassing Activate's exclusivity
	require.NoError(t, kv.Put(ctx, localstore.KeyAccessToken, "c"))
	require.NoError(t, kv.Put(ctx, localstore.KeyVendorToken, "v"))
	require.NoError(t, kv.Put(ctx, localstore.KeyDeliveryToken, "d"))

	sess, err := s.Active(ctx)
	require.NoError(t, err)
	require.Equal(t, model.RoleDeliveryAgent, sess.Actor.Role)
	require.Equal(t, "d", sess.Token)

	require.NoError(t, kv.Delete(ctx, localstore.KeyDeliveryToken))
	sess, err = s.Active(ctx)
	require.NoError(t, err)
	require.Equal(t, model.RoleVendor, sess.Actor.Role)

	require.NoError(t, kv.Delete(ctx, localstore.KeyVendorToken))
	sess, err = s.Active(ctx)
	require.NoError(t, err)
	require.Equal(t, model.RoleCustomer, sess.Actor.Role)
}

func TestCorruptedProfileBlobDegradesToBareSession(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)

	require.NoError(t, kv.Put(ctx, localstore.KeyVendorToken, "v-tok"))
	require.NoError(t, kv.Put(ctx, localstore.KeyVendorProfile, "{not json"))

	sess, err := s.Active(ctx)
	require.NoError(t, err)
	require.Equal(t, model.RoleVendor, sess.Actor.Role)
	require.Zero(t, sess.Actor.ID)
}

func TestNoSession(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Active(context.Background())
	require.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.Activate(ctx,
		model.Actor{ID: 3, Role: model.RoleDeliveryAgent},
		model.Credentials{AccessToken: "d-tok"}))
	require.NoError(t, s.ClearAll(ctx))

	_, err := s.Active(ctx)
	require.ErrorIs(t, err, ErrNotLoggedIn)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func TestTokenExpired(t *testing.T) {
	require.False(t, TokenExpired(signedToken(t, time.Now().Add(time.Hour))))
	require.True(t, TokenExpired(signedToken(t, time.Now().Add(-time.Hour))))
	require.True(t, TokenExpired("not-a-jwt"))
	require.True(t, TokenExpired(""))
}
