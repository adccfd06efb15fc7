// Package api wraps the remote storefront REST API. Every request is
// signed with the active actor's bearer token (delivery agent > vendor
// > customer precedence), and authentication failures are handled
// centrally: fatal logout for vendor and delivery sessions, a single
// refresh-and-retry for customers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/bookbarn/storefront-go/localstore"
	"github.com/bookbarn/storefront-go/model"
	"github.com/bookbarn/storefront-go/session"
)

const bookCacheSize = 256

type Client struct {
	base     string
	http     *http.Client
	sessions *session.Store
	kv       *localstore.Store
	books    *lru.Cache[int64, model.Book]
	log      zerolog.Logger

	// called after a forced logout so the embedding app can navigate
	// to the login surface
	onForcedLogout func(model.Role)
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithForcedLogoutHook(fn func(model.Role)) Option {
	return func(c *Client) { c.onForcedLogout = fn }
}

func New(base string, sessions *session.Store, kv *localstore.Store, log zerolog.Logger, opts ...Option) (*Client, error) {
	books, err := lru.New[int64, model.Book](bookCacheSize)
	if err != nil {
		return nil, err
	}
	c := &Client{
		base:     base,
		http:     http.DefaultClient,
		sessions: sessions,
		kv:       kv,
		books:    books,
		log:      log.With().Str("component", "api").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do issues an authenticated request and decodes the JSON response into
// out (which may be nil). On 401/403 it applies the role-specific
// policy; any other error status propagates as *StatusError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	sess, err := c.sessions.Active(ctx)
	if err != nil && !errors.Is(err, session.ErrNotLoggedIn) {
		return err
	}

	var token string
	if sess != nil {
		token = sess.Token
	}
	err = c.roundTrip(ctx, method, path, token, body, out)

	var se *StatusError
	if sess == nil || !errors.As(err, &se) || !isAuthStatus(se.Status) {
		return err
	}

	role := sess.Actor.Role
	if role == model.RoleVendor || role == model.RoleDeliveryAgent {
		// single-token sessions: no refresh path, log out immediately
		c.forceLogout(ctx, role)
		return fmt.Errorf("%s credentials rejected: %w", role, ErrSessionExpired)
	}

	// Customer (or admin): exactly one refresh-and-retry cycle.
	if sess.RefreshToken == "" {
		c.forceLogout(ctx, model.RoleCustomer)
		return fmt.Errorf("no refresh token: %w", ErrSessionExpired)
	}
	newTok, rerr := c.refresh(ctx, sess.RefreshToken)
	if rerr != nil {
		c.forceLogout(ctx, model.RoleCustomer)
		return fmt.Errorf("token refresh failed: %w", ErrSessionExpired)
	}
	if err := c.sessions.StoreAccessToken(ctx, newTok); err != nil {
		return err
	}
	err = c.roundTrip(ctx, method, path, newTok, body, out)
	if errors.As(err, &se) && isAuthStatus(se.Status) {
		c.forceLogout(ctx, model.RoleCustomer)
		return fmt.Errorf("retry after refresh rejected: %w", ErrSessionExpired)
	}
	return err
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (string, error) {
	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	req := map[string]string{"refreshToken": refreshToken}
	if err := c.roundTrip(ctx, http.MethodPost, "/user/refresh", "", req, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", errors.New("refresh response missing accessToken")
	}
	return resp.AccessToken, nil
}

func (c *Client) forceLogout(ctx context.Context, role model.Role) {
	c.log.Warn().Str("role", string(role)).Msg("session invalid (401/403), logging out")
	if err := c.sessions.Clear(ctx, role); err != nil {
		c.log.Error().Err(err).Msg("clearing session failed")
	}
	if c.onForcedLogout != nil {
		c.onForcedLogout(role)
	}
}

func (c *Client) roundTrip(ctx context.Context, method, path, token string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &StatusError{Status: res.StatusCode, Body: string(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
