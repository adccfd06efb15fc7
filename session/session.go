// Package session is the single source of truth for which actor is
// logged in. Credentials are mutually exclusive across roles: activating
// one role clears the others, and lookups apply a fixed precedence
// (delivery agent, then vendor, then customer) that request signing
// depends on.
package session

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/bookbarn/storefront-go/localstore"
	"github.com/bookbarn/storefront-go/model"
)

var ErrNotLoggedIn = errors.New("no active session")

// Session is the resolved active actor plus its live credentials.
type Session struct {
	Actor        model.Actor
	Token        string
	RefreshToken string
}

type Store struct {
	kv  *localstore.Store
	log zerolog.Logger
}

func New(kv *localstore.Store, log zerolog.Logger) *Store {
	return &Store{kv: kv, log: log.With().Str("component", "session").Logger()}
}

// roleKeys maps each role to its token key and profile-blob key. Admins
// authenticate through the customer surface, so they share its keys.
func roleKeys(role model.Role) (token, profile string) {
	switch role {
	case model.RoleDeliveryAgent:
		return localstore.KeyDeliveryToken, localstore.KeyDeliveryAgent
	case model.RoleVendor:
		return localstore.KeyVendorToken, localstore.KeyVendorProfile
	default:
		return localstore.KeyAccessToken, localstore.KeyUser
	}
}

// Activate persists the new role's credentials after clearing every
// other role's. After it returns exactly one role is logged in.
func (s *Store) Activate(ctx context.Context, actor model.Actor, creds model.Credentials) error {
	for _, other := range []model.Role{model.RoleDeliveryAgent, model.RoleVendor, model.RoleCustomer} {
		if sameKeys(other, actor.Role) {
			continue
		}
		if err := s.Clear(ctx, other); err != nil {
			return err
		}
	}

	tokKey, profKey := roleKeys(actor.Role)
	if err := s.kv.Put(ctx, tokKey, creds.AccessToken); err != nil {
		return err
	}
	if creds.RefreshToken != "" {
		if err := s.kv.Put(ctx, localstore.KeyRefreshToken, creds.RefreshToken); err != nil {
			return err
		}
	}
	if err := s.kv.PutJSON(ctx, profKey, actor); err != nil {
		return err
	}
	s.log.Info().Str("role", string(actor.Role)).Int64("actor", actor.ID).Msg("session activated")
	return nil
}

func sameKeys(a, b model.Role) bool {
	ta, _ := roleKeys(a)
	tb, _ := roleKeys(b)
	return ta == tb
}

// Active resolves the highest-precedence live session:
// delivery agent > vendor > customer.
func (s *Store) Active(ctx context.Context) (*Session, error) {
	for _, role := range []model.Role{model.RoleDeliveryAgent, model.RoleVendor, model.RoleCustomer} {
		tokKey, profKey := roleKeys(role)
		tok, ok, err := s.kv.Get(ctx, tokKey)
		if err != nil {
			return nil, err
		}
		if !ok || tok == "" {
			continue
		}
		actor := model.Actor{Role: role}
		if _, err := s.kv.GetJSON(ctx, profKey, &actor); err != nil {
			return nil, err
		}
		if actor.Role == "" {
			actor.Role = role
		}
		sess := &Session{Actor: actor, Token: tok}
		if role == model.RoleCustomer || role == model.RoleAdmin || actor.Role == model.RoleAdmin {
			if rt, ok, err := s.kv.Get(ctx, localstore.KeyRefreshToken); err != nil {
				return nil, err
			} else if ok {
				sess.RefreshToken = rt
			}
		}
		return sess, nil
	}
	return nil, ErrNotLoggedIn
}

// Clear removes one role's credentials; used on logout and on an
// authoritative 401/403.
func (s *Store) Clear(ctx context.Context, role model.Role) error {
	tokKey, profKey := roleKeys(role)
	if err := s.kv.Delete(ctx, tokKey); err != nil {
		return err
	}
	if tokKey == localstore.KeyAccessToken {
		if err := s.kv.Delete(ctx, localstore.KeyRefreshToken); err != nil {
			return err
		}
	}
	return s.kv.Delete(ctx, profKey)
}

func (s *Store) ClearAll(ctx context.Context) error {
	for _, role := range []model.Role{model.RoleDeliveryAgent, model.RoleVendor, model.RoleCustomer} {
		if err := s.Clear(ctx, role); err != nil {
			return err
		}
	}
	return nil
}

// StoreAccessToken replaces the customer access token after a refresh.
func (s *Store) StoreAccessToken(ctx context.Context, tok string) error {
	return s.kv.Put(ctx, localstore.KeyAccessToken, tok)
}
