// Package storefront wires the client stack together: persisted local
// state, the role-aware session store, the REST gateway client, and a
// per-session sync loop (push channel with polling fallback feeding the
// order lifecycle view-model).
package storefront

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bookbarn/storefront-go/api"
	"github.com/bookbarn/storefront-go/config"
	"github.com/bookbarn/storefront-go/localstore"
	"github.com/bookbarn/storefront-go/model"
	"github.com/bookbarn/storefront-go/realtime"
	"github.com/bookbarn/storefront-go/session"
	"github.com/bookbarn/storefront-go/vm"
)

var ErrSyncRunning = errors.New("sync already running")

type App struct {
	Config   *config.Config
	Store    *localstore.Store
	Sessions *session.Store
	API      *api.Client

	dialer  realtime.Dialer
	apiOpts []api.Option
	log     zerolog.Logger

	mu      sync.Mutex
	view    *vm.View
	channel *realtime.Channel
}

type Option func(*App)

// WithDialer overrides the broker dialer; tests use a fake.
func WithDialer(d realtime.Dialer) Option {
	return func(a *App) { a.dialer = d }
}

func WithAPIOptions(opts ...api.Option) Option {
	return func(a *App) { a.apiOpts = append(a.apiOpts, opts...) }
}

func Open(cfg *config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	kv, err := localstore.Open(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config: cfg,
		Store:  kv,
		dialer: realtime.AMQPDialer{URL: cfg.RabbitURL, Exchange: cfg.RabbitExchange},
		log:    log,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Sessions = session.New(kv, log)
	a.API, err = api.New(cfg.APIBase, a.Sessions, kv, log, a.apiOpts...)
	if err != nil {
		kv.Close()
		return nil, err
	}
	return a, nil
}

// StartSync builds the active actor's view-model, loads it once, then
// keeps it fresh: push when the broker is reachable, polling otherwise.
func (a *App) StartSync(ctx context.Context) (*vm.View, error) {
	sess, err := a.Sessions.Active(ctx)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.channel != nil {
		a.mu.Unlock()
		return nil, ErrSyncRunning
	}
	view := vm.New(sess.Actor, a.API, a.log)
	a.view = view
	a.mu.Unlock()

	a.refresh(ctx, view, sess.Actor)

	poller := realtime.NewPoller(a.Config.PollInterval, func(ctx context.Context) {
		a.refresh(ctx, view, sess.Actor)
	}, a.log)
	ch := realtime.NewChannel(a.dialer, realtime.Topic(sess.Actor), view.ApplyMessage,
		poller, a.Config.ReconnectBaseDelay, a.Config.MaxReconnectAttempts, a.log)

	a.mu.Lock()
	a.channel = ch
	a.mu.Unlock()

	ch.Connect()
	return view, nil
}

// refresh re-fetches the data each portal renders. Errors are logged,
// not fatal: the next poll or push will try again.
func (a *App) refresh(ctx context.Context, view *vm.View, actor model.Actor) {
	switch actor.Role {
	case model.RoleVendor:
		if orders, err := a.API.VendorOrders(ctx, actor.ID); err == nil {
			view.SetOrders(orders)
		} else {
			a.log.Warn().Err(err).Msg("vendor order refresh failed")
		}
	case model.RoleDeliveryAgent:
		if orders, err := a.API.DeliveryOrders(ctx); err == nil {
			view.SetOrders(orders)
		} else {
			a.log.Warn().Err(err).Msg("delivery order refresh failed")
		}
	default:
		if orders, err := a.API.Orders(ctx, actor.ID); err == nil {
			view.SetOrders(orders)
		} else {
			a.log.Warn().Err(err).Msg("order refresh failed")
		}
		if lines, err := a.API.CartLines(ctx, actor.ID); err == nil {
			view.SetCart(lines)
		} else {
			a.log.Warn().Err(err).Msg("cart refresh failed")
		}
	}
	if notifs, err := a.API.Notifications(ctx, actor); err == nil {
		view.SetNotifications(notifs)
	} else {
		a.log.Warn().Err(err).Msg("notification refresh failed")
	}
}

// View returns the live view-model, or nil when sync is not running.
func (a *App) View() *vm.View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view
}

// StopSync tears down the channel and poll timer. Call it on logout or
// page teardown; stale callbacks after this are no-ops.
func (a *App) StopSync() {
	a.mu.Lock()
	ch := a.channel
	a.channel = nil
	a.view = nil
	a.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
}

func (a *App) Close() error {
	a.StopSync()
	return a.Store.Close()
}
