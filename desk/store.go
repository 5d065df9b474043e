// Package desk is the application store. It owns the tick map, the order
// cache and the account state, wires the stream and polling into them, and
// hands views consistent snapshots.
package desk

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/rustyeddy/fxdesk/account"
	"github.com/rustyeddy/fxdesk/journal"
	"github.com/rustyeddy/fxdesk/market"
	"github.com/rustyeddy/fxdesk/notify"
	"github.com/rustyeddy/fxdesk/orders"
	"github.com/rustyeddy/fxdesk/pnl"
	"github.com/rustyeddy/fxdesk/stream"
	"github.com/rustyeddy/fxdesk/view"
)

// Backend is the part of the API client the store reads from.
type Backend interface {
	orders.Fetcher
	GetAccount(ctx context.Context) (account.Account, error)
	Instruments(ctx context.Context) (market.Instruments, error)
}

type Options struct {
	OrdersEvery  time.Duration
	AccountEvery time.Duration
	RenderEvery  time.Duration

	// Stream, when set, is started for every mounted view.
	Stream *stream.Options

	Journal journal.Journal
	Notices *notify.Center
}

// Store is passed explicitly to every view; there is no package state.
type Store struct {
	backend Backend
	opts    Options

	ticks   *market.TickStore
	orders  *orders.Cache
	account *account.State
	notices *notify.Center
	journal journal.Journal

	mu          sync.RWMutex
	instruments market.Instruments

	// version moves on every state change; each mounted view compares it
	// with the last version it rendered.
	version atomic.Uint64
}

func New(b Backend, opts Options) *Store {
	if opts.OrdersEvery <= 0 {
		opts.OrdersEvery = 2 * time.Minute
	}
	if opts.AccountEvery <= 0 {
		opts.AccountEvery = time.Minute
	}
	if opts.RenderEvery <= 0 {
		opts.RenderEvery = time.Second
	}
	if opts.Notices == nil {
		opts.Notices = notify.NewCenter(0)
	}
	if opts.Journal == nil {
		opts.Journal = journal.Discard{}
	}

	s := &Store{
		backend: b,
		opts:    opts,
		ticks:   market.NewTickStore(),
		orders:  orders.NewCache(b),
		account: account.NewState(),
		notices: opts.Notices,
		journal: opts.Journal,
	}
	s.orders.OnChange(s.ordersChanged)
	return s
}

func (s *Store) Ticks() *market.TickStore { return s.ticks }
func (s *Store) Orders() *orders.Cache    { return s.orders }
func (s *Store) Account() *account.State  { return s.account }
func (s *Store) Notices() *notify.Center  { return s.notices }
func (s *Store) Journal() journal.Journal { return s.journal }

// Instruments returns the last loaded symbol metadata.
func (s *Store) Instruments() market.Instruments {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instruments
}

func (s *Store) touch() { s.version.Add(1) }

func (s *Store) ordersChanged(st orders.Status) {
	s.touch()
	if st != orders.Closed {
		return
	}
	for _, o := range s.orders.Orders(orders.Closed) {
		if err := s.journal.RecordOrder(journal.FromOrder(o)); err != nil {
			logger.WithError(err).WithField("order", o.ID).Warn("journal order failed")
		}
	}
}

// RefreshOrders reloads one status. A superseded load is not an error; the
// newer result is already in the cache.
func (s *Store) RefreshOrders(ctx context.Context, st orders.Status) error {
	_, err := s.orders.Load(ctx, st)
	if errors.Is(err, orders.ErrSuperseded) {
		return nil
	}
	return err
}

// RefreshAccount replaces the account with the backend's.
func (s *Store) RefreshAccount(ctx context.Context) error {
	acct, err := s.backend.GetAccount(ctx)
	if err != nil {
		return err
	}
	s.account.Set(acct)
	s.touch()
	return nil
}

// RefreshInstruments loads symbol metadata. Without it the contract size
// convention is used, so failure only costs precision.
func (s *Store) RefreshInstruments(ctx context.Context) error {
	ins, err := s.backend.Instruments(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.instruments = ins
	s.mu.Unlock()
	return nil
}

// Refresh loads everything once. Each failure is reported as a notice; the
// first one is returned.
func (s *Store) Refresh(ctx context.Context) error {
	var first error
	keep := func(err error) {
		if err == nil {
			return
		}
		s.notices.Report(err)
		if first == nil {
			first = err
		}
	}

	if err := s.RefreshInstruments(ctx); err != nil {
		logger.WithError(err).Debug("symbol metadata unavailable")
	}
	keep(s.RefreshAccount(ctx))
	for _, st := range []orders.Status{orders.Pending, orders.Open, orders.Closed} {
		keep(s.RefreshOrders(ctx, st))
	}
	if first == nil {
		s.RecordEquity(time.Now())
	}
	return first
}

// Snapshot is one consistent dashboard frame.
type Snapshot struct {
	Time      time.Time               `json:"time"`
	Positions []pnl.Position          `json:"positions"`
	Pending   []orders.Order          `json:"pending"`
	Closed    []orders.Order          `json:"closed"`
	Quotes    map[string]market.Quote `json:"quotes"`
	OpenPnL   float64                 `json:"open_pnl"`
	Valued    int                     `json:"valued"`
	Summary   account.Summary         `json:"summary"`
	HasAcct   bool                    `json:"has_account"`
}

// Snapshot reconciles the cached open orders against the current quotes.
func (s *Store) Snapshot() Snapshot {
	quotes := s.ticks.Snapshot()
	positions := pnl.ReconcileWith(s.orders.Orders(orders.Open), quotes, s.Instruments())
	total, n := pnl.TotalOpenPnL(positions)
	acct, ok := s.account.Get()

	return Snapshot{
		Time:      time.Now(),
		Positions: positions,
		Pending:   s.orders.Orders(orders.Pending),
		Closed:    s.orders.Orders(orders.Closed),
		Quotes:    quotes,
		OpenPnL:   total,
		Valued:    n,
		Summary:   account.Derive(acct, total),
		HasAcct:   ok,
	}
}

// Symbols returns the quoted symbols in order.
func (sn Snapshot) Symbols() []string {
	out := make([]string, 0, len(sn.Quotes))
	for sym := range sn.Quotes {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// RecordEquity journals the current derived account, if one is loaded.
func (s *Store) RecordEquity(t time.Time) {
	sn := s.Snapshot()
	if !sn.HasAcct {
		return
	}
	if err := s.journal.RecordEquity(journal.FromSummary(sn.Summary, t)); err != nil {
		logger.WithError(err).Warn("journal equity failed")
	}
}

// Mount opens a view on the store. It polls orders and account, follows the
// stream when configured, and calls render with a fresh snapshot whenever
// state changed, at most once per RenderEvery. All of it stops when the
// returned scope closes; render never runs after Close returns.
func (s *Store) Mount(parent context.Context, name string, render func(Snapshot)) *view.Scope {
	sc := view.Mount(parent, name)
	sc.OnPanic(func(r any) { _ = s.notices.Recovered(name, r) })

	sc.Every(s.opts.OrdersEvery, func(ctx context.Context) error {
		var first error
		for _, st := range []orders.Status{orders.Pending, orders.Open, orders.Closed} {
			if err := s.RefreshOrders(ctx, st); err != nil && first == nil {
				first = err
			}
		}
		s.report(ctx, first)
		return first
	})
	sc.Every(s.opts.AccountEvery, func(ctx context.Context) error {
		err := s.RefreshAccount(ctx)
		s.report(ctx, err)
		if err == nil {
			s.RecordEquity(time.Now())
		}
		return err
	})

	if s.opts.Stream != nil {
		sub := stream.New(*s.opts.Stream, stream.Sinks{
			Ticks:     s.ticks,
			Orders:    s.orders,
			Account:   s.account,
			OnMessage: func(stream.Message) { s.touch() },
		})
		if err := sub.Start(sc.Context()); err != nil {
			s.notices.Report(err)
		} else {
			sc.Go(func(ctx context.Context) {
				<-ctx.Done()
				sub.Stop()
			})
		}
	}

	if render != nil {
		sc.Go(func(ctx context.Context) {
			t := time.NewTicker(s.opts.RenderEvery)
			defer t.Stop()
			drawn, last := false, uint64(0)
			for {
				if v := s.version.Load(); !drawn || v != last {
					drawn, last = true, v
					_ = sc.Update(func() { render(s.Snapshot()) })
				}
				select {
				case <-ctx.Done():
					return
				case <-t.C:
				}
			}
		})
	}
	return sc
}

func (s *Store) report(ctx context.Context, err error) {
	if err != nil && ctx.Err() == nil {
		s.notices.Report(err)
	}
}
