package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxdesk/api"
	"github.com/rustyeddy/fxdesk/desk"
	"github.com/rustyeddy/fxdesk/httpview"
	"github.com/rustyeddy/fxdesk/journal"
	"github.com/rustyeddy/fxdesk/session"
	"github.com/rustyeddy/fxdesk/view"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of positions, account and quotes",
	Long: `Follow the tick stream and the account's private channel, poll orders
and account on the configured periods, and redraw the dashboard as things
change. Ctrl-C stops.

Ticks come from backend.stream_url, and from OANDA as well when OANDA
credentials are configured.`,
	Args: cobra.NoArgs,
	RunE: guarded("watch", runWatch),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live dashboard as a local JSON API",
	Long: `Keep the same live state as watch and expose it over HTTP:

  GET /healthcheck
  GET /snapshot
  GET /account
  GET /positions
  GET /orders/{pending|open|closed}
  GET /ticks, /ticks/{symbol}
  GET /notices`,
	Args: cobra.NoArgs,
	RunE: guarded("serve", runServe),
}

var (
	watchClear bool
	serveAddr  string
)

func init() {
	rootCmd.AddCommand(watchCmd, serveCmd)
	watchCmd.Flags().BoolVar(&watchClear, "clear", true, "clear the screen between frames")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default serve.addr)")
}

// live is a running desk: store, journal and a mounted scope.
type live struct {
	client  *api.Client
	store   *desk.Store
	journal journal.Journal
	scope   *view.Scope
}

func (l *live) Close() {
	l.scope.Close()
	l.store.RecordEquity(time.Now())
	if err := l.journal.Close(); err != nil {
		logger.WithError(err).Warn("close journal")
	}
	l.client.Close()
}

func startLive(ctx context.Context, name string, render func(desk.Snapshot)) (*live, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	j, err := journal.Open(cfg.Journal)
	if err != nil {
		client.Close()
		return nil, err
	}
	s, err := newStore(client, j, true)
	if err != nil {
		_ = j.Close()
		client.Close()
		return nil, err
	}

	// Anything but a rejected session is retried by polling.
	if err := s.Refresh(ctx); errors.Is(err, api.ErrUnauthorized) {
		_ = j.Close()
		client.Close()
		return nil, err
	}

	sc := s.Mount(ctx, name, render)
	if oc, err := oandaClient(); err != nil {
		notices.Report(err)
	} else if oc != nil {
		sc.Go(func(ctx context.Context) {
			if err := oc.Feed(ctx, s.Ticks(), cfg.OANDA.Instruments); err != nil && ctx.Err() == nil {
				notices.Report(err)
			}
		})
	}

	// A forced logout ends the view. Close runs on its own goroutine since
	// the hook may fire from inside one of the scope's goroutines.
	client.Session().OnLogout(func(reason error) {
		if !errors.Is(reason, session.ErrSignedOut) {
			go sc.Close()
		}
	})
	return &live{client: client, store: s, journal: j, scope: sc}, nil
}

func frame(w io.Writer, clear bool) func(desk.Snapshot) {
	return func(sn desk.Snapshot) {
		if clear {
			fmt.Fprint(w, "\033[H\033[2J")
		}
		if err := desk.WriteSnapshot(w, sn); err != nil {
			logger.WithError(err).Debug("render failed")
		}
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l, err := startLive(ctx, "watch", frame(cmd.OutOrStdout(), watchClear))
	if err != nil {
		return err
	}
	defer l.Close()

	<-l.scope.Context().Done()
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l, err := startLive(ctx, "serve", nil)
	if err != nil {
		return err
	}
	defer l.Close()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Serve.Addr
	}
	return httpview.Serve(l.scope.Context(), addr, httpview.NewHandler(l.store).Routes())
}
