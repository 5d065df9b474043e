package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxdesk/api"
	"github.com/rustyeddy/fxdesk/config"
	"github.com/rustyeddy/fxdesk/notify"
	"github.com/rustyeddy/fxdesk/session"
)

var rootCmd = &cobra.Command{
	Use:   "fxdesk",
	Short: "A terminal trading desk for a forex/CFD backend",
	Long: `fxdesk signs in to a trading backend, follows its live tick stream and
keeps your pending, open and closed orders reconciled against the market.

It provides tools for:
  - Watching open positions with live P/L, equity and margin level
  - Placing, closing and protecting orders (SL/TP in price or pips)
  - Serving the same dashboard as a local JSON API
  - Recording OANDA prices to CSV
  - Journaling equity and closed orders to SQLite or CSV`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

var (
	cfgFile  string
	logLevel string

	cfg     *config.Config
	notices = notify.NewCenter(100)
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	var r *reported
	if err != nil && !errors.As(err, &r) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// reported marks an error that was already shown as a notice.
type reported struct{ err error }

func (r *reported) Error() string { return r.err.Error() }
func (r *reported) Unwrap() error { return r.err }

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level")

	notices.Subscribe(func(n notify.Notice) {
		fmt.Fprintln(os.Stderr, n.String())
	})
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if err := c.Log.SetupLogger(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	cfg = c
	return nil
}

// guarded wraps a command body in the notice boundary: failures and panics
// become user notices instead of stack traces.
func guarded(name string, fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := notices.Guard(name, func() error { return fn(cmd, args) }); err != nil {
			return &reported{err}
		}
		return nil
	}
}

func openSession() (*session.Session, error) {
	if cfg.Backend.Token != "" {
		return session.NewWithToken(cfg.Backend.Token), nil
	}
	return session.New(cfg.TokenPath())
}

// newClient builds an API client for the configured backend. A forced
// logout tells the user to sign in again.
func newClient() (*api.Client, error) {
	sess, err := openSession()
	if err != nil {
		return nil, err
	}
	sess.OnLogout(func(reason error) {
		if errors.Is(reason, session.ErrSignedOut) {
			return
		}
		logger.WithError(reason).Debug("session ended")
		fmt.Fprintln(os.Stderr, "Your session has ended. Run `fxdesk login` to sign in again.")
	})

	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	ttl, err := cfg.SymbolsTTL()
	if err != nil {
		return nil, err
	}
	return api.New(api.Options{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    timeout,
		Retries:    cfg.Backend.Retries,
		SymbolsTTL: ttl,
	}, sess)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
