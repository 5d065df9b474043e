// Package httpview exposes the desk store as a read-only local JSON API.
package httpview

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"github.com/rustyeddy/fxdesk/desk"
	"github.com/rustyeddy/fxdesk/market"
	"github.com/rustyeddy/fxdesk/orders"
)

// Handler serves views of one store.
type Handler struct {
	Store *desk.Store
}

func NewHandler(s *desk.Store) *Handler {
	return &Handler{Store: s}
}

// Routes builds the router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("healthcheck write failed")
		}
	})
	r.Get("/snapshot", h.Snapshot)
	r.Get("/account", h.Account)
	r.Get("/positions", h.Positions)
	r.Get("/orders/{status}", h.Orders)
	r.Get("/ticks", h.Ticks)
	r.Get("/ticks/{symbol}", h.Tick)
	r.Get("/notices", h.Notices)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.Snapshot())
}

// Account returns the derived summary, or 404 before the first load.
func (h *Handler) Account(w http.ResponseWriter, r *http.Request) {
	sn := h.Store.Snapshot()
	if !sn.HasAcct {
		writeError(w, http.StatusNotFound, "account not loaded")
		return
	}
	writeJSON(w, http.StatusOK, sn.Summary)
}

func (h *Handler) Positions(w http.ResponseWriter, r *http.Request) {
	sn := h.Store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"positions": sn.Positions,
		"open_pnl":  sn.OpenPnL,
		"valued":    sn.Valued,
	})
}

func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	st, err := orders.ParseStatus(chi.URLParam(r, "status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list := h.Store.Orders().Orders(st)
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (h *Handler) Ticks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.Ticks().Snapshot())
}

func (h *Handler) Tick(w http.ResponseWriter, r *http.Request) {
	q, ok := h.Store.Ticks().Get(market.Symbol(chi.URLParam(r, "symbol")))
	if !ok {
		writeError(w, http.StatusNotFound, "no quote")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) Notices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.Notices().Recent())
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, ln, handler)
}

func serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
