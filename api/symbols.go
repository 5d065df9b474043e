package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dgraph-io/ristretto"
	logger "github.com/sirupsen/logrus"

	"github.com/rustyeddy/fxdesk/market"
)

const symbolsKey = "symbols"

// catalog caches the GET /symbols reply. Symbol metadata changes rarely, so
// a TTL keeps order entry from refetching it on every placement.
type catalog struct {
	c   *ristretto.Cache
	ttl time.Duration
}

func newCatalog(ttl time.Duration) (*catalog, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e3,
		MaxCost:     1 << 10,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &catalog{c: c, ttl: ttl}, nil
}

func (c *catalog) get() ([]market.Instrument, bool) {
	v, ok := c.c.Get(symbolsKey)
	if !ok {
		return nil, false
	}
	list, ok := v.([]market.Instrument)
	return list, ok
}

func (c *catalog) set(list []market.Instrument) {
	c.c.SetWithTTL(symbolsKey, list, 1, c.ttl)
	c.c.Wait()
}

func (c *catalog) clear() { c.c.Del(symbolsKey) }

func (c *catalog) close() { c.c.Close() }

// ListSymbols returns the instrument list, from cache while it is fresh.
func (c *Client) ListSymbols(ctx context.Context) ([]market.Instrument, error) {
	if list, ok := c.symbols.get(); ok {
		return append([]market.Instrument(nil), list...), nil
	}
	return c.RefreshSymbols(ctx)
}

// RefreshSymbols refetches the instrument list and replaces the cache.
func (c *Client) RefreshSymbols(ctx context.Context) ([]market.Instrument, error) {
	body, err := c.do(ctx, call{method: http.MethodGet, path: "/symbols"})
	if err != nil {
		return nil, err
	}
	list, err := decodeSymbols(body)
	if err != nil {
		return nil, fmt.Errorf("api: symbols: %w", err)
	}
	c.symbols.set(list)
	logger.WithField("count", len(list)).Debug("symbol catalog refreshed")
	return append([]market.Instrument(nil), list...), nil
}

// InvalidateSymbols drops the cached list.
func (c *Client) InvalidateSymbols() { c.symbols.clear() }

// Instruments indexes ListSymbols by symbol.
func (c *Client) Instruments(ctx context.Context) (market.Instruments, error) {
	list, err := c.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}
	return market.IndexInstruments(list), nil
}

// decodeSymbols accepts a bare array, {symbols|data: [...]} and
// {data: {symbols: [...]}}. A favorites list, of codes or objects, marks
// the matching instruments.
func decodeSymbols(body []byte) ([]market.Instrument, error) {
	body = bytes.TrimSpace(body)
	var list []market.Instrument
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
		return dropUnnamed(list), nil
	}

	var top struct {
		Symbols   json.RawMessage `json:"symbols"`
		Data      json.RawMessage `json:"data"`
		Favorites json.RawMessage `json:"favorites"`
	}
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, err
	}

	raw := bytes.TrimSpace(top.Symbols)
	if len(raw) == 0 || raw[0] != '[' {
		raw = bytes.TrimSpace(top.Data)
	}
	switch {
	case len(raw) > 0 && raw[0] == '{':
		inner, err := decodeSymbols(raw)
		if err != nil {
			return nil, err
		}
		list = inner
	case len(raw) > 0 && raw[0] == '[':
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		list = dropUnnamed(list)
	}

	favs := favoriteSet(top.Favorites)
	for i := range list {
		if favs[list[i].Symbol] {
			list[i].Favorite = true
		}
	}
	return list, nil
}

func dropUnnamed(list []market.Instrument) []market.Instrument {
	out := list[:0]
	for _, in := range list {
		if in.Symbol != "" {
			out = append(out, in)
		}
	}
	return out
}

func favoriteSet(raw json.RawMessage) map[string]bool {
	out := map[string]bool{}
	var codes []string
	if err := json.Unmarshal(raw, &codes); err == nil {
		for _, c := range codes {
			out[market.Symbol(c)] = true
		}
		return out
	}
	var objs []market.Instrument
	if err := json.Unmarshal(raw, &objs); err == nil {
		for _, in := range objs {
			out[in.Symbol] = true
		}
	}
	return out
}
