package oanda

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/rustyeddy/fxdesk/market"
)

// StreamPrices reads the pricing stream and calls fn for every price. It
// returns when ctx is done, the stream ends, or maxTicks > 0 prices were
// delivered. Heartbeats are skipped; lines that do not decode are logged
// and skipped.
func (c *Client) StreamPrices(ctx context.Context, instruments []string, maxTicks int, fn func(time.Time, market.TickEvent)) (int, error) {
	u, err := c.pricingPath(true, instruments)
	if err != nil {
		return 0, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(u)
	if err != nil {
		return 0, fmt.Errorf("oanda: pricing stream: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(body, 64*1024))
		return 0, fmt.Errorf("oanda pricing stream http %d: %s", resp.StatusCode(), trimForErr(string(b)))
	}

	sc := bufio.NewScanner(body)
	// OANDA stream messages can be long; bump max token
	sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	delivered := 0
	for sc.Scan() {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var msg priceMsg
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			logger.WithField("line", trimForErr(line)).Debug("oanda: skipping bad line")
			continue
		}
		if !strings.EqualFold(msg.Type, "PRICE") {
			continue
		}
		ev, ok := msg.tick()
		if !ok {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, msg.Time)
		if err != nil {
			ts = time.Now().UTC()
		}

		fn(ts, ev)
		delivered++
		if maxTicks > 0 && delivered >= maxTicks {
			return delivered, nil
		}
	}

	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		return delivered, err
	}
	return delivered, nil
}

// Feed seeds store with a snapshot and then keeps it updated from the
// stream, reconnecting after errors until ctx is done.
func (c *Client) Feed(ctx context.Context, store *market.TickStore, instruments []string) error {
	snap, err := c.Prices(ctx, instruments)
	if err != nil {
		logger.WithError(err).Warn("oanda: snapshot failed; waiting for the stream")
	}
	for _, ev := range snap {
		store.Apply(ev)
	}

	backoff := time.Second
	for {
		_, err := c.StreamPrices(ctx, instruments, 0, func(_ time.Time, ev market.TickEvent) {
			store.Apply(ev)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.WithError(err).WithField("in", backoff).Warn("oanda: stream ended; reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// StreamPricesToCSV writes rows of time,symbol,bid,ask.
func (c *Client) StreamPricesToCSV(ctx context.Context, instruments []string, w io.Writer, maxTicks int) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "symbol", "bid", "ask"}); err != nil {
		return 0, err
	}
	cw.Flush()

	var werr error
	n, err := c.StreamPrices(ctx, instruments, maxTicks, func(ts time.Time, ev market.TickEvent) {
		if werr != nil {
			return
		}
		row := []string{
			ts.UTC().Format(time.RFC3339Nano),
			market.Symbol(ev.Code),
			market.ParseNumber(ev.Bid).String(),
			market.ParseNumber(ev.Ask).String(),
		}
		if werr = cw.Write(row); werr == nil {
			cw.Flush()
			werr = cw.Error()
		}
	})
	if werr != nil {
		return n, werr
	}
	return n, err
}
