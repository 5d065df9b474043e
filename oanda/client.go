// Package oanda reads prices from the OANDA v20 API and turns them into the
// same tick events the desk stream produces, with codes like
// "OANDA:EUR_USD".
package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rustyeddy/fxdesk/market"
)

const (
	// PracticeURL is the URL for OANDA's practice/demo environment
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is the URL for OANDA's live trading environment
	LiveURL = "https://api-fxtrade.oanda.com"
	// StreamPracticeURL and StreamLiveURL serve the pricing stream.
	StreamPracticeURL = "https://stream-fxpractice.oanda.com"
	StreamLiveURL     = "https://stream-fxtrade.oanda.com"

	// Prefix is the provider prefix on tick codes.
	Prefix = "OANDA:"
)

// BaseURL maps an environment name to the REST and stream URLs.
func BaseURL(env string) (rest, stream string, err error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "practice", "demo", "":
		return PracticeURL, StreamPracticeURL, nil
	case "live", "trade":
		return LiveURL, StreamLiveURL, nil
	default:
		return "", "", fmt.Errorf("unknown OANDA env %q (want practice|live)", env)
	}
}

// Instrument converts a bare symbol to OANDA's naming: EURUSD -> EUR_USD.
// Symbols that already carry a separator, and non-FX symbols, pass through.
func Instrument(sym string) string {
	s := strings.TrimPrefix(strings.TrimSpace(sym), Prefix)
	if strings.Contains(s, "_") {
		return strings.ToUpper(s)
	}
	s = market.Symbol(s)
	if market.IsFX(s) {
		return s[:3] + "_" + s[3:]
	}
	return s
}

// Client is a read-only OANDA pricing client.
type Client struct {
	baseURL   string
	streamURL string
	token     string
	accountID string
	http      *resty.Client
}

// NewClient creates a client. The stream URL defaults to the REST URL,
// which is what test servers need.
func NewClient(baseURL, streamURL, token, accountID string) (*Client, error) {
	switch {
	case token == "":
		return nil, fmt.Errorf("oanda: missing token")
	case baseURL == "":
		return nil, fmt.Errorf("oanda: missing base url")
	case accountID == "":
		return nil, fmt.Errorf("oanda: missing account id")
	}
	if streamURL == "" {
		streamURL = baseURL
	}
	hc := resty.New().
		SetHeader("Authorization", "Bearer "+token).
		SetHeader("Accept-Datetime-Format", "RFC3339")
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		streamURL: strings.TrimRight(streamURL, "/"),
		token:     token,
		accountID: accountID,
		http:      hc,
	}, nil
}

type priceBucket struct {
	Price string `json:"price"`
}

// priceMsg is one PRICE (or HEARTBEAT) object, in snapshots and streams.
type priceMsg struct {
	Type       string        `json:"type"`
	Time       string        `json:"time"`
	Instrument string        `json:"instrument"`
	Tradeable  *bool         `json:"tradeable"`
	Bids       []priceBucket `json:"bids"`
	Asks       []priceBucket `json:"asks"`
}

// tick converts a price to a tick event. Only the top of book is used.
func (m priceMsg) tick() (market.TickEvent, bool) {
	if m.Instrument == "" || (len(m.Bids) == 0 && len(m.Asks) == 0) {
		return market.TickEvent{}, false
	}
	ev := market.TickEvent{Code: Prefix + m.Instrument}
	if len(m.Bids) > 0 {
		ev.Bid, _ = json.Marshal(m.Bids[0].Price)
	}
	if len(m.Asks) > 0 {
		ev.Ask, _ = json.Marshal(m.Asks[0].Price)
	}
	return ev, true
}

func (c *Client) pricingPath(stream bool, instruments []string) (string, error) {
	if len(instruments) == 0 {
		return "", fmt.Errorf("oanda: missing instruments")
	}
	names := make([]string, len(instruments))
	for i, in := range instruments {
		names[i] = Instrument(in)
	}
	base := c.baseURL
	path := "/v3/accounts/%s/pricing"
	if stream {
		base = c.streamURL
		path += "/stream"
	}
	q := url.Values{}
	q.Set("instruments", strings.Join(names, ","))
	return base + fmt.Sprintf(path, url.PathEscape(c.accountID)) + "?" + q.Encode(), nil
}

// Prices fetches a one-off snapshot, used to seed the tick store before the
// stream delivers its first update.
func (c *Client) Prices(ctx context.Context, instruments []string) ([]market.TickEvent, error) {
	u, err := c.pricingPath(false, instruments)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := c.http.R().SetContext(ctx).Get(u)
	if err != nil {
		return nil, fmt.Errorf("oanda: pricing: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("oanda: pricing http %d: %s", resp.StatusCode(), trimForErr(string(resp.Body())))
	}

	var body struct {
		Prices []priceMsg `json:"prices"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("oanda: decode pricing: %w", err)
	}
	out := make([]market.TickEvent, 0, len(body.Prices))
	for _, p := range body.Prices {
		if ev, ok := p.tick(); ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func trimForErr(s string) string {
	const n = 200
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
