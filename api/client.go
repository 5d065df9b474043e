// Package api is the REST client for the trading backend. Every call
// carries the session's bearer token; a 401 signs the session out.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"github.com/rustyeddy/fxdesk/internal/id"
	"github.com/rustyeddy/fxdesk/session"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultRetries      = 2
	defaultRetryWait    = 500 * time.Millisecond
	defaultRetryMaxWait = 5 * time.Second
	defaultSymbolsTTL   = 10 * time.Minute
)

// ErrUnauthorized is returned when the backend rejected the token or no
// token is stored. The session has been cleared by then.
var ErrUnauthorized = session.ErrUnauthorized

// Options configure a Client. Zero values take the defaults.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	Retries      int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	SymbolsTTL   time.Duration
	UserAgent    string

	// Transport replaces the HTTP transport; tests use it.
	Transport http.RoundTripper
}

// Client talks to one backend on behalf of one session.
type Client struct {
	http    *resty.Client
	sess    *session.Session
	symbols *catalog
}

// isRetryable retries idempotent GETs on transport errors, timeouts,
// throttling and 5xx. Writes are never retried.
func isRetryable(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	if ctx := r.Request.Context(); ctx != nil && ctx.Err() != nil {
		return false
	}
	if err != nil {
		return true
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

func New(opts Options, sess *session.Session) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("api: base URL is required")
	}
	if sess == nil {
		return nil, errors.New("api: session is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	} else if opts.Retries == 0 {
		opts.Retries = defaultRetries
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = defaultRetryWait
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = defaultRetryMaxWait
	}
	if opts.SymbolsTTL <= 0 {
		opts.SymbolsTTL = defaultSymbolsTTL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "fxdesk"
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		AddRetryCondition(isRetryable).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", opts.UserAgent)
	if opts.Transport != nil {
		hc.SetTransport(opts.Transport)
	}

	cat, err := newCatalog(opts.SymbolsTTL)
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}
	return &Client{http: hc, sess: sess, symbols: cat}, nil
}

// Session is the session the client signs requests with.
func (c *Client) Session() *session.Session { return c.sess }

// Close releases the symbol cache.
func (c *Client) Close() {
	c.symbols.close()
}

type call struct {
	method string
	path   string
	query  map[string]string
	body   any
	// public calls (login, register) send no token and do not treat a 401
	// as a lost session.
	public bool
}

func (c call) op() string { return c.method + " " + c.path }

// do executes one call and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, cl call) ([]byte, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", id.New())
	if !cl.public {
		tok, err := c.sess.Token()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cl.op(), err)
		}
		req.SetAuthToken(tok)
	}
	if cl.query != nil {
		req.SetQueryParams(cl.query)
	}
	if cl.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(cl.body)
	}

	start := time.Now()
	resp, err := req.Execute(cl.method, cl.path)
	log := logger.WithFields(logger.Fields{"op": cl.op(), "elapsed": time.Since(start)})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", cl.op(), ctxErr)
		}
		log.WithError(err).Debug("request failed")
		return nil, &TransportError{Op: cl.op(), Err: err}
	}

	code := resp.StatusCode()
	body := resp.Body()
	log.WithField("status", code).Debug("request done")

	switch {
	case code >= 200 && code < 300:
		return body, nil
	case code == http.StatusUnauthorized && !cl.public:
		c.sess.Logout(fmt.Errorf("%s: %w", cl.op(), ErrUnauthorized))
		return nil, fmt.Errorf("%s: %w", cl.op(), ErrUnauthorized)
	}

	if rej := rejectFromStatus(code, body); rej != nil {
		return nil, rej
	}
	return nil, &StatusError{Op: cl.op(), StatusCode: code, Body: snippet(body)}
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
