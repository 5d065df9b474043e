package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	logger "github.com/sirupsen/logrus"

	"github.com/rustyeddy/fxdesk/orders"
	"github.com/rustyeddy/fxdesk/session"
)

// Credentials sign an existing user in.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration creates a user.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
	Country  string `json:"country,omitempty"`
}

// Login exchanges credentials for a token and stores it in the session.
func (c *Client) Login(ctx context.Context, cred Credentials) error {
	if strings.TrimSpace(cred.Email) == "" || cred.Password == "" {
		return &RejectError{Kind: orders.RejectValidation, Message: "email and password are required"}
	}
	return c.authenticate(ctx, "/login", cred)
}

// Register creates the user and signs in with the returned token.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	switch {
	case strings.TrimSpace(reg.Name) == "":
		return &RejectError{Kind: orders.RejectValidation, Message: "name is required"}
	case !strings.Contains(reg.Email, "@"):
		return &RejectError{Kind: orders.RejectValidation, Message: "a valid email is required"}
	case len(reg.Password) < 8:
		return &RejectError{Kind: orders.RejectValidation, Message: "password must be at least 8 characters"}
	}
	return c.authenticate(ctx, "/register", reg)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) error {
	raw, err := c.do(ctx, call{method: http.MethodPost, path: path, body: body, public: true})
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
		return &RejectError{Kind: orders.RejectValidation, Code: "401", Message: "invalid email or password"}
	}
	if err != nil {
		return err
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		return fmt.Errorf("api: %s: %w", path, err)
	}
	if env.failed() {
		return env.reject()
	}
	tok := token(env.payload(raw))
	if tok == "" {
		tok = token(raw)
	}
	if tok == "" {
		return fmt.Errorf("api: %s: no token in response", path)
	}
	return c.sess.SetToken(tok)
}

func token(b []byte) string {
	var t struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if json.Unmarshal(b, &t) != nil {
		return ""
	}
	if t.Token != "" {
		return t.Token
	}
	return t.AccessToken
}

// Logout tells the backend, best effort, and always clears the session.
func (c *Client) Logout(ctx context.Context) {
	if _, err := c.do(ctx, call{method: http.MethodPost, path: "/logout"}); err != nil &&
		!errors.Is(err, ErrUnauthorized) {
		logger.WithError(err).Warn("logout request failed; clearing local session anyway")
	}
	c.sess.Logout(session.ErrSignedOut)
}
