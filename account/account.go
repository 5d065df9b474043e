// Package account holds the backend's authoritative account figures and
// derives the live values shown next to them.
package account

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rustyeddy/fxdesk/market"
)

// Account is the backend's view of the trading account. The client never
// changes these figures itself; it only merges patches the backend sends.
type Account struct {
	UserID           string        `json:"user_id"`
	Currency         string        `json:"currency,omitempty"`
	Balance          market.Number `json:"balance"`
	Credit           market.Number `json:"credit"`
	Equity           market.Number `json:"equity"`
	UsedMargin       market.Number `json:"used_margin"`
	UnrealizedProfit market.Number `json:"unrealized_profit"`
	Leverage         market.Number `json:"leverage"`
}

func (a *Account) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	var acct Account
	acct.apply(fields)
	*a = acct
	return nil
}

// DecodeResponse reads GET /account. It accepts the wrapped
// {"status":..., "account":{...}} shape and a bare account object.
func DecodeResponse(b []byte) (Account, error) {
	var env struct {
		Status  json.RawMessage `json:"status"`
		Message string          `json:"message"`
		Account json.RawMessage `json:"account"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return Account{}, fmt.Errorf("account: decode: %w", err)
	}
	if failed(env.Status) {
		msg := env.Message
		if msg == "" {
			msg = "backend reported failure"
		}
		return Account{}, fmt.Errorf("account: %s", msg)
	}

	body := b
	if len(env.Account) > 0 && !bytes.Equal(env.Account, []byte("null")) {
		body = env.Account
	}
	var a Account
	if err := json.Unmarshal(body, &a); err != nil {
		return Account{}, fmt.Errorf("account: decode: %w", err)
	}
	return a, nil
}

// failed reports a status of false, "error" or "fail".
func failed(raw json.RawMessage) bool {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(raw)), `"`)) {
	case "false", "error", "fail", "failed":
		return true
	}
	return false
}

// State is the current account, shared between the poller, the push
// stream and the views.
type State struct {
	mu   sync.RWMutex
	acct Account
	set  bool
}

func NewState() *State {
	return &State{}
}

// Set replaces the account with a freshly fetched one.
func (s *State) Set(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acct = a
	s.set = true
}

// Get returns the account and whether one has been loaded or merged.
func (s *State) Get() (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acct, s.set
}

// Merge applies a partial update. Only the fields present in the patch
// change; absent and null fields keep their value. It returns the names of
// the fields that were applied.
func (s *State) Merge(patch map[string]json.RawMessage) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := s.acct.apply(patch)
	if len(applied) > 0 {
		s.set = true
	}
	return applied
}

// MergeJSON decodes a patch object and merges it. An {"account":{...}}
// wrapper is unwrapped first.
func (s *State) MergeJSON(b []byte) ([]string, error) {
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(b, &patch); err != nil {
		return nil, fmt.Errorf("account: decode patch: %w", err)
	}
	if inner, ok := patch["account"]; ok && len(inner) > 0 && inner[0] == '{' {
		patch = nil
		if err := json.Unmarshal(inner, &patch); err != nil {
			return nil, fmt.Errorf("account: decode patch: %w", err)
		}
	}
	if patch == nil {
		return nil, errors.New("account: empty patch")
	}
	return s.Merge(patch), nil
}

var numberFields = map[string]func(*Account) *market.Number{
	"balance":           func(a *Account) *market.Number { return &a.Balance },
	"credit":            func(a *Account) *market.Number { return &a.Credit },
	"equity":            func(a *Account) *market.Number { return &a.Equity },
	"used_margin":       func(a *Account) *market.Number { return &a.UsedMargin },
	"margin":            func(a *Account) *market.Number { return &a.UsedMargin },
	"unrealized_profit": func(a *Account) *market.Number { return &a.UnrealizedProfit },
	"leverage":          func(a *Account) *market.Number { return &a.Leverage },
}

// apply copies every present, non-null and well-formed field of patch.
func (a *Account) apply(patch map[string]json.RawMessage) []string {
	var applied []string
	for key, raw := range patch {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		if field, ok := numberFields[key]; ok {
			n := market.ParseNumber(raw)
			if !n.Known() {
				continue
			}
			*field(a) = n
			applied = append(applied, key)
			continue
		}
		switch key {
		case "user_id", "id":
			if id := text(raw); id != "" {
				a.UserID = id
				applied = append(applied, key)
			}
		case "currency":
			if c := text(raw); c != "" {
				a.Currency = strings.ToUpper(c)
				applied = append(applied, key)
			}
		}
	}
	return applied
}

// text reads a string or number as a string.
func text(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
