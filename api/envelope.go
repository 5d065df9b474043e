package api

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rustyeddy/fxdesk/orders"
)

// envelope is the backend's normalized reply: {ok|status, code, message,
// data}. Older endpoints use success or error instead.
type envelope struct {
	OK      *bool           `json:"ok"`
	Success *bool           `json:"success"`
	Status  json.RawMessage `json:"status"`
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(b []byte) (envelope, error) {
	var env envelope
	err := json.Unmarshal(b, &env)
	return env, err
}

// failed reports an explicit failure flag. A reply without any flag is a
// success.
func (e envelope) failed() bool {
	if e.OK != nil {
		return !*e.OK
	}
	if e.Success != nil {
		return !*e.Success
	}
	switch strings.ToLower(text(e.Status)) {
	case "false", "error", "fail", "failed", "rejected":
		return true
	}
	return false
}

// reject builds the error for a failed reply. The message is kept verbatim.
func (e envelope) reject() *orders.RejectError {
	code := text(e.Code)
	msg := strings.TrimSpace(e.Message)

	raw := bytes.TrimSpace(e.Error)
	if len(raw) > 0 && raw[0] == '{' {
		var inner struct {
			Code    json.RawMessage `json:"code"`
			Message string          `json:"message"`
		}
		if json.Unmarshal(raw, &inner) == nil {
			if code == "" {
				code = text(inner.Code)
			}
			if msg == "" {
				msg = strings.TrimSpace(inner.Message)
			}
		}
	} else if msg == "" {
		msg = text(raw)
	}
	return orders.Reject(code, msg)
}

// payload is data when present, else the whole body.
func (e envelope) payload(body []byte) []byte {
	d := bytes.TrimSpace(e.Data)
	if len(d) == 0 || bytes.Equal(d, []byte("null")) {
		return body
	}
	return d
}

// text reads a JSON string, number or bool as plain text.
func text(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}
