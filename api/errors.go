package api

import (
	"fmt"
	"net/http"

	"github.com/rustyeddy/fxdesk/orders"
)

// RejectError is a business-rule refusal from the backend.
type RejectError = orders.RejectError

// TransportError is a network failure or timeout: the request never got a
// response. It is transient; the view shows a warning and carries on.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Transient() bool { return true }

// StatusError is a non-2xx response that is neither a rejection nor a 401.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, e.Body)
}

// Transient is true for server errors and throttling.
func (e *StatusError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout
}

// rejectFromStatus reads a 4xx body as a business rejection. Status codes
// that say nothing about the request itself are left to StatusError.
func rejectFromStatus(code int, body []byte) *orders.RejectError {
	if code < 400 || code >= 500 {
		return nil
	}
	switch code {
	case http.StatusNotFound, http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusUnauthorized:
		return nil
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil
	}
	rej := env.reject()
	if rej.Message == "" {
		return nil
	}
	if rej.Code == "" && code == http.StatusUnprocessableEntity && rej.Kind == orders.RejectGeneric {
		rej.Kind = orders.RejectValidation
	}
	return rej
}
