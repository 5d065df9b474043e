package market

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a float decoded leniently from backend payloads. It accepts JSON
// numbers and numeric strings. Missing, null or malformed values decode to an
// unknown Number instead of failing the whole payload.
type Number struct {
	v  float64
	ok bool
}

// Num returns a known Number. Non-finite inputs produce an unknown Number.
func Num(f float64) Number {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Number{}
	}
	return Number{v: f, ok: true}
}

// Unknown is the zero Number.
var Unknown = Number{}

func (n Number) Known() bool { return n.ok }

// Float64 returns the value, or NaN when unknown.
func (n Number) Float64() float64 {
	if !n.ok {
		return math.NaN()
	}
	return n.v
}

// Ptr returns nil when unknown.
func (n Number) Ptr() *float64 {
	if !n.ok {
		return nil
	}
	v := n.v
	return &v
}

// Or returns the value or def when unknown.
func (n Number) Or(def float64) float64 {
	if !n.ok {
		return def
	}
	return n.v
}

// String is the shortest decimal form, or "" when unknown.
func (n Number) String() string {
	if !n.ok {
		return ""
	}
	return strconv.FormatFloat(n.v, 'f', -1, 64)
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = ParseNumber(b)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.ok {
		return []byte("null"), nil
	}
	return json.Marshal(n.v)
}

// ParseNumber decodes a raw JSON value. It never fails.
func ParseNumber(raw []byte) Number {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Number{}
	}
	s := string(raw)
	if raw[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return Number{}
		}
		s = strings.TrimSpace(str)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}
	}
	return Num(f)
}
