package orders

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/fxdesk/market"
)

type OrderType string

const (
	MarketOrder OrderType = "market"
	LimitOrder  OrderType = "limit"
	StopOrder   OrderType = "stop"
)

func ParseOrderType(s string) (OrderType, error) {
	switch t := OrderType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return MarketOrder, nil
	case MarketOrder, LimitOrder, StopOrder:
		return t, nil
	}
	return "", fmt.Errorf("unknown order type %q (want market|limit|stop)", s)
}

// PlaceRequest is the body of POST /place.
type PlaceRequest struct {
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Type          OrderType `json:"type"`
	Volume        float64   `json:"volume"`
	Price         *float64  `json:"price,omitempty"`
	StopLoss      *float64  `json:"stop_loss_price,omitempty"`
	TakeProfit    *float64  `json:"take_profit_price,omitempty"`
	ClientOrderID string    `json:"client_order_id,omitempty"`
}

// Validate runs the checks the backend would otherwise reject with a round
// trip. Instrument limits apply only when the instrument is known.
func (r PlaceRequest) Validate(in *market.Instrument) error {
	if market.Symbol(r.Symbol) == "" {
		return &RejectError{Kind: RejectValidation, Message: "symbol is required"}
	}
	if r.Side != Buy && r.Side != Sell {
		return &RejectError{Kind: RejectValidation, Message: "side must be buy or sell"}
	}
	if r.Type != "" && r.Type != MarketOrder && r.Price == nil {
		return &RejectError{Kind: RejectValidation, Message: fmt.Sprintf("%s order requires a price", r.Type)}
	}
	if in != nil {
		if err := ValidateVolume(r.Volume, *in); err != nil {
			return err
		}
	} else if !finite(r.Volume) || r.Volume <= 0 {
		return &RejectError{Kind: RejectVolumeRange, Message: "volume must be positive"}
	}
	if r.Price != nil {
		return ValidateStops(r.Side, *r.Price, r.StopLoss, r.TakeProfit)
	}
	return nil
}

// ValidateVolume checks range and step against instrument metadata. Step
// arithmetic is decimal so 0.07 lots on a 0.01 step is a clean multiple.
func ValidateVolume(volume float64, in market.Instrument) error {
	if !finite(volume) || volume <= 0 {
		return &RejectError{Kind: RejectVolumeRange, Message: "volume must be positive"}
	}
	v := decimal.NewFromFloat(volume)

	if in.MinVolume.Known() && v.LessThan(decimal.NewFromFloat(in.MinVolume.Float64())) {
		return &RejectError{Kind: RejectVolumeRange,
			Message: fmt.Sprintf("volume %s below minimum %v", v, in.MinVolume.Float64())}
	}
	if in.MaxVolume.Known() && in.MaxVolume.Float64() > 0 &&
		v.GreaterThan(decimal.NewFromFloat(in.MaxVolume.Float64())) {
		return &RejectError{Kind: RejectVolumeRange,
			Message: fmt.Sprintf("volume %s above maximum %v", v, in.MaxVolume.Float64())}
	}
	if in.VolumeStep.Known() && in.VolumeStep.Float64() > 0 {
		step := decimal.NewFromFloat(in.VolumeStep.Float64())
		if !v.Mod(step).IsZero() {
			return &RejectError{Kind: RejectVolumeStep,
				Message: fmt.Sprintf("volume %s is not a multiple of step %s", v, step)}
		}
	}
	return nil
}

// ValidateStops checks SL/TP sit on the correct side of the reference price.
func ValidateStops(side Side, ref float64, sl, tp *float64) error {
	if !finite(ref) {
		return nil
	}
	if sl != nil {
		if side == Buy && *sl >= ref || side == Sell && *sl <= ref {
			return &RejectError{Kind: RejectValidation,
				Message: fmt.Sprintf("stop loss %v is on the wrong side of %v for a %s", *sl, ref, side)}
		}
	}
	if tp != nil {
		if side == Buy && *tp <= ref || side == Sell && *tp >= ref {
			return &RejectError{Kind: RejectValidation,
				Message: fmt.Sprintf("take profit %v is on the wrong side of %v for a %s", *tp, ref, side)}
		}
	}
	return nil
}

// SLTPRequest is the body of PATCH /order/{id}/sl-tp. A nil level removes it.
type SLTPRequest struct {
	StopLoss   *float64 `json:"stop_loss_price"`
	TakeProfit *float64 `json:"take_profit_price"`
}

// CloseRequest is the body of POST /order/close. A nil Volume closes it all.
type CloseRequest struct {
	OrderID string   `json:"order_id"`
	Volume  *float64 `json:"volume,omitempty"`
}

// CloseResult is the backend's answer to a close.
type CloseResult struct {
	OrderID    string        `json:"order_id"`
	ClosePrice market.Number `json:"close_price"`
	ProfitLoss market.Number `json:"profit_loss"`
	Volume     market.Number `json:"volume"`
}

func (r *CloseResult) UnmarshalJSON(b []byte) error {
	var w struct {
		OrderID    json.RawMessage `json:"order_id"`
		ID         json.RawMessage `json:"id"`
		ClosePrice market.Number   `json:"close_price"`
		ProfitLoss market.Number   `json:"profit_loss"`
		Volume     market.Number   `json:"volume"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	id := rawID(w.OrderID)
	if id == "" {
		id = rawID(w.ID)
	}
	*r = CloseResult{OrderID: id, ClosePrice: w.ClosePrice, ProfitLoss: w.ProfitLoss, Volume: w.Volume}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
