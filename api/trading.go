package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	logger "github.com/sirupsen/logrus"

	"github.com/rustyeddy/fxdesk/account"
	"github.com/rustyeddy/fxdesk/internal/id"
	"github.com/rustyeddy/fxdesk/market"
	"github.com/rustyeddy/fxdesk/orders"
)

// GetAccount fetches the authoritative account figures.
func (c *Client) GetAccount(ctx context.Context) (account.Account, error) {
	body, err := c.do(ctx, call{method: http.MethodGet, path: "/account"})
	if err != nil {
		return account.Account{}, err
	}
	return account.DecodeResponse(body)
}

// ListOrders fetches every order in one status. Entries that do not decode
// are skipped; the rest of the list is kept.
func (c *Client) ListOrders(ctx context.Context, status orders.Status) ([]orders.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("api: list orders: invalid status %q", status)
	}
	body, err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/orders",
		query:  map[string]string{"status": string(status)},
	})
	if err != nil {
		return nil, err
	}

	raws, err := orderList(body)
	if err != nil {
		return nil, fmt.Errorf("api: list orders: %w", err)
	}
	out := make([]orders.Order, 0, len(raws))
	for _, raw := range raws {
		var o orders.Order
		if err := json.Unmarshal(raw, &o); err != nil {
			logger.WithError(err).WithField("status", status).Debug("skipping malformed order")
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// orderList finds the order array in {orders:[...]}, {data:{orders:[...]}},
// {data:[...]} or a bare array.
func orderList(body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	var list []json.RawMessage
	if len(body) > 0 && body[0] == '[' {
		err := json.Unmarshal(body, &list)
		return list, err
	}

	var top struct {
		Orders json.RawMessage `json:"orders"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, err
	}
	for _, raw := range []json.RawMessage{top.Orders, top.Data} {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		if raw[0] == '[' {
			err := json.Unmarshal(raw, &list)
			return list, err
		}
		if raw[0] == '{' {
			return orderList(raw)
		}
	}
	return nil, nil
}

// Placement is an accepted order request.
type Placement struct {
	ClientOrderID string
	Order         orders.Order
	Message       string
}

// PlaceOrder validates the request locally, then submits it. A refusal
// comes back as a *RejectError whose message is the backend's own.
func (c *Client) PlaceOrder(ctx context.Context, req orders.PlaceRequest) (Placement, error) {
	req.Symbol = market.Symbol(req.Symbol)
	var in *market.Instrument
	if list, err := c.Instruments(ctx); err == nil {
		if v, ok := list.Lookup(req.Symbol); ok {
			in = &v
		}
	} else {
		logger.WithError(err).Debug("placing without symbol metadata")
	}
	if err := req.Validate(in); err != nil {
		return Placement{}, err
	}
	if req.Type == "" {
		req.Type = orders.MarketOrder
	}
	if req.ClientOrderID == "" {
		req.ClientOrderID = id.New()
	}

	body, err := c.do(ctx, call{method: http.MethodPost, path: "/place", body: req})
	if err != nil {
		return Placement{}, err
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		return Placement{}, fmt.Errorf("api: place: %w", err)
	}
	if env.failed() {
		return Placement{}, env.reject()
	}

	p := Placement{ClientOrderID: req.ClientOrderID, Message: env.Message}
	if data := env.payload(nil); data != nil {
		if ev, err := orders.DecodeEvent(orders.EventPendingCreated, data); err == nil {
			p.Order = ev.Order
		}
	}
	return p, nil
}

// CloseOrder closes an open order, or part of it when volume is set.
func (c *Client) CloseOrder(ctx context.Context, orderID string, volume *float64) (orders.CloseResult, error) {
	if orderID == "" {
		return orders.CloseResult{}, &RejectError{Kind: orders.RejectValidation, Message: "order id is required"}
	}
	if volume != nil && !(*volume > 0) {
		return orders.CloseResult{}, &RejectError{Kind: orders.RejectVolumeRange, Message: "close volume must be positive"}
	}
	body, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/order/close",
		body:   orders.CloseRequest{OrderID: orderID, Volume: volume},
	})
	if err != nil {
		return orders.CloseResult{}, err
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		return orders.CloseResult{}, fmt.Errorf("api: close: %w", err)
	}
	if env.failed() {
		return orders.CloseResult{}, env.reject()
	}

	var res orders.CloseResult
	if err := json.Unmarshal(env.payload(body), &res); err != nil {
		return orders.CloseResult{}, fmt.Errorf("api: close: %w", err)
	}
	if res.OrderID == "" {
		res.OrderID = orderID
	}
	return res, nil
}

// SLTP is the protective levels the backend confirmed.
type SLTP struct {
	StopLoss   market.Number `json:"stop_loss_price"`
	TakeProfit market.Number `json:"take_profit_price"`
}

// UpdateSLTP sets or removes (nil) the stop-loss and take-profit levels.
func (c *Client) UpdateSLTP(ctx context.Context, orderID string, req orders.SLTPRequest) (SLTP, error) {
	if orderID == "" {
		return SLTP{}, &RejectError{Kind: orders.RejectValidation, Message: "order id is required"}
	}
	body, err := c.do(ctx, call{
		method: http.MethodPatch,
		path:   "/order/" + url.PathEscape(orderID) + "/sl-tp",
		body:   req,
	})
	if err != nil {
		return SLTP{}, err
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		return SLTP{}, fmt.Errorf("api: sl-tp: %w", err)
	}
	if env.failed() {
		return SLTP{}, env.reject()
	}
	var out SLTP
	if err := json.Unmarshal(env.payload(body), &out); err != nil {
		return SLTP{}, fmt.Errorf("api: sl-tp: %w", err)
	}
	return out, nil
}
