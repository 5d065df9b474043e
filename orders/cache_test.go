package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxdesk/market"
)

// scriptedFetcher answers each call with the next scripted response. A call
// whose gate channel is set blocks until the gate is closed.
type scriptedFetcher struct {
	mu        sync.Mutex
	calls     int
	responses [][]Order
	gates     []chan struct{}
	err       error
}

func (f *scriptedFetcher) ListOrders(ctx context.Context, status Status) ([]Order, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	var gate chan struct{}
	if i < len(f.gates) {
		gate = f.gates[i]
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.responses[i], nil
}

func order(id, sym string, side Side, open float64) Order {
	return Order{ID: id, Symbol: sym, Side: side, Volume: market.Num(1), OpenPrice: market.Num(open)}
}

func TestCache_LoadReplacesBucket(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{responses: [][]Order{
		{order("1", "EURUSD", Buy, 1.1), order("2", "GBPUSD", Sell, 1.25)},
		{order("3", "USDJPY", Buy, 150)},
	}}
	c := NewCache(f)

	got, err := c.Load(context.Background(), Open)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = c.Load(context.Background(), Open)
	require.NoError(t, err)

	open := c.Orders(Open)
	require.Len(t, open, 1)
	assert.Equal(t, "3", open[0].ID)
	assert.Equal(t, Open, open[0].Status)
	assert.False(t, c.LoadedAt(Open).IsZero())
}

func TestCache_LaterLoadWins(t *testing.T) {
	t.Parallel()

	first := make(chan struct{})
	f := &scriptedFetcher{
		responses: [][]Order{
			{order("old", "EURUSD", Buy, 1.1)},
			{order("new", "EURUSD", Buy, 1.2)},
		},
		gates: []chan struct{}{first, nil},
	}
	c := NewCache(f)

	errs := make(chan error, 1)
	go func() {
		_, err := c.Load(context.Background(), Open)
		errs <- err
	}()

	// wait until the first call is parked on its gate
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.calls == 1
	}, time.Second, time.Millisecond)

	_, err := c.Load(context.Background(), Open)
	require.NoError(t, err)

	close(first)
	assert.ErrorIs(t, <-errs, ErrSuperseded)

	open := c.Orders(Open)
	require.Len(t, open, 1)
	assert.Equal(t, "new", open[0].ID)
}

func TestCache_StatusesAreIndependent(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{responses: [][]Order{
		{order("p1", "EURUSD", Buy, 1.1)},
		{order("o1", "EURUSD", Buy, 1.1)},
	}}
	c := NewCache(f)

	_, err := c.Load(context.Background(), Pending)
	require.NoError(t, err)
	_, err = c.Load(context.Background(), Open)
	require.NoError(t, err)

	assert.Equal(t, "p1", c.Orders(Pending)[0].ID)
	assert.Equal(t, "o1", c.Orders(Open)[0].ID)
}

func TestCache_LoadErrorKeepsBucket(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{responses: [][]Order{{order("1", "EURUSD", Buy, 1.1)}}}
	c := NewCache(f)
	_, err := c.Load(context.Background(), Open)
	require.NoError(t, err)

	f.err = errors.New("boom")
	_, err = c.Load(context.Background(), Open)
	require.Error(t, err)
	assert.Len(t, c.Orders(Open), 1)
}

func TestCache_LoadInvalidStatus(t *testing.T) {
	t.Parallel()

	c := NewCache(&scriptedFetcher{})
	_, err := c.Load(context.Background(), Status("cancelled"))
	assert.Error(t, err)
}

func TestCache_DropsOrdersWithoutID(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{responses: [][]Order{{order("", "EURUSD", Buy, 1.1), order("2", "EURUSD", Buy, 1.1)}}}
	c := NewCache(f)
	got, err := c.Load(context.Background(), Open)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}

func TestCache_ApplyEventLifecycle(t *testing.T) {
	t.Parallel()

	c := NewCache(&scriptedFetcher{})
	var changed []Status
	c.OnChange(func(s Status) { changed = append(changed, s) })

	o := order("42", "EURUSD", Buy, 1.1)

	require.NoError(t, c.ApplyEvent(Event{Type: EventPendingCreated, Order: o}))
	assert.Len(t, c.Orders(Pending), 1)

	require.NoError(t, c.ApplyEvent(Event{Type: EventOpened, Order: o}))
	assert.Empty(t, c.Orders(Pending))
	require.Len(t, c.Orders(Open), 1)
	assert.Equal(t, Open, c.Orders(Open)[0].Status)

	closed := o
	closed.ClosePrice = market.Num(1.105)
	require.NoError(t, c.ApplyEvent(Event{Type: EventClosed, Order: closed}))
	assert.Empty(t, c.Orders(Open))
	require.Len(t, c.Orders(Closed), 1)
	assert.Equal(t, 1.105, c.Orders(Closed)[0].ClosePrice.Float64())

	got, ok := c.Get("42")
	require.True(t, ok)
	assert.Equal(t, Closed, got.Status)

	assert.Equal(t, []Status{Pending, Open, Pending, Closed, Open}, changed)
}

func TestCache_ApplyEventCancelledPending(t *testing.T) {
	t.Parallel()

	c := NewCache(&scriptedFetcher{})
	o := order("7", "EURUSD", Sell, 1.2)
	require.NoError(t, c.ApplyEvent(Event{Type: EventPendingCreated, Order: o}))
	require.NoError(t, c.ApplyEvent(Event{Type: EventClosed, Order: o}))

	assert.Empty(t, c.Orders(Pending))
	assert.Len(t, c.Orders(Closed), 1)
}

func TestCache_ApplyEventReplacesDuplicate(t *testing.T) {
	t.Parallel()

	c := NewCache(&scriptedFetcher{})
	o := order("9", "EURUSD", Buy, 1.1)
	require.NoError(t, c.ApplyEvent(Event{Type: EventOpened, Order: o}))
	o.StopLoss = market.Num(1.09)
	require.NoError(t, c.ApplyEvent(Event{Type: EventOpened, Order: o}))

	open := c.Orders(Open)
	require.Len(t, open, 1)
	assert.Equal(t, 1.09, open[0].StopLoss.Float64())
}

func TestCache_ApplyEventRejectsBadInput(t *testing.T) {
	t.Parallel()

	c := NewCache(&scriptedFetcher{})
	assert.Error(t, c.ApplyEvent(Event{Type: EventOpened}))
	assert.Error(t, c.ApplyEvent(Event{Type: "OrderExploded", Order: order("1", "EURUSD", Buy, 1)}))
}

func TestCache_PushSupersedesInFlightLoad(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	f := &scriptedFetcher{
		responses: [][]Order{{}},
		gates:     []chan struct{}{gate},
	}
	c := NewCache(f)

	errs := make(chan error, 1)
	go func() {
		_, err := c.Load(context.Background(), Open)
		errs <- err
	}()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.calls == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, c.ApplyEvent(Event{Type: EventOpened, Order: order("5", "EURUSD", Buy, 1.1)}))
	close(gate)

	assert.ErrorIs(t, <-errs, ErrSuperseded)
	assert.Len(t, c.Orders(Open), 1)
}

func TestCache_ClearInvalidatesInFlight(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	f := &scriptedFetcher{
		responses: [][]Order{{order("1", "EURUSD", Buy, 1.1)}},
		gates:     []chan struct{}{gate},
	}
	c := NewCache(f)

	errs := make(chan error, 1)
	go func() {
		_, err := c.Load(context.Background(), Open)
		errs <- err
	}()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.calls == 1
	}, time.Second, time.Millisecond)

	c.Clear()
	close(gate)

	assert.ErrorIs(t, <-errs, ErrSuperseded)
	assert.Empty(t, c.Orders(Open))
}
