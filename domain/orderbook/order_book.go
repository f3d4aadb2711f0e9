package orderbook

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"exchange/infra/sequence"
)

// OrderBook is single-writer and deterministic for one instrument.
// It does no I/O and never blocks; callers serialize access.
type OrderBook struct {
	instrument string

	orders   map[uuid.UUID]*Order
	trades   map[uuid.UUID]*Trade
	tradeLog []uuid.UUID

	bids *sideIndex
	asks *sideIndex

	seq   *sequence.Sequencer
	now   func() time.Time
	newID func() uuid.UUID
}

// Option customises a book at construction.
type Option func(*OrderBook)

// WithClock sets the wall clock used for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(b *OrderBook) { b.now = now }
}

// WithIDGenerator replaces uuid.New for order and trade ids.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(b *OrderBook) { b.newID = gen }
}

// WithSequencer sets the source of ordering stamps.
func WithSequencer(s *sequence.Sequencer) Option {
	return func(b *OrderBook) { b.seq = s }
}

func New(instrument string, opts ...Option) *OrderBook {
	b := &OrderBook{
		instrument: instrument,
		orders:     make(map[uuid.UUID]*Order),
		trades:     make(map[uuid.UUID]*Trade),
		bids:       newSideIndex(),
		asks:       newSideIndex(),
		seq:        sequence.New(0),
		now:        time.Now,
		newID:      uuid.New,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *OrderBook) Instrument() string { return b.instrument }

// Len returns the number of orders ever accepted.
func (b *OrderBook) Len() int { return len(b.orders) }

// Resting returns the number of fillable orders on each side.
func (b *OrderBook) Resting() (buys, sells int) {
	return b.bids.len(), b.asks.len()
}

// ---- commands ----

// CreateOrder validates, crosses and stores a new limit order. It returns
// the order as it stands after matching and the events in causal order.
func (b *OrderBook) CreateOrder(side Side, price decimal.Decimal, shares int64) (Order, []Event, error) {
	if !side.Valid() {
		return Order{}, nil, fmt.Errorf("%w: side %d", ErrInvalidOrderDetails, side)
	}
	if !price.IsPositive() {
		return Order{}, nil, fmt.Errorf("%w: price %s", ErrInvalidOrderDetails, price)
	}
	if shares <= 0 {
		return Order{}, nil, fmt.Errorf("%w: shares %d", ErrInvalidOrderDetails, shares)
	}

	o := &Order{
		ID:             b.newID(),
		Instrument:     b.instrument,
		Side:           side,
		Price:          price,
		OriginalShares: shares,
		Shares:         shares,
		Status:         Posted,
		Seq:            b.seq.Next(),
		CreatedAt:      b.now(),
	}
	b.orders[o.ID] = o

	events := []Event{orderEvent(EventOrderCreated, o)}
	events = b.fill(o, events)

	if o.IsFillable() {
		b.index(o.Side).insert(o)
	}
	return o.Clone(), events, nil
}

// CancelOrder withdraws the remaining shares of a fillable order.
func (b *OrderBook) CancelOrder(id uuid.UUID) (Order, []Event, error) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if !o.IsFillable() {
		return o.Clone(), nil, fmt.Errorf("%w: %s is %s", ErrOrderNotCancellable, id, o.Status)
	}

	b.index(o.Side).remove(o)
	o.Status = Cancelled

	return o.Clone(), []Event{orderEvent(EventOrderCancelled, o)}, nil
}

// ---- queries ----

func (b *OrderBook) Order(id uuid.UUID) (Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return o.Clone(), nil
}

func (b *OrderBook) BestBid() (Order, bool) {
	return cloneOK(b.bids.best())
}

func (b *OrderBook) BestAsk() (Order, bool) {
	return cloneOK(b.asks.best())
}

// FillableBuys returns resting buys worst to best; the best bid is last.
func (b *OrderBook) FillableBuys() []Order {
	return collect(b.bids)
}

// FillableSells returns resting sells worst to best; the best ask is last.
func (b *OrderBook) FillableSells() []Order {
	return collect(b.asks)
}

// PendingOrders returns every fillable order in arrival order.
func (b *OrderBook) PendingOrders() []Order {
	out := make([]Order, 0, b.bids.len()+b.asks.len())
	out = append(out, collect(b.bids)...)
	out = append(out, collect(b.asks)...)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// CanCross reports whether the candidate would trade against the best
// opposing order. An empty opposite side never crosses.
func (b *OrderBook) CanCross(candidate *Order) bool {
	if !candidate.IsFillable() {
		return false
	}
	if candidate.IsBuy() {
		ask, ok := b.asks.best()
		return ok && candidate.Price.GreaterThanOrEqual(ask.Price)
	}
	bid, ok := b.bids.best()
	return ok && candidate.Price.LessThanOrEqual(bid.Price)
}

// TradesByIDs looks trades up in the order given.
func (b *OrderBook) TradesByIDs(ids []uuid.UUID) ([]Trade, error) {
	out := make([]Trade, 0, len(ids))
	for _, id := range ids {
		tr, ok := b.trades[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTradeNotFound, id)
		}
		out = append(out, *tr)
	}
	return out, nil
}

// Trades returns every trade in execution order.
func (b *OrderBook) Trades() []Trade {
	out := make([]Trade, 0, len(b.tradeLog))
	for _, id := range b.tradeLog {
		out = append(out, *b.trades[id])
	}
	return out
}

// ---- helpers ----

func (b *OrderBook) index(s Side) *sideIndex {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

func collect(idx *sideIndex) []Order {
	out := make([]Order, 0, idx.len())
	idx.ascending(func(o *Order) bool {
		out = append(out, o.Clone())
		return true
	})
	return out
}

func cloneOK(o *Order, ok bool) (Order, bool) {
	if !ok {
		return Order{}, false
	}
	return o.Clone(), true
}
