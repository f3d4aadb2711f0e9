package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"exchange/domain/orderbook"
	"exchange/infra/metrics"
)

// Sink receives lifecycle events after the book has committed them.
// Emit must not block.
type Sink interface {
	Emit(events ...orderbook.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(events ...orderbook.Event)

func (f SinkFunc) Emit(events ...orderbook.Event) { f(events...) }

type nopSink struct{}

func (nopSink) Emit(...orderbook.Event) {}

// BookService is the single writer for one instrument's book.
type BookService struct {
	mu   sync.RWMutex
	book *orderbook.OrderBook
	sink Sink
	log  *zap.Logger
}

// NewBookService wires a book to its sink. A nil sink discards events.
func NewBookService(book *orderbook.OrderBook, sink Sink, logger *zap.Logger) *BookService {
	if sink == nil {
		sink = nopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookService{
		book: book,
		sink: sink,
		log:  logger.With(zap.String("instrument", book.Instrument())),
	}
}

func (s *BookService) Instrument() string {
	return s.book.Instrument()
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// CreateOrder submits a limit order and returns it as it stands after
// crossing.
func (s *BookService) CreateOrder(side orderbook.Side, price decimal.Decimal, shares int64) (orderbook.Order, error) {
	start := time.Now()

	s.mu.Lock()
	o, events, err := s.book.CreateOrder(side, price, shares)
	if err == nil {
		s.sink.Emit(events...)
		s.observeDepth()
	}
	s.mu.Unlock()

	metrics.MatchLatency.WithLabelValues(s.Instrument(), "create").Observe(time.Since(start).Seconds())

	if err != nil {
		s.reject(err)
		return o, err
	}

	metrics.OrdersCreated.WithLabelValues(s.Instrument(), side.String()).Inc()
	s.countTrades(events)

	s.log.Debug("order created",
		zap.Stringer("order", o.ID),
		zap.Stringer("side", o.Side),
		zap.Stringer("price", o.Price),
		zap.Int64("shares", o.OriginalShares),
		zap.Stringer("status", o.Status),
		zap.Int("trades", len(o.TradeIDs)),
	)
	return o, nil
}

// CancelOrder withdraws a resting order.
func (s *BookService) CancelOrder(id uuid.UUID) (orderbook.Order, error) {
	start := time.Now()

	s.mu.Lock()
	o, events, err := s.book.CancelOrder(id)
	if err == nil {
		s.sink.Emit(events...)
		s.observeDepth()
	}
	s.mu.Unlock()

	metrics.MatchLatency.WithLabelValues(s.Instrument(), "cancel").Observe(time.Since(start).Seconds())

	if err != nil {
		s.reject(err)
		return o, err
	}

	metrics.OrdersCancelled.WithLabelValues(s.Instrument()).Inc()
	s.log.Debug("order cancelled", zap.Stringer("order", id), zap.Int64("shares", o.Shares))
	return o, nil
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// BookView is a consistent read of both sides. Buys and Sells run worst
// to best.
type BookView struct {
	Instrument string            `json:"instrument"`
	BestBid    *orderbook.Order  `json:"bestBid,omitempty"`
	BestAsk    *orderbook.Order  `json:"bestAsk,omitempty"`
	Buys       []orderbook.Order `json:"buys"`
	Sells      []orderbook.Order `json:"sells"`
}

func (s *BookService) View() BookView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := BookView{
		Instrument: s.book.Instrument(),
		Buys:       s.book.FillableBuys(),
		Sells:      s.book.FillableSells(),
	}
	if bid, ok := s.book.BestBid(); ok {
		v.BestBid = &bid
	}
	if ask, ok := s.book.BestAsk(); ok {
		v.BestAsk = &ask
	}
	return v
}

func (s *BookService) Order(id uuid.UUID) (orderbook.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.Order(id)
}

func (s *BookService) Trades(ids []uuid.UUID) ([]orderbook.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.TradesByIDs(ids)
}

func (s *BookService) PendingOrders() []orderbook.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.PendingOrders()
}

// ---- helpers ----

func (s *BookService) reject(err error) {
	metrics.OrdersRejected.WithLabelValues(s.Instrument(), ErrorCode(err)).Inc()
	s.log.Debug("command rejected", zap.Error(err))
}

func (s *BookService) countTrades(events []orderbook.Event) {
	for _, ev := range events {
		if ev.Type != orderbook.EventTradeExecuted {
			continue
		}
		metrics.TradesExecuted.WithLabelValues(s.Instrument()).Inc()
		metrics.SharesTraded.WithLabelValues(s.Instrument()).Add(float64(ev.Trade.Shares))
	}
}

// observeDepth must be called with the write lock held.
func (s *BookService) observeDepth() {
	buys, sells := s.book.Resting()
	metrics.RestingOrders.WithLabelValues(s.Instrument(), "buy").Set(float64(buys))
	metrics.RestingOrders.WithLabelValues(s.Instrument(), "sell").Set(float64(sells))
}
