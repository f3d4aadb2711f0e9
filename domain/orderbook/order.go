package orderbook

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the direction of an order. The zero value is invalid.
type Side uint8

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "buy", "BUY", "bid":
		*s = Buy
	case "sell", "SELL", "ask":
		*s = Sell
	default:
		*s = 0
	}
	return nil
}

// Status is the lifecycle state of an order.
//
//	Posted -> PartiallyFilled -> Filled
//	Posted | PartiallyFilled -> Cancelled
type Status uint8

const (
	Posted Status = iota + 1
	PartiallyFilled
	Filled
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Posted:
		return "posted"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "posted":
		*s = Posted
	case "partially_filled":
		*s = PartiallyFilled
	case "filled":
		*s = Filled
	case "cancelled":
		*s = Cancelled
	default:
		return fmt.Errorf("orderbook: unknown status %q", b)
	}
	return nil
}

// Order is a pure domain entity. Shares holds the remaining quantity.
type Order struct {
	ID             uuid.UUID       `json:"id"`
	Instrument     string          `json:"instrument"`
	Side           Side            `json:"side"`
	Price          decimal.Decimal `json:"price"`
	OriginalShares int64           `json:"originalShares"`
	Shares         int64           `json:"shares"`
	Status         Status          `json:"status"`
	Seq            uint64          `json:"seq"`
	CreatedAt      time.Time       `json:"createdAt"`
	TradeIDs       []uuid.UUID     `json:"tradeIds"`
}

func (o *Order) IsBuy() bool  { return o.Side == Buy }
func (o *Order) IsSell() bool { return o.Side == Sell }

// IsFillable reports whether the order may still take part in a trade.
func (o *Order) IsFillable() bool {
	return o.Status == Posted || o.Status == PartiallyFilled
}

// IsNewerThan compares creation stamps only.
func (o *Order) IsNewerThan(other *Order) bool {
	return o.Seq > other.Seq
}

func (o *Order) RecordTrade(id uuid.UUID) {
	o.TradeIDs = append(o.TradeIDs, id)
}

// Executed returns the quantity traded so far.
func (o *Order) Executed() int64 {
	return o.OriginalShares - o.Shares
}

// PriorityRank compares two orders of the same side. A positive result
// means o ranks ahead of other, negative means behind. Better price wins;
// on equal price the older stamp wins.
func (o *Order) PriorityRank(other *Order) int {
	if c := o.Price.Cmp(other.Price); c != 0 {
		if o.Side == Sell {
			return -c
		}
		return c
	}
	switch {
	case o.Seq < other.Seq:
		return 1
	case o.Seq > other.Seq:
		return -1
	default:
		return 0
	}
}

// Clone returns a deep copy safe to hand outside the book.
func (o *Order) Clone() Order {
	c := *o
	if o.TradeIDs != nil {
		c.TradeIDs = make([]uuid.UUID, len(o.TradeIDs))
		copy(c.TradeIDs, o.TradeIDs)
	}
	return c
}
