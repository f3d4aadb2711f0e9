package orderbook

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade is an immutable execution record between one bid and one ask.
type Trade struct {
	ID         uuid.UUID       `json:"id"`
	BidOrderID uuid.UUID       `json:"bidOrderId"`
	AskOrderID uuid.UUID       `json:"askOrderId"`
	Shares     int64           `json:"shares"`
	Price      decimal.Decimal `json:"price"`
	Seq        uint64          `json:"seq"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func newTrade(
	id uuid.UUID,
	bid, ask *Order,
	shares int64,
	price decimal.Decimal,
	seq uint64,
	now time.Time,
) *Trade {
	return &Trade{
		ID:         id,
		BidOrderID: bid.ID,
		AskOrderID: ask.ID,
		Shares:     shares,
		Price:      price,
		Seq:        seq,
		CreatedAt:  now,
	}
}
