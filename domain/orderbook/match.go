package orderbook

import "github.com/shopspring/decimal"

// fill crosses the candidate against the opposite side until it can no
// longer trade. Each pass consumes a positive quantity from at least one
// participant and drops filled counterparts from their index, so the loop
// is bounded by the resting depth of the crossed side.
func (b *OrderBook) fill(candidate *Order, events []Event) []Event {
	for b.CanCross(candidate) {
		var bid, ask *Order
		if candidate.IsBuy() {
			bid = candidate
			ask, _ = b.asks.best()
		} else {
			bid, _ = b.bids.best()
			ask = candidate
		}
		events = b.settle(bid, ask, events)
	}
	return events
}

// settle executes one trade between bid and ask at the resting order's
// limit price.
func (b *OrderBook) settle(bid, ask *Order, events []Event) []Event {
	shares := min(bid.Shares, ask.Shares)

	price := decimal.Max(ask.Price, bid.Price)
	if bid.IsNewerThan(ask) {
		price = decimal.Min(ask.Price, bid.Price)
	}

	tr := newTrade(b.newID(), bid, ask, shares, price, b.seq.Next(), b.now())
	b.trades[tr.ID] = tr
	b.tradeLog = append(b.tradeLog, tr.ID)
	events = append(events, tradeEvent(b.instrument, tr))

	for _, o := range [2]*Order{bid, ask} {
		o.Shares -= shares
		if o.Shares == 0 {
			o.Status = Filled
			// the candidate is never indexed while it is being crossed
			b.index(o.Side).remove(o)
		} else {
			o.Status = PartiallyFilled
		}
		o.RecordTrade(tr.ID)
		events = append(events, fillEvent(o))
	}
	return events
}
