package orderbook

// EventType enumerates the lifecycle notifications a book produces.
type EventType uint8

const (
	EventOrderCreated EventType = iota + 1
	EventOrderPartiallyFilled
	EventOrderFilled
	EventOrderCancelled
	EventTradeExecuted
)

func (t EventType) String() string {
	switch t {
	case EventOrderCreated:
		return "orderCreated"
	case EventOrderPartiallyFilled:
		return "orderPartiallyFilled"
	case EventOrderFilled:
		return "orderFilled"
	case EventOrderCancelled:
		return "orderCancelled"
	case EventTradeExecuted:
		return "tradeExecuted"
	default:
		return "unknown"
	}
}

func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Event carries a copy of the entity it describes. Exactly one of
// Order and Trade is set.
type Event struct {
	Type       EventType
	Instrument string
	Order      *Order
	Trade      *Trade
}

func orderEvent(t EventType, o *Order) Event {
	c := o.Clone()
	return Event{Type: t, Instrument: o.Instrument, Order: &c}
}

func tradeEvent(instrument string, tr *Trade) Event {
	c := *tr
	return Event{Type: EventTradeExecuted, Instrument: instrument, Trade: &c}
}

// fillEvent reports the status an order reached after a settlement step.
func fillEvent(o *Order) Event {
	if o.Status == Filled {
		return orderEvent(EventOrderFilled, o)
	}
	return orderEvent(EventOrderPartiallyFilled, o)
}
