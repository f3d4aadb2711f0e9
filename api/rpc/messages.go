package rpc

import (
	"github.com/shopspring/decimal"

	"exchange/domain/orderbook"
)

// Messages mirror exchange.proto field for field.

type Instrument struct {
	ID          string
	Name        string
	StockSymbol string
	Currency    string
}

// -------------------- Commands --------------------

type CreateOrderRequest struct {
	Instrument string
	Side       orderbook.Side
	Price      decimal.Decimal
	Shares     int64
}

func (m *CreateOrderRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Instrument)
	b = appendVarint(b, 2, uint64(m.Side))
	b = appendDecimal(b, 3, m.Price)
	return appendVarint(b, 4, uint64(m.Shares))
}

func (m *CreateOrderRequest) readWire(b []byte) error {
	return readFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Instrument = string(f.bytes)
		case 2:
			m.Side = orderbook.Side(f.u)
		case 3:
			m.Price, err = parseDecimal(f.bytes)
		case 4:
			m.Shares = int64(f.u)
		}
		return err
	})
}

type CancelOrderRequest struct {
	Instrument string
	OrderID    string
}

func (m *CancelOrderRequest) appendWire(b []byte) []byte {
	return appendOrderRef(b, m.Instrument, m.OrderID)
}

func (m *CancelOrderRequest) readWire(b []byte) error {
	return readOrderRef(b, &m.Instrument, &m.OrderID)
}

type OrderResponse struct {
	Order orderbook.Order
}

func (m *OrderResponse) appendWire(b []byte) []byte {
	return appendMessage(b, 1, appendOrder(nil, &m.Order))
}

func (m *OrderResponse) readWire(b []byte) error {
	return readFields(b, func(f field) (err error) {
		if f.num == 1 {
			m.Order, err = readOrder(f.bytes)
		}
		return err
	})
}

// -------------------- Queries --------------------

type GetOrderRequest struct {
	Instrument string
	OrderID    string
}

func (m *GetOrderRequest) appendWire(b []byte) []byte {
	return appendOrderRef(b, m.Instrument, m.OrderID)
}

func (m *GetOrderRequest) readWire(b []byte) error {
	return readOrderRef(b, &m.Instrument, &m.OrderID)
}

type GetBookRequest struct {
	Instrument string
}

func (m *GetBookRequest) appendWire(b []byte) []byte {
	return appendString(b, 1, m.Instrument)
}

func (m *GetBookRequest) readWire(b []byte) error {
	return readFields(b, func(f field) error {
		if f.num == 1 {
			m.Instrument = string(f.bytes)
		}
		return nil
	})
}

// GetBookResponse lists each side worst to best.
type GetBookResponse struct {
	Instrument string
	BestBid    *orderbook.Order
	BestAsk    *orderbook.Order
	Buys       []orderbook.Order
	Sells      []orderbook.Order
}

func (m *GetBookResponse) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Instrument)
	if m.BestBid != nil {
		b = appendMessage(b, 2, appendOrder(nil, m.BestBid))
	}
	if m.BestAsk != nil {
		b = appendMessage(b, 3, appendOrder(nil, m.BestAsk))
	}
	for i := range m.Buys {
		b = appendMessage(b, 4, appendOrder(nil, &m.Buys[i]))
	}
	for i := range m.Sells {
		b = appendMessage(b, 5, appendOrder(nil, &m.Sells[i]))
	}
	return b
}

func (m *GetBookResponse) readWire(b []byte) error {
	return readFields(b, func(f field) error {
		if f.num == 1 {
			m.Instrument = string(f.bytes)
			return nil
		}
		if f.num < 2 || f.num > 5 {
			return nil
		}
		o, err := readOrder(f.bytes)
		if err != nil {
			return err
		}
		switch f.num {
		case 2:
			m.BestBid = &o
		case 3:
			m.BestAsk = &o
		case 4:
			m.Buys = append(m.Buys, o)
		case 5:
			m.Sells = append(m.Sells, o)
		}
		return nil
	})
}

type GetTradesRequest struct {
	Instrument string
	TradeIDs   []string
}

func (m *GetTradesRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Instrument)
	for _, id := range m.TradeIDs {
		b = appendMessage(b, 2, []byte(id))
	}
	return b
}

func (m *GetTradesRequest) readWire(b []byte) error {
	return readFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Instrument = string(f.bytes)
		case 2:
			m.TradeIDs = append(m.TradeIDs, string(f.bytes))
		}
		return nil
	})
}

type GetTradesResponse struct {
	Trades []orderbook.Trade
}

func (m *GetTradesResponse) appendWire(b []byte) []byte {
	for i := range m.Trades {
		b = appendMessage(b, 1, appendTrade(nil, &m.Trades[i]))
	}
	return b
}

func (m *GetTradesResponse) readWire(b []byte) error {
	return readFields(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		t, err := readTrade(f.bytes)
		if err != nil {
			return err
		}
		m.Trades = append(m.Trades, t)
		return nil
	})
}

type ListInstrumentsRequest struct{}

func (*ListInstrumentsRequest) appendWire(b []byte) []byte { return b }
func (*ListInstrumentsRequest) readWire([]byte) error       { return nil }

type ListInstrumentsResponse struct {
	Instruments []Instrument
}

func (m *ListInstrumentsResponse) appendWire(b []byte) []byte {
	for i := range m.Instruments {
		b = appendMessage(b, 1, appendInstrument(nil, &m.Instruments[i]))
	}
	return b
}

func (m *ListInstrumentsResponse) readWire(b []byte) error {
	return readFields(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		in, err := readInstrument(f.bytes)
		if err != nil {
			return err
		}
		m.Instruments = append(m.Instruments, in)
		return nil
	})
}

// -------------------- Helpers --------------------

func appendOrderRef(b []byte, instrument, orderID string) []byte {
	b = appendString(b, 1, instrument)
	return appendString(b, 2, orderID)
}

func readOrderRef(b []byte, instrument, orderID *string) error {
	return readFields(b, func(f field) error {
		switch f.num {
		case 1:
			*instrument = string(f.bytes)
		case 2:
			*orderID = string(f.bytes)
		}
		return nil
	})
}
