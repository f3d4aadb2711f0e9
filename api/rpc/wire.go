package rpc

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/encoding/protowire"

	"exchange/domain/orderbook"
)

// -------------------- Encoding --------------------

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// appendMessage always writes the field so an empty message is still
// present on the wire.
func appendMessage(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func appendDecimal(b []byte, num protowire.Number, d decimal.Decimal) []byte {
	if d.IsZero() {
		return b
	}
	return appendString(b, num, d.String())
}

func appendUUID(b []byte, num protowire.Number, id uuid.UUID) []byte {
	if id == uuid.Nil {
		return b
	}
	return appendString(b, num, id.String())
}

func appendTime(b []byte, num protowire.Number, t time.Time) []byte {
	if t.IsZero() {
		return b
	}
	return appendVarint(b, num, uint64(t.UnixNano()))
}

// -------------------- Decoding --------------------

type field struct {
	num   protowire.Number
	typ   protowire.Type
	u     uint64
	bytes []byte
}

// readFields calls fn for every varint and length-delimited field.
// Fields of other wire types are skipped.
func readFields(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if typ != protowire.VarintType && typ != protowire.BytesType {
			continue
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func parseDecimal(b []byte) (decimal.Decimal, error) {
	if len(b) == 0 {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(string(b))
}

func parseUUID(b []byte) (uuid.UUID, error) {
	if len(b) == 0 {
		return uuid.Nil, nil
	}
	return uuid.ParseBytes(b)
}

func parseTime(u uint64) time.Time {
	return time.Unix(0, int64(u)).UTC()
}

// -------------------- Domain messages --------------------

func appendOrder(b []byte, o *orderbook.Order) []byte {
	b = appendUUID(b, 1, o.ID)
	b = appendString(b, 2, o.Instrument)
	b = appendVarint(b, 3, uint64(o.Side))
	b = appendDecimal(b, 4, o.Price)
	b = appendVarint(b, 5, uint64(o.OriginalShares))
	b = appendVarint(b, 6, uint64(o.Shares))
	b = appendVarint(b, 7, uint64(o.Status))
	b = appendVarint(b, 8, o.Seq)
	b = appendTime(b, 9, o.CreatedAt)
	for _, id := range o.TradeIDs {
		b = appendString(b, 10, id.String())
	}
	return b
}

func readOrder(b []byte) (orderbook.Order, error) {
	var o orderbook.Order
	err := readFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			o.ID, err = parseUUID(f.bytes)
		case 2:
			o.Instrument = string(f.bytes)
		case 3:
			o.Side = orderbook.Side(f.u)
		case 4:
			o.Price, err = parseDecimal(f.bytes)
		case 5:
			o.OriginalShares = int64(f.u)
		case 6:
			o.Shares = int64(f.u)
		case 7:
			o.Status = orderbook.Status(f.u)
		case 8:
			o.Seq = f.u
		case 9:
			o.CreatedAt = parseTime(f.u)
		case 10:
			var id uuid.UUID
			if id, err = parseUUID(f.bytes); err == nil {
				o.TradeIDs = append(o.TradeIDs, id)
			}
		}
		return err
	})
	return o, err
}

func appendTrade(b []byte, t *orderbook.Trade) []byte {
	b = appendUUID(b, 1, t.ID)
	b = appendUUID(b, 2, t.BidOrderID)
	b = appendUUID(b, 3, t.AskOrderID)
	b = appendVarint(b, 4, uint64(t.Shares))
	b = appendDecimal(b, 5, t.Price)
	b = appendVarint(b, 6, t.Seq)
	b = appendTime(b, 7, t.CreatedAt)
	return b
}

func readTrade(b []byte) (orderbook.Trade, error) {
	var t orderbook.Trade
	err := readFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			t.ID, err = parseUUID(f.bytes)
		case 2:
			t.BidOrderID, err = parseUUID(f.bytes)
		case 3:
			t.AskOrderID, err = parseUUID(f.bytes)
		case 4:
			t.Shares = int64(f.u)
		case 5:
			t.Price, err = parseDecimal(f.bytes)
		case 6:
			t.Seq = f.u
		case 7:
			t.CreatedAt = parseTime(f.u)
		}
		return err
	})
	return t, err
}

func appendInstrument(b []byte, in *Instrument) []byte {
	b = appendString(b, 1, in.ID)
	b = appendString(b, 2, in.Name)
	b = appendString(b, 3, in.StockSymbol)
	b = appendString(b, 4, in.Currency)
	return b
}

func readInstrument(b []byte) (Instrument, error) {
	var in Instrument
	err := readFields(b, func(f field) error {
		switch f.num {
		case 1:
			in.ID = string(f.bytes)
		case 2:
			in.Name = string(f.bytes)
		case 3:
			in.StockSymbol = string(f.bytes)
		case 4:
			in.Currency = string(f.bytes)
		}
		return nil
	})
	return in, err
}
