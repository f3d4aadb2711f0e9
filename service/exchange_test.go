package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"exchange/domain/orderbook"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 5 * time.Millisecond
)

var testPairs = []Instrument{
	{ID: "FAPPL", Name: "Fake Apple", StockSymbol: "FAPPL", Currency: "USD"},
	{ID: "FMETA", Name: "Fake Meta", StockSymbol: "FMETA", Currency: "USD"},
}

func newTestExchange(t *testing.T) (*Exchange, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	ex, err := NewExchange(testPairs, sink, zaptest.NewLogger(t))
	require.NoError(t, err)
	return ex, sink
}

// call round-trips a command through JSON the way a transport would.
func call(t *testing.T, ex *Exchange, raw string) Reply {
	t.Helper()
	var cmd Command
	require.NoError(t, json.Unmarshal([]byte(raw), &cmd))
	return ex.Dispatch(cmd)
}

func TestNewExchange_Validation(t *testing.T) {
	_, err := NewExchange([]Instrument{{ID: "A"}, {ID: "A"}}, nil, nil)
	assert.ErrorIs(t, err, ErrDuplicateInstrument)

	_, err = NewExchange([]Instrument{{ID: ""}}, nil, nil)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestExchange_RoutesByInstrument(t *testing.T) {
	ex, _ := newTestExchange(t)

	apple, err := ex.Book("FAPPL")
	require.NoError(t, err)
	meta, err := ex.Book("FMETA")
	require.NoError(t, err)

	_, err = apple.CreateOrder(orderbook.Sell, px("10"), 1)
	require.NoError(t, err)
	o, err := meta.CreateOrder(orderbook.Buy, px("10"), 1)
	require.NoError(t, err)
	assert.Equal(t, orderbook.Posted, o.Status, "books must not share liquidity")

	_, err = ex.Book("NOPE")
	assert.ErrorIs(t, err, ErrUnknownInstrument)

	assert.Equal(t, testPairs, ex.Instruments())
}

func TestDispatch_CreateCrossAndQuery(t *testing.T) {
	ex, sink := newTestExchange(t)

	r := call(t, ex, `{"commandName":"createOrder","payload":{"tradingPairId":"FAPPL","orderDetails":{"side":"sell","shares":10,"price":10.42}}}`)
	require.Empty(t, r.Error, r.ErrorMessage)
	ask, ok := r.Response.(orderbook.Order)
	require.True(t, ok)
	assert.Equal(t, orderbook.Posted, ask.Status)

	r = call(t, ex, `{"commandName":"createOrder","payload":{"tradingPairId":"FAPPL","orderDetails":{"side":"buy","shares":4,"price":"10.52"}}}`)
	require.Empty(t, r.Error, r.ErrorMessage)
	bid := r.Response.(orderbook.Order)
	assert.Equal(t, orderbook.Filled, bid.Status)
	require.Len(t, bid.TradeIDs, 1)

	r = call(t, ex, `{"commandName":"getTrades","payload":{"tradingPairId":"FAPPL","tradeIds":["`+bid.TradeIDs[0].String()+`"]}}`)
	require.Empty(t, r.Error, r.ErrorMessage)
	trades := r.Response.([]orderbook.Trade)
	require.Len(t, trades, 1)
	assert.Equal(t, "10.42", trades[0].Price.String())

	r = call(t, ex, `{"commandName":"getBook","payload":{"tradingPairId":"FAPPL"}}`)
	require.Empty(t, r.Error, r.ErrorMessage)
	view := r.Response.(BookView)
	require.NotNil(t, view.BestAsk)
	assert.Equal(t, int64(6), view.BestAsk.Shares)
	assert.Nil(t, view.BestBid)

	r = call(t, ex, `{"commandName":"getOrder","payload":{"tradingPairId":"FAPPL","orderId":"`+ask.ID.String()+`"}}`)
	require.Empty(t, r.Error, r.ErrorMessage)
	assert.Equal(t, orderbook.PartiallyFilled, r.Response.(orderbook.Order).Status)

	r = call(t, ex, `{"commandName":"cancelOrder","payload":{"tradingPairId":"FAPPL","orderId":"`+ask.ID.String()+`"}}`)
	require.Empty(t, r.Error, r.ErrorMessage)
	assert.Equal(t, orderbook.Cancelled, r.Response.(orderbook.Order).Status)

	assert.Len(t, sink.types(), 6)
}

func TestDispatch_Errors(t *testing.T) {
	ex, _ := newTestExchange(t)

	cases := []struct {
		name string
		raw  string
		code string
	}{
		{"invalid price", `{"commandName":"createOrder","payload":{"tradingPairId":"FAPPL","orderDetails":{"side":"buy","shares":1,"price":0}}}`, "invalid_order_details"},
		{"missing side", `{"commandName":"createOrder","payload":{"tradingPairId":"FAPPL","orderDetails":{"shares":1,"price":1}}}`, "invalid_order_details"},
		{"unknown pair", `{"commandName":"createOrder","payload":{"tradingPairId":"FGOOG","orderDetails":{"side":"buy","shares":1,"price":1}}}`, "unknown_trading_pair"},
		{"unknown order", `{"commandName":"cancelOrder","payload":{"tradingPairId":"FAPPL","orderId":"` + uuid.NewString() + `"}}`, "order_not_found"},
		{"bad order id", `{"commandName":"cancelOrder","payload":{"tradingPairId":"FAPPL","orderId":"42"}}`, "bad_request"},
		{"missing payload", `{"commandName":"getBook"}`, "bad_request"},
		{"unknown trade", `{"commandName":"getTrades","payload":{"tradingPairId":"FAPPL","tradeIds":["` + uuid.NewString() + `"]}}`, "trade_not_found"},
		{"unknown command", `{"commandName":"marketOrder","payload":{}}`, "unknown_command"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := call(t, ex, tc.raw)
			assert.Nil(t, r.Response)
			assert.Equal(t, tc.code, r.Error)
			assert.NotEmpty(t, r.ErrorMessage)
		})
	}
}

func TestDispatch_CancelFilledOrder(t *testing.T) {
	ex, _ := newTestExchange(t)
	book, err := ex.Book("FMETA")
	require.NoError(t, err)

	ask, err := book.CreateOrder(orderbook.Sell, px("5"), 1)
	require.NoError(t, err)
	_, err = book.CreateOrder(orderbook.Buy, px("5"), 1)
	require.NoError(t, err)

	r := call(t, ex, `{"commandName":"cancelOrder","payload":{"tradingPairId":"FMETA","orderId":"`+ask.ID.String()+`"}}`)
	assert.Equal(t, "order_not_cancellable", r.Error)
}

func TestDispatch_PingAndList(t *testing.T) {
	ex, _ := newTestExchange(t)

	assert.Equal(t, "pong", call(t, ex, `{"commandName":"ping"}`).Response)

	r := call(t, ex, `{"commandName":"listTradingPairs"}`)
	require.Empty(t, r.Error)
	assert.Equal(t, testPairs, r.Response)
}

func TestReply_JSONShape(t *testing.T) {
	b, err := json.Marshal(Reply{Error: "order_not_found", ErrorMessage: "order not found: x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"order_not_found","errorMessage":"order not found: x"}`, string(b))

	b, err = json.Marshal(Reply{Response: "pong"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":"pong"}`, string(b))
}
