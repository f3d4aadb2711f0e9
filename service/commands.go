package service

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"exchange/domain/orderbook"
)

// Command is a named request as carried by message transports.
type Command struct {
	CommandName string          `json:"commandName"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Reply carries either a response or an error code with its message.
type Reply struct {
	Response     any    `json:"response,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

const (
	CmdCreateOrder      = "createOrder"
	CmdCancelOrder      = "cancelOrder"
	CmdGetOrder         = "getOrder"
	CmdGetBook          = "getBook"
	CmdGetTrades        = "getTrades"
	CmdListTradingPairs = "listTradingPairs"
	CmdPing             = "ping"
)

type OrderDetails struct {
	Side   orderbook.Side  `json:"side"`
	Price  decimal.Decimal `json:"price"`
	Shares int64           `json:"shares"`
}

type createOrderPayload struct {
	TradingPairID string       `json:"tradingPairId"`
	OrderDetails  OrderDetails `json:"orderDetails"`
}

type orderRefPayload struct {
	TradingPairID string    `json:"tradingPairId"`
	OrderID       uuid.UUID `json:"orderId"`
}

type tradesPayload struct {
	TradingPairID string      `json:"tradingPairId"`
	TradeIDs      []uuid.UUID `json:"tradeIds"`
}

// Dispatch executes a named command and never panics on bad input.
func (e *Exchange) Dispatch(cmd Command) Reply {
	resp, err := e.dispatch(cmd)
	if err != nil {
		e.log.Debug("command failed",
			zap.String("command", cmd.CommandName),
			zap.Error(err),
		)
		return Reply{Error: ErrorCode(err), ErrorMessage: err.Error()}
	}
	return Reply{Response: resp}
}

func (e *Exchange) dispatch(cmd Command) (any, error) {
	switch cmd.CommandName {
	case CmdPing:
		return "pong", nil

	case CmdListTradingPairs:
		return e.Instruments(), nil

	case CmdCreateOrder:
		var p createOrderPayload
		book, err := e.decodeFor(cmd.Payload, &p, func() string { return p.TradingPairID })
		if err != nil {
			return nil, err
		}
		return book.CreateOrder(p.OrderDetails.Side, p.OrderDetails.Price, p.OrderDetails.Shares)

	case CmdCancelOrder:
		var p orderRefPayload
		book, err := e.decodeFor(cmd.Payload, &p, func() string { return p.TradingPairID })
		if err != nil {
			return nil, err
		}
		return book.CancelOrder(p.OrderID)

	case CmdGetOrder:
		var p orderRefPayload
		book, err := e.decodeFor(cmd.Payload, &p, func() string { return p.TradingPairID })
		if err != nil {
			return nil, err
		}
		return book.Order(p.OrderID)

	case CmdGetBook:
		var p orderRefPayload
		book, err := e.decodeFor(cmd.Payload, &p, func() string { return p.TradingPairID })
		if err != nil {
			return nil, err
		}
		return book.View(), nil

	case CmdGetTrades:
		var p tradesPayload
		book, err := e.decodeFor(cmd.Payload, &p, func() string { return p.TradingPairID })
		if err != nil {
			return nil, err
		}
		return book.Trades(p.TradeIDs)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.CommandName)
	}
}

// decodeFor unmarshals the payload into v and resolves the book named
// by pair once decoding has filled it in.
func (e *Exchange) decodeFor(raw json.RawMessage, v any, pair func() string) (*BookService, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: missing payload", ErrBadRequest)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return e.Book(pair())
}
