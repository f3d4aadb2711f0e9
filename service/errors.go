package service

import (
	"errors"

	"exchange/domain/orderbook"
)

var (
	ErrUnknownInstrument   = errors.New("unknown trading pair")
	ErrDuplicateInstrument = errors.New("duplicate trading pair")
	ErrUnknownCommand      = errors.New("unknown command")
	ErrBadRequest          = errors.New("bad request")
)

// ErrorCode maps an error to the stable code used on the wire and in
// metric labels.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, orderbook.ErrInvalidOrderDetails):
		return "invalid_order_details"
	case errors.Is(err, orderbook.ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, orderbook.ErrOrderNotCancellable):
		return "order_not_cancellable"
	case errors.Is(err, orderbook.ErrTradeNotFound):
		return "trade_not_found"
	case errors.Is(err, ErrUnknownInstrument):
		return "unknown_trading_pair"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown_command"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	default:
		return "internal"
	}
}
