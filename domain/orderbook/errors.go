package orderbook

import "errors"

var (
	ErrInvalidOrderDetails = errors.New("invalid order details")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotCancellable = errors.New("order not cancellable")
	ErrTradeNotFound       = errors.New("trade not found")
)
