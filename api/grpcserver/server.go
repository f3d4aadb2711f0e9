package grpcserver

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"exchange/api/rpc"
	"exchange/domain/orderbook"
	"exchange/service"
)

// Server adapts Exchange to gRPC.
type Server struct {
	ex  *service.Exchange
	log *zap.Logger
}

var _ rpc.ExchangeServer = (*Server)(nil)

func NewServer(ex *service.Exchange, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{ex: ex, log: logger.Named("grpc")}
}

// -------------------- Commands --------------------

func (s *Server) CreateOrder(
	ctx context.Context,
	req *rpc.CreateOrderRequest,
) (*rpc.OrderResponse, error) {
	book, err := s.ex.Book(req.Instrument)
	if err != nil {
		return nil, toStatus(err)
	}

	o, err := book.CreateOrder(req.Side, req.Price, req.Shares)
	if err != nil {
		return nil, toStatus(err)
	}

	s.log.Info("CreateOrder",
		zap.String("instrument", req.Instrument),
		zap.Stringer("side", req.Side),
		zap.Stringer("price", req.Price),
		zap.Int64("shares", req.Shares),
		zap.Stringer("order", o.ID),
		zap.Stringer("status", o.Status),
	)
	return &rpc.OrderResponse{Order: o}, nil
}

func (s *Server) CancelOrder(
	ctx context.Context,
	req *rpc.CancelOrderRequest,
) (*rpc.OrderResponse, error) {
	book, id, err := s.resolve(req.Instrument, req.OrderID)
	if err != nil {
		return nil, err
	}

	o, err := book.CancelOrder(id)
	if err != nil {
		return nil, toStatus(err)
	}

	s.log.Info("CancelOrder",
		zap.String("instrument", req.Instrument),
		zap.Stringer("order", id),
	)
	return &rpc.OrderResponse{Order: o}, nil
}

// -------------------- Queries --------------------

func (s *Server) GetOrder(
	ctx context.Context,
	req *rpc.GetOrderRequest,
) (*rpc.OrderResponse, error) {
	book, id, err := s.resolve(req.Instrument, req.OrderID)
	if err != nil {
		return nil, err
	}
	o, err := book.Order(id)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.OrderResponse{Order: o}, nil
}

func (s *Server) GetBook(
	ctx context.Context,
	req *rpc.GetBookRequest,
) (*rpc.GetBookResponse, error) {
	book, err := s.ex.Book(req.Instrument)
	if err != nil {
		return nil, toStatus(err)
	}

	v := book.View()
	return &rpc.GetBookResponse{
		Instrument: v.Instrument,
		BestBid:    v.BestBid,
		BestAsk:    v.BestAsk,
		Buys:       v.Buys,
		Sells:      v.Sells,
	}, nil
}

func (s *Server) GetTrades(
	ctx context.Context,
	req *rpc.GetTradesRequest,
) (*rpc.GetTradesResponse, error) {
	book, err := s.ex.Book(req.Instrument)
	if err != nil {
		return nil, toStatus(err)
	}

	ids := make([]uuid.UUID, 0, len(req.TradeIDs))
	for _, raw := range req.TradeIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "trade id %q: %v", raw, err)
		}
		ids = append(ids, id)
	}

	trades, err := book.Trades(ids)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.GetTradesResponse{Trades: trades}, nil
}

func (s *Server) ListInstruments(
	ctx context.Context,
	_ *rpc.ListInstrumentsRequest,
) (*rpc.ListInstrumentsResponse, error) {
	insts := s.ex.Instruments()
	resp := &rpc.ListInstrumentsResponse{
		Instruments: make([]rpc.Instrument, 0, len(insts)),
	}
	for _, in := range insts {
		resp.Instruments = append(resp.Instruments, rpc.Instrument{
			ID:          in.ID,
			Name:        in.Name,
			StockSymbol: in.StockSymbol,
			Currency:    in.Currency,
		})
	}
	return resp, nil
}

// -------------------- Converters --------------------

func (s *Server) resolve(instrument, rawID string) (*service.BookService, uuid.UUID, error) {
	book, err := s.ex.Book(instrument)
	if err != nil {
		return nil, uuid.Nil, toStatus(err)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, uuid.Nil, status.Errorf(codes.InvalidArgument, "order id %q: %v", rawID, err)
	}
	return book, id, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, orderbook.ErrInvalidOrderDetails):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, orderbook.ErrOrderNotFound),
		errors.Is(err, orderbook.ErrTradeNotFound),
		errors.Is(err, service.ErrUnknownInstrument):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, orderbook.ErrOrderNotCancellable):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
