package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "exchange.v1.Exchange"

// ExchangeServer is the server API for the exchange service.
type ExchangeServer interface {
	CreateOrder(context.Context, *CreateOrderRequest) (*OrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*OrderResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*OrderResponse, error)
	GetBook(context.Context, *GetBookRequest) (*GetBookResponse, error)
	GetTrades(context.Context, *GetTradesRequest) (*GetTradesResponse, error)
	ListInstruments(context.Context, *ListInstrumentsRequest) (*ListInstrumentsResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateOrder", ExchangeServer.CreateOrder),
		unary("CancelOrder", ExchangeServer.CancelOrder),
		unary("GetOrder", ExchangeServer.GetOrder),
		unary("GetBook", ExchangeServer.GetBook),
		unary("GetTrades", ExchangeServer.GetTrades),
		unary("ListInstruments", ExchangeServer.ListInstruments),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "exchange/v1/exchange.proto",
}

func RegisterExchangeServer(s grpc.ServiceRegistrar, srv ExchangeServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](
	method string,
	call func(ExchangeServer, context.Context, *Req) (*Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ExchangeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(ExchangeServer), ctx, req.(*Req))
			})
		},
	}
}
