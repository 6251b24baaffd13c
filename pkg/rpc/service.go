package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// Unary builds a method descriptor that decodes the request into *Req, runs
// it through the server interceptor chain and then calls fn.
func Unary[Req, Resp any](service, method string, fn func(context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Service assembles a ServiceDesc from method descriptors.
func Service(name string, methods ...grpc.MethodDesc) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: name,
		HandlerType: (*any)(nil),
		Methods:     methods,
		Streams:     []grpc.StreamDesc{},
		Metadata:    name,
	}
}

// Registrar is implemented by every feature handler.
type Registrar interface {
	ServiceDesc() *grpc.ServiceDesc
}

func Register(s *grpc.Server, handlers ...Registrar) {
	for _, h := range handlers {
		s.RegisterService(h.ServiceDesc(), h)
	}
}
