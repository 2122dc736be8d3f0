package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "wxpay.WxPayService"

type structCall func(WxPayServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// WxPayServiceServer is the server API of the wxpay.WxPayService gRPC service.
type WxPayServiceServer interface {
	Health(context.Context, *structpb.Struct) (*structpb.Struct, error)

	CreateOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlaceOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	QueryOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReconcileOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetJSAPIParams(context.Context, *structpb.Struct) (*structpb.Struct, error)

	CreateRefund(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRefunds(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRefund(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyForRefund(context.Context, *structpb.Struct) (*structpb.Struct, error)
	QueryRefund(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReconcileRefund(context.Context, *structpb.Struct) (*structpb.Struct, error)

	CreatePayout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPayout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SendPayout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	QueryPayout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReconcilePayout(context.Context, *structpb.Struct) (*structpb.Struct, error)

	CreateRedPacket(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRedPacket(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SendRedPacket(context.Context, *structpb.Struct) (*structpb.Struct, error)
	QueryRedPacket(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReconcileRedPacket(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WxPayServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Health", WxPayServiceServer.Health),
		unaryMethod("CreateOrder", WxPayServiceServer.CreateOrder),
		unaryMethod("UpdateOrder", WxPayServiceServer.UpdateOrder),
		unaryMethod("GetOrder", WxPayServiceServer.GetOrder),
		unaryMethod("PlaceOrder", WxPayServiceServer.PlaceOrder),
		unaryMethod("QueryOrder", WxPayServiceServer.QueryOrder),
		unaryMethod("CancelOrder", WxPayServiceServer.CancelOrder),
		unaryMethod("ReconcileOrder", WxPayServiceServer.ReconcileOrder),
		unaryMethod("GetJSAPIParams", WxPayServiceServer.GetJSAPIParams),
		unaryMethod("CreateRefund", WxPayServiceServer.CreateRefund),
		unaryMethod("ListRefunds", WxPayServiceServer.ListRefunds),
		unaryMethod("GetRefund", WxPayServiceServer.GetRefund),
		unaryMethod("ApplyForRefund", WxPayServiceServer.ApplyForRefund),
		unaryMethod("QueryRefund", WxPayServiceServer.QueryRefund),
		unaryMethod("ReconcileRefund", WxPayServiceServer.ReconcileRefund),
		unaryMethod("CreatePayout", WxPayServiceServer.CreatePayout),
		unaryMethod("GetPayout", WxPayServiceServer.GetPayout),
		unaryMethod("SendPayout", WxPayServiceServer.SendPayout),
		unaryMethod("QueryPayout", WxPayServiceServer.QueryPayout),
		unaryMethod("ReconcilePayout", WxPayServiceServer.ReconcilePayout),
		unaryMethod("CreateRedPacket", WxPayServiceServer.CreateRedPacket),
		unaryMethod("GetRedPacket", WxPayServiceServer.GetRedPacket),
		unaryMethod("SendRedPacket", WxPayServiceServer.SendRedPacket),
		unaryMethod("QueryRedPacket", WxPayServiceServer.QueryRedPacket),
		unaryMethod("ReconcileRedPacket", WxPayServiceServer.ReconcileRedPacket),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "wxpay.proto",
}

func RegisterWxPayServiceServer(registrar grpc.ServiceRegistrar, srv WxPayServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func unaryMethod(name string, call structCall) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(WxPayServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(server, ctx, req.(*structpb.Struct))
			})
		},
	}
}
