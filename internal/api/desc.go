package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tgtriage.v1.TriageService"

// TriageServer is the daemon's RPC surface. Requests and responses travel
// as structpb.Struct and are decoded into the types in this package.
type TriageServer interface {
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TestConnection(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListChats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SummarizeChat(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Route(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchMessages(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Priority(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartSemanticSearch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	NextSemanticPage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Digest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CategorizeDirect(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchPipeline(*structpb.Struct, grpc.ServerStream) error
	WatchEvents(*structpb.Struct, grpc.ServerStream) error
}

type unaryCall func(TriageServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(TriageServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

type streamCall func(TriageServer, *structpb.Struct, grpc.ServerStream) error

func serverStream(name string, call streamCall) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    name,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(structpb.Struct)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return call(srv.(TriageServer), in, stream)
		},
	}
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// ServiceDesc describes TriageService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TriageServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetStatus", TriageServer.GetStatus),
		unary("TestConnection", TriageServer.TestConnection),
		unary("ListChats", TriageServer.ListChats),
		unary("SummarizeChat", TriageServer.SummarizeChat),
		unary("Route", TriageServer.Route),
		unary("SearchMessages", TriageServer.SearchMessages),
		unary("Priority", TriageServer.Priority),
		unary("StartSemanticSearch", TriageServer.StartSemanticSearch),
		unary("NextSemanticPage", TriageServer.NextSemanticPage),
		unary("Digest", TriageServer.Digest),
		unary("CategorizeDirect", TriageServer.CategorizeDirect),
	},
	Streams: []grpc.StreamDesc{
		serverStream("WatchPipeline", TriageServer.WatchPipeline),
		serverStream("WatchEvents", TriageServer.WatchEvents),
	},
	Metadata: "tgtriage/v1/triage.proto",
}

// Register attaches s to srv.
func Register(srv *grpc.Server, s TriageServer) {
	srv.RegisterService(&ServiceDesc, s)
}
