package proto

import (
	"context"

	iface "SegTrackServer/interface"
	"SegTrackServer/sessions"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	ServiceName = "segtrack.TrackService"

	TrackService_OpenSession_FullMethodName  = "/segtrack.TrackService/OpenSession"
	TrackService_Process_FullMethodName      = "/segtrack.TrackService/Process"
	TrackService_StreamFrames_FullMethodName = "/segtrack.TrackService/StreamFrames"
	TrackService_ResetSession_FullMethodName = "/segtrack.TrackService/ResetSession"
	TrackService_CloseSession_FullMethodName = "/segtrack.TrackService/CloseSession"
	TrackService_ListSessions_FullMethodName = "/segtrack.TrackService/ListSessions"
	TrackService_Shutdown_FullMethodName     = "/segtrack.TrackService/Shutdown"
)

type OpenSessionRequest struct {
	Description string `json:"description"`
}

type OpenSessionResponse struct {
	Success bool   `json:"success"`
	Id      string `json:"id"`
	Message string `json:"message"`
}

type ProcessRequest struct {
	Id      string      `json:"id"`
	Preview bool        `json:"preview"`
	Frame   iface.Frame `json:"frame"`
}

type ProcessResponse struct {
	Success bool              `json:"success"`
	Dropped bool              `json:"dropped"`
	Message string            `json:"message,omitempty"`
	Result  iface.FrameResult `json:"result"`
}

type SessionRequest struct {
	Id string `json:"id"`
}

type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ListSessionsResponse struct {
	Success  bool            `json:"success"`
	Sessions []sessions.Info `json:"sessions"`
	Message  string          `json:"message"`
}

type TrackServiceServer interface {
	OpenSession(context.Context, *OpenSessionRequest) (*OpenSessionResponse, error)
	Process(context.Context, *ProcessRequest) (*ProcessResponse, error)
	StreamFrames(grpc.BidiStreamingServer[ProcessRequest, ProcessResponse]) error
	ResetSession(context.Context, *SessionRequest) (*StatusResponse, error)
	CloseSession(context.Context, *SessionRequest) (*StatusResponse, error)
	ListSessions(context.Context, *emptypb.Empty) (*ListSessionsResponse, error)
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

func RegisterTrackServiceServer(s grpc.ServiceRegistrar, srv TrackServiceServer) {
	s.RegisterService(&TrackService_ServiceDesc, srv)
}

func unary[Req any, Resp any](method string, call func(TrackServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TrackServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TrackServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func streamFramesHandler(srv any, stream grpc.ServerStream) error {
	return srv.(TrackServiceServer).StreamFrames(&grpc.GenericServerStream[ProcessRequest, ProcessResponse]{ServerStream: stream})
}

var TrackService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TrackServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "OpenSession",
			Handler:    unary(TrackService_OpenSession_FullMethodName, TrackServiceServer.OpenSession),
		},
		{
			MethodName: "Process",
			Handler:    unary(TrackService_Process_FullMethodName, TrackServiceServer.Process),
		},
		{
			MethodName: "ResetSession",
			Handler:    unary(TrackService_ResetSession_FullMethodName, TrackServiceServer.ResetSession),
		},
		{
			MethodName: "CloseSession",
			Handler:    unary(TrackService_CloseSession_FullMethodName, TrackServiceServer.CloseSession),
		},
		{
			MethodName: "ListSessions",
			Handler:    unary(TrackService_ListSessions_FullMethodName, TrackServiceServer.ListSessions),
		},
		{
			MethodName: "Shutdown",
			Handler:    unary(TrackService_Shutdown_FullMethodName, TrackServiceServer.Shutdown),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamFrames",
			Handler:       streamFramesHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "segtrack.proto",
}
