package proto

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	iface "SegTrackServer/interface"
	"SegTrackServer/logger"
	"SegTrackServer/monitor"
	"SegTrackServer/sessions"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

type Server struct {
	Manager *sessions.Manager

	closeOnce    sync.Once
	CloseChannel chan struct{}
}

var _ TrackServiceServer = (*Server)(nil)

func NewServer(manager *sessions.Manager) *Server {
	return &Server{Manager: manager, CloseChannel: make(chan struct{})}
}

// toStatus maps session errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sessions.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, sessions.ErrBusy):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, sessions.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, iface.ErrInvalidFrame):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func (s *Server) OpenSession(ctx context.Context, req *OpenSessionRequest) (*OpenSessionResponse, error) {
	sess, err := s.Manager.Open(req.Description)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OpenSessionResponse{
		Success: true,
		Id:      sess.ID,
		Message: "Successfully opened session",
	}, nil
}

func (s *Server) process(ctx context.Context, req *ProcessRequest) (*ProcessResponse, error) {
	if err := req.Frame.Validate(); err != nil {
		return nil, err
	}
	res, err := s.Manager.Process(ctx, req.Id, req.Frame, req.Preview)
	if err != nil {
		return nil, err
	}
	return &ProcessResponse{Success: true, Result: res}, nil
}

func (s *Server) Process(ctx context.Context, req *ProcessRequest) (*ProcessResponse, error) {
	resp, err := s.process(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

// StreamFrames answers every request in order. Busy sessions yield a
// dropped response and the stream stays open.
func (s *Server) StreamFrames(stream grpc.BidiStreamingServer[ProcessRequest, ProcessResponse]) error {
	ctx := stream.Context()
	for {
		req, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		resp, err := s.process(ctx, req)
		switch {
		case errors.Is(err, sessions.ErrBusy):
			resp = &ProcessResponse{Dropped: true, Message: err.Error()}
		case err != nil:
			return toStatus(err)
		}
		if err := stream.Send(resp); err != nil {
			return err
		}
	}
}

func (s *Server) ResetSession(ctx context.Context, req *SessionRequest) (*StatusResponse, error) {
	if err := s.Manager.Reset(req.Id); err != nil {
		return nil, toStatus(err)
	}
	return &StatusResponse{Success: true, Message: "Session reset"}, nil
}

func (s *Server) CloseSession(ctx context.Context, req *SessionRequest) (*StatusResponse, error) {
	if err := s.Manager.Release(req.Id); err != nil {
		logger.Log().Error("session not found", zap.String("ID", req.Id))
		return nil, toStatus(err)
	}
	return &StatusResponse{Success: true, Message: "Session closed successfully"}, nil
}

func (s *Server) ListSessions(ctx context.Context, req *emptypb.Empty) (*ListSessionsResponse, error) {
	return &ListSessionsResponse{
		Success:  true,
		Sessions: s.Manager.All(),
		Message:  "All sessions retrieved successfully",
	}, nil
}

// Shutdown signals CloseChannel once; the caller of StartGRPCServer owns
// the actual stop.
func (s *Server) Shutdown(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error) {
	s.closeOnce.Do(func() {
		logger.Log().Warn("shutdown requested over gRPC")
		close(s.CloseChannel)
	})
	return &emptypb.Empty{}, nil
}

func countUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	monitor.GRPCTotal.Inc()
	resp, err := handler(ctx, req)
	if err != nil {
		logger.Log().Debug("grpc call failed", zap.String("method", info.FullMethod), zap.Error(err))
	}
	return resp, err
}

func countStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	monitor.GRPCTotal.Inc()
	return handler(srv, ss)
}

// NewGRPCServer builds a grpc.Server with the track service registered.
func NewGRPCServer(srv *Server) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(countUnary),
		grpc.ChainStreamInterceptor(countStream),
	)
	RegisterTrackServiceServer(s, srv)
	return s
}

func StartGRPCServer(port int, srv *Server) (*grpc.Server, error) {
	addr := fmt.Sprintf(":%d", port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	s := NewGRPCServer(srv)
	go func() {
		logger.Log().Info("gRPC server listening", zap.String("addr", addr))
		if err := s.Serve(lis); err != nil {
			logger.Log().Error("gRPC server stopped", zap.Error(err))
		}
	}()
	return s, nil
}
