package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nemanja-m/gomar/internal/queue"
	"github.com/nemanja-m/gomar/internal/shared/logging"
)

const (
	serviceName = "gomar.queue.v1.Broker"

	methodPublish = "/" + serviceName + "/Publish"
	methodConsume = "/" + serviceName + "/Consume"
	methodAck     = "/" + serviceName + "/Ack"
	methodExtend  = "/" + serviceName + "/Extend"
	methodPurge   = "/" + serviceName + "/Purge"
	methodMark    = "/" + serviceName + "/Mark"
	methodMarked  = "/" + serviceName + "/Marked"

	DefaultMaxPollWait = 20 * time.Second
)

// brokerServer is the server side of the broker service.
type brokerServer interface {
	Publish(ctx context.Context, req *publishRequest) (*empty, error)
	Consume(ctx context.Context, req *consumeRequest) (*consumeResponse, error)
	Ack(ctx context.Context, req *ackRequest) (*empty, error)
	Extend(ctx context.Context, req *ackRequest) (*empty, error)
	Purge(ctx context.Context, req *purgeRequest) (*empty, error)
	Mark(ctx context.Context, req *markRequest) (*empty, error)
	Marked(ctx context.Context, req *markRequest) (*markedResponse, error)
}

var brokerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*brokerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: unaryHandler(methodPublish, brokerServer.Publish)},
		{MethodName: "Consume", Handler: unaryHandler(methodConsume, brokerServer.Consume)},
		{MethodName: "Ack", Handler: unaryHandler(methodAck, brokerServer.Ack)},
		{MethodName: "Extend", Handler: unaryHandler(methodExtend, brokerServer.Extend)},
		{MethodName: "Purge", Handler: unaryHandler(methodPurge, brokerServer.Purge)},
		{MethodName: "Mark", Handler: unaryHandler(methodMark, brokerServer.Mark)},
		{MethodName: "Marked", Handler: unaryHandler(methodMarked, brokerServer.Marked)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gomar/queue/v1/broker.proto",
}

// unaryHandler builds the method handler grpc-go expects for one broker
// method.
func unaryHandler[Req any, Resp any, PReq interface {
	*Req
	wireMessage
}](
	fullMethod string,
	call func(brokerServer, context.Context, PReq) (Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(brokerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(brokerServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// brokerService serves a MemoryBroker over gRPC.
type brokerService struct {
	broker      *queue.MemoryBroker
	maxPollWait time.Duration
	logger      logging.Logger
}

func newBrokerService(broker *queue.MemoryBroker, maxPollWait time.Duration, logger logging.Logger) *brokerService {
	if maxPollWait <= 0 {
		maxPollWait = DefaultMaxPollWait
	}
	return &brokerService{
		broker:      broker,
		maxPollWait: maxPollWait,
		logger:      logger,
	}
}

func (s *brokerService) Publish(ctx context.Context, req *publishRequest) (*empty, error) {
	if req.Topic == "" {
		return nil, status.Error(codes.InvalidArgument, "topic is required")
	}
	if err := s.broker.Publish(ctx, req.Topic, req.Payload); err != nil {
		return nil, toStatus(err)
	}
	s.logger.Debug("Message published", "topic", req.Topic, "bytes", len(req.Payload))
	return &empty{}, nil
}

// Consume long-polls for at most the requested wait, capped by
// maxPollWait. An empty response means nothing arrived in time.
func (s *brokerService) Consume(ctx context.Context, req *consumeRequest) (*consumeResponse, error) {
	if req.Topic == "" {
		return nil, status.Error(codes.InvalidArgument, "topic is required")
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 || wait > s.maxPollWait {
		wait = s.maxPollWait
	}

	pollCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	d, err := s.broker.Consume(pollCtx, req.Topic)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return &consumeResponse{Found: false}, nil
		}
		return nil, toStatus(err)
	}

	s.logger.Debug("Message leased", "topic", req.Topic, "deliveries", d.Deliveries)
	return &consumeResponse{
		Found:      true,
		Handle:     d.Handle,
		Payload:    d.Payload,
		Deliveries: uint64(d.Deliveries),
	}, nil
}

func (s *brokerService) Ack(ctx context.Context, req *ackRequest) (*empty, error) {
	if err := s.broker.Ack(ctx, req.Handle); err != nil {
		return nil, toStatus(err)
	}
	return &empty{}, nil
}

func (s *brokerService) Extend(ctx context.Context, req *ackRequest) (*empty, error) {
	if err := s.broker.Extend(ctx, req.Handle); err != nil {
		return nil, toStatus(err)
	}
	return &empty{}, nil
}

func (s *brokerService) Purge(ctx context.Context, req *purgeRequest) (*empty, error) {
	if req.Topic == "" {
		return nil, status.Error(codes.InvalidArgument, "topic is required")
	}
	if err := s.broker.Purge(ctx, req.Topic); err != nil {
		return nil, toStatus(err)
	}
	return &empty{}, nil
}

func (s *brokerService) Mark(ctx context.Context, req *markRequest) (*empty, error) {
	if req.Key == "" {
		return nil, status.Error(codes.InvalidArgument, "key is required")
	}
	if err := s.broker.Mark(ctx, req.Key); err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info("Marker set", "key", req.Key)
	return &empty{}, nil
}

func (s *brokerService) Marked(ctx context.Context, req *markRequest) (*markedResponse, error) {
	marked, err := s.broker.Marked(ctx, req.Key)
	if err != nil {
		return nil, toStatus(err)
	}
	return &markedResponse{Marked: marked}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, queue.ErrUnknownHandle):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, queue.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
