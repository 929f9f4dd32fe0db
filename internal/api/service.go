package api

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// gRPC plumbing for the predictor service. The ServiceDesc is written
// by hand against a JSON codec so the wire types above can be reused
// without stub generation.

// #region codec
// jsonCodec carries gRPC payloads as JSON instead of protobuf.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// #endregion codec

// #region service
// PredictorServer is the upward predictor contract as served to an
// external decoder process.
type PredictorServer interface {
	Initialize(context.Context, *InitializeRequest) (*InitializeResponse, error)
	PredictNext(context.Context, *PredictNextRequest) (*PredictNextResponse, error)
	Consume(context.Context, *ConsumeRequest) (*ConsumeResponse, error)
	GetState(context.Context, *GetStateRequest) (*GetStateResponse, error)
	SetState(context.Context, *SetStateRequest) (*SetStateResponse, error)
	IsEqual(context.Context, *IsEqualRequest) (*IsEqualResponse, error)
	UnkScore(context.Context, *UnkScoreRequest) (*UnkScoreResponse, error)
	EstimateFutureCost(context.Context, *EstimateRequest) (*EstimateResponse, error)
}

func unaryHandler[Req any, Resp any](method string, call func(PredictorServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PredictorServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/latpred.Predictor/" + method}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(PredictorServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var predictorServiceDesc = grpc.ServiceDesc{
	ServiceName: "latpred.Predictor",
	HandlerType: (*PredictorServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Initialize", func(s PredictorServer, ctx context.Context, r *InitializeRequest) (*InitializeResponse, error) {
			return s.Initialize(ctx, r)
		}),
		unaryHandler("PredictNext", func(s PredictorServer, ctx context.Context, r *PredictNextRequest) (*PredictNextResponse, error) {
			return s.PredictNext(ctx, r)
		}),
		unaryHandler("Consume", func(s PredictorServer, ctx context.Context, r *ConsumeRequest) (*ConsumeResponse, error) {
			return s.Consume(ctx, r)
		}),
		unaryHandler("GetState", func(s PredictorServer, ctx context.Context, r *GetStateRequest) (*GetStateResponse, error) {
			return s.GetState(ctx, r)
		}),
		unaryHandler("SetState", func(s PredictorServer, ctx context.Context, r *SetStateRequest) (*SetStateResponse, error) {
			return s.SetState(ctx, r)
		}),
		unaryHandler("IsEqual", func(s PredictorServer, ctx context.Context, r *IsEqualRequest) (*IsEqualResponse, error) {
			return s.IsEqual(ctx, r)
		}),
		unaryHandler("UnkScore", func(s PredictorServer, ctx context.Context, r *UnkScoreRequest) (*UnkScoreResponse, error) {
			return s.UnkScore(ctx, r)
		}),
		unaryHandler("EstimateFutureCost", func(s PredictorServer, ctx context.Context, r *EstimateRequest) (*EstimateResponse, error) {
			return s.EstimateFutureCost(ctx, r)
		}),
	},
	Metadata: "internal/api/predictor service (json codec)",
}

// RegisterPredictorServer registers the service on a gRPC server.
func RegisterPredictorServer(s *grpc.Server, srv PredictorServer) {
	s.RegisterService(&predictorServiceDesc, srv)
}

// #endregion service
