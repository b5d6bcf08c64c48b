package grpcprover

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"zkdomain/prover"
)

// Server exposes a prover.Client over the Prover gRPC service.
type Server struct {
	UnimplementedProverServer
	Client *prover.Client
}

func (s *Server) Execute(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Client == nil {
		return nil, status.Error(codes.Unavailable, "no prover configured")
	}
	w, err := decodeWitness(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed witness: "+err.Error())
	}
	pub, err := s.Client.Execute(ctx, w)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bytes(prover.EncodeOutputs(pub)), nil
}

func (s *Server) Prove(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Client == nil {
		return nil, status.Error(codes.Unavailable, "no prover configured")
	}
	w, err := decodeWitness(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed witness: "+err.Error())
	}
	proof, err := s.Client.Prove(ctx, w)
	if err != nil {
		return nil, mapErr(err)
	}
	b, err := encodeProof(proof)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode proof: "+err.Error())
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Verify(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	if s == nil || s.Client == nil {
		return nil, status.Error(codes.Unavailable, "no prover configured")
	}
	proof, err := decodeProof(in.GetValue())
	if err != nil {
		return wrapperspb.Bool(false), nil
	}
	return wrapperspb.Bool(s.Client.Verify(ctx, proof.Proof, proof.PublicOutputs)), nil
}
