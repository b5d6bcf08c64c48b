package grpcprover

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"zkdomain/zkerr"
)

// mapErr turns a pipeline error into a status the client can classify again.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	switch zkerr.ClassOf(err) {
	case zkerr.ClassCircuitExecution:
		return status.Error(codes.FailedPrecondition, err.Error())
	case zkerr.ClassInput, zkerr.ClassComputation, zkerr.ClassCapacity:
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}

// mapRPC is the inverse of mapErr. Anything it cannot place is a prover
// failure.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return zkerr.Wrap(zkerr.KindProver, err, "prover rpc failed")
	}
	switch st.Code() {
	case codes.FailedPrecondition:
		return zkerr.New(zkerr.KindExecution, "%s", st.Message())
	case codes.InvalidArgument:
		return zkerr.New(zkerr.KindAssembly, "%s", st.Message())
	default:
		return zkerr.Wrap(zkerr.KindProver, err, "prover rpc failed")
	}
}
