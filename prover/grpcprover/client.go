// Package grpcprover serves a prover over gRPC and implements
// prover.Backend against a remote prover.
package grpcprover

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"zkdomain/circuit"
	"zkdomain/prover"
	"zkdomain/witness"
	"zkdomain/zkerr"
)

// Client implements prover.Backend over a Prover gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client ProverClient
}

var _ prover.Backend = (*Client)(nil)

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return NewClient(cc), nil
}

// NewClient wraps an existing connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewProverClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Execute(ctx context.Context, w *witness.Witness) (circuit.Public, error) {
	in, err := encodeWitness(w)
	if err != nil {
		return circuit.Public{}, zkerr.Wrap(zkerr.KindAssembly, err, "encode witness")
	}
	reply, err := c.client.Execute(ctx, wrapperspb.Bytes(in))
	if err != nil {
		return circuit.Public{}, mapRPC(err)
	}
	pub, err := prover.DecodeOutputs(reply.GetValue())
	if err != nil {
		return circuit.Public{}, zkerr.Wrap(zkerr.KindProver, err, "malformed execute reply")
	}
	return pub, nil
}

func (c *Client) Prove(ctx context.Context, w *witness.Witness) (*prover.Proof, error) {
	in, err := encodeWitness(w)
	if err != nil {
		return nil, zkerr.Wrap(zkerr.KindAssembly, err, "encode witness")
	}
	reply, err := c.client.Prove(ctx, wrapperspb.Bytes(in))
	if err != nil {
		return nil, mapRPC(err)
	}
	proof, err := decodeProof(reply.GetValue())
	if err != nil {
		return nil, zkerr.Wrap(zkerr.KindProver, err, "malformed prove reply")
	}
	return proof, nil
}

func (c *Client) Verify(ctx context.Context, proof, publicOutputs []byte) (bool, error) {
	in, err := encodeProof(&prover.Proof{Proof: proof, PublicOutputs: publicOutputs})
	if err != nil {
		return false, err
	}
	reply, err := c.client.Verify(ctx, wrapperspb.Bytes(in))
	if err != nil {
		return false, mapRPC(err)
	}
	return reply.GetValue(), nil
}
