package grpcprover

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"zkdomain/circuit"
	"zkdomain/commit"
	"zkdomain/internal/fixture"
	"zkdomain/prover"
	"zkdomain/witness"
	"zkdomain/zkerr"
)

const testCapacity = 128

var testProgram = sync.OnceValues(func() (*prover.Program, error) {
	logger, _ := test.NewNullLogger()
	return prover.Setup(testCapacity, fixture.Domain, logger)
})

func serve(t *testing.T, backend prover.Backend) *Client {
	logger, _ := test.NewNullLogger()
	return serveWith(t, &Server{Client: prover.NewClient(backend, prover.ClientConfig{Workers: 2}, logger)})
}

func serveWith(t *testing.T, server *Server) *Client {
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterProverServer(srv, server)

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	c := NewClient(cc)
	t.Cleanup(func() { c.Close() })
	return c
}

func exampleWitness(t *testing.T) *witness.Witness {
	return fixture.Email{Capacity: testCapacity, Context: commit.ContextKey("faculty-1", "2026")}.Witness(t)
}

func TestGRPCProver_RoundTrip(t *testing.T) {
	p, err := testProgram()
	require.NoError(t, err)
	c := serve(t, prover.Local{Program: p})
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	w := exampleWitness(t)
	pub, err := c.Execute(ctx, w)
	require.NoError(t, err)
	want, err := circuit.ComputePublic(w)
	require.NoError(t, err)
	assert.Equal(t, want, pub)

	proof, err := c.Prove(ctx, w)
	require.NoError(t, err)
	ok, err := c.Verify(ctx, proof.Proof, proof.PublicOutputs)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Verify(ctx, proof.Proof[1:], proof.PublicOutputs)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGRPCProver_CircuitRejection(t *testing.T) {
	p, err := testProgram()
	require.NoError(t, err)
	c := serve(t, prover.Local{Program: p})

	w := exampleWitness(t)
	w.Remainder[16] = 'b'
	_, err = c.Prove(context.Background(), w)
	assert.True(t, zkerr.IsKind(err, zkerr.KindExecution), "got %v", err)
}

type failingBackend struct {
	prover.Local
	err error
}

func (f failingBackend) Prove(context.Context, *witness.Witness) (*prover.Proof, error) {
	return nil, f.err
}

func TestGRPCProver_ErrorClasses(t *testing.T) {
	cases := []struct {
		err  error
		want zkerr.Kind
	}{
		{zkerr.New(zkerr.KindExecution, "unsatisfied"), zkerr.KindExecution},
		{zkerr.New(zkerr.KindAssembly, "bad layout"), zkerr.KindAssembly},
		{zkerr.New(zkerr.KindProver, "gpu lost"), zkerr.KindProver},
		{errors.New("plain failure"), zkerr.KindProver},
		{context.DeadlineExceeded, zkerr.KindProver},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			c := serve(t, failingBackend{err: tc.err})
			_, err := c.Prove(context.Background(), exampleWitness(t))
			assert.Equal(t, tc.want, zkerr.KindOf(err))
		})
	}
}

func TestGRPCProver_NoProverIsInfrastructure(t *testing.T) {
	c := serveWith(t, &Server{})
	w := exampleWitness(t)

	_, err := c.Prove(context.Background(), w)
	assert.Equal(t, zkerr.KindProver, zkerr.KindOf(err), "got %v", err)
	assert.Equal(t, zkerr.ClassInfrastructure, zkerr.ClassOf(err))

	_, err = c.Execute(context.Background(), w)
	assert.Equal(t, zkerr.ClassInfrastructure, zkerr.ClassOf(err))

	ok, err := c.Verify(context.Background(), []byte("proof"), make([]byte, prover.OutputsSize))
	assert.False(t, ok)
	assert.Equal(t, zkerr.ClassInfrastructure, zkerr.ClassOf(err))
}

func TestWitnessCodec(t *testing.T) {
	w := exampleWitness(t)
	b, err := encodeWitness(w)
	require.NoError(t, err)
	got, err := decodeWitness(b)
	require.NoError(t, err)
	require.NoError(t, got.Validate())
	assert.Equal(t, w.Remainder, got.Remainder)
	assert.Equal(t, w.Address, got.Address)
	assert.Equal(t, 0, w.KeyLimbs.Int().Cmp(got.KeyLimbs.Int()))
	assert.Equal(t, w.Context, got.Context)

	_, err = decodeWitness([]byte{0xff, 0x00})
	assert.Error(t, err)
}
