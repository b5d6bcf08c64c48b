package prover

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkdomain/circuit"
	"zkdomain/commit"
	"zkdomain/internal/fixture"
	"zkdomain/witness"
	"zkdomain/zkerr"
)

const testCapacity = 128

var testProgram = sync.OnceValues(func() (*Program, error) {
	logger, _ := test.NewNullLogger()
	return Setup(testCapacity, fixture.Domain, logger)
})

func program(t testing.TB) *Program {
	p, err := testProgram()
	require.NoError(t, err)
	return p
}

func exampleWitness(t testing.TB, signature int64) *witness.Witness {
	return fixture.Email{
		Capacity:  testCapacity,
		Signature: signature,
		Context:   commit.ContextKey("faculty-1", "2026"),
	}.Witness(t)
}

func TestProveVerify(t *testing.T) {
	p := program(t)
	w := exampleWitness(t, 1)

	proof, err := p.Prove(w)
	require.NoError(t, err)
	assert.Len(t, proof.PublicOutputs, OutputsSize)
	assert.True(t, p.Verify(proof.Proof, proof.PublicOutputs))

	pub, err := proof.Public()
	require.NoError(t, err)
	want, err := circuit.ComputePublic(w)
	require.NoError(t, err)
	assert.Equal(t, want, pub)
}

func TestVerify_RejectsOtherOutputs(t *testing.T) {
	p := program(t)
	proof, err := p.Prove(exampleWitness(t, 1))
	require.NoError(t, err)

	other, err := p.Prove(exampleWitness(t, 2))
	require.NoError(t, err)
	assert.False(t, p.Verify(proof.Proof, other.PublicOutputs))

	assert.False(t, p.Verify([]byte("not a proof"), proof.PublicOutputs))
	assert.False(t, p.Verify(proof.Proof, proof.PublicOutputs[:OutputsSize-1]))
}

func TestExecute_CircuitRejection(t *testing.T) {
	p := program(t)
	w := exampleWitness(t, 1)
	w.Remainder[16] = 'b' // student@exbmple.edu

	_, err := p.Execute(w)
	assert.True(t, zkerr.IsKind(err, zkerr.KindExecution))
	assert.Equal(t, zkerr.ClassCircuitExecution, zkerr.ClassOf(err))

	_, err = p.Prove(w)
	assert.True(t, zkerr.IsKind(err, zkerr.KindExecution))
}

func TestExecute_CapacityMismatch(t *testing.T) {
	p := program(t)
	w := fixture.Email{Capacity: 256}.Witness(t)
	_, err := p.Execute(w)
	assert.True(t, zkerr.IsKind(err, zkerr.KindAssembly))
}

func TestSaveLoad(t *testing.T) {
	p := program(t)
	dir := t.TempDir()
	require.NoError(t, p.Save(dir))

	loaded, err := Load(dir, p.ID, false, nil)
	require.NoError(t, err)
	assert.Equal(t, p.ID, loaded.ID)
	assert.Equal(t, testCapacity, loaded.Capacity)
	assert.Equal(t, fixture.Domain, loaded.Domain)

	proof, err := loaded.Prove(exampleWitness(t, 3))
	require.NoError(t, err)
	assert.True(t, p.Verify(proof.Proof, proof.PublicOutputs))

	verifier, err := Load(dir, cid.Undef, true, nil)
	require.NoError(t, err)
	assert.False(t, verifier.CanProve())
	assert.True(t, verifier.Verify(proof.Proof, proof.PublicOutputs))
	_, err = verifier.Prove(exampleWitness(t, 3))
	assert.True(t, zkerr.IsKind(err, zkerr.KindProver))
}

func TestLoad_PinMismatch(t *testing.T) {
	p := program(t)
	dir := t.TempDir()
	require.NoError(t, p.Save(dir))

	sum, err := multihash.Sum([]byte("another program"), multihash.SHA2_256, -1)
	require.NoError(t, err)
	_, err = Load(dir, cid.NewCidV1(cid.Raw, sum), true, nil)
	assert.ErrorContains(t, err, "does not match pinned program")
}

func TestOutputs(t *testing.T) {
	pub := circuit.Public{
		KeyCommitment: commit.ContextKey("k"),
		Nullifier:     commit.ContextKey("n"),
		ContextKey:    commit.ContextKey("c"),
	}
	enc := EncodeOutputs(pub)
	require.Len(t, enc, 96)
	assert.Equal(t, pub.Nullifier[:], enc[32:64])

	got, err := DecodeOutputs(enc)
	require.NoError(t, err)
	assert.Equal(t, pub, got)

	bad := append([]byte(nil), enc...)
	for i := 0; i < 32; i++ {
		bad[i] = 0xff
	}
	_, err = DecodeOutputs(bad)
	assert.Error(t, err)
}

type blockingBackend struct {
	Local
	release chan struct{}
	mu      sync.Mutex
	active  int
	peak    int
}

func (b *blockingBackend) Prove(ctx context.Context, w *witness.Witness) (*Proof, error) {
	b.mu.Lock()
	b.active++
	if b.active > b.peak {
		b.peak = b.active
	}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.active--
		b.mu.Unlock()
	}()
	select {
	case <-b.release:
		return &Proof{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestClient_BoundedWorkers(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	logger, _ := test.NewNullLogger()
	c := NewClient(backend, ClientConfig{Workers: 2}, logger)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Prove(context.Background(), nil)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(backend.release)
	wg.Wait()
	assert.LessOrEqual(t, backend.peak, 2)
}

func TestClient_TimeoutIsProverError(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	logger, hook := test.NewNullLogger()
	c := NewClient(backend, ClientConfig{Workers: 1, Timeout: 20 * time.Millisecond}, logger)

	_, err := c.Prove(context.Background(), nil)
	assert.True(t, zkerr.IsKind(err, zkerr.KindProver))
	assert.Equal(t, zkerr.ClassInfrastructure, zkerr.ClassOf(err))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestClient_LocalRoundTrip(t *testing.T) {
	c := NewClient(Local{Program: program(t)}, ClientConfig{Workers: 2, Timeout: time.Minute}, nil)
	proof, err := c.Prove(context.Background(), exampleWitness(t, 4))
	require.NoError(t, err)
	assert.True(t, c.Verify(context.Background(), proof.Proof, proof.PublicOutputs))
}

// uninterruptibleBackend proves with the real program and ignores ctx, the
// way groth16 does once started.
type uninterruptibleBackend struct {
	Local
	mu     sync.Mutex
	active int
	peak   int
}

func (b *uninterruptibleBackend) Prove(_ context.Context, w *witness.Witness) (*Proof, error) {
	b.mu.Lock()
	b.active++
	b.peak = max(b.peak, b.active)
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.active--
		b.mu.Unlock()
	}()
	return b.Program.Prove(w)
}

func (b *uninterruptibleBackend) running() (active, peak int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active, b.peak
}

func TestClient_TimeoutsKeepWorkerBound(t *testing.T) {
	backend := &uninterruptibleBackend{Local: Local{Program: program(t)}}
	logger, _ := test.NewNullLogger()
	c := NewClient(backend, ClientConfig{Workers: 1, Timeout: time.Millisecond}, logger)
	w := exampleWitness(t, 4)

	for i := 0; i < 8; i++ {
		_, err := c.Prove(context.Background(), w)
		assert.True(t, zkerr.IsKind(err, zkerr.KindProver), "call %d: %v", i, err)
	}
	assert.Eventually(t, func() bool {
		active, _ := backend.running()
		return active == 0
	}, time.Minute, 10*time.Millisecond)

	_, peak := backend.running()
	assert.Equal(t, 1, peak, "abandoned proofs must keep their worker")
}
