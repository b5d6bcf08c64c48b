// zkdomain proves that an email was DKIM-signed by a domain without
// revealing the sender, and accepts each proof once per context.
//
//	zkdomain setup  -config zkdomain.yaml
//	zkdomain prove  -config zkdomain.yaml -email msg.eml -sender a@b.edu -context portal,2026
//	zkdomain verify -config zkdomain.yaml -proof 0x.. -outputs 0x.. -context portal,2026
//	zkdomain serve  -config zkdomain.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"zkdomain/auth"
	"zkdomain/commit"
	"zkdomain/internal/config"
	"zkdomain/nullifier"
	"zkdomain/prover"
	"zkdomain/prover/grpcprover"
)

const usage = `usage: zkdomain <setup|prove|verify|serve> [flags]`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "setup":
		err = runSetup(args)
	case "prove":
		err = runProve(ctx, args)
	case "verify":
		err = runVerify(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "zkdomain: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(fs *flag.FlagSet, args []string) (*config.Config, *logrus.Logger, error) {
	path := fs.String("config", "zkdomain.yaml", "configuration file")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(*path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Logger(), nil
}

func contextKey(s string) commit.Digest {
	return commit.ContextKey(strings.Split(s, ",")...)
}

func runSetup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	cfg, logger, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	fmt.Printf("▶ Compiling circuit for %s (capacity %d) and running Groth16 setup...\n", cfg.Domain, cfg.Capacity)
	p, err := prover.Setup(cfg.Capacity, cfg.Domain, logger)
	if err != nil {
		return err
	}
	if err := p.Save(cfg.ArtifactsDir); err != nil {
		return err
	}
	fmt.Printf("  → %d constraints\n", p.NbConstraints())
	fmt.Printf("  → artifacts written to %s\n", cfg.ArtifactsDir)
	fmt.Printf("  → programID: %s\n", p.ID)
	return nil
}

// proofClient loads the local program, or dials the remote prover when one
// is configured.
func proofClient(cfg *config.Config, verifierOnly bool, logger *logrus.Logger) (*prover.Client, func(), error) {
	clientCfg := prover.ClientConfig{Workers: cfg.Prover.Workers, Timeout: cfg.Prover.Timeout}
	if cfg.Prover.Remote != "" {
		remote, err := grpcprover.Dial(cfg.Prover.Remote, grpcprover.DialOptions{})
		if err != nil {
			return nil, nil, err
		}
		return prover.NewClient(remote, clientCfg, logger), func() { remote.Close() }, nil
	}

	pin, err := cfg.Pin()
	if err != nil {
		return nil, nil, err
	}
	p, err := prover.Load(cfg.ArtifactsDir, pin, verifierOnly, logger)
	if err != nil {
		return nil, nil, err
	}
	if p.Domain != cfg.Domain || p.Capacity != cfg.Capacity {
		return nil, nil, fmt.Errorf("artifacts are for %s/%d, config wants %s/%d", p.Domain, p.Capacity, cfg.Domain, cfg.Capacity)
	}
	return prover.NewClient(prover.Local{Program: p}, clientCfg, logger), func() {}, nil
}

func runProve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("prove", flag.ExitOnError)
	emailPath := fs.String("email", "", "raw signed message (RFC 5322)")
	sender := fs.String("sender", "", "sender address to prove")
	ctxParts := fs.String("context", "", "comma separated context, e.g. portal,2026-fall")
	cfg, logger, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if *emailPath == "" || *sender == "" || *ctxParts == "" {
		return fmt.Errorf("prove needs -email, -sender and -context")
	}
	raw, err := os.ReadFile(*emailPath)
	if err != nil {
		return err
	}

	keys, err := cfg.KeyResolver()
	if err != nil {
		return err
	}
	proofs, closeFn, err := proofClient(cfg, false, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	pipeline := auth.New(auth.Config{Domain: cfg.Domain, Capacity: cfg.Capacity}, keys, proofs, nil, logger)
	fmt.Println("▶ Preparing witness and generating proof...")
	proof, err := pipeline.Authenticate(ctx, raw, *sender, contextKey(*ctxParts))
	if err != nil {
		return err
	}
	pub, err := proof.Public()
	if err != nil {
		return err
	}
	fmt.Printf("  → nullifier: %s\n", pub.Nullifier)
	fmt.Printf("proof:   %s\n", hexutil.Encode(proof.Proof))
	fmt.Printf("outputs: %s\n", hexutil.Encode(proof.PublicOutputs))
	return nil
}

func openNullifiers(cfg *config.Config, logger *logrus.Logger) (nullifier.Store, error) {
	if cfg.Nullifier.Path == "" {
		logger.Warn("nullifier store is in memory; replays are only rejected within this process")
		return nullifier.NewMemoryStore(nil), nil
	}
	return nullifier.OpenBadger(cfg.Nullifier.Path, logger)
}

func verifier(cfg *config.Config, proofs *prover.Client, store nullifier.Store, logger *logrus.Logger) (*auth.Pipeline, error) {
	svc := nullifier.NewService(store, nullifier.Config{
		TTL:     cfg.Nullifier.TTL,
		Retries: cfg.Nullifier.Retries,
		Backoff: cfg.Nullifier.Backoff,
	}, nil, logger)
	pipeline := auth.New(auth.Config{Domain: cfg.Domain, Capacity: cfg.Capacity, NullifierTTL: cfg.Nullifier.TTL}, nil, proofs, svc, logger)

	trusted, err := cfg.Trusted()
	if err != nil {
		return nil, err
	}
	if len(trusted) == 0 {
		logger.Warn("no trusted keys configured; every proof will be rejected")
	}
	for _, n := range trusted {
		if _, err := pipeline.Trust(n); err != nil {
			return nil, err
		}
	}
	return pipeline, nil
}

func runVerify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	proofHex := fs.String("proof", "", "hex encoded proof")
	outputsHex := fs.String("outputs", "", "hex encoded public outputs")
	ctxParts := fs.String("context", "", "comma separated context the proof must be for")
	cfg, logger, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	proof, err := hexutil.Decode(*proofHex)
	if err != nil {
		return fmt.Errorf("proof: %w", err)
	}
	outputs, err := hexutil.Decode(*outputsHex)
	if err != nil {
		return fmt.Errorf("outputs: %w", err)
	}

	proofs, closeFn, err := proofClient(cfg, true, logger)
	if err != nil {
		return err
	}
	defer closeFn()
	store, err := openNullifiers(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	pipeline, err := verifier(cfg, proofs, store, logger)
	if err != nil {
		return err
	}

	d := pipeline.VerifyEmailProof(ctx, proof, outputs, contextKey(*ctxParts))
	if !d.Accepted {
		fmt.Printf("  → ❌ REJECTED: %s\n", d.Reason)
		return fmt.Errorf("proof rejected")
	}
	fmt.Printf("  → ✅ ACCEPTED (nullifier %s)\n", d.Nullifier)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg, logger, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if cfg.Prover.Remote != "" {
		return fmt.Errorf("serve proves locally; unset prover.remote")
	}
	proofs, closeFn, err := proofClient(cfg, false, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	lis, err := net.Listen("tcp", cfg.Prover.Listen)
	if err != nil {
		return err
	}
	srv := grpc.NewServer()
	grpcprover.RegisterProverServer(srv, &grpcprover.Server{Client: proofs})
	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()
	logger.WithField("addr", lis.Addr().String()).Info("prover listening")
	return srv.Serve(lis)
}
