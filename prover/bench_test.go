package prover

import (
	"flag"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"zkdomain/circuit"
	"zkdomain/commit"
	"zkdomain/internal/fixture"
)

// --capacity flag to pick one remainder size. Usage: go test -bench . -capacity 2560
var capacityFlag = flag.Int("capacity", 0, "Run benchmarks for a single remainder capacity, or 0 for all.")

func logAvg(b *testing.B, total time.Duration) {
	avg := total / time.Duration(b.N)
	b.Logf("-> Avg. time per op: %s (ran %d iterations in %s)", avg.Round(time.Millisecond), b.N, total.Round(time.Millisecond))
}

func BenchmarkProgram(b *testing.B) {
	for _, capacity := range []int{128, 512, 2560} {
		if *capacityFlag != 0 && *capacityFlag != capacity {
			continue
		}
		b.Run(fmt.Sprintf("capacity=%d", capacity), func(b *testing.B) {
			logger, _ := test.NewNullLogger()

			var p *Program
			b.Run("Setup", func(b *testing.B) {
				b.ReportAllocs()
				start := time.Now()
				for i := 0; i < b.N; i++ {
					var err error
					if p, err = Setup(capacity, fixture.Domain, logger); err != nil {
						b.Fatalf("setup failed: %v", err)
					}
				}
				b.StopTimer()
				logAvg(b, time.Since(start))
				b.Logf("-> %d constraints", p.NbConstraints())
			})

			w := fixture.Email{
				Header:   fixture.PaddedHeader(capacity),
				Capacity: capacity,
				Context:  commit.ContextKey("bench"),
			}.Witness(b)

			b.Run("Assign", func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, _, err := circuit.Assign(w); err != nil {
						b.Fatal(err)
					}
				}
			})

			var proof *Proof
			b.Run("Prove", func(b *testing.B) {
				b.ReportAllocs()
				b.ResetTimer()
				start := time.Now()
				for i := 0; i < b.N; i++ {
					var err error
					if proof, err = p.Prove(w); err != nil {
						b.Fatal(err)
					}
				}
				b.StopTimer()
				logAvg(b, time.Since(start))
			})

			b.Run("Verify", func(b *testing.B) {
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if !p.Verify(proof.Proof, proof.PublicOutputs) {
						b.Fatal("proof did not verify")
					}
				}
			})
		})
	}
}
