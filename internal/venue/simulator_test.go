package venue

import (
	"context"
	"math"
	"testing"
	"time"
)

func newTestSim(seed int64) *Simulator {
	return New(Config{Seed: seed}) // zero latencies, default venues and rates
}

func TestQuote_Deterministic(t *testing.T) {
	a := newTestSim(42)
	b := newTestSim(42)

	qa, err := a.Quote(context.Background(), "SOL", "USDC", 10)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	qb, err := b.Quote(context.Background(), "SOL", "USDC", 10)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	if qa != qb {
		t.Errorf("same seed gave different quotes: %+v vs %+v", qa, qb)
	}
}

func TestQuote_NetOutputRelation(t *testing.T) {
	sim := newTestSim(7)

	amountIn := 100.0
	q, err := sim.Quote(context.Background(), "SOL", "USDC", amountIn)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	want := amountIn * q.Price * (1 - q.FeeRate)
	if math.Abs(q.EstimatedOutput-want) > 1e-9 {
		t.Errorf("EstimatedOutput = %v, want amountIn*price*(1-fee) = %v", q.EstimatedOutput, want)
	}
	if q.Dex != "raydium" && q.Dex != "meteora" {
		t.Errorf("selected unknown venue %q", q.Dex)
	}
}

func TestQuote_SelectsBestVenue(t *testing.T) {
	// One venue with no jitter and zero fee always beats one with a
	// punishing fee: selection must be by net estimated output.
	sim := New(Config{
		Seed: 1,
		Venues: []Venue{
			{Name: "cheap", FeeRate: 0, Jitter: 0},
			{Name: "expensive", FeeRate: 0.5, Jitter: 0},
		},
		Rates: map[string]float64{"SOL/USDC": 150},
	})

	q, err := sim.Quote(context.Background(), "SOL", "USDC", 2)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Dex != "cheap" {
		t.Errorf("selected %q, want cheap", q.Dex)
	}
	if math.Abs(q.EstimatedOutput-300) > 1e-9 {
		t.Errorf("EstimatedOutput = %v, want 300", q.EstimatedOutput)
	}
}

func TestQuote_PriceWithinJitterBand(t *testing.T) {
	sim := newTestSim(99)

	for i := 0; i < 50; i++ {
		q, err := sim.Quote(context.Background(), "SOL", "USDC", 1)
		if err != nil {
			t.Fatalf("Quote: %v", err)
		}
		// widest jitter in the default set is 2.5%
		if q.Price < 150*0.975 || q.Price > 150*1.025 {
			t.Fatalf("price %v outside jitter band around 150", q.Price)
		}
	}
}

func TestQuote_InversePairFallback(t *testing.T) {
	sim := newTestSim(3)

	q, err := sim.Quote(context.Background(), "USDC", "SOL", 150)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	// reference is 1/150; with <=2.5% jitter and 0.3% fee the output
	// for 150 USDC stays near 1 SOL
	if q.EstimatedOutput < 0.9 || q.EstimatedOutput > 1.1 {
		t.Errorf("inverse-pair output = %v, want ~1", q.EstimatedOutput)
	}
}

func TestQuote_UnknownPairParity(t *testing.T) {
	sim := New(Config{
		Seed:   5,
		Venues: []Venue{{Name: "flat", FeeRate: 0, Jitter: 0}},
		Rates:  map[string]float64{},
	})

	q, err := sim.Quote(context.Background(), "FOO", "BAR", 12)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if math.Abs(q.EstimatedOutput-12) > 1e-9 {
		t.Errorf("unknown pair output = %v, want parity 12", q.EstimatedOutput)
	}
}

func TestExecute_FillsAtQuotedPrice(t *testing.T) {
	sim := newTestSim(11)

	q, err := sim.Quote(context.Background(), "SOL", "USDC", 5)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	res, err := sim.Execute(context.Background(), q, "SOL", "USDC", 5)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if res.Dex != q.Dex {
		t.Errorf("Dex = %q, want %q", res.Dex, q.Dex)
	}
	if res.ExecutedPrice != q.Price {
		t.Errorf("ExecutedPrice = %v, want quoted %v", res.ExecutedPrice, q.Price)
	}
	if res.AmountOut != q.EstimatedOutput {
		t.Errorf("AmountOut = %v, want estimated %v", res.AmountOut, q.EstimatedOutput)
	}
	if len(res.TxHash) != 64 {
		t.Errorf("TxHash length = %d, want 64 hex chars", len(res.TxHash))
	}
}

func TestExecute_UniqueTxReferences(t *testing.T) {
	sim := newTestSim(21)
	q, _ := sim.Quote(context.Background(), "SOL", "USDC", 1)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		res, err := sim.Execute(context.Background(), q, "SOL", "USDC", 1)
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if seen[res.TxHash] {
			t.Fatalf("duplicate tx reference %s", res.TxHash)
		}
		seen[res.TxHash] = true
	}
}

func TestQuote_CancelledContext(t *testing.T) {
	sim := New(Config{Seed: 1, QuoteLatency: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := sim.Quote(ctx, "SOL", "USDC", 1)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("cancelled quote should return immediately")
	}
}

func TestSimulator_ConcurrentUse(t *testing.T) {
	sim := newTestSim(8)

	done := make(chan error, 16)
	for i := 0; i < 16; i++ {
		go func() {
			q, err := sim.Quote(context.Background(), "SOL", "USDC", 3)
			if err != nil {
				done <- err
				return
			}
			_, err = sim.Execute(context.Background(), q, "SOL", "USDC", 3)
			done <- err
		}()
	}
	for i := 0; i < 16; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent call: %v", err)
		}
	}
}
