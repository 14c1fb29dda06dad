// Package venue simulates competing DEX liquidity sources. Quotes are a
// pure function of the pair, amount and the injected random source, so
// tests can pin venue selection and execution outcomes deterministically.
package venue

import (
	"context"
	"encoding/hex"
	"math/rand"
	"sync"
	"time"

	"swaprouter/internal/model"
)

// Venue is one simulated liquidity source offering a price and fee.
type Venue struct {
	Name    string
	FeeRate float64 // taken off the estimated output, e.g. 0.003
	Jitter  float64 // max relative price deviation around the reference rate
}

// DefaultVenues is the fixed candidate set quoted for every pair.
func DefaultVenues() []Venue {
	return []Venue{
		{Name: "raydium", FeeRate: 0.003, Jitter: 0.02},
		{Name: "meteora", FeeRate: 0.003, Jitter: 0.025},
	}
}

// DefaultRates holds the reference unit prices per pair. Pairs quoted in
// the opposite direction use the inverse; unknown pairs fall back to 1.
func DefaultRates() map[string]float64 {
	return map[string]float64{
		"SOL/USDC": 150.0,
		"SOL/USDT": 149.8,
		"JUP/USDC": 0.85,
		"BONK/SOL": 0.00000014,
	}
}

// Config configures a Simulator. A zero Seed seeds from the clock.
// Zero latencies disable the simulated waits (used by tests).
type Config struct {
	Venues       []Venue
	Rates        map[string]float64
	QuoteLatency time.Duration
	ExecLatency  time.Duration
	Seed         int64
}

// Simulator produces competing-venue quotes and simulated fills. Safe
// for concurrent use by multiple worker slots.
type Simulator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	venues  []Venue
	rates   map[string]float64
	quoteLa time.Duration
	execLa  time.Duration
}

// New creates a Simulator from cfg, filling in the default venue set and
// reference rates where unset.
func New(cfg Config) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	venues := cfg.Venues
	if len(venues) == 0 {
		venues = DefaultVenues()
	}
	rates := cfg.Rates
	if rates == nil {
		rates = DefaultRates()
	}
	return &Simulator{
		rng:     rand.New(rand.NewSource(seed)),
		venues:  venues,
		rates:   rates,
		quoteLa: cfg.QuoteLatency,
		execLa:  cfg.ExecLatency,
	}
}

// Quote compares the candidate venues for the pair and returns the one
// whose estimated output, net of fee, is highest. Completes after the
// configured simulated round-trip. The error return is reserved for a
// real venue adapter; the simulated call cannot fail.
func (s *Simulator) Quote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) (model.Quote, error) {
	if err := wait(ctx, s.quoteLa); err != nil {
		return model.Quote{}, err
	}

	ref := s.referenceRate(tokenIn, tokenOut)

	var best model.Quote
	for _, v := range s.venues {
		price := ref * (1 + v.Jitter*(2*s.randFloat()-1))
		est := amountIn * price * (1 - v.FeeRate)
		if est > best.EstimatedOutput {
			best = model.Quote{
				Dex:             v.Name,
				Price:           price,
				FeeRate:         v.FeeRate,
				EstimatedOutput: est,
			}
		}
	}
	return best, nil
}

// Execute fills the order against the supplied quote. The executed price
// is exactly the quoted price (no further movement is modelled) and the
// transaction reference is synthesized. Completes after the configured
// execution latency. No side effects beyond the return value.
func (s *Simulator) Execute(ctx context.Context, q model.Quote, tokenIn, tokenOut string, amountIn float64) (model.ExecutionResult, error) {
	if err := wait(ctx, s.execLa); err != nil {
		return model.ExecutionResult{}, err
	}

	return model.ExecutionResult{
		Dex:           q.Dex,
		ExecutedPrice: q.Price,
		AmountOut:     q.EstimatedOutput,
		TxHash:        s.txReference(),
	}, nil
}

// referenceRate looks up the pair rate, falling back to the inverse pair
// and finally to parity.
func (s *Simulator) referenceRate(tokenIn, tokenOut string) float64 {
	if r, ok := s.rates[tokenIn+"/"+tokenOut]; ok {
		return r
	}
	if r, ok := s.rates[tokenOut+"/"+tokenIn]; ok && r > 0 {
		return 1 / r
	}
	return 1.0
}

func (s *Simulator) randFloat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// txReference synthesizes a 64-hex-char transaction reference from the
// injected random source.
func (s *Simulator) txReference() string {
	buf := make([]byte, 32)
	s.mu.Lock()
	s.rng.Read(buf)
	s.mu.Unlock()
	return hex.EncodeToString(buf)
}

// wait sleeps for d unless ctx ends first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
