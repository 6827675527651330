package gasprice

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/Ankitjha21/zksync-era/log"
	"github.com/ethereum/go-ethereum/core/types"
)

// Strategy maps a congestion signal to a priority fee multiplier. Both are
// dimensionless; a signal of 1 means no congestion. Implementations must be
// monotonic in the signal and never return less than 1.
type Strategy interface {
	Scale(congestion float64) float64
}

// BoundedLinearStrategy scales the priority fee linearly with the congestion
// signal, capped at maxScale.
type BoundedLinearStrategy struct {
	maxScale float64
}

// NewBoundedLinearStrategy creates the default scaling strategy
func NewBoundedLinearStrategy(maxScale float64) BoundedLinearStrategy {
	return BoundedLinearStrategy{maxScale: maxScale}
}

// Scale implements the Strategy interface
func (s BoundedLinearStrategy) Scale(congestion float64) float64 {
	if congestion <= 1 {
		return 1
	}
	if congestion >= s.maxScale {
		return s.maxScale
	}
	return congestion
}

// L1FeeReader is the subset of etherman used to observe base fees
type L1FeeReader interface {
	GetLatestBlockHeader(ctx context.Context) (*types.Header, error)
}

// Adjuster keeps a bounded history of observed L1 base fees and derives the
// priority fee for new and replacement transactions from it. A replacement
// fee itself is computed by the sender; the adjuster only guarantees the
// returned fee never drops below the configured default.
type Adjuster struct {
	cfg      Config
	logger   *log.Logger
	l1       L1FeeReader
	strategy Strategy

	mu      sync.RWMutex
	samples []*big.Int
	next    int
	full    bool
}

// New creates an Adjuster. A nil strategy falls back to the bounded linear
// one with the configured cap.
func New(cfg Config, logger *log.Logger, l1 L1FeeReader, strategy Strategy) (*Adjuster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strategy == nil {
		strategy = NewBoundedLinearStrategy(cfg.MaxScaleFactor)
	}

	return &Adjuster{
		cfg:      cfg,
		logger:   logger,
		l1:       l1,
		strategy: strategy,
		samples:  make([]*big.Int, cfg.MaxFeeSamples),
	}, nil
}

// Start polls the L1 base fee until the context is cancelled
func (a *Adjuster) Start(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.PollPeriod.Duration)
	defer ticker.Stop()

	a.sample(ctx)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("gas price adjuster stopped")
			return
		case <-ticker.C:
			a.sample(ctx)
		}
	}
}

func (a *Adjuster) sample(ctx context.Context) {
	header, err := a.l1.GetLatestBlockHeader(ctx)
	if err != nil {
		a.logger.Warnf("error getting latest block header: %s", err)
		return
	}
	if header == nil || header.BaseFee == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples[a.next] = new(big.Int).Set(header.BaseFee)
	a.next = (a.next + 1) % len(a.samples)
	if a.next == 0 {
		a.full = true
	}
}

// RecordBaseFee adds a base fee observation directly, bypassing the poll
// loop. Used when a fresher sample is already at hand.
func (a *Adjuster) RecordBaseFee(baseFee *big.Int) {
	if baseFee == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples[a.next] = new(big.Int).Set(baseFee)
	a.next = (a.next + 1) % len(a.samples)
	if a.next == 0 {
		a.full = true
	}
}

// PriorityFee returns the current priority fee: the configured default,
// scaled up by the congestion strategy, never below the default.
func (a *Adjuster) PriorityFee() *big.Int {
	defaultFee := new(big.Int).SetUint64(a.cfg.DefaultPriorityFeePerGas)

	congestion := a.congestion()
	scale := a.strategy.Scale(congestion)
	if scale <= 1 {
		return defaultFee
	}

	scaled, _ := new(big.Float).Mul(
		new(big.Float).SetInt(defaultFee), big.NewFloat(scale)).Int(nil)
	if scaled.Cmp(defaultFee) < 0 {
		return defaultFee
	}
	return scaled
}

// FeeCap returns the fee cap for a transaction priced with the given tip:
// twice the latest observed base fee plus the tip, so the transaction
// survives base fee growth across several blocks.
func (a *Adjuster) FeeCap(tip *big.Int) *big.Int {
	base := a.LatestBaseFee()
	feeCap := new(big.Int).Mul(base, big.NewInt(2))
	return feeCap.Add(feeCap, tip)
}

// LatestBaseFee returns the most recent base fee sample, or zero when no
// sample was taken yet
func (a *Adjuster) LatestBaseFee() *big.Int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	last := a.next - 1
	if last < 0 {
		last = len(a.samples) - 1
	}
	if a.samples[last] == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.samples[last])
}

// congestion is the ratio of the mean of the sampled window to its minimum.
// A flat fee history yields 1; a spiking one yields a value above it.
func (a *Adjuster) congestion() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	sum := new(big.Int)
	var minFee *big.Int
	count := 0
	for _, s := range a.samples {
		if s == nil {
			continue
		}
		sum.Add(sum, s)
		if minFee == nil || s.Cmp(minFee) < 0 {
			minFee = s
		}
		count++
	}
	if count == 0 || minFee.Sign() == 0 {
		return 1
	}

	mean := new(big.Float).Quo(
		new(big.Float).SetInt(sum), big.NewFloat(float64(count)))
	ratio, _ := new(big.Float).Quo(mean, new(big.Float).SetInt(minFee)).Float64()
	return ratio
}
