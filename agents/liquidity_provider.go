package agents

import (
	"math/rand"
	"strconv"

	"github.com/shopspring/decimal"

	sim "github.com/lensor/marketsim"
	"github.com/lensor/marketsim/protocol"
)

// LiquidityProvider seeds and replenishes the book with randomized ladder
// quotes around a base price: levels bids below it and levels asks above it,
// with jittered offsets and sizes. All randomness comes from a caller-seeded
// source, so replays are identical.
type LiquidityProvider struct {
	handle    *sim.AgentHandle
	symbol    string
	basePrice decimal.Decimal
	tick      decimal.Decimal
	levels    int
	maxSize   int64
	interval  sim.Time
	rng       *rand.Rand
	tagSeq    uint64
}

// NewLiquidityProvider creates a liquidity provider for one symbol. tick is
// the price distance between ladder levels, maxSize the largest quote size,
// and seed drives the jitter.
func NewLiquidityProvider(symbol string, basePrice, tick decimal.Decimal, levels int, maxSize int64, interval sim.Time, seed int64) *LiquidityProvider {
	return &LiquidityProvider{
		symbol:    symbol,
		basePrice: basePrice,
		tick:      tick,
		levels:    levels,
		maxSize:   maxSize,
		interval:  interval,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

func (a *LiquidityProvider) OnRegister(h *sim.AgentHandle) {
	a.handle = h
	h.Subscribe(protocol.PriceTopic(a.symbol))
	_ = h.ScheduleWakeup(h.Now())
}

// OnWakeup lays a fresh ladder on both sides and reschedules.
func (a *LiquidityProvider) OnWakeup(now sim.Time) error {
	for i := 1; i <= a.levels; i++ {
		step := a.tick.Mul(decimal.NewFromInt(int64(i)))
		jitter := a.tick.Mul(decimal.NewFromInt(a.rng.Int63n(100))).Div(decimal.NewFromInt(100))

		bid := a.basePrice.Sub(step).Sub(jitter)
		ask := a.basePrice.Add(step).Add(jitter)

		if bid.IsPositive() {
			if err := a.submit(protocol.Buy, bid, now); err != nil {
				return err
			}
		}
		if err := a.submit(protocol.Sell, ask, now); err != nil {
			return err
		}
	}

	if a.interval > 0 {
		return a.handle.ScheduleWakeup(now + a.interval)
	}
	return nil
}

func (a *LiquidityProvider) submit(side protocol.Side, price decimal.Decimal, now sim.Time) error {
	size := decimal.NewFromInt(1 + a.rng.Int63n(a.maxSize))

	a.tagSeq++
	return a.handle.Publish(protocol.OrdersTopic(a.symbol), &protocol.SubmitOrder{
		Symbol:    a.symbol,
		Side:      side,
		Type:      protocol.OrderTypeLimit,
		Price:     price,
		Quantity:  size,
		ClientTag: a.handle.Name() + "-" + strconv.FormatUint(a.tagSeq, 10),
	}, now)
}

func (a *LiquidityProvider) OnMessage(msg *sim.Message, now sim.Time) error {
	// Fills and replies land on the inbox; the provider keeps quoting the
	// same ladder regardless.
	return nil
}
