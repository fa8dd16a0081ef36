package agents

import (
	"strconv"

	"github.com/shopspring/decimal"

	sim "github.com/lensor/marketsim"
	"github.com/lensor/marketsim/protocol"
)

const meanReversionWarmup = 10

// MeanReversion trades against extreme moves: when the mid price deviates
// from its fair value by more than the threshold, it submits a limit order
// priced between the mid and the fair value, betting on reversion.
type MeanReversion struct {
	handle    *sim.AgentHandle
	symbol    string
	fairValue decimal.Decimal
	threshold decimal.Decimal
	orderSize decimal.Decimal

	observed    int
	lastMid     decimal.Decimal
	position    int64
	maxPosition int64
	tagSeq      uint64
}

// NewMeanReversion creates a mean-reversion trader for one symbol.
// fairValue anchors the reversion target.
func NewMeanReversion(symbol string, fairValue, threshold, orderSize decimal.Decimal) *MeanReversion {
	return &MeanReversion{
		symbol:      symbol,
		fairValue:   fairValue,
		threshold:   threshold,
		orderSize:   orderSize,
		maxPosition: 100,
	}
}

func (a *MeanReversion) OnRegister(h *sim.AgentHandle) {
	a.handle = h
	h.Subscribe(protocol.PriceTopic(a.symbol))
}

func (a *MeanReversion) OnWakeup(now sim.Time) error {
	return nil
}

func (a *MeanReversion) OnMessage(msg *sim.Message, now sim.Time) error {
	switch p := msg.Payload.(type) {
	case *protocol.MarketData:
		if !p.BestBid.IsPositive() || !p.BestAsk.IsPositive() {
			return nil
		}
		a.lastMid = p.BestBid.Add(p.BestAsk).Div(two)
		a.observed++
		if a.observed < meanReversionWarmup {
			return nil
		}
		return a.checkSignal(now)
	case *protocol.Trade:
		a.applyTrade(p)
	}
	return nil
}

func (a *MeanReversion) checkSignal(now sim.Time) error {
	deviation := a.lastMid.Sub(a.fairValue)

	if deviation.LessThan(a.threshold.Neg()) && a.position < a.maxPosition {
		return a.placeOrder(protocol.Buy, now)
	}
	if deviation.GreaterThan(a.threshold) && a.position > -a.maxPosition {
		return a.placeOrder(protocol.Sell, now)
	}
	return nil
}

// placeOrder submits a limit order halfway between the mid and the fair
// value, on the reverting side.
func (a *MeanReversion) placeOrder(side protocol.Side, now sim.Time) error {
	price := a.lastMid.Add(a.fairValue).Div(two)
	if !price.IsPositive() {
		return nil
	}

	a.tagSeq++
	return a.handle.Publish(protocol.OrdersTopic(a.symbol), &protocol.SubmitOrder{
		Symbol:    a.symbol,
		Side:      side,
		Type:      protocol.OrderTypeLimit,
		Price:     price,
		Quantity:  a.orderSize,
		ClientTag: a.handle.Name() + "-" + strconv.FormatUint(a.tagSeq, 10),
	}, now)
}

func (a *MeanReversion) applyTrade(t *protocol.Trade) {
	me := a.handle.ID()
	qty := t.Quantity.IntPart()

	if t.MakerAgent == me {
		if t.TakerSide == protocol.Buy {
			a.position -= qty
		} else {
			a.position += qty
		}
	}
	if t.TakerAgent == me {
		if t.TakerSide == protocol.Buy {
			a.position += qty
		} else {
			a.position -= qty
		}
	}
}

// Position returns the current signed position.
func (a *MeanReversion) Position() int64 {
	return a.position
}
