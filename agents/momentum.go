package agents

import (
	"strconv"

	"github.com/shopspring/decimal"

	sim "github.com/lensor/marketsim"
	"github.com/lensor/marketsim/protocol"
)

const (
	momentumHistory = 10
	momentumWindow  = 5
)

// Momentum follows price trends: when the mid price has moved more than the
// threshold over the recent window, it joins the move with a marketable
// limit order. Purely reactive; it never schedules wakeups.
type Momentum struct {
	handle    *sim.AgentHandle
	symbol    string
	threshold decimal.Decimal // minimum mid move over the window to act on
	offset    decimal.Decimal // how far through the mid to price the order
	orderSize decimal.Decimal

	history     []decimal.Decimal // recent mids, oldest first
	position    int64
	maxPosition int64
	tagSeq      uint64
}

// NewMomentum creates a momentum trader for one symbol.
func NewMomentum(symbol string, threshold, offset, orderSize decimal.Decimal) *Momentum {
	return &Momentum{
		symbol:      symbol,
		threshold:   threshold,
		offset:      offset,
		orderSize:   orderSize,
		maxPosition: 100,
	}
}

func (a *Momentum) OnRegister(h *sim.AgentHandle) {
	a.handle = h
	h.Subscribe(protocol.PriceTopic(a.symbol))
}

func (a *Momentum) OnWakeup(now sim.Time) error {
	return nil
}

func (a *Momentum) OnMessage(msg *sim.Message, now sim.Time) error {
	switch p := msg.Payload.(type) {
	case *protocol.MarketData:
		if !p.BestBid.IsPositive() || !p.BestAsk.IsPositive() {
			return nil
		}
		mid := p.BestBid.Add(p.BestAsk).Div(two)
		a.history = append(a.history, mid)
		if len(a.history) > momentumHistory {
			a.history = a.history[1:]
		}
		return a.checkSignal(now)
	case *protocol.Trade:
		a.applyTrade(p)
	}
	return nil
}

func (a *Momentum) checkSignal(now sim.Time) error {
	if len(a.history) < momentumWindow {
		return nil
	}

	window := a.history[len(a.history)-momentumWindow:]
	change := window[len(window)-1].Sub(window[0])

	if change.GreaterThan(a.threshold) && a.position < a.maxPosition {
		return a.placeOrder(protocol.Buy, now)
	}
	if change.LessThan(a.threshold.Neg()) && a.position > -a.maxPosition {
		return a.placeOrder(protocol.Sell, now)
	}
	return nil
}

// placeOrder submits a limit order priced through the mid so it is likely to
// execute immediately.
func (a *Momentum) placeOrder(side protocol.Side, now sim.Time) error {
	mid := a.history[len(a.history)-1]

	price := mid.Add(a.offset)
	if side == protocol.Sell {
		price = mid.Sub(a.offset)
	}
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

func (a *Momentum) applyTrade(t *protocol.Trade) {
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
func (a *Momentum) Position() int64 {
	return a.position
}
