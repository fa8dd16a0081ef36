package agents

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	sim "github.com/lensor/marketsim"
	"github.com/lensor/marketsim/protocol"
)

var two = decimal.NewFromInt(2)

// MarketMaker provides liquidity by quoting both sides around its fair
// value. Every interval it cancels its resting quotes and re-places them;
// the fair value tracks the mid price from the symbol's price channel.
// Quoting pauses while the absolute inventory is at or above the cap.
type MarketMaker struct {
	handle     *sim.AgentHandle
	symbol     string
	fairValue  decimal.Decimal
	halfSpread decimal.Decimal
	orderSize  decimal.Decimal
	interval   sim.Time

	inventory    int64
	maxInventory int64
	active       map[uint64]struct{} // resting order ids
	tagSeq       uint64
}

// NewMarketMaker creates a market maker for one symbol. fairValue seeds the
// quote midpoint until market data arrives; halfSpread is the distance of
// each quote from it.
func NewMarketMaker(symbol string, fairValue, halfSpread, orderSize decimal.Decimal, interval sim.Time) *MarketMaker {
	return &MarketMaker{
		symbol:       symbol,
		fairValue:    fairValue,
		halfSpread:   halfSpread,
		orderSize:    orderSize,
		interval:     interval,
		maxInventory: 100,
		active:       make(map[uint64]struct{}),
	}
}

func (m *MarketMaker) OnRegister(h *sim.AgentHandle) {
	m.handle = h
	h.Subscribe(protocol.PriceTopic(m.symbol))
	// Own executions arrive on the inbox; the public trade tape would
	// deliver each of them a second time.
	_ = h.ScheduleWakeup(h.Now() + m.interval)
}

// OnWakeup refreshes the quotes: cancel everything resting, then re-quote.
// The cancels and submissions are published at the current instant and reach
// the exchange in that order.
func (m *MarketMaker) OnWakeup(now sim.Time) error {
	orders := protocol.OrdersTopic(m.symbol)

	for _, id := range m.activeIDs() {
		if err := m.handle.Publish(orders, &protocol.CancelOrder{Symbol: m.symbol, OrderID: id}, now); err != nil {
			return err
		}
	}

	if m.inventory < m.maxInventory && m.inventory > -m.maxInventory {
		bid := m.fairValue.Sub(m.halfSpread)
		ask := m.fairValue.Add(m.halfSpread)

		if bid.IsPositive() {
			if err := m.submit(orders, protocol.Buy, bid, now); err != nil {
				return err
			}
		}
		if err := m.submit(orders, protocol.Sell, ask, now); err != nil {
			return err
		}
	}

	return m.handle.ScheduleWakeup(now + m.interval)
}

func (m *MarketMaker) submit(orders sim.Topic, side protocol.Side, price decimal.Decimal, now sim.Time) error {
	m.tagSeq++
	return m.handle.Publish(orders, &protocol.SubmitOrder{
		Symbol:    m.symbol,
		Side:      side,
		Type:      protocol.OrderTypeLimit,
		Price:     price,
		Quantity:  m.orderSize,
		ClientTag: m.handle.Name() + "-" + strconv.FormatUint(m.tagSeq, 10),
	}, now)
}

func (m *MarketMaker) OnMessage(msg *sim.Message, now sim.Time) error {
	switch p := msg.Payload.(type) {
	case *protocol.MarketData:
		if p.BestBid.IsPositive() && p.BestAsk.IsPositive() {
			m.fairValue = p.BestBid.Add(p.BestAsk).Div(two)
		}
	case *protocol.OrderAccepted:
		if p.RestingQty.IsPositive() {
			m.active[p.OrderID] = struct{}{}
		}
	case *protocol.OrderCancelled:
		// Unknown-order means the quote was fully filled before the
		// cancel arrived; either way it is gone.
		if p.Status == protocol.CancelStatusDone || p.Status == protocol.CancelStatusUnknownOrder {
			delete(m.active, p.OrderID)
		}
	case *protocol.Trade:
		m.applyTrade(p)
	}
	return nil
}

// applyTrade updates inventory from our own executions. As maker we traded
// opposite the taker's side. The active set is not touched here; a fully
// filled quote leaves it when its next cancel comes back unknown-order.
func (m *MarketMaker) applyTrade(t *protocol.Trade) {
	me := m.handle.ID()
	qty := t.Quantity.IntPart()

	if t.MakerAgent == me {
		if t.TakerSide == protocol.Buy {
			m.inventory -= qty
		} else {
			m.inventory += qty
		}
	}
	if t.TakerAgent == me {
		if t.TakerSide == protocol.Buy {
			m.inventory += qty
		} else {
			m.inventory -= qty
		}
	}
}

// Inventory returns the current signed position.
func (m *MarketMaker) Inventory() int64 {
	return m.inventory
}

func (m *MarketMaker) activeIDs() []uint64 {
	ids := make([]uint64, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	// Map order is random; sort so replays publish identical traces.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
