package match

import (
	"github.com/shopspring/decimal"

	"github.com/lensor/marketsim/protocol"
)

// Market orders are modeled as limit orders at the extreme allowable price,
// so the matching loop stays single-branch. The sentinels sit far outside
// any realistic tick range.
var (
	MarketBuyPrice  = decimal.New(1, 18)  // crosses every ask
	MarketSellPrice = decimal.New(1, -18) // crosses every bid
)

// SelfTradePolicy decides what happens when an incoming order would match an
// order resting for the same agent.
type SelfTradePolicy uint8

const (
	// SelfTradeMatch trades against one's own resting orders like any
	// other counterparty. This is the default.
	SelfTradeMatch SelfTradePolicy = iota
	// SelfTradeCancelResting cancels the resting (older) order and keeps
	// matching the incoming one.
	SelfTradeCancelResting
	// SelfTradeCancelIncoming cancels the incoming remainder; the resting
	// order stays untouched.
	SelfTradeCancelIncoming
)

// BookOptions configures an order book. The zero value is ready to use.
type BookOptions struct {
	// SelfTrade selects the self-trade policy.
	SelfTrade SelfTradePolicy

	// NextOrderID supplies order ids. When nil the book runs a private
	// counter; an exchange hosting several books shares one allocator so
	// ids are unique across symbols.
	NextOrderID func() uint64
}

// Submission is the input to Submit. Price is ignored for market orders.
// Time is the virtual time the submission was delivered at.
type Submission struct {
	AgentID   protocol.AgentID
	Side      protocol.Side
	Type      protocol.OrderType
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Symbol    string
	ClientTag string
	Time      protocol.Time
}

// SubmitResult reports the outcome of one submission. When Rejected is set,
// no order id was assigned and the book is unchanged. Fills are the match
// logs in execution order. RestingQty is zero unless a limit remainder
// rested.
type SubmitResult struct {
	OrderID      uint64
	Fills        []*BookLog
	FilledQty    decimal.Decimal
	RestingPrice decimal.Decimal
	RestingQty   decimal.Decimal
	Rejected     bool
	Reason       protocol.RejectReason
}

// CancelResult reports the outcome of a cancel request. Order is the removed
// order when Status is done.
type CancelResult struct {
	Status protocol.CancelStatus
	Order  *Order
}

// OrderBook maintains the bid/ask ladders for one symbol and performs
// price-time priority matching. It is owned by a single agent and must only
// be called from within that agent's callbacks; it has no locking of its
// own.
type OrderBook struct {
	symbol     string
	seqID      uint64 // BookLog sequence, increases for every event
	tradeID    uint64 // sequential trade id, only incremented for matches
	arrivalSeq uint64 // per-book arrival counter for FIFO tie-breaking
	orderID    uint64 // private id counter, used when no allocator is given
	bidQueue   *sideQueue
	askQueue   *sideQueue
	sink       BookLogSink
	policy     SelfTradePolicy
	nextID     func() uint64
}

// NewOrderBook creates an order book for one symbol. Logs are pushed to the
// sink as they are produced.
func NewOrderBook(symbol string, sink BookLogSink, opts BookOptions) *OrderBook {
	if sink == nil {
		sink = NewDiscardBookLogSink()
	}
	book := &OrderBook{
		symbol:   symbol,
		bidQueue: newBidQueue(),
		askQueue: newAskQueue(),
		sink:     sink,
		policy:   opts.SelfTrade,
		nextID:   opts.NextOrderID,
	}
	if book.nextID == nil {
		book.nextID = func() uint64 {
			book.orderID++
			return book.orderID
		}
	}
	return book
}

// Symbol returns the symbol this book trades.
func (book *OrderBook) Symbol() string {
	return book.symbol
}

// Order returns a live order by id, or nil.
func (book *OrderBook) Order(id uint64) *Order {
	if order := book.askQueue.order(id); order != nil {
		return order
	}
	return book.bidQueue.order(id)
}

// BestBid returns the best bid price and its aggregate size.
func (book *OrderBook) BestBid() (decimal.Decimal, decimal.Decimal, bool) {
	return book.bidQueue.bestLevel()
}

// BestAsk returns the best ask price and its aggregate size.
func (book *OrderBook) BestAsk() (decimal.Decimal, decimal.Decimal, bool) {
	return book.askQueue.bestLevel()
}

// Depth returns up to limit aggregated levels on a side, best price first.
func (book *OrderBook) Depth(side protocol.Side, limit int) []DepthItem {
	if limit <= 0 {
		return nil
	}
	if side == protocol.Buy {
		return book.bidQueue.depth(limit)
	}
	return book.askQueue.depth(limit)
}

// Counts returns (orders, levels) per side, for diagnostics.
func (book *OrderBook) Counts() (bidOrders, bidLevels, askOrders, askLevels int64) {
	return book.bidQueue.orderCount(), book.bidQueue.depthCount(),
		book.askQueue.orderCount(), book.askQueue.depthCount()
}

// Submit validates, matches, and possibly rests an order.
//
// Matching walks the opposite ladder best price first; within a level the
// head (oldest) order trades first and the trade price is always the
// resting maker's price. Partial maker fills decrement in place, keeping
// priority. A limit remainder rests at the tail of its level; market and
// IOC remainders are cancelled.
func (book *OrderBook) Submit(sub *Submission) *SubmitResult {
	if reason, ok := book.validate(sub); !ok {
		log := book.newLog(LogTypeReject, sub.Time)
		log.Side = sub.Side
		log.Price = sub.Price
		log.Size = sub.Quantity
		log.AgentID = sub.AgentID
		log.OrderType = sub.Type
		log.Reason = reason
		book.sink.Publish(log)
		return &SubmitResult{Rejected: true, Reason: reason}
	}

	price := sub.Price
	if sub.Type == protocol.OrderTypeMarket {
		if sub.Side == protocol.Buy {
			price = MarketBuyPrice
		} else {
			price = MarketSellPrice
		}
	}

	book.arrivalSeq++
	order := &Order{
		ID:          book.nextID(),
		AgentID:     sub.AgentID,
		Symbol:      book.symbol,
		Side:        sub.Side,
		Type:        sub.Type,
		Price:       price,
		Quantity:    sub.Quantity,
		Remaining:   sub.Quantity,
		ClientTag:   sub.ClientTag,
		ArrivalTime: sub.Time,
		ArrivalSeq:  book.arrivalSeq,
	}

	result := &SubmitResult{OrderID: order.ID}

	var myQueue, targetQueue *sideQueue
	if order.Side == protocol.Buy {
		myQueue = book.bidQueue
		targetQueue = book.askQueue
	} else {
		myQueue = book.askQueue
		targetQueue = book.bidQueue
	}

	incomingCancelled := false

	for order.Remaining.IsPositive() {
		maker := targetQueue.peekHead()
		if maker == nil {
			break
		}

		if order.Side == protocol.Buy && order.Price.LessThan(maker.Price) ||
			order.Side == protocol.Sell && order.Price.GreaterThan(maker.Price) {
			break
		}

		if maker.AgentID == order.AgentID && book.policy != SelfTradeMatch {
			if book.policy == SelfTradeCancelResting {
				book.logCancel(maker, sub.Time)
				targetQueue.removeOrder(maker.ID)
				continue
			}
			// SelfTradeCancelIncoming
			incomingCancelled = true
			break
		}

		qty := order.Remaining
		if maker.Remaining.LessThan(qty) {
			qty = maker.Remaining
		}

		book.tradeID++
		log := book.newLog(LogTypeMatch, sub.Time)
		log.TradeID = book.tradeID
		log.Side = order.Side
		log.Price = maker.Price
		log.Size = qty
		log.OrderID = order.ID
		log.AgentID = order.AgentID
		log.OrderType = order.Type
		log.MakerOrderID = maker.ID
		log.MakerAgentID = maker.AgentID
		book.sink.Publish(log)
		result.Fills = append(result.Fills, log)
		result.FilledQty = result.FilledQty.Add(qty)

		order.Remaining = order.Remaining.Sub(qty)
		targetQueue.fill(maker.ID, qty)
	}

	if order.Remaining.IsPositive() {
		if incomingCancelled || sub.Type != protocol.OrderTypeLimit {
			// Market/IOC remainders (and self-trade stops) never rest.
			// The remainder never touched book state, so the audit
			// stream only records a reject when nothing filled at all.
			if result.FilledQty.IsZero() {
				log := book.newLog(LogTypeReject, sub.Time)
				log.Side = order.Side
				log.Price = order.Price
				log.Size = order.Remaining
				log.OrderID = order.ID
				log.AgentID = order.AgentID
				log.OrderType = order.Type
				log.Reason = protocol.RejectReasonNoLiquidity
				book.sink.Publish(log)
			}
		} else {
			myQueue.insertOrder(order)
			log := book.newLog(LogTypeOpen, sub.Time)
			log.Side = order.Side
			log.Price = order.Price
			log.Size = order.Remaining
			log.OrderID = order.ID
			log.AgentID = order.AgentID
			log.OrderType = order.Type
			book.sink.Publish(log)
			result.RestingPrice = order.Price
			result.RestingQty = order.Remaining
		}
	}

	return result
}

// Cancel removes a resting order. Cancelling an absent (or already filled)
// order reports unknown-order; cancelling another agent's order reports
// not-owner. Both are domain outcomes, not errors.
func (book *OrderBook) Cancel(orderID uint64, agent protocol.AgentID, now protocol.Time) *CancelResult {
	order := book.Order(orderID)
	if order == nil {
		return &CancelResult{Status: protocol.CancelStatusUnknownOrder}
	}
	if order.AgentID != agent {
		return &CancelResult{Status: protocol.CancelStatusNotOwner}
	}

	book.logCancel(order, now)
	if order.Side == protocol.Buy {
		book.bidQueue.removeOrder(orderID)
	} else {
		book.askQueue.removeOrder(orderID)
	}

	return &CancelResult{Status: protocol.CancelStatusDone, Order: order}
}

func (book *OrderBook) validate(sub *Submission) (protocol.RejectReason, bool) {
	if !sub.Quantity.IsPositive() || !sub.Quantity.Equal(sub.Quantity.Truncate(0)) {
		return protocol.RejectReasonInvalidQuantity, false
	}
	if sub.Type != protocol.OrderTypeMarket && !sub.Price.IsPositive() {
		return protocol.RejectReasonInvalidPrice, false
	}
	if sub.Symbol != book.symbol {
		return protocol.RejectReasonUnknownSymbol, false
	}
	return protocol.RejectReasonNone, true
}

func (book *OrderBook) newLog(typ LogType, at protocol.Time) *BookLog {
	book.seqID++
	return &BookLog{
		SequenceID: book.seqID,
		Type:       typ,
		Symbol:     book.symbol,
		Time:       at,
	}
}

func (book *OrderBook) logCancel(order *Order, at protocol.Time) {
	log := book.newLog(LogTypeCancel, at)
	log.Side = order.Side
	log.Price = order.Price
	log.Size = order.Remaining
	log.OrderID = order.ID
	log.AgentID = order.AgentID
	log.OrderType = order.Type
	book.sink.Publish(log)
}
