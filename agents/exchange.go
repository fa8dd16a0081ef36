package agents

import (
	"log/slog"

	"github.com/shopspring/decimal"

	sim "github.com/lensor/marketsim"
	"github.com/lensor/marketsim/match"
	"github.com/lensor/marketsim/protocol"
)

// ExchangeOptions configures the exchange agent. The zero value is ready to
// use.
type ExchangeOptions struct {
	// SelfTrade is applied to every order book.
	SelfTrade match.SelfTradePolicy

	// Sink receives the audit stream of every book. Defaults to discard.
	Sink match.BookLogSink

	// MarketDataInterval enables periodic MarketData publications on each
	// symbol's price topic. Zero disables them.
	MarketDataInterval sim.Time
}

type bookTop struct {
	bidPrice, bidQty decimal.Decimal
	askPrice, askQty decimal.Decimal
}

func (t bookTop) equal(o bookTop) bool {
	return t.bidPrice.Equal(o.bidPrice) && t.bidQty.Equal(o.bidQty) &&
		t.askPrice.Equal(o.askPrice) && t.askQty.Equal(o.askQty)
}

// Exchange is the agent that owns the order books. It listens on the order
// flow of every symbol ("orders.*"), initializes a book the first time a
// symbol is seen, and translates submissions and cancels into book
// operations and the resulting market-data publications.
//
// Per accepted submission it publishes, in order: the OrderAccepted reply to
// the submitter's inbox, each Trade (to the public trade tape, then the
// maker's inbox, then the taker's inbox), and — if the top of book moved — a
// BookUpdate and a MarketData snapshot on the public channels. All of it at
// the current virtual instant, so subscribers observe the effects strictly
// after the triggering delivery, in this exact order.
type Exchange struct {
	handle      *sim.AgentHandle
	opts        ExchangeOptions
	books       map[string]*match.OrderBook
	symbols     []string // insertion order; keeps wakeup publications deterministic
	nextOrderID uint64
	lastTop     map[string]bookTop
}

// NewExchange creates the exchange agent.
func NewExchange(opts ExchangeOptions) *Exchange {
	if opts.Sink == nil {
		opts.Sink = match.NewDiscardBookLogSink()
	}
	return &Exchange{
		opts:    opts,
		books:   make(map[string]*match.OrderBook),
		lastTop: make(map[string]bookTop),
	}
}

// Book returns the order book for a symbol, or nil if no order flow has
// touched it yet.
func (ex *Exchange) Book(symbol string) *match.OrderBook {
	return ex.books[symbol]
}

// Symbols returns the traded symbols in first-seen order.
func (ex *Exchange) Symbols() []string {
	return ex.symbols
}

func (ex *Exchange) OnRegister(h *sim.AgentHandle) {
	ex.handle = h
	h.Subscribe(protocol.OrdersPattern())
	if ex.opts.MarketDataInterval > 0 {
		// First periodic publication one interval in.
		_ = h.ScheduleWakeup(h.Now() + ex.opts.MarketDataInterval)
	}
}

// OnWakeup publishes the periodic MarketData snapshots.
func (ex *Exchange) OnWakeup(now sim.Time) error {
	if ex.opts.MarketDataInterval <= 0 {
		return nil
	}
	for _, symbol := range ex.symbols {
		if err := ex.publishMarketData(symbol, now); err != nil {
			return err
		}
	}
	return ex.handle.ScheduleWakeup(now + ex.opts.MarketDataInterval)
}

func (ex *Exchange) OnMessage(msg *sim.Message, now sim.Time) error {
	switch p := msg.Payload.(type) {
	case *protocol.SubmitOrder:
		return ex.processSubmit(msg.Sender, p, now)
	case *protocol.CancelOrder:
		return ex.processCancel(msg.Sender, p, now)
	default:
		// The exchange only interprets trading payloads.
		return nil
	}
}

// initializeSymbol creates the book for a symbol on first use. Order ids
// come from one allocator shared across books so they are unique within the
// exchange for the run.
func (ex *Exchange) initializeSymbol(symbol string) *match.OrderBook {
	book, ok := ex.books[symbol]
	if ok {
		return book
	}

	book = match.NewOrderBook(symbol, ex.opts.Sink, match.BookOptions{
		SelfTrade: ex.opts.SelfTrade,
		NextOrderID: func() uint64 {
			ex.nextOrderID++
			return ex.nextOrderID
		},
	})
	ex.books[symbol] = book
	ex.symbols = append(ex.symbols, symbol)
	ex.lastTop[symbol] = bookTop{}

	logger.Debug("exchange: symbol initialized", slog.String("symbol", symbol))
	return book
}

func (ex *Exchange) top(book *match.OrderBook) bookTop {
	var t bookTop
	if price, qty, ok := book.BestBid(); ok {
		t.bidPrice, t.bidQty = price, qty
	}
	if price, qty, ok := book.BestAsk(); ok {
		t.askPrice, t.askQty = price, qty
	}
	return t
}

func (ex *Exchange) processSubmit(sender protocol.AgentID, p *protocol.SubmitOrder, now sim.Time) error {
	book := ex.initializeSymbol(p.Symbol)
	inbox := protocol.InboxTopic(sender)

	result := book.Submit(&match.Submission{
		AgentID:   sender,
		Side:      p.Side,
		Type:      p.Type,
		Price:     p.Price,
		Quantity:  p.Quantity,
		Symbol:    p.Symbol,
		ClientTag: p.ClientTag,
		Time:      now,
	})

	if result.Rejected {
		return ex.handle.Publish(inbox, &protocol.OrderRejected{
			Symbol:    p.Symbol,
			ClientTag: p.ClientTag,
			Reason:    result.Reason,
		}, now)
	}

	err := ex.handle.Publish(inbox, &protocol.OrderAccepted{
		OrderID:      result.OrderID,
		Symbol:       p.Symbol,
		ClientTag:    p.ClientTag,
		FilledQty:    result.FilledQty,
		RestingPrice: result.RestingPrice,
		RestingQty:   result.RestingQty,
	}, now)
	if err != nil {
		return err
	}

	for _, fill := range result.Fills {
		trade := &protocol.Trade{
			TradeID:      fill.TradeID,
			Symbol:       p.Symbol,
			Price:        fill.Price,
			Quantity:     fill.Size,
			MakerOrderID: fill.MakerOrderID,
			TakerOrderID: fill.OrderID,
			MakerAgent:   fill.MakerAgentID,
			TakerAgent:   fill.AgentID,
			TakerSide:    fill.Side,
			Time:         now,
		}
		if err := ex.handle.Publish(protocol.TradesTopic(p.Symbol), trade, now); err != nil {
			return err
		}
		if err := ex.handle.Publish(protocol.InboxTopic(trade.MakerAgent), trade, now); err != nil {
			return err
		}
		if err := ex.handle.Publish(protocol.InboxTopic(trade.TakerAgent), trade, now); err != nil {
			return err
		}
	}

	return ex.publishTopChange(p.Symbol, book, now)
}

func (ex *Exchange) processCancel(sender protocol.AgentID, p *protocol.CancelOrder, now sim.Time) error {
	inbox := protocol.InboxTopic(sender)

	book, ok := ex.books[p.Symbol]
	if !ok {
		return ex.handle.Publish(inbox, &protocol.OrderCancelled{
			Symbol:  p.Symbol,
			OrderID: p.OrderID,
			Status:  protocol.CancelStatusUnknownOrder,
		}, now)
	}

	result := book.Cancel(p.OrderID, sender, now)

	reply := &protocol.OrderCancelled{
		Symbol:  p.Symbol,
		OrderID: p.OrderID,
		Status:  result.Status,
	}
	if result.Order != nil {
		reply.RemainingQty = result.Order.Remaining
	}
	if err := ex.handle.Publish(inbox, reply, now); err != nil {
		return err
	}

	if result.Status != protocol.CancelStatusDone {
		return nil
	}
	return ex.publishTopChange(p.Symbol, book, now)
}

// publishTopChange publishes a BookUpdate and a MarketData snapshot when the
// top of book differs from the last published one.
func (ex *Exchange) publishTopChange(symbol string, book *match.OrderBook, now sim.Time) error {
	t := ex.top(book)
	if t.equal(ex.lastTop[symbol]) {
		return nil
	}
	ex.lastTop[symbol] = t

	err := ex.handle.Publish(protocol.BookTopic(symbol), &protocol.BookUpdate{
		Symbol:     symbol,
		BestBid:    t.bidPrice,
		BestBidQty: t.bidQty,
		BestAsk:    t.askPrice,
		BestAskQty: t.askQty,
		Time:       now,
	}, now)
	if err != nil {
		return err
	}

	return ex.publishMarketData(symbol, now)
}

func (ex *Exchange) publishMarketData(symbol string, now sim.Time) error {
	book := ex.books[symbol]
	md := &protocol.MarketData{Symbol: symbol, Time: now}

	bid, _, okBid := book.BestBid()
	ask, _, okAsk := book.BestAsk()
	if okBid {
		md.BestBid = bid
	}
	if okAsk {
		md.BestAsk = ask
	}
	if okBid && okAsk {
		md.Spread = ask.Sub(bid)
	}

	return ex.handle.Publish(protocol.PriceTopic(symbol), md, now)
}
