package protocol

import "github.com/shopspring/decimal"

// PayloadKind identifies the concrete payload variant carried by a Message.
type PayloadKind string

const (
	KindSubmitOrder    PayloadKind = "submit_order"
	KindCancelOrder    PayloadKind = "cancel_order"
	KindOrderAccepted  PayloadKind = "order_accepted"
	KindOrderRejected  PayloadKind = "order_rejected"
	KindOrderCancelled PayloadKind = "order_cancelled"
	KindTrade          PayloadKind = "trade"
	KindBookUpdate     PayloadKind = "book_update"
	KindMarketData     PayloadKind = "market_data"
)

// Payload is the tagged variant carried by every message. The kernel and the
// broker treat payloads as opaque; only the exchange interprets trading
// payloads.
type Payload interface {
	Kind() PayloadKind
}

// Message is the unit of inter-agent communication.
type Message struct {
	Sender   AgentID `json:"sender"`
	SendTime Time    `json:"send_time"`
	Payload  Payload `json:"payload"`
}

// SubmitOrder asks the exchange to place an order.
// Price is ignored for market orders. ClientTag is echoed back on the
// accept/reject reply so the submitter can correlate it with the assigned
// order id.
type SubmitOrder struct {
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Type      OrderType       `json:"type"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	ClientTag string          `json:"client_tag,omitempty"`
}

func (*SubmitOrder) Kind() PayloadKind { return KindSubmitOrder }

// CancelOrder asks the exchange to remove a resting order.
type CancelOrder struct {
	Symbol  string `json:"symbol"`
	OrderID uint64 `json:"order_id"`
}

func (*CancelOrder) Kind() PayloadKind { return KindCancelOrder }

// OrderAccepted is the exchange's reply to an accepted submission.
// RestingQty is zero when the order filled completely or did not rest.
type OrderAccepted struct {
	OrderID      uint64          `json:"order_id"`
	Symbol       string          `json:"symbol"`
	ClientTag    string          `json:"client_tag,omitempty"`
	FilledQty    decimal.Decimal `json:"filled_qty"`
	RestingPrice decimal.Decimal `json:"resting_price"`
	RestingQty   decimal.Decimal `json:"resting_qty"`
}

func (*OrderAccepted) Kind() PayloadKind { return KindOrderAccepted }

// OrderRejected is the exchange's reply to a malformed submission.
type OrderRejected struct {
	Symbol    string       `json:"symbol"`
	ClientTag string       `json:"client_tag,omitempty"`
	Reason    RejectReason `json:"reason"`
}

func (*OrderRejected) Kind() PayloadKind { return KindOrderRejected }

// OrderCancelled is the exchange's reply to a cancel request. Status reports
// unknown-order and not-owner outcomes; those are domain events, not
// failures.
type OrderCancelled struct {
	Symbol       string          `json:"symbol"`
	OrderID      uint64          `json:"order_id"`
	Status       CancelStatus    `json:"status"`
	RemainingQty decimal.Decimal `json:"remaining_qty"`
}

func (*OrderCancelled) Kind() PayloadKind { return KindOrderCancelled }

// Trade reports a single match. Price is always the maker's limit price.
// TakerSide is the side of the incoming aggressor.
type Trade struct {
	TradeID      uint64          `json:"trade_id"`
	Symbol       string          `json:"symbol"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	MakerOrderID uint64          `json:"maker_order_id"`
	TakerOrderID uint64          `json:"taker_order_id"`
	MakerAgent   AgentID         `json:"maker_agent"`
	TakerAgent   AgentID         `json:"taker_agent"`
	TakerSide    Side            `json:"taker_side"`
	Time         Time            `json:"time"`
}

func (*Trade) Kind() PayloadKind { return KindTrade }

// BookUpdate is a top-of-book snapshot, published whenever the best bid or
// best ask changes. A zero price with zero quantity means the side is empty.
type BookUpdate struct {
	Symbol     string          `json:"symbol"`
	BestBid    decimal.Decimal `json:"best_bid"`
	BestBidQty decimal.Decimal `json:"best_bid_qty"`
	BestAsk    decimal.Decimal `json:"best_ask"`
	BestAskQty decimal.Decimal `json:"best_ask_qty"`
	Time       Time            `json:"time"`
}

func (*BookUpdate) Kind() PayloadKind { return KindBookUpdate }

// MarketData is the price/spread publication, sent with every top-of-book
// change and, when enabled, periodically. Spread is zero while either side
// of the book is empty.
type MarketData struct {
	Symbol  string          `json:"symbol"`
	BestBid decimal.Decimal `json:"best_bid"`
	BestAsk decimal.Decimal `json:"best_ask"`
	Spread  decimal.Decimal `json:"spread"`
	Time    Time            `json:"time"`
}

func (*MarketData) Kind() PayloadKind { return KindMarketData }
