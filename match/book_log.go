package match

import (
	"github.com/shopspring/decimal"

	"github.com/lensor/marketsim/protocol"
)

// LogType classifies an order book event.
type LogType string

const (
	LogTypeOpen   LogType = "open"   // order (or its remainder) rested in the book
	LogTypeMatch  LogType = "match"  // a trade between maker and taker
	LogTypeCancel LogType = "cancel" // a resting order was removed (cancel request or self-trade policy)
	LogTypeReject LogType = "reject" // a malformed submission, or a market/IOC/self-trade-stopped order that filled nothing; book state unchanged
)

// BookLog is one event in the order book's audit stream. SequenceID is a
// per-book monotonically increasing id for every event, used for ordering
// and rebuild synchronization downstream; TradeID is set only for matches.
// Time is the virtual time the triggering submission or cancel carried,
// never the wall clock.
type BookLog struct {
	SequenceID   uint64                `json:"seq_id"`
	TradeID      uint64                `json:"trade_id,omitempty"`
	Type         LogType               `json:"type"`
	Symbol       string                `json:"symbol"`
	Side         protocol.Side         `json:"side"` // taker side for matches
	Price        decimal.Decimal       `json:"price"`
	Size         decimal.Decimal       `json:"size"`
	OrderID      uint64                `json:"order_id"`
	AgentID      protocol.AgentID      `json:"agent_id"`
	OrderType    protocol.OrderType    `json:"order_type,omitempty"`
	MakerOrderID uint64                `json:"maker_order_id,omitempty"`
	MakerAgentID protocol.AgentID      `json:"maker_agent_id,omitempty"`
	Reason       protocol.RejectReason `json:"reject_reason,omitempty"`
	Time         protocol.Time         `json:"time"`
}
