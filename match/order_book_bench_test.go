package match

import (
	"math/rand"
	"testing"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"

	"github.com/lensor/marketsim/protocol"
)

func BenchmarkSubmit(b *testing.B) {
	book := NewOrderBook("BENCH", NewDiscardBookLogSink(), BookOptions{})
	rng := rand.New(rand.NewSource(99))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		side := protocol.Buy
		if rng.Intn(2) == 0 {
			side = protocol.Sell
		}
		book.Submit(&Submission{
			AgentID:   protocol.AgentID(rng.Int63n(16) + 1),
			Side:      side,
			Type:      protocol.OrderTypeLimit,
			Price:     decimal.NewFromInt(rng.Int63n(200) + 1),
			Quantity:  decimal.NewFromInt(rng.Int63n(50) + 1),
			Symbol:    "BENCH",
			ClientTag: xid.New().String(),
			Time:      protocol.Time(i),
		})
	}
}

func BenchmarkSubmitAndCancel(b *testing.B) {
	book := NewOrderBook("BENCH", NewDiscardBookLogSink(), BookOptions{})
	rng := rand.New(rand.NewSource(7))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res := book.Submit(&Submission{
			AgentID:  1,
			Side:     protocol.Buy,
			Type:     protocol.OrderTypeLimit,
			Price:    decimal.NewFromInt(rng.Int63n(100) + 1),
			Quantity: decimal.NewFromInt(10),
			Symbol:   "BENCH",
			Time:     protocol.Time(i),
		})
		if res.RestingQty.IsPositive() {
			book.Cancel(res.OrderID, 1, protocol.Time(i))
		}
	}
}
