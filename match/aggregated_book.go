package match

import (
	"fmt"

	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"

	"github.com/lensor/marketsim/protocol"
)

// AggregatedBook maintains a simplified view of an order book, tracking only
// price levels and their aggregated sizes. Downstream consumers rebuild it
// from the BookLog stream and can cross-check it against the live book's
// depth.
type AggregatedBook struct {
	seqID uint64 // last applied SequenceID, for gap detection and dedup
	ask   *treemap.TreeMap[decimal.Decimal, decimal.Decimal]
	bid   *treemap.TreeMap[decimal.Decimal, decimal.Decimal]
}

// NewAggregatedBook creates an AggregatedBook with empty ask and bid sides.
func NewAggregatedBook() *AggregatedBook {
	return &AggregatedBook{
		ask: treemap.NewWithKeyCompare[decimal.Decimal, decimal.Decimal](func(a, b decimal.Decimal) bool {
			return a.LessThan(b)
		}),
		bid: treemap.NewWithKeyCompare[decimal.Decimal, decimal.Decimal](func(a, b decimal.Decimal) bool {
			return b.LessThan(a)
		}),
	}
}

// SequenceID returns the last applied sequence ID.
func (ab *AggregatedBook) SequenceID() uint64 {
	return ab.seqID
}

// Apply replays one book log. Logs must arrive in sequence order; a
// duplicate is skipped, a gap is an error. Rejects advance the sequence
// without touching depth.
func (ab *AggregatedBook) Apply(log *BookLog) error {
	if log.SequenceID <= ab.seqID {
		// Already applied
		return nil
	}
	if log.SequenceID != ab.seqID+1 {
		return fmt.Errorf("%w: have %d, got %d", ErrSequenceGap, ab.seqID, log.SequenceID)
	}
	ab.seqID = log.SequenceID

	change := CalculateDepthChange(log)
	if change.SizeDiff.IsZero() {
		return nil
	}

	side := ab.bid
	if change.Side == protocol.Sell {
		side = ab.ask
	}

	size := change.SizeDiff
	if current, ok := side.Get(change.Price); ok {
		size = current.Add(change.SizeDiff)
	}

	if size.IsPositive() {
		side.Set(change.Price, size)
	} else {
		side.Del(change.Price)
	}
	return nil
}

// Depth returns the aggregated size at a price level, or zero if the level
// does not exist.
func (ab *AggregatedBook) Depth(side protocol.Side, price decimal.Decimal) decimal.Decimal {
	m := ab.bid
	if side == protocol.Sell {
		m = ab.ask
	}
	if size, ok := m.Get(price); ok {
		return size
	}
	return decimal.Zero
}

// Best returns the best price and size on a side.
func (ab *AggregatedBook) Best(side protocol.Side) (decimal.Decimal, decimal.Decimal, bool) {
	m := ab.bid
	if side == protocol.Sell {
		m = ab.ask
	}
	it := m.Iterator()
	if !it.Valid() {
		return decimal.Zero, decimal.Zero, false
	}
	return it.Key(), it.Value(), true
}

// TopLevels returns up to limit levels on a side, best price first.
func (ab *AggregatedBook) TopLevels(side protocol.Side, limit int) []DepthItem {
	m := ab.bid
	if side == protocol.Sell {
		m = ab.ask
	}

	result := make([]DepthItem, 0, limit)
	for it := m.Iterator(); it.Valid() && len(result) < limit; it.Next() {
		result = append(result, DepthItem{Price: it.Key(), Size: it.Value()})
	}
	return result
}
