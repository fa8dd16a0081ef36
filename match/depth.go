package match

import (
	"github.com/shopspring/decimal"

	"github.com/lensor/marketsim/protocol"
)

// DepthChange describes which side and price level a book log moved, and by
// how much. A zero SizeDiff means the log did not affect depth.
type DepthChange struct {
	Side     protocol.Side
	Price    decimal.Decimal
	SizeDiff decimal.Decimal
}

// CalculateDepthChange maps a book log to its depth effect.
// For matches the returned side is the maker's side (liquidity leaves the
// opposite side of the taker).
func CalculateDepthChange(log *BookLog) DepthChange {
	switch log.Type {
	case LogTypeOpen:
		return DepthChange{
			Side:     log.Side,
			Price:    log.Price,
			SizeDiff: log.Size,
		}
	case LogTypeCancel:
		return DepthChange{
			Side:     log.Side,
			Price:    log.Price,
			SizeDiff: log.Size.Neg(),
		}
	case LogTypeMatch:
		return DepthChange{
			Side:     log.Side.Opposite(),
			Price:    log.Price,
			SizeDiff: log.Size.Neg(),
		}
	case LogTypeReject:
		// Rejected orders never entered the book.
		return DepthChange{}
	}

	return DepthChange{}
}
