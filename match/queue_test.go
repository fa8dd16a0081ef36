package match

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensor/marketsim/protocol"
)

func restingOrder(id uint64, side protocol.Side, price, qty int64, seq uint64) *Order {
	return &Order{
		ID:         id,
		AgentID:    1,
		Symbol:     "AAPL",
		Side:       side,
		Type:       protocol.OrderTypeLimit,
		Price:      decimal.NewFromInt(price),
		Quantity:   decimal.NewFromInt(qty),
		Remaining:  decimal.NewFromInt(qty),
		ArrivalSeq: seq,
	}
}

func TestBidQueueOrdering(t *testing.T) {
	q := newBidQueue()

	q.insertOrder(restingOrder(1, protocol.Buy, 100, 5, 1))
	q.insertOrder(restingOrder(2, protocol.Buy, 102, 5, 2))
	q.insertOrder(restingOrder(3, protocol.Buy, 101, 5, 3))

	// Highest price first
	head := q.peekHead()
	require.NotNil(t, head)
	assert.Equal(t, uint64(2), head.ID)

	depth := q.depth(10)
	require.Len(t, depth, 3)
	assert.True(t, depth[0].Price.Equal(decimal.NewFromInt(102)))
	assert.True(t, depth[1].Price.Equal(decimal.NewFromInt(101)))
	assert.True(t, depth[2].Price.Equal(decimal.NewFromInt(100)))
}

func TestAskQueueOrdering(t *testing.T) {
	q := newAskQueue()

	q.insertOrder(restingOrder(1, protocol.Sell, 100, 5, 1))
	q.insertOrder(restingOrder(2, protocol.Sell, 98, 5, 2))
	q.insertOrder(restingOrder(3, protocol.Sell, 99, 5, 3))

	// Lowest price first
	head := q.peekHead()
	require.NotNil(t, head)
	assert.Equal(t, uint64(2), head.ID)
}

func TestLevelFIFO(t *testing.T) {
	q := newBidQueue()

	q.insertOrder(restingOrder(1, protocol.Buy, 100, 5, 1))
	q.insertOrder(restingOrder(2, protocol.Buy, 100, 5, 2))
	q.insertOrder(restingOrder(3, protocol.Buy, 100, 5, 3))

	assert.Equal(t, uint64(1), q.peekHead().ID)

	q.removeOrder(1)
	assert.Equal(t, uint64(2), q.peekHead().ID)

	// Removing from the middle keeps the list intact.
	q.insertOrder(restingOrder(4, protocol.Buy, 100, 5, 4))
	q.removeOrder(3)
	assert.Equal(t, uint64(2), q.peekHead().ID)

	_, size, ok := q.bestLevel()
	require.True(t, ok)
	assert.True(t, size.Equal(decimal.NewFromInt(10)))
}

func TestLevelBookkeeping(t *testing.T) {
	q := newAskQueue()

	q.insertOrder(restingOrder(1, protocol.Sell, 100, 5, 1))
	q.insertOrder(restingOrder(2, protocol.Sell, 100, 7, 2))
	q.insertOrder(restingOrder(3, protocol.Sell, 101, 2, 3))

	assert.Equal(t, int64(3), q.orderCount())
	assert.Equal(t, int64(2), q.depthCount())

	_, size, ok := q.bestLevel()
	require.True(t, ok)
	assert.True(t, size.Equal(decimal.NewFromInt(12)))

	// A level exists iff it has at least one live order.
	q.removeOrder(3)
	assert.Equal(t, int64(1), q.depthCount())
	assert.Nil(t, q.order(3))

	q.removeOrder(1)
	q.removeOrder(2)
	assert.Equal(t, int64(0), q.depthCount())
	assert.Nil(t, q.peekHead())
}

func TestFillDecrementsInPlace(t *testing.T) {
	q := newAskQueue()

	q.insertOrder(restingOrder(1, protocol.Sell, 100, 10, 1))
	q.insertOrder(restingOrder(2, protocol.Sell, 100, 4, 2))

	removed := q.fill(1, decimal.NewFromInt(6))
	assert.False(t, removed)

	// Still at the head with reduced size; the level aggregate follows.
	head := q.peekHead()
	assert.Equal(t, uint64(1), head.ID)
	assert.True(t, head.Remaining.Equal(decimal.NewFromInt(4)))
	_, size, _ := q.bestLevel()
	assert.True(t, size.Equal(decimal.NewFromInt(8)))

	removed = q.fill(1, decimal.NewFromInt(4))
	assert.True(t, removed)
	assert.Nil(t, q.order(1))
	assert.Equal(t, uint64(2), q.peekHead().ID)
}
