package match

import (
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"

	"github.com/lensor/marketsim/protocol"
)

// Order is the state of a live order resting in the book. Remaining is the
// unfilled quantity; Quantity is the original. A partial fill never resets
// the order's (ArrivalTime, ArrivalSeq) priority.
type Order struct {
	ID          uint64             `json:"id"`
	AgentID     protocol.AgentID   `json:"agent_id"`
	Symbol      string             `json:"symbol"`
	Side        protocol.Side      `json:"side"`
	Type        protocol.OrderType `json:"type"`
	Price       decimal.Decimal    `json:"price"`
	Quantity    decimal.Decimal    `json:"quantity"`
	Remaining   decimal.Decimal    `json:"remaining"`
	ClientTag   string             `json:"client_tag,omitempty"`
	ArrivalTime protocol.Time      `json:"arrival_time"`
	ArrivalSeq  uint64             `json:"arrival_seq"`

	// Intrusive linked list pointers within a price level (ignored by JSON)
	next *Order
	prev *Order
}

// priceLevel aggregates the live orders resting at one price.
// Invariant: totalSize equals the sum of Remaining over the FIFO list.
type priceLevel struct {
	totalSize decimal.Decimal
	head      *Order
	tail      *Order
	count     int64
}

// DepthItem is one aggregated price level in a depth query result.
type DepthItem struct {
	Price  decimal.Decimal `json:"price"`
	Size   decimal.Decimal `json:"size"`
	Orders int64           `json:"orders"`
}

// sideQueue holds one side of the book: a skiplist of price levels ordered
// best-first (descending for bids, ascending for asks), each level a FIFO
// intrusive list in (ArrivalTime, ArrivalSeq) order, plus an id index for
// O(1) cancel lookup.
type sideQueue struct {
	side        protocol.Side
	totalOrders int64
	depths      int64
	levelList   *skiplist.SkipList
	levelIndex  map[string]*skiplist.Element // canonical price string -> element
	orders      map[uint64]*Order
}

// newBidQueue creates the buy side, sorted by price descending
// (highest price first).
func newBidQueue() *sideQueue {
	return &sideQueue{
		side: protocol.Buy,
		levelList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d2.Cmp(d1)
		})),
		levelIndex: make(map[string]*skiplist.Element),
		orders:     make(map[uint64]*Order),
	}
}

// newAskQueue creates the sell side, sorted by price ascending
// (lowest price first).
func newAskQueue() *sideQueue {
	return &sideQueue{
		side: protocol.Sell,
		levelList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d1.Cmp(d2)
		})),
		levelIndex: make(map[string]*skiplist.Element),
		orders:     make(map[uint64]*Order),
	}
}

// order finds a live order by its ID.
func (q *sideQueue) order(id uint64) *Order {
	return q.orders[id]
}

// insertOrder appends the order at the tail of its price level, creating the
// level if needed. FIFO position equals arrival order because submissions
// reach the book in dispatch order.
func (q *sideQueue) insertOrder(order *Order) {
	key := order.Price.String()
	el, ok := q.levelIndex[key]
	if ok {
		unit, _ := el.Value.(*priceLevel)
		order.prev = unit.tail
		order.next = nil
		if unit.tail != nil {
			unit.tail.next = order
		}
		unit.tail = order
		if unit.head == nil {
			unit.head = order
		}

		unit.totalSize = unit.totalSize.Add(order.Remaining)
		unit.count++
	} else {
		unit := &priceLevel{
			head:      order,
			tail:      order,
			totalSize: order.Remaining,
			count:     1,
		}
		order.next = nil
		order.prev = nil

		el := q.levelList.Set(order.Price, unit)
		q.levelIndex[key] = el
		q.depths++
	}

	q.orders[order.ID] = order
	q.totalOrders++
}

// removeOrder unlinks an order from its level and drops the level when it
// empties. No-op if the order is not in this queue.
func (q *sideQueue) removeOrder(id uint64) {
	order, ok := q.orders[id]
	if !ok {
		return
	}

	key := order.Price.String()
	el, ok := q.levelIndex[key]
	if !ok {
		return
	}
	unit, _ := el.Value.(*priceLevel)

	if order.prev != nil {
		order.prev.next = order.next
	} else {
		unit.head = order.next
	}

	if order.next != nil {
		order.next.prev = order.prev
	} else {
		unit.tail = order.prev
	}

	order.next = nil
	order.prev = nil

	unit.totalSize = unit.totalSize.Sub(order.Remaining)
	unit.count--
	delete(q.orders, id)
	q.totalOrders--

	if unit.count == 0 {
		q.levelList.RemoveElement(el)
		delete(q.levelIndex, key)
		q.depths--
	}
}

// fill decrements a resting order in place by qty, preserving its queue
// position, and unlinks it when fully filled. Returns true if the order was
// removed.
func (q *sideQueue) fill(id uint64, qty decimal.Decimal) bool {
	order, ok := q.orders[id]
	if !ok {
		return false
	}

	el, ok := q.levelIndex[order.Price.String()]
	if !ok {
		return false
	}
	unit, _ := el.Value.(*priceLevel)

	order.Remaining = order.Remaining.Sub(qty)
	unit.totalSize = unit.totalSize.Sub(qty)

	if order.Remaining.IsZero() {
		q.removeOrder(id)
		return true
	}
	return false
}

// peekHead returns the oldest order at the best price without removing it.
func (q *sideQueue) peekHead() *Order {
	el := q.levelList.Front()
	if el == nil {
		return nil
	}

	unit, _ := el.Value.(*priceLevel)
	return unit.head
}

// bestLevel returns the best price and its aggregate size.
func (q *sideQueue) bestLevel() (decimal.Decimal, decimal.Decimal, bool) {
	el := q.levelList.Front()
	if el == nil {
		return decimal.Zero, decimal.Zero, false
	}

	unit, _ := el.Value.(*priceLevel)
	return unit.head.Price, unit.totalSize, true
}

// orderCount returns the number of live orders on this side.
func (q *sideQueue) orderCount() int64 {
	return q.totalOrders
}

// depthCount returns the number of price levels on this side.
func (q *sideQueue) depthCount() int64 {
	return q.depths
}

// depth returns up to limit aggregated levels, best price first.
func (q *sideQueue) depth(limit int) []DepthItem {
	result := make([]DepthItem, 0, limit)

	el := q.levelList.Front()
	for i := 0; i < limit && el != nil; i++ {
		unit, _ := el.Value.(*priceLevel)
		result = append(result, DepthItem{
			Price:  unit.head.Price,
			Size:   unit.totalSize,
			Orders: unit.count,
		})
		el = el.Next()
	}

	return result
}
