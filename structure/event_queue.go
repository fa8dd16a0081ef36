package structure

import (
	"errors"
	"math/rand"
)

// EventQueue is a fixed-level skiplist with arena-based node management,
// keyed by (time, seq). It backs the kernel's pending-event queue: Push is
// O(log N), PopMin is O(1) amortized, and iteration order is the strict
// total order the simulator's determinism rests on.
//
// All nodes carry fixed maxLevel forward pointers so they can live in a
// pooled arena; the arena expands geometrically when exhausted. Level
// generation uses a caller-seeded RNG, so the internal shape of the list is
// identical across replays.

const (
	maxLevel      = 16 // maximum level height
	levelP        = 4  // 1/levelP probability of level increase
	growthFactor  = 2  // arena expansion factor
	nilIndex      = -1
	sentinelIndex = 0
)

var (
	ErrQueueCapacity = errors.New("event queue: max capacity reached")
	ErrDuplicateKey  = errors.New("event queue: duplicate event key")
)

// EventKey orders pending events: primary by virtual time, ties broken by
// the insertion sequence number.
type EventKey struct {
	Time int64
	Seq  uint64
}

// Less reports whether k is dispatched before other.
func (k EventKey) Less(other EventKey) bool {
	if k.Time != other.Time {
		return k.Time < other.Time
	}
	return k.Seq < other.Seq
}

type eventNode struct {
	forward [maxLevel]int32
	key     EventKey
	value   any
	level   int32
}

// QueueOptions configures the event queue behavior.
type QueueOptions struct {
	// MaxCapacity sets the maximum number of pending events allowed.
	// If 0 (default), the queue grows indefinitely.
	MaxCapacity int32

	// OnGrow is called when the arena expands.
	OnGrow func(oldCap, newCap int32)
}

// EventQueue is an arena-backed skiplist of pending events.
type EventQueue struct {
	nodes       []eventNode
	freeHead    int32
	count       int32
	level       int32
	rng         *rand.Rand
	maxCapacity int32
	onGrow      func(int32, int32)
}

// NewEventQueue creates an event queue with pre-allocated capacity. The seed
// drives skiplist level generation only; it never influences dispatch order.
func NewEventQueue(capacity int32, seed int64) *EventQueue {
	return NewEventQueueWithOptions(capacity, seed, QueueOptions{})
}

// NewEventQueueWithOptions creates an event queue with custom options.
func NewEventQueueWithOptions(capacity int32, seed int64, opts QueueOptions) *EventQueue {
	// +1 for the head sentinel
	totalCap := capacity + 1
	q := &EventQueue{
		nodes:       make([]eventNode, totalCap),
		freeHead:    1, // 0 is reserved for the sentinel
		level:       1,
		rng:         rand.New(rand.NewSource(seed)),
		maxCapacity: opts.MaxCapacity,
		onGrow:      opts.OnGrow,
	}

	q.nodes[sentinelIndex].level = maxLevel
	for i := 0; i < maxLevel; i++ {
		q.nodes[sentinelIndex].forward[i] = nilIndex
	}

	// Free list starting from index 1
	for i := int32(1); i < totalCap-1; i++ {
		q.nodes[i].forward[0] = i + 1
	}
	q.nodes[totalCap-1].forward[0] = nilIndex

	return q
}

// grow expands the arena capacity.
func (q *EventQueue) grow() error {
	oldCap := int32(len(q.nodes))
	newCap := oldCap * growthFactor

	// maxCapacity counts events; the arena also holds the head sentinel.
	if q.maxCapacity > 0 && newCap > q.maxCapacity+1 {
		if oldCap >= q.maxCapacity+1 {
			return ErrQueueCapacity
		}
		newCap = q.maxCapacity + 1
	}

	if q.onGrow != nil {
		q.onGrow(oldCap, newCap)
	}

	newNodes := make([]eventNode, newCap)
	copy(newNodes, q.nodes)

	for i := oldCap; i < newCap-1; i++ {
		newNodes[i].forward[0] = i + 1
	}
	newNodes[newCap-1].forward[0] = q.freeHead
	q.freeHead = oldCap

	q.nodes = newNodes
	return nil
}

// alloc takes a node from the free list, growing the arena if necessary.
func (q *EventQueue) alloc() (int32, error) {
	if q.freeHead == nilIndex {
		if err := q.grow(); err != nil {
			return nilIndex, err
		}
	}
	idx := q.freeHead
	q.freeHead = q.nodes[idx].forward[0]

	for i := 0; i < maxLevel; i++ {
		q.nodes[idx].forward[i] = nilIndex
	}
	return idx, nil
}

// free returns a node to the free list.
func (q *EventQueue) free(idx int32) {
	q.nodes[idx].value = nil
	q.nodes[idx].forward[0] = q.freeHead
	q.freeHead = idx
}

func (q *EventQueue) randomLevel() int32 {
	level := int32(1)
	for level < maxLevel && q.rng.Intn(levelP) == 0 {
		level++
	}
	return level
}

// Push inserts a pending event. Keys must be unique; the kernel guarantees
// this by assigning a fresh seq per event, and a duplicate is rejected here
// as a defensive check.
func (q *EventQueue) Push(key EventKey, value any) error {
	var update [maxLevel]int32
	x := int32(sentinelIndex)

	for i := q.level - 1; i >= 0; i-- {
		for q.nodes[x].forward[i] != nilIndex &&
			q.nodes[q.nodes[x].forward[i]].key.Less(key) {
			x = q.nodes[x].forward[i]
		}
		update[i] = x
	}

	x = q.nodes[x].forward[0]
	if x != nilIndex && q.nodes[x].key == key {
		return ErrDuplicateKey
	}

	newLevel := q.randomLevel()
	if newLevel > q.level {
		for i := q.level; i < newLevel; i++ {
			update[i] = sentinelIndex
		}
		q.level = newLevel
	}

	idx, err := q.alloc()
	if err != nil {
		return err
	}
	q.nodes[idx].key = key
	q.nodes[idx].value = value
	q.nodes[idx].level = newLevel

	for i := int32(0); i < newLevel; i++ {
		q.nodes[idx].forward[i] = q.nodes[update[i]].forward[i]
		q.nodes[update[i]].forward[i] = idx
	}

	q.count++
	return nil
}

// PeekMin returns the earliest pending event without removing it.
func (q *EventQueue) PeekMin() (EventKey, any, bool) {
	x := q.nodes[sentinelIndex].forward[0]
	if x == nilIndex {
		return EventKey{}, nil, false
	}
	return q.nodes[x].key, q.nodes[x].value, true
}

// PopMin removes and returns the earliest pending event.
func (q *EventQueue) PopMin() (EventKey, any, bool) {
	x := q.nodes[sentinelIndex].forward[0]
	if x == nilIndex {
		return EventKey{}, nil, false
	}

	key := q.nodes[x].key
	value := q.nodes[x].value

	for i := int32(0); i < q.level; i++ {
		if q.nodes[sentinelIndex].forward[i] != x {
			break
		}
		q.nodes[sentinelIndex].forward[i] = q.nodes[x].forward[i]
	}

	q.free(x)

	for q.level > 1 && q.nodes[sentinelIndex].forward[q.level-1] == nilIndex {
		q.level--
	}

	q.count--
	return key, value, true
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int32 {
	return q.count
}

// Capacity returns the current arena capacity.
func (q *EventQueue) Capacity() int32 {
	return int32(len(q.nodes)) - 1 // -1 for the sentinel
}
