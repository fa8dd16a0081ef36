package match

import "sync"

// BookLogSink receives order book logs (opens, matches, cancels, rejects)
// as they are produced.
//
// Implementations must not mutate the logs; the exchange republishes the
// same records as market-data messages.
type BookLogSink interface {
	Publish(...*BookLog)
}

// MemoryBookLogSink stores logs in memory, useful for testing and for
// rebuilding aggregated views.
type MemoryBookLogSink struct {
	mu   sync.RWMutex
	logs []*BookLog
}

// NewMemoryBookLogSink creates a new MemoryBookLogSink.
func NewMemoryBookLogSink() *MemoryBookLogSink {
	return &MemoryBookLogSink{
		logs: make([]*BookLog, 0),
	}
}

// Publish appends logs to the in-memory slice.
func (m *MemoryBookLogSink) Publish(logs ...*BookLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, logs...)
}

// Count returns the number of logs stored.
func (m *MemoryBookLogSink) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.logs)
}

// Get returns the log at the specified index.
func (m *MemoryBookLogSink) Get(index int) *BookLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.logs[index]
}

// Logs returns a copy of all logs stored.
func (m *MemoryBookLogSink) Logs() []*BookLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	logs := make([]*BookLog, len(m.logs))
	copy(logs, m.logs)
	return logs
}

// DiscardBookLogSink discards all logs, useful for benchmarking.
type DiscardBookLogSink struct {
}

// NewDiscardBookLogSink creates a new DiscardBookLogSink.
func NewDiscardBookLogSink() *DiscardBookLogSink {
	return &DiscardBookLogSink{}
}

// Publish does nothing.
func (p *DiscardBookLogSink) Publish(logs ...*BookLog) {

}
