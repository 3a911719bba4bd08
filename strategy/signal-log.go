package strategy

import "sync"

// LogEntry ties a signal to the strategy that produced it.
type LogEntry struct {
	Strategy string
	Signal   Signal
}

// SignalLog is a fixed-capacity ring of recent signals: pushing onto a full
// log evicts the oldest entry. Safe for concurrent use.
type SignalLog struct {
	mu      sync.Mutex
	entries []LogEntry
	start   int
	size    int
}

func NewSignalLog(capacity int) *SignalLog {
	if capacity <= 0 {
		capacity = 1
	}
	return &SignalLog{entries: make([]LogEntry, capacity)}
}

func (l *SignalLog) Push(strategyName string, signal Signal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := LogEntry{Strategy: strategyName, Signal: signal}
	capacity := len(l.entries)

	if l.size < capacity {
		l.entries[(l.start+l.size)%capacity] = entry
		l.size++
		return
	}

	// Full: overwrite the oldest slot and advance the window.
	l.entries[l.start] = entry
	l.start = (l.start + 1) % capacity
}

// Recent returns the logged signals, oldest first.
func (l *SignalLog) Recent() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]LogEntry, 0, l.size)
	for i := 0; i < l.size; i++ {
		out = append(out, l.entries[(l.start+i)%len(l.entries)])
	}
	return out
}

func (l *SignalLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}
