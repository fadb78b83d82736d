package logging

import "sync"

// Limiter implements the "log 1st occurrence and every Nth after" rule
// from spec §9 Design Notes, keyed by a caller-supplied template string
// (e.g. a transition key "waiting--wake_up-->waiting" or an action name).
// It caps telemetry volume under hot self-loops without suppressing it
// entirely.
type Limiter struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewLimiter returns a ready Limiter.
func NewLimiter() *Limiter {
	return &Limiter{counts: make(map[string]int)}
}

// Allow reports whether the caller should log this occurrence of key: the
// first time key is seen, and every every-th time after.
func (l *Limiter) Allow(key string, every int) bool {
	if every < 1 {
		every = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counts[key]++
	n := l.counts[key]
	return n == 1 || n%every == 0
}

// Count returns the number of times key has been seen so far.
func (l *Limiter) Count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[key]
}

// Reset clears all counters, used in tests.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts = make(map[string]int)
}
