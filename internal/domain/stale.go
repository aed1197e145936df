package domain

import "sync"

// StaleFilter tracks the newest token delivered on one channel so responses
// that arrive after a newer one can be recognised. It only means something
// when tokens increase with submission order, e.g. a request timestamp in
// milliseconds.
type StaleFilter struct {
	mu     sync.Mutex
	latest int64
	seen   bool
}

// Accept reports whether a response with this token is current, and records
// it as delivered when it is.
func (f *StaleFilter) Accept(token int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen && token < f.latest {
		return false
	}
	f.latest = token
	f.seen = true
	return true
}

// Observe records a delivered token without judging it.
func (f *StaleFilter) Observe(token int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.seen || token > f.latest {
		f.latest = token
		f.seen = true
	}
}

// Latest returns the newest delivered token.
func (f *StaleFilter) Latest() (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.seen
}
