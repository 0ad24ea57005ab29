package logx

import "sync"

// Once remembers which keys have already been reported, so a diagnostic
// is emitted a single time per key for the lifetime of the Once.
type Once struct {
	seen sync.Map
}

// First reports whether key is seen for the first time
func (o *Once) First(key string) bool {
	_, loaded := o.seen.LoadOrStore(key, struct{}{})
	return !loaded
}

// Warn logs at warn level only the first time key is seen
func (o *Once) Warn(l *Logger, key string, msg string, args ...any) bool {
	if !o.First(key) {
		return false
	}
	l.Warn(msg, args...)
	return true
}
