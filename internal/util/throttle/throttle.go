package throttle

import (
	"sync"
	"time"
)

// Keyed provides per-key time-based rate limiting. Each key is allowed one
// action per window; keys are independent. Safe for concurrent use.
type Keyed struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

// NewKeyed creates a keyed limiter with the specified window.
func NewKeyed(window time.Duration) *Keyed {
	return &Keyed{
		window: window,
		last:   make(map[string]time.Time),
	}
}

// Allow checks if an action for key is allowed at this time. Returns true
// if allowed (and records this as the key's last allowed time), or false
// with the remaining wait duration if rate-limited.
func (k *Keyed) Allow(key string) (bool, time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	sinceLast := now.Sub(k.last[key])

	if sinceLast >= k.window {
		k.last[key] = now
		return true, 0
	}

	return false, k.window - sinceLast
}

// Force records an action for key unconditionally, restarting its window.
// Used for explicit user actions that must never be suppressed.
func (k *Keyed) Force(key string) {
	k.mu.Lock()
	k.last[key] = time.Now()
	k.mu.Unlock()
}

// Reset clears a key's state, allowing its next action immediately.
func (k *Keyed) Reset(key string) {
	k.mu.Lock()
	delete(k.last, key)
	k.mu.Unlock()
}

// Window returns the configured rate limit window.
func (k *Keyed) Window() time.Duration {
	return k.window
}
