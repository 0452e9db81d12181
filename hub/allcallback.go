package hub

import (
	"errors"
	"sync"
)

// allCallback is a reference-counted coordinator that issues N
// sub-callbacks and fires one terminal callback once all N have
// reported, combining per-sub errors into one. Grounded on
// original_source/src/nan/all_callback.h; required so Unwatch can
// respond only after both the worker and polling backends have
// acknowledged removal of a channel that was split across them.
type allCallback struct {
	mu       sync.Mutex
	remaining int
	err      error
	terminal func(error)
	fired    bool
}

// newAllCallback returns a coordinator expecting n sub-callbacks. n must
// be >= 1; terminal fires synchronously from whichever call reports last.
func newAllCallback(n int, terminal func(error)) *allCallback {
	return &allCallback{remaining: n, terminal: terminal}
}

// report records one sub-callback's outcome. Once every expected
// sub-callback has reported, terminal fires exactly once.
func (a *allCallback) report(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		if a.err == nil {
			a.err = err
		} else {
			a.err = errors.Join(a.err, err)
		}
	}

	a.remaining--
	if a.remaining > 0 || a.fired {
		return
	}
	a.fired = true
	a.terminal(a.err)
}
