package session

import "sync"

// Base tracks bound requests so a session is destroyed only after it was
// unprovisioned and its last request finished. Embed it in concrete sessions.
type Base struct {
	name          string
	mu            sync.Mutex
	active        int
	unprovisioned bool
	destroyed     bool
	onDestroy     func(name string)
}

// NewBase creates a base; onDestroy runs exactly once, outside the lock.
func NewBase(name string, onDestroy func(name string)) *Base {
	return &Base{name: name, onDestroy: onDestroy}
}

// Name returns the session name.
func (b *Base) Name() string { return b.name }

// Attach counts a request the session started processing. It returns false
// when the session is already being torn down.
func (b *Base) Attach() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unprovisioned || b.destroyed {
		return false
	}
	b.active++
	return true
}

// Detach releases a request counted by Attach.
func (b *Base) Detach() {
	b.mu.Lock()
	if b.active > 0 {
		b.active--
	}
	destroy := b.readyToDestroy()
	b.mu.Unlock()
	if destroy {
		b.destroy()
	}
}

// Active returns the number of attached requests.
func (b *Base) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Destroyed reports whether the session has been torn down.
func (b *Base) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// Unprovision implements Session.Unprovision.
func (b *Base) Unprovision(forced bool) bool {
	b.mu.Lock()
	if b.unprovisioned {
		b.mu.Unlock()
		return true
	}
	if b.active > 0 && !forced {
		b.mu.Unlock()
		return false
	}
	b.unprovisioned = true
	destroy := b.readyToDestroy()
	b.mu.Unlock()
	if destroy {
		b.destroy()
	}
	return true
}

// readyToDestroy must be called with the lock held; it flips destroyed at most once.
func (b *Base) readyToDestroy() bool {
	if !b.unprovisioned || b.active > 0 || b.destroyed {
		return false
	}
	b.destroyed = true
	return true
}

func (b *Base) destroy() {
	if b.onDestroy != nil {
		b.onDestroy(b.name)
	}
}
