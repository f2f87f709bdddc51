package task

import (
	"runtime/debug"
	"sync"

	"github.com/charmbracelet/log"
)

// Cancellations groups cancel callbacks under a scope key so that leaving a
// view can stop every pipeline it started in one call.
type Cancellations struct {
	mu     sync.Mutex
	groups map[string][]entry
	nextID uint64
	logger *log.Logger
}

type entry struct {
	id uint64
	fn func()
}

// NewCancellations creates an empty registry. A nil logger uses log.Default().
func NewCancellations(logger *log.Logger) *Cancellations {
	if logger == nil {
		logger = log.Default()
	}
	return &Cancellations{
		groups: make(map[string][]entry),
		logger: logger,
	}
}

// Add appends fn to the callbacks registered under key. The returned func
// removes this one callback again; after Run it does nothing.
func (c *Cancellations) Add(key string, fn func()) (remove func()) {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.groups[key] = append(c.groups[key], entry{id: id, fn: fn})
	return func() { c.remove(key, id) }
}

// Register returns a registration func for Task.Cancel that files the task's
// cancel callback under key
func (c *Cancellations) Register(key string) func(cancel func()) (release func()) {
	return func(cancel func()) func() { return c.Add(key, cancel) }
}

func (c *Cancellations) remove(key string, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.groups[key]
	for i, e := range entries {
		if e.id != id {
			continue
		}
		entries = append(entries[:i:i], entries[i+1:]...)
		if len(entries) == 0 {
			delete(c.groups, key)
		} else {
			c.groups[key] = entries
		}
		return
	}
}

// Run invokes every callback under key in registration order and clears the
// key. It reports whether anything was registered; a second Run is a no-op.
func (c *Cancellations) Run(key string) bool {
	c.mu.Lock()
	entries := c.groups[key]
	delete(c.groups, key)
	c.mu.Unlock()

	// the lock is released so callbacks may register new work
	for i, e := range entries {
		c.invoke(key, i, e.fn)
	}
	return len(entries) > 0
}

// Len returns the number of callbacks registered under key
func (c *Cancellations) Len(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.groups[key])
}

func (c *Cancellations) invoke(key string, index int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("cancel callback panicked", "key", key, "index", index, "panic", r)
			c.logger.Debug("cancel callback stack", "stack", string(debug.Stack()))
		}
	}()
	fn()
}
