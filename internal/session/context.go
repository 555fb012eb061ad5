// Package session holds the explicit handle consumers use to observe the
// currently signed-in identity.
package session

import (
	"context"
	"sync"

	"ecocivic/api/internal/store"
)

// Event is delivered to subscribers on every session change. User is nil
// after a logout.
type Event struct {
	User    *store.User `json:"user"`
	Version uint64      `json:"version"`
}

// Source is where Refresh reads the authoritative session from.
type Source interface {
	CurrentUser(ctx context.Context) (*store.User, error)
}

// Context mirrors the persisted session in memory. Consumers either poll
// Version and Current, or Subscribe for change events.
type Context struct {
	mu      sync.RWMutex
	user    *store.User
	version uint64
	subs    map[int]chan Event
	nextSub int
}

func New() *Context {
	return &Context{subs: make(map[int]chan Event)}
}

// Current returns a copy of the session holder, or nil.
func (c *Context) Current() *store.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneUser(c.user)
}

// Version increases by one on every Publish.
func (c *Context) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Publish records user as the session holder and notifies subscribers.
// A subscriber whose buffer is full loses its oldest pending event so the
// latest state always gets through.
func (c *Context) Publish(user *store.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.user = cloneUser(user)
	c.version++

	for _, ch := range c.subs {
		event := Event{User: cloneUser(user), Version: c.version}
		select {
		case ch <- event:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a listener. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (c *Context) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Refresh reloads the session from src and publishes it.
func (c *Context) Refresh(ctx context.Context, src Source) error {
	user, err := src.CurrentUser(ctx)
	if err != nil {
		return err
	}
	c.Publish(user)
	return nil
}

func cloneUser(user *store.User) *store.User {
	if user == nil {
		return nil
	}
	clone := user.Clone()
	return &clone
}
