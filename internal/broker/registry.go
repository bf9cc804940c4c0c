package broker

import (
	"sync"

	"github.com/questgate/authbroker/internal/constants"
)

// Registry owns the connection identifier pool and the live connection
// tables for both listeners. Identifiers 0 and 1 are reserved for the
// listeners themselves and never handed out; real connections start at
// FirstConnectionID and are returned to the pool on disconnect.
type Registry struct {
	mu        sync.RWMutex
	clients   map[int]*Connection
	servers   map[int]*Connection
	freeIDs   []int
	nextFresh int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		clients:   make(map[int]*Connection),
		servers:   make(map[int]*Connection),
		nextFresh: constants.FirstConnectionID,
	}
}

// Acquire returns an unused connection identifier, preferring one released
// back to the pool by a prior disconnect over minting a fresh one.
func (r *Registry) Acquire() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.freeIDs); n > 0 {
		id := r.freeIDs[n-1]
		r.freeIDs = r.freeIDs[:n-1]
		return id
	}
	id := r.nextFresh
	r.nextFresh++
	return id
}

// Release returns identifier to the free pool.
func (r *Registry) Release(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.freeIDs = append(r.freeIDs, id)
}

// AddClient registers a player connection.
func (r *Registry) AddClient(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
}

// AddServer registers a game-server connection.
func (r *Registry) AddServer(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[c.ID] = c
}

// RemoveClient drops a player connection and releases its identifier.
func (r *Registry) RemoveClient(id int) {
	r.mu.Lock()
	delete(r.clients, id)
	r.mu.Unlock()
	r.Release(id)
}

// RemoveServer drops a game-server connection and releases its identifier.
func (r *Registry) RemoveServer(id int) {
	r.mu.Lock()
	delete(r.servers, id)
	r.mu.Unlock()
	r.Release(id)
}

// Client returns the player connection registered under id, if any.
func (r *Registry) Client(id int) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Server returns the game-server connection registered under id, if any.
func (r *Registry) Server(id int) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.servers[id]
	return c, ok
}

// Clients returns a snapshot slice of every registered player connection.
func (r *Registry) Clients() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Servers returns a snapshot slice of every registered game-server
// connection.
func (r *Registry) Servers() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.servers))
	for _, c := range r.servers {
		out = append(out, c)
	}
	return out
}

// FindServerByName returns the game-server connection registered under the
// given directory name, used by Login to deliver a KillClient notice to the
// server a reconnecting player's prior session is still pinned to.
func (r *Registry) FindServerByName(name string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.servers {
		c.mu.Lock()
		match := c.ServerName == name
		c.mu.Unlock()
		if match {
			return c, true
		}
	}
	return nil, false
}

// ClientByUsername returns the currently-logged-in player connection for
// username, used to detect and reject concurrent multi-login.
func (r *Registry) ClientByUsername(username string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		c.mu.Lock()
		match := c.Username == username
		c.mu.Unlock()
		if match {
			return c, true
		}
	}
	return nil, false
}
