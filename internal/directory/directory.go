// Package directory tracks the set of game servers currently registered
// with the broker and their advertised connection info.
package directory

import (
	"sync"
)

// Entry is one game server's directory record.
type Entry struct {
	Identifier int
	Name       string
	IP         string
	Port       uint16
	PlayersOn  uint64
	MaxPlayers uint64
}

// Directory maps connection identifiers to directory entries and maintains
// a name-to-identifier inverse index. The invariant held at all times: the
// name index is the exact inverse of the identifier index — every name in
// byName maps to an identifier present in byID with that same name, and
// every entry in byID has its name present in byName.
type Directory struct {
	mu     sync.RWMutex
	byID   map[int]Entry
	byName map[string]int
	order  []int // identifiers, in first-insertion order
}

// New returns an empty Directory.
func New() *Directory {
	return &Directory{
		byID:   make(map[int]Entry),
		byName: make(map[string]int),
	}
}

// Upsert inserts or replaces the entry for identifier. If a different
// identifier already holds entry.Name, its entry and name-index record are
// removed first, so two identifiers can never claim the same server name.
// An identifier keeps its position in insertion order across updates; only
// a fresh identifier is appended.
func (d *Directory) Upsert(entry Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existingID, ok := d.byName[entry.Name]; ok && existingID != entry.Identifier {
		delete(d.byID, existingID)
		d.removeFromOrder(existingID)
	}
	if old, ok := d.byID[entry.Identifier]; ok {
		if old.Name != entry.Name {
			delete(d.byName, old.Name)
		}
	} else {
		d.order = append(d.order, entry.Identifier)
	}
	d.byID[entry.Identifier] = entry
	d.byName[entry.Name] = entry.Identifier
}

// Remove deletes the entry for identifier, if any, from both indexes and
// from insertion order.
func (d *Directory) Remove(identifier int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.byID[identifier]
	if !ok {
		return
	}
	delete(d.byID, identifier)
	if d.byName[entry.Name] == identifier {
		delete(d.byName, entry.Name)
	}
	d.removeFromOrder(identifier)
}

// removeFromOrder drops identifier from the insertion-order slice, if
// present.
func (d *Directory) removeFromOrder(identifier int) {
	for i, id := range d.order {
		if id == identifier {
			d.order = append(d.order[:i], d.order[i+1:]...)
			return
		}
	}
}

// ByID returns the entry registered under identifier, if any.
func (d *Directory) ByID(identifier int) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byID[identifier]
	return e, ok
}

// ByName returns the entry registered under name, if any.
func (d *Directory) ByName(name string) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byName[name]
	if !ok {
		return Entry{}, false
	}
	e, ok := d.byID[id]
	return e, ok
}

// UpdateCounts overwrites the players-on and max-players counts for the
// server registered under name, leaving name/ip/port unchanged. Reports
// false if no such server is registered.
func (d *Directory) UpdateCounts(name string, playersOn, maxPlayers uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.byName[name]
	if !ok {
		return false
	}
	entry := d.byID[id]
	entry.PlayersOn = playersOn
	entry.MaxPlayers = maxPlayers
	d.byID[id] = entry
	return true
}

// All returns a snapshot of every registered entry, in the order each
// identifier was first inserted. Paging (e.g. the server-list reply) relies
// on this order being stable across calls that don't themselves mutate the
// directory.
func (d *Directory) All() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Entry, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id])
	}
	return out
}

// Len returns the number of registered servers.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}
