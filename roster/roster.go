// Package roster holds the in-memory authorization table for the bridge.
//
// The owner is never stored: callers resolve it from the chat platform (guild
// owner, channel broadcaster, chat creator) on every check and pass it in.
// Moderators are explicit and persisted through the credentials record.
package roster

import (
	"errors"
	"strings"
	"sync"

	"github.com/onnwee/streamcast/credentials"
)

var (
	// ErrPermissionDenied is returned when a non-owner attempts a roster mutation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound is returned when removing a user who is not a moderator.
	ErrNotFound = errors.New("user is not a moderator")
)

// Roster is safe for concurrent use.
type Roster struct {
	mu    sync.RWMutex
	ids   map[uint64]struct{}
	names map[uint64]string
	order []uint64 // insertion order, used for listing and persistence
}

// New returns an empty roster.
func New() *Roster {
	return &Roster{
		ids:   make(map[uint64]struct{}),
		names: make(map[uint64]string),
	}
}

// FromModerators builds a roster from persisted entries.
func FromModerators(mods []credentials.Moderator) *Roster {
	r := New()
	for _, m := range mods {
		r.put(m.ID, m.Name)
	}
	return r
}

// Load parses the MODERATORS field of a plaintext credentials record.
// Malformed entries are skipped.
func Load(rawRecordText string) *Roster {
	return FromModerators(credentials.Parse(rawRecordText).Moderators)
}

// put must be called with mu held for writing (or before the roster is shared).
func (r *Roster) put(id uint64, name string) {
	if _, ok := r.ids[id]; !ok {
		r.ids[id] = struct{}{}
		r.order = append(r.order, id)
	}
	r.names[id] = name
}

// IsAuthorized reports whether caller may run moderator-level commands.
func (r *Roster) IsAuthorized(callerID, ownerID uint64) bool {
	if callerID == ownerID {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[callerID]
	return ok
}

// IsModerator reports whether id is on the roster.
func (r *Roster) IsModerator(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

// AddModerator inserts or renames target. Only the owner may call it. The
// returned snapshot is the full roster to persist.
func (r *Roster) AddModerator(actorID, ownerID, targetID uint64, targetName string) ([]credentials.Moderator, error) {
	if actorID != ownerID {
		return nil, ErrPermissionDenied
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(targetID, targetName)
	return r.snapshotLocked(), nil
}

// RemoveModerator deletes target. Removing a non-member is ErrNotFound rather
// than a no-op.
func (r *Roster) RemoveModerator(actorID, ownerID, targetID uint64) ([]credentials.Moderator, error) {
	if actorID != ownerID {
		return nil, ErrPermissionDenied
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[targetID]; !ok {
		return nil, ErrNotFound
	}
	delete(r.ids, targetID)
	delete(r.names, targetID)
	for i, id := range r.order {
		if id == targetID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return r.snapshotLocked(), nil
}

// FindByName returns the id of the moderator whose display name equals name
// (case-sensitive first, then case-insensitive).
func (r *Roster) FindByName(name string) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if r.names[id] == name {
			return id, true
		}
	}
	for _, id := range r.order {
		if strings.EqualFold(r.names[id], name) {
			return id, true
		}
	}
	return 0, false
}

// List returns the moderators in insertion order.
func (r *Roster) List() []credentials.Moderator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Len returns the number of moderators.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

func (r *Roster) snapshotLocked() []credentials.Moderator {
	out := make([]credentials.Moderator, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, credentials.Moderator{ID: id, Name: r.names[id]})
	}
	return out
}

// consistent reports whether the id set, name map and order agree.
func (r *Roster) consistent() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.ids) != len(r.names) || len(r.ids) != len(r.order) {
		return false
	}
	for id := range r.ids {
		if _, ok := r.names[id]; !ok {
			return false
		}
	}
	for _, id := range r.order {
		if _, ok := r.ids[id]; !ok {
			return false
		}
	}
	return true
}
