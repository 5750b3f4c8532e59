package fleet

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ReservedName addresses the commander itself rather than a bot. It can
// never be registered and never matches an explicit target segment.
const ReservedName = "commander"

// Registry is the process-wide mapping from bot name to bot handle. Names
// compare case-insensitively; iteration order is ascending by lowercased
// name so resolution is order-stable for a fixed registry snapshot.
//
// Registry reads are lock-shared and cheap; mutation (add/remove/rename)
// happens outside any dispatch cycle — target sets are resolved once,
// upfront, before dispatch starts.
type Registry struct {
	mu   sync.RWMutex
	bots map[string]Worker // keyed by lowercased name
}

func NewRegistry() *Registry {
	return &Registry{
		bots: make(map[string]Worker),
	}
}

// Add registers a bot. The name must be non-empty, not reserved, and not
// already taken under case-insensitive comparison.
func (r *Registry) Add(w Worker) error {
	name := strings.TrimSpace(w.Name())
	if name == "" {
		return fmt.Errorf("bot name must not be empty")
	}
	key := strings.ToLower(name)
	if key == ReservedName {
		return fmt.Errorf("bot name %q is reserved", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bots[key]; exists {
		return fmt.Errorf("bot %q is already registered", name)
	}
	r.bots[key] = w
	return nil
}

// Remove drops a bot by name; reports whether it was present.
func (r *Registry) Remove(name string) bool {
	key := strings.ToLower(strings.TrimSpace(name))

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bots[key]; !exists {
		return false
	}
	delete(r.bots, key)
	return true
}

// Get looks a bot up by name, case-insensitively.
func (r *Registry) Get(name string) (Worker, bool) {
	key := strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.bots[key]
	return w, ok
}

// Count returns the number of registered bots.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bots)
}

// Snapshot returns all registered bots ordered by lowercased name.
func (r *Registry) Snapshot() []Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []Worker {
	keys := make([]string, 0, len(r.bots))
	for key := range r.bots {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]Worker, 0, len(keys))
	for _, key := range keys {
		out = append(out, r.bots[key])
	}
	return out
}

// Rename changes a bot's registry key and, through persist, its on-disk
// identity, atomically under the registry lock. The conflict check runs
// before any mutation: an existing target name or a reserved/invalid new
// name rejects the rename with no state touched. persist may be nil when
// there is no backing storage to move.
func (r *Registry) Rename(oldName, newName string, persist func(oldName, newName string) bool) error {
	oldKey := strings.ToLower(strings.TrimSpace(oldName))
	newKey := strings.ToLower(strings.TrimSpace(newName))

	if newKey == "" {
		return fmt.Errorf("new bot name must not be empty")
	}
	if newKey == ReservedName {
		return fmt.Errorf("bot name %q is reserved", newName)
	}
	if strings.ContainsAny(newName, ", ") {
		return fmt.Errorf("bot name %q must not contain commas or spaces", newName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w, exists := r.bots[oldKey]
	if !exists {
		return fmt.Errorf("bot %q is not registered", oldName)
	}
	if _, taken := r.bots[newKey]; taken && newKey != oldKey {
		return fmt.Errorf("bot %q already exists", newName)
	}

	if persist != nil && !persist(w.Name(), newName) {
		return fmt.Errorf("failed to persist rename of %q to %q", oldName, newName)
	}

	if !w.Rename(newName) {
		return fmt.Errorf("bot %q rejected rename to %q", oldName, newName)
	}

	delete(r.bots, oldKey)
	r.bots[newKey] = w
	return nil
}
