package toposort

import "sync"

// SymbolTable interns node names as dense integer ids so the adjacency
// structures can be plain slices.
type SymbolTable struct {
	mu      sync.RWMutex
	strToID map[string]int
	idToStr []string
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{strToID: make(map[string]int)}
}

// Intern returns the id for name, assigning the next dense id on first
// sight.
func (t *SymbolTable) Intern(name string) int {
	t.mu.RLock()
	id, ok := t.strToID[name]
	t.mu.RUnlock()

	if ok {
		return id
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Double check under the write lock.
	if id, ok := t.strToID[name]; ok {
		return id
	}

	id = len(t.idToStr)
	t.idToStr = append(t.idToStr, name)
	t.strToID[name] = id

	return id
}

// Lookup returns the id for name without interning it.
func (t *SymbolTable) Lookup(name string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	id, ok := t.strToID[name]

	return id, ok
}

// Resolve returns the name behind id, or "" for an unknown id.
func (t *SymbolTable) Resolve(id int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if id < 0 || id >= len(t.idToStr) {
		return ""
	}

	return t.idToStr[id]
}

// Len returns the number of interned names.
func (t *SymbolTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.idToStr)
}
