package vm

import "sync"

// ---------------------------------------------------------------------------
// StringTable: interned strings
// ---------------------------------------------------------------------------

// StringTable interns strings so that equal names loaded from different
// translation units share one backing copy. It is safe for concurrent use;
// tooling may inspect an Avm from several goroutines.
type StringTable struct {
	mu     sync.RWMutex
	byName map[string]uint32 // string -> ID
	byID   []string          // ID -> string
}

// NewStringTable creates an empty table.
func NewStringTable() *StringTable {
	return &StringTable{
		byName: make(map[string]uint32),
		byID:   make([]string, 0, 256),
	}
}

// Intern returns the canonical copy of s.
func (st *StringTable) Intern(s string) string {
	return st.Name(st.ID(s))
}

// ID returns the ID for s, assigning a new one if needed.
func (st *StringTable) ID(s string) uint32 {
	st.mu.RLock()
	if id, ok := st.byName[s]; ok {
		st.mu.RUnlock()
		return id
	}
	st.mu.RUnlock()

	st.mu.Lock()
	defer st.mu.Unlock()

	// Double-check after acquiring write lock
	if id, ok := st.byName[s]; ok {
		return id
	}

	id := uint32(len(st.byID))
	st.byName[s] = id
	st.byID = append(st.byID, s)
	return id
}

// Lookup returns the ID for s without interning it.
func (st *StringTable) Lookup(s string) (uint32, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	id, ok := st.byName[s]
	return id, ok
}

// Name returns the string for an ID, or "" if invalid.
func (st *StringTable) Name(id uint32) string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if int(id) >= len(st.byID) {
		return ""
	}
	return st.byID[id]
}

// Len returns the number of interned strings.
func (st *StringTable) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.byID)
}
