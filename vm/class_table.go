package vm

import "sync"

// ---------------------------------------------------------------------------
// ClassTable: registry of linked classes
// ---------------------------------------------------------------------------

// ClassTable maps class descriptors to their linked class objects, and
// qualified names to the most recently linked class of that name.
// It's safe for concurrent reads; tooling may inspect it from several
// goroutines.
type ClassTable struct {
	mu      sync.RWMutex
	byClass map[*Class]*ClassObject
	byName  map[string]*ClassObject
	order   []*ClassObject
}

// NewClassTable creates a new empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{
		byClass: make(map[*Class]*ClassObject),
		byName:  make(map[string]*ClassObject),
	}
}

// Register adds a linked class to the table.
// Returns the previous class object registered under the same name, or nil.
func (ct *ClassTable) Register(co *ClassObject) *ClassObject {
	key := ct.classKey(co.Class())

	ct.mu.Lock()
	defer ct.mu.Unlock()

	if _, ok := ct.byClass[co.Class()]; !ok {
		ct.order = append(ct.order, co)
	}
	ct.byClass[co.Class()] = co
	old := ct.byName[key]
	ct.byName[key] = co
	return old
}

// Lookup returns the class object linked for class, or nil.
func (ct *ClassTable) Lookup(class *Class) *ClassObject {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.byClass[class]
}

// LookupName finds a class object by qualified name ("uri::local" or
// "local").
func (ct *ClassTable) LookupName(name string) *ClassObject {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.byName[name]
}

// LookupInNamespace finds a class object by namespace URI and local name.
func (ct *ClassTable) LookupInNamespace(uri, local string) *ClassObject {
	key := local
	if uri != "" {
		key = uri + "::" + local
	}
	return ct.LookupName(key)
}

// All returns all linked classes in link order.
func (ct *ClassTable) All() []*ClassObject {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	result := make([]*ClassObject, len(ct.order))
	copy(result, ct.order)
	return result
}

// Len returns the number of linked classes.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.order)
}

// classKey generates the lookup key for a class.
func (ct *ClassTable) classKey(c *Class) string {
	return c.Name().ToQualifiedName()
}
