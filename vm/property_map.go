package vm

import (
	"iter"
	"slices"
)

// PropertyMap maps qualified names to values. Entries are grouped by local
// name, so a multiname lookup scans only the namespaces sharing that name.
type PropertyMap[V any] struct {
	names map[string][]propertyEntry[V]
	count int
}

type propertyEntry[V any] struct {
	ns    Namespace
	value V
}

// NewPropertyMap creates an empty map.
func NewPropertyMap[V any]() *PropertyMap[V] {
	return &PropertyMap[V]{names: make(map[string][]propertyEntry[V])}
}

// Get returns the value stored under name.
func (pm *PropertyMap[V]) Get(name QName) (V, bool) {
	for _, e := range pm.names[name.local] {
		if e.ns == name.ns {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

// Insert stores value under name, replacing any previous value.
func (pm *PropertyMap[V]) Insert(name QName, value V) {
	entries := pm.names[name.local]
	for i := range entries {
		if entries[i].ns == name.ns {
			entries[i].value = value
			return
		}
	}
	pm.names[name.local] = append(entries, propertyEntry[V]{ns: name.ns, value: value})
	pm.count++
}

// Remove deletes the value stored under name.
func (pm *PropertyMap[V]) Remove(name QName) bool {
	entries := pm.names[name.local]
	for i := range entries {
		if entries[i].ns == name.ns {
			entries = slices.Delete(entries, i, i+1)
			if len(entries) == 0 {
				delete(pm.names, name.local)
			} else {
				pm.names[name.local] = entries
			}
			pm.count--
			return true
		}
	}
	return false
}

// GetForMultiname returns the first value matching mn.
func (pm *PropertyMap[V]) GetForMultiname(mn *Multiname) (V, bool) {
	_, v, ok := pm.GetWithNsForMultiname(mn)
	return v, ok
}

// GetWithNsForMultiname returns the first value matching mn along with the
// namespace it was found in. Namespaces are tried in the multiname's order;
// the any namespace matches the first entry with that local name.
func (pm *PropertyMap[V]) GetWithNsForMultiname(mn *Multiname) (Namespace, V, bool) {
	var zero V
	local, ok := mn.LocalName()
	if !ok {
		return Namespace{}, zero, false
	}
	entries := pm.names[local]
	if len(entries) == 0 {
		return Namespace{}, zero, false
	}
	for _, ns := range mn.Namespaces() {
		if ns.IsAny() {
			return entries[0].ns, entries[0].value, true
		}
		for _, e := range entries {
			if e.ns == ns {
				return e.ns, e.value, true
			}
		}
	}
	return Namespace{}, zero, false
}

// Len returns the number of entries.
func (pm *PropertyMap[V]) Len() int {
	return pm.count
}

// All iterates over every entry ordered by local name, then by insertion.
func (pm *PropertyMap[V]) All() iter.Seq2[QName, V] {
	return func(yield func(QName, V) bool) {
		locals := make([]string, 0, len(pm.names))
		for local := range pm.names {
			locals = append(locals, local)
		}
		slices.Sort(locals)
		for _, local := range locals {
			for _, e := range pm.names[local] {
				if !yield(NewQName(e.ns, local), e.value) {
					return
				}
			}
		}
	}
}

// Clone returns an independent copy. Values are copied shallowly.
func (pm *PropertyMap[V]) Clone() *PropertyMap[V] {
	c := &PropertyMap[V]{names: make(map[string][]propertyEntry[V], len(pm.names)), count: pm.count}
	for local, entries := range pm.names {
		c.names[local] = slices.Clone(entries)
	}
	return c
}
