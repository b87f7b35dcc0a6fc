package vm

import "strings"

type multinameFlags uint8

const (
	multinameAttribute multinameFlags = 1 << iota
	multinameLazyNamespace
	multinameLazyName
	multinameAnyName
)

// Multiname is a possibly ambiguous name: a local name looked up in a set of
// namespaces. Either component may be supplied at runtime ("lazy"), and a
// multiname may carry type parameters for a generic application.
//
// The any type "*" is a multiname with the any namespace and no name.
type Multiname struct {
	namespaces []Namespace
	name       string
	flags      multinameFlags
	params     []*Multiname
}

// NewMultiname returns the multiname for local in a single namespace.
func NewMultiname(ns Namespace, local string) *Multiname {
	return &Multiname{namespaces: []Namespace{ns}, name: local}
}

// NewMultinameSet returns a multiname searching several namespaces.
func NewMultinameSet(namespaces []Namespace, local string) *Multiname {
	return &Multiname{namespaces: append([]Namespace(nil), namespaces...), name: local}
}

// AnyMultiname returns the any type "*".
func AnyMultiname() *Multiname {
	return &Multiname{namespaces: []Namespace{AnyNamespace}, flags: multinameAnyName}
}

// MultinameFromQName converts a qualified name to a multiname.
func MultinameFromQName(q QName) *Multiname {
	return NewMultiname(q.ns, q.local)
}

// Namespaces returns the namespaces searched by this multiname.
func (m *Multiname) Namespaces() []Namespace { return m.namespaces }

// LocalName returns the local name. The boolean is false for lazy and any
// names.
func (m *Multiname) LocalName() (string, bool) {
	if m.flags&(multinameLazyName|multinameAnyName) != 0 {
		return "", false
	}
	return m.name, true
}

// Params returns the type parameters of a generic application.
func (m *Multiname) Params() []*Multiname { return m.params }

// IsAttribute reports whether the name addresses an attribute.
func (m *Multiname) IsAttribute() bool { return m.flags&multinameAttribute != 0 }

// HasLazyNamespace reports whether the namespace is supplied at runtime.
func (m *Multiname) HasLazyNamespace() bool { return m.flags&multinameLazyNamespace != 0 }

// HasLazyName reports whether the local name is supplied at runtime.
func (m *Multiname) HasLazyName() bool { return m.flags&multinameLazyName != 0 }

// HasLazyComponent reports whether any component is supplied at runtime.
func (m *Multiname) HasLazyComponent() bool { return m.HasLazyNamespace() || m.HasLazyName() }

// IsAnyName reports whether the name matches any local name.
func (m *Multiname) IsAnyName() bool { return m.flags&multinameAnyName != 0 }

// IsAnyNamespace reports whether the name matches any namespace.
func (m *Multiname) IsAnyNamespace() bool {
	for _, ns := range m.namespaces {
		if ns.IsAny() {
			return true
		}
	}
	return false
}

// IsAny reports whether m is the any type "*".
func (m *Multiname) IsAny() bool {
	return m.IsAnyName() && m.IsAnyNamespace()
}

// ContainsPublicNamespace reports whether the unnamed public namespace is
// among the searched namespaces.
func (m *Multiname) ContainsPublicNamespace() bool {
	for _, ns := range m.namespaces {
		if ns.IsPublic() {
			return true
		}
	}
	return false
}

// ToQName returns the single qualified name this multiname denotes, if it
// has exactly one namespace and a static name.
func (m *Multiname) ToQName() (QName, bool) {
	local, ok := m.LocalName()
	if !ok || len(m.namespaces) != 1 {
		return QName{}, false
	}
	return NewQName(m.namespaces[0], local), true
}

// WithParams returns a copy of m applied to the given type parameters.
func (m *Multiname) WithParams(params []*Multiname) *Multiname {
	c := *m
	c.params = append([]*Multiname(nil), params...)
	return &c
}

func (m *Multiname) String() string {
	var sb strings.Builder
	if m.IsAttribute() {
		sb.WriteByte('@')
	}
	switch {
	case m.HasLazyNamespace():
		sb.WriteString("[rt]::")
	case len(m.namespaces) == 1 && !m.namespaces[0].IsAny() && m.namespaces[0].URI() != "":
		sb.WriteString(m.namespaces[0].URI())
		sb.WriteString("::")
	}
	switch {
	case m.HasLazyName():
		sb.WriteString("[rt]")
	case m.IsAnyName():
		sb.WriteByte('*')
	default:
		sb.WriteString(m.name)
	}
	if len(m.params) > 0 {
		sb.WriteString(".<")
		for i, p := range m.params {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(p.String())
		}
		sb.WriteByte('>')
	}
	return sb.String()
}
