package vm

// Scope is one entry of a scope chain.
type Scope struct {
	values Object
	with   bool
}

// NewScope returns a scope entry for obj.
func NewScope(obj Object) Scope {
	return Scope{values: obj}
}

// NewWithScope returns a scope entry pushed by a with statement.
func NewWithScope(obj Object) Scope {
	return Scope{values: obj, with: true}
}

// Values returns the scope object.
func (s Scope) Values() Object { return s.values }

// IsWith reports whether the scope was pushed by a with statement.
func (s Scope) IsWith() bool { return s.with }

// ScopeChain is the captured lexical environment of a method: the domain
// used for name resolution and the scope objects outside it. Scope chains
// are immutable values; Chain returns an extended copy.
type ScopeChain struct {
	domain *Domain
	scopes []Scope
}

// NewScopeChain returns an empty chain resolving in domain.
func NewScopeChain(domain *Domain) ScopeChain {
	return ScopeChain{domain: domain}
}

// Chain returns a copy of sc with scopes appended.
func (sc ScopeChain) Chain(scopes ...Scope) ScopeChain {
	if len(scopes) == 0 {
		return sc
	}
	joined := make([]Scope, 0, len(sc.scopes)+len(scopes))
	joined = append(joined, sc.scopes...)
	joined = append(joined, scopes...)
	return ScopeChain{domain: sc.domain, scopes: joined}
}

// Domain returns the chain's domain.
func (sc ScopeChain) Domain() *Domain { return sc.domain }

// Len returns the number of scope entries.
func (sc ScopeChain) Len() int { return len(sc.scopes) }

// Get returns the scope entry at depth i, outermost first.
func (sc ScopeChain) Get(i int) (Scope, bool) {
	if i < 0 || i >= len(sc.scopes) {
		return Scope{}, false
	}
	return sc.scopes[i], true
}
