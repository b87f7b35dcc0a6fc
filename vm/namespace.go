package vm

import (
	"sync/atomic"

	"github.com/chazu/clasp/abc"
)

// ---------------------------------------------------------------------------
// Namespace
// ---------------------------------------------------------------------------

// NamespaceKind distinguishes namespace flavours.
type NamespaceKind uint8

const (
	NamespacePublic NamespaceKind = iota
	NamespacePackageInternal
	NamespaceProtected
	NamespaceExplicit
	NamespaceStaticProtected
	NamespacePrivate
	NamespaceAny
)

// Namespace qualifies a name. Namespaces are comparable with ==: two
// non-private namespaces are equal when kind and URI match, while every
// private namespace is a distinct identity.
type Namespace struct {
	kind NamespaceKind
	uri  string
	id   uint64
}

var privateNamespaceIDs atomic.Uint64

// AnyNamespace matches every namespace in a lookup.
var AnyNamespace = Namespace{kind: NamespaceAny}

// PackageNamespace returns the public namespace of a package. The empty URI
// is the public namespace.
func PackageNamespace(uri string) Namespace {
	return Namespace{kind: NamespacePublic, uri: uri}
}

// NewNamespace returns a namespace of the given kind. Private namespaces get
// a fresh identity on every call.
func NewNamespace(kind NamespaceKind, uri string) Namespace {
	ns := Namespace{kind: kind, uri: uri}
	if kind == NamespacePrivate {
		ns.id = privateNamespaceIDs.Add(1)
	}
	return ns
}

func namespaceKindFromArchive(k abc.NamespaceKind) NamespaceKind {
	switch k {
	case abc.NamespacePackageInternal:
		return NamespacePackageInternal
	case abc.NamespaceProtected:
		return NamespaceProtected
	case abc.NamespaceExplicit:
		return NamespaceExplicit
	case abc.NamespaceStaticProtected:
		return NamespaceStaticProtected
	case abc.NamespacePrivate:
		return NamespacePrivate
	default:
		return NamespacePublic
	}
}

// Kind returns the namespace kind.
func (ns Namespace) Kind() NamespaceKind { return ns.kind }

// URI returns the namespace URI.
func (ns Namespace) URI() string { return ns.uri }

// IsAny reports whether ns is the any namespace.
func (ns Namespace) IsAny() bool { return ns.kind == NamespaceAny }

// IsPublic reports whether ns is the unnamed public namespace.
func (ns Namespace) IsPublic() bool { return ns.kind == NamespacePublic && ns.uri == "" }

// IsPackage reports whether ns is the public namespace of package uri.
func (ns Namespace) IsPackage(uri string) bool { return ns.kind == NamespacePublic && ns.uri == uri }

// IsPrivate reports whether ns is a private namespace.
func (ns Namespace) IsPrivate() bool { return ns.kind == NamespacePrivate }

func (ns Namespace) String() string {
	switch ns.kind {
	case NamespaceAny:
		return "*"
	case NamespacePublic:
		return ns.uri
	case NamespacePackageInternal:
		return "internal(" + ns.uri + ")"
	case NamespaceProtected:
		return "protected(" + ns.uri + ")"
	case NamespaceExplicit:
		return "explicit(" + ns.uri + ")"
	case NamespaceStaticProtected:
		return "static protected(" + ns.uri + ")"
	case NamespacePrivate:
		return "private(" + ns.uri + ")"
	default:
		return ns.uri
	}
}

// ---------------------------------------------------------------------------
// QName
// ---------------------------------------------------------------------------

// QName is a name qualified by exactly one namespace.
type QName struct {
	ns    Namespace
	local string
}

// NewQName returns the name local in namespace ns.
func NewQName(ns Namespace, local string) QName {
	return QName{ns: ns, local: local}
}

// Namespace returns the qualifying namespace.
func (q QName) Namespace() Namespace { return q.ns }

// LocalName returns the unqualified part of the name.
func (q QName) LocalName() string { return q.local }

// ToQualifiedName renders the name as "uri::local", or just "local" when
// the URI is empty.
func (q QName) ToQualifiedName() string {
	if q.ns.uri == "" {
		return q.local
	}
	return q.ns.uri + "::" + q.local
}

func (q QName) String() string {
	return q.ToQualifiedName()
}
