// Package vm implements class loading and dynamic dispatch for the clasp VM.
//
// This package contains:
//   - TranslationUnit: lazy, index-cached loading of archive entries
//   - Class: loaded class descriptors and their traits
//   - VTable: linked slot and dispatch tables
//   - Script: top-level code units bound to a global object
//   - Minimal collaborators (Domain, Activation, objects, scope chains)
//
// The package is single-mutator. Shared descriptors live behind Cell, which
// panics on overlapping mutable access rather than blocking.
package vm
