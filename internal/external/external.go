// Package external documents the collaborators this module treats as
// out of scope: a full XMI/UML deserializer and cloud-provider CSP
// compatibility tables. Their contracts live here as the Adapter and
// CSPCompatibilityTable interfaces. JSONAdapter is the one concrete
// Adapter this module ships, so the CLI has a genuine, runnable model
// source without taking on XMI parsing.
package external

import "github.com/doml-verifier/mc/internal/metamodel"

// Node is one entry in the object graph the XMI adapter produces: a
// typed node with ordered children, mirroring spec.md §4.2's "tree of
// typed nodes with ordered children". Attribute values are raw,
// pre-special-parse literals (the adapter is responsible for CIDR,
// endpoint, and memory-unit special parsing per spec.md §6; this
// package models its *output* shape only).
type Node struct {
	// Identity is whatever the adapter derived from the source
	// document's own object identity (e.g. an XMI id attribute). The
	// Intermediate Model builder derives its own stable synthetic
	// identifier from this, never reuses it directly.
	Identity string

	// Name is the human-readable name carried by the source document,
	// if any.
	Name string

	// Class is the qualified class name (layer prefix + local name)
	// this node was tagged with.
	Class string

	// Attributes maps local (unmangled) attribute name to its raw
	// literal value(s) as they appeared in the source.
	Attributes map[string][]string

	// References maps local (unmangled) association name to the
	// ordered list of target nodes.
	References map[string][]*Node
}

// Adapter is the XMI deserializer's contract (spec.md §6): given raw
// document bytes and an optional explicit version, produce a rooted
// object graph and the resolved version, or a structured error. A real
// adapter infers the version when unspecified by trying newest first,
// honoring any explicit version attribute in the document root.
type Adapter interface {
	Parse(data []byte, explicit *metamodel.Version) (root *Node, resolved metamodel.Version, err error)
}

// CSPCompatibilityTable is the contract for the out-of-scope
// cloud-provider compatibility checker (spec.md §1, "textual
// compatibility tables for specific cloud providers"). Nothing in this
// module implements it, and a verification run never emits CSP
// diagnostics, whether or not the `csp` DOMLR directive is present.
type CSPCompatibilityTable interface {
	Supports(provider string, resourceKind string) (bool, error)
}
