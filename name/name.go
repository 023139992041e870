// Package name implements interning of resource identifiers and
// the packed subresource key used throughout the scheduler to
// refer to a specific subresource of a specific resource without
// carrying a pointer to it.
package name

import "sync"

// Name is an interned resource identifier.
// The zero Name is invalid; Table.Intern never returns it.
type Name struct {
	id  uint32
	str string
}

// String returns the human-readable string the Name was interned from.
func (n Name) String() string { return n.str }

// IsValid reports whether n was produced by a Table.
func (n Name) IsValid() bool { return n.id != 0 }

// Table interns strings into Names with a stable, process-wide id.
// A Table is safe for concurrent use.
type Table struct {
	mu   sync.Mutex
	ids  map[string]uint32
	next uint32
}

// NewTable creates an empty interning table.
func NewTable() *Table {
	return &Table{ids: make(map[string]uint32), next: 1}
}

// Intern returns the Name for s, creating it on first use.
// The same string always maps to the same Name for the lifetime
// of the Table.
func (t *Table) Intern(s string) Name {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.ids[s]
	if !ok {
		id = t.next
		t.next++
		t.ids[s] = id
	}
	return Name{id: id, str: s}
}

// Subresource is a packed 64-bit key identifying a specific
// subresource (e.g. a single mip level of a single array layer)
// of a specific resource.
//
// The layout concatenates the resource Name's id in the high
// 32 bits with the subresource index in the low 32 bits:
//
//	key = (name.id << 32) | subresourceIndex
type Subresource uint64

// PackSubresource builds a Subresource key for the given Name and
// subresource index. Index must fit in 32 bits.
func PackSubresource(n Name, index int) Subresource {
	return Subresource(uint64(n.id)<<32 | uint64(uint32(index)))
}

// ResolveID returns the interned id half of the key. Because the id
// alone cannot recover the original string without the Table
// that produced it, callers that need the string must keep their
// own Name alongside the key, or resolve through a Table-backed
// registry; ResolveID exposes the raw id for that purpose.
func (s Subresource) ResolveID() uint32 { return uint32(s >> 32) }

// Index returns the subresource index half of the key.
func (s Subresource) Index() int { return int(uint32(s)) }

// SameResource reports whether a and b name a subresource of the
// same resource.
func SameResource(a, b Subresource) bool { return a.ResolveID() == b.ResolveID() }
