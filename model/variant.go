package model

import (
	"fmt"
	"hash/adler32"
)

// VariantID is the stable numeric identifier of a pathogen variant, derived
// deterministically from the variant's name so that ids agree across
// processes without coordination.
type VariantID uint32

// VariantIDOf derives the id for a variant name.
func VariantIDOf(name string) VariantID {
	return VariantID(adler32.Checksum([]byte(name)))
}

// Variant describes one named pathogen strain. ImmunityGroup lists every
// variant id that recovering from this variant grants immunity against; it
// always contains the variant's own id.
type Variant struct {
	Name          string
	ID            VariantID
	ImmunityGroup []VariantID
}

// VariantDef is one variant as declared in configuration.
type VariantDef struct {
	Name          string
	CrossImmunity []string
}

// VariantRegistry is the immutable id -> variant table, built once from
// configuration at startup. It replaces per-variant subclassing: variant
// identity is a value, not a type.
type VariantRegistry struct {
	byID   map[VariantID]*Variant
	byName map[string]*Variant
	order  []*Variant
}

// NewVariantRegistry builds the registry. A cross-immunity entry naming an
// undeclared variant is a fatal configuration error.
func NewVariantRegistry(defs []VariantDef) (*VariantRegistry, error) {
	r := &VariantRegistry{
		byID:   make(map[VariantID]*Variant, len(defs)),
		byName: make(map[string]*Variant, len(defs)),
	}
	for _, d := range defs {
		if _, ok := r.byName[d.Name]; ok {
			return nil, fmt.Errorf("variants: duplicate name %q", d.Name)
		}
		v := &Variant{Name: d.Name, ID: VariantIDOf(d.Name)}
		r.byID[v.ID] = v
		r.byName[v.Name] = v
		r.order = append(r.order, v)
	}
	for i, d := range defs {
		v := r.order[i]
		seen := map[VariantID]bool{v.ID: true}
		v.ImmunityGroup = []VariantID{v.ID}
		for _, name := range d.CrossImmunity {
			other, ok := r.byName[name]
			if !ok {
				return nil, fmt.Errorf("variant %q: unknown cross-immunity variant %q", d.Name, name)
			}
			if !seen[other.ID] {
				seen[other.ID] = true
				v.ImmunityGroup = append(v.ImmunityGroup, other.ID)
			}
		}
	}
	return r, nil
}

// ByName resolves a variant name; unknown names are fatal at load time.
func (r *VariantRegistry) ByName(name string) (*Variant, error) {
	v, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown variant %q", name)
	}
	return v, nil
}

// ByID resolves a variant id.
func (r *VariantRegistry) ByID(id VariantID) (*Variant, bool) {
	v, ok := r.byID[id]
	return v, ok
}

// Variants returns all variants in declaration order.
func (r *VariantRegistry) Variants() []*Variant { return r.order }
