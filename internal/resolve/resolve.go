// Package resolve joins foreign keys on fetched rows to display labels taken
// from separately fetched lookup collections.
package resolve

import (
	"fmt"
	"strconv"
)

// Lookup maps an entity id to its display field.
type Lookup map[int64]string

// Lookups holds one Lookup per foreign-key field name.
type Lookups map[string]Lookup

// Ref is a resolved foreign key. Label is "{id}: {display}" when the id was
// found, the raw id when it was not, and the field placeholder for null.
type Ref struct {
	ID       *int64 `json:"id"`
	Label    string `json:"label"`
	Display  string `json:"display,omitempty"`
	Resolved bool   `json:"resolved"`
}

// Field describes one foreign key on rows of type T.
type Field[T any] struct {
	Name        string
	Key         func(T) *int64
	Placeholder string
}

// Row is a primary row together with its resolved references.
type Row[T any] struct {
	Item T
	Refs map[string]Ref
}

// Ref returns the resolved reference for the named field.
func (r Row[T]) Ref(name string) Ref {
	return r.Refs[name]
}

// Resolve produces one Row per input row. Inputs are never modified, and
// missing or empty lookups leave ids unresolved rather than failing.
func Resolve[T any](rows []T, fields []Field[T], lookups Lookups) []Row[T] {
	out := make([]Row[T], 0, len(rows))
	for _, item := range rows {
		refs := make(map[string]Ref, len(fields))
		for _, f := range fields {
			var id *int64
			if f.Key != nil {
				id = f.Key(item)
			}
			refs[f.Name] = One(id, lookups[f.Name], f.Placeholder)
		}
		out = append(out, Row[T]{Item: item, Refs: refs})
	}
	return out
}

// One resolves a single id against a lookup.
func One(id *int64, lookup Lookup, placeholder string) Ref {
	if id == nil {
		return Ref{Label: placeholder}
	}
	v := *id
	display, ok := lookup[v]
	if !ok {
		return Ref{ID: &v, Label: strconv.FormatInt(v, 10)}
	}
	return Ref{ID: &v, Label: fmt.Sprintf("%d: %s", v, display), Display: display, Resolved: true}
}

// Index builds a Lookup from a fetched collection.
func Index[L any](items []L, id func(L) int64, display func(L) string) Lookup {
	out := make(Lookup, len(items))
	for _, it := range items {
		out[id(it)] = display(it)
	}
	return out
}

// Key adapts a required (non-nullable) id accessor to a Field key.
func Key[T any](fn func(T) int64) func(T) *int64 {
	return func(t T) *int64 {
		v := fn(t)
		return &v
	}
}
