package event

import (
	"fmt"
	"sync"

	cq "github.com/wbrown/chronoquery"
)

// Schema holds, per event_type, a map AttributeName -> Kind built
// incrementally from observed events, plus a global AttributeName ->
// set-of-Kind map used to disambiguate untyped attribute references
// (spec.md §3 "Schema").
type Schema struct {
	mu          sync.RWMutex
	perType     map[string]map[string]cq.Kind
	globalKinds map[string]map[cq.Kind]struct{}
}

func newSchema() *Schema {
	return &Schema{
		perType:     make(map[string]map[string]cq.Kind),
		globalKinds: make(map[string]map[cq.Kind]struct{}),
	}
}

// reconcile checks the attribute kinds carried by attrs against the
// schema for eventType, failing if any attribute name conflicts with a
// previously observed kind for that event type (spec.md §3 invariant:
// "Within one event_type, an attribute name has exactly one value
// type"). On success it records any newly observed attribute kinds.
func (s *Schema) reconcile(eventType string, attrs cq.Value) error {
	if attrs.Kind() != cq.KindMapValue {
		return nil
	}
	flat := map[string]cq.Kind{}
	flattenKinds("", attrs, flat)

	s.mu.Lock()
	defer s.mu.Unlock()

	types, ok := s.perType[eventType]
	if !ok {
		types = make(map[string]cq.Kind)
		s.perType[eventType] = types
	}
	for name, kind := range flat {
		if existing, seen := types[name]; seen && existing != kind {
			return fmt.Errorf("%w: attribute %q on event_type %q has type %s, got %s",
				cq.ErrSchemaConflict, name, eventType, existing, kind)
		}
	}
	// Only commit after validating every attribute, so a conflicting
	// insert leaves the schema (and the store) unchanged.
	for name, kind := range flat {
		types[name] = kind
		set, ok := s.globalKinds[name]
		if !ok {
			set = map[cq.Kind]struct{}{}
			s.globalKinds[name] = set
		}
		set[kind] = struct{}{}
	}
	return nil
}

func flattenKinds(prefix string, v cq.Value, out map[string]cq.Kind) {
	if v.Kind() != cq.KindMapValue {
		if prefix != "" {
			out[prefix] = v.Kind()
		}
		return
	}
	for k, sub := range v.AsMapValue() {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		flattenKinds(name, sub, out)
	}
}

// ResolveUntyped resolves an untyped attribute reference using the
// global attribute->kind map: if it has exactly one kind across the
// corpus, that kind is returned; a name never observed resolves to
// KindNull without error; a name with several kinds errors as ambiguous
// (spec.md §4.E "Attribute lookup").
func (s *Schema) ResolveUntyped(name string) (cq.Kind, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.globalKinds[name]
	if !ok || len(set) == 0 {
		return cq.KindNull, nil
	}
	if len(set) == 1 {
		for k := range set {
			return k, nil
		}
	}
	kinds := make([]cq.Kind, 0, len(set))
	for k := range set {
		kinds = append(kinds, k)
	}
	return cq.KindNull, &cq.AmbiguousAttributeError{Attribute: name, Kinds: kinds}
}

// KindFor returns the declared kind of attribute name within eventType,
// if known.
func (s *Schema) KindFor(eventType, name string) (cq.Kind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types, ok := s.perType[eventType]
	if !ok {
		return cq.KindNull, false
	}
	k, ok := types[name]
	return k, ok
}
