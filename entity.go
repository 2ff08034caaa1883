package chronoquery

import "time"

// EntityType names a dimension an event can be attached to (e.g. "user",
// "device"). EntityId is the identifier within that type. Unlike the
// teacher's Identity (a 20-byte hash with an L85 sortable string
// encoding, grounded on cross-entity content addressing), chronoquery
// entity ids are plain caller-supplied strings: spec.md §3 describes
// Entity as "a pair (type, id)" with no hashing requirement.
type EntityType string
type EntityId string

// Entity is a single (type, id) pair.
type Entity struct {
	Type EntityType
	ID   EntityId
}

// EntitySet is the ordered set of entities a single event belongs to.
// Order is preserved from insertion, matching spec.md §3's "ordered map
// EntityType -> EntityId" — a single event can have zero or more
// entities, one per type, and "entities.<type>" lookups need a stable
// iteration order for diagnostics and for FOR @entities := <type>
// binding.
type EntitySet []Entity

// Get returns the id bound to typ in this set, and whether it was
// present.
func (s EntitySet) Get(typ EntityType) (EntityId, bool) {
	for _, e := range s {
		if e.Type == typ {
			return e.ID, true
		}
	}
	return "", false
}

// Observation is a single point at which features are computed for one
// entity: a datetime, with an optional bound event_id giving access to
// a "context event" (spec.md §3).
type Observation struct {
	Entity    Entity
	Time      time.Time
	EventID   *string
}
