package event

import (
	"fmt"
	"sort"
	"sync"
	"time"

	cq "github.com/wbrown/chronoquery"
)

type record struct {
	event Event
	seq   uint64
}

// Store is the in-memory, canonical event store of spec.md §4.E: one
// slab of event records plus the documented family of secondary
// indices (global, global-by-event-type, per-entity, per-(event-type,
// entity), and experiment-layered copies of all four). A single
// RWMutex protects the slab and all indices together; readers hold the
// shared lock for the whole query, including reading the events out of
// the slab, and do not release it before dereferencing slots.
type Store struct {
	mu     sync.RWMutex
	schema *Schema

	slab      []record
	byEventID map[string]slot
	nextSeq   uint64

	global       *orderedIndex
	globalByType map[string]*orderedIndex

	perEntity     map[cq.Entity]*orderedIndex
	perEntityType map[cq.Entity]map[string]*orderedIndex

	expGlobal       map[string]*orderedIndex
	expGlobalByType map[string]map[string]*orderedIndex
	expPerEntity    map[string]map[cq.Entity]*orderedIndex
	expPerEntityType map[string]map[cq.Entity]map[string]*orderedIndex
}

// New creates an empty event store.
func New() *Store {
	return &Store{
		schema:           newSchema(),
		byEventID:        make(map[string]slot),
		globalByType:     make(map[string]*orderedIndex),
		perEntity:        make(map[cq.Entity]*orderedIndex),
		perEntityType:    make(map[cq.Entity]map[string]*orderedIndex),
		expGlobal:        make(map[string]*orderedIndex),
		expGlobalByType:  make(map[string]map[string]*orderedIndex),
		expPerEntity:     make(map[string]map[cq.Entity]*orderedIndex),
		expPerEntityType: make(map[string]map[cq.Entity]map[string]*orderedIndex),
	}
}

// Schema exposes the store's incrementally-built attribute schema.
func (s *Store) Schema() *Schema { return s.schema }

// Insert adds one event to the store. It is all-or-nothing: a schema
// conflict or a duplicate event id leaves the store completely
// unchanged (spec.md §7 "Inserts are all-or-nothing per event").
func (s *Store) Insert(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.EventID != nil {
		if _, exists := s.byEventID[*e.EventID]; exists {
			return fmt.Errorf("%w: %q", cq.ErrDuplicateEventID, *e.EventID)
		}
	}
	if err := s.schema.reconcile(e.EventType, e.Attrs); err != nil {
		return err
	}

	sl := slot(len(s.slab))
	seq := s.nextSeq
	s.nextSeq++
	s.slab = append(s.slab, record{event: e, seq: seq})

	if e.EventID != nil {
		s.byEventID[*e.EventID] = sl
	}

	if e.ExperimentID == nil {
		s.insertBase(e, sl, seq)
	} else {
		s.insertExperiment(*e.ExperimentID, e, sl, seq)
	}
	return nil
}

func (s *Store) insertBase(e Event, sl slot, seq uint64) {
	if len(e.Entities) == 0 {
		if s.global == nil {
			s.global = newOrderedIndex()
		}
		s.global.insert(e.EventTime, seq, sl)

		idx, ok := s.globalByType[e.EventType]
		if !ok {
			idx = newOrderedIndex()
			s.globalByType[e.EventType] = idx
		}
		idx.insert(e.EventTime, seq, sl)
		return
	}
	for _, ent := range e.Entities {
		idx, ok := s.perEntity[ent]
		if !ok {
			idx = newOrderedIndex()
			s.perEntity[ent] = idx
		}
		idx.insert(e.EventTime, seq, sl)

		byType, ok := s.perEntityType[ent]
		if !ok {
			byType = make(map[string]*orderedIndex)
			s.perEntityType[ent] = byType
		}
		tIdx, ok := byType[e.EventType]
		if !ok {
			tIdx = newOrderedIndex()
			byType[e.EventType] = tIdx
		}
		tIdx.insert(e.EventTime, seq, sl)
	}
}

func (s *Store) insertExperiment(expID string, e Event, sl slot, seq uint64) {
	if len(e.Entities) == 0 {
		idx, ok := s.expGlobal[expID]
		if !ok {
			idx = newOrderedIndex()
			s.expGlobal[expID] = idx
		}
		idx.insert(e.EventTime, seq, sl)

		byType, ok := s.expGlobalByType[expID]
		if !ok {
			byType = make(map[string]*orderedIndex)
			s.expGlobalByType[expID] = byType
		}
		tIdx, ok := byType[e.EventType]
		if !ok {
			tIdx = newOrderedIndex()
			byType[e.EventType] = tIdx
		}
		tIdx.insert(e.EventTime, seq, sl)
		return
	}
	for _, ent := range e.Entities {
		perEnt, ok := s.expPerEntity[expID]
		if !ok {
			perEnt = make(map[cq.Entity]*orderedIndex)
			s.expPerEntity[expID] = perEnt
		}
		idx, ok := perEnt[ent]
		if !ok {
			idx = newOrderedIndex()
			perEnt[ent] = idx
		}
		idx.insert(e.EventTime, seq, sl)

		perEntType, ok := s.expPerEntityType[expID]
		if !ok {
			perEntType = make(map[cq.Entity]map[string]*orderedIndex)
			s.expPerEntityType[expID] = perEntType
		}
		byType, ok := perEntType[ent]
		if !ok {
			byType = make(map[string]*orderedIndex)
			perEntType[ent] = byType
		}
		tIdx, ok := byType[e.EventType]
		if !ok {
			tIdx = newOrderedIndex()
			byType[e.EventType] = tIdx
		}
		tIdx.insert(e.EventTime, seq, sl)
	}
}

// Flush destroys all events and indices. Per spec.md §3, deletion is
// only supported at the granularity of the whole store, all
// experiments, or one experiment.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := New()
	s.schema = fresh.schema
	s.slab, s.byEventID, s.nextSeq = nil, fresh.byEventID, 0
	s.global, s.globalByType = nil, fresh.globalByType
	s.perEntity, s.perEntityType = fresh.perEntity, fresh.perEntityType
	s.expGlobal, s.expGlobalByType = fresh.expGlobal, fresh.expGlobalByType
	s.expPerEntity, s.expPerEntityType = fresh.expPerEntity, fresh.expPerEntityType
}

// FlushExperiments removes every experiment-tagged event, leaving the
// base timeline untouched.
func (s *Store) FlushExperiments() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expGlobal = make(map[string]*orderedIndex)
	s.expGlobalByType = make(map[string]map[string]*orderedIndex)
	s.expPerEntity = make(map[string]map[cq.Entity]*orderedIndex)
	s.expPerEntityType = make(map[string]map[cq.Entity]map[string]*orderedIndex)
}

// FlushExperiment removes only the events tagged with the given
// experiment id.
func (s *Store) FlushExperiment(expID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expGlobal, expID)
	delete(s.expGlobalByType, expID)
	delete(s.expPerEntity, expID)
	delete(s.expPerEntityType, expID)
}

// ByEventID returns the event with the given id, if any.
func (s *Store) ByEventID(id string) (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.byEventID[id]
	if !ok {
		return Event{}, false
	}
	return s.slab[sl].event, true
}

func intersectSlotSets(sets []map[slot]struct{}) map[slot]struct{} {
	if len(sets) == 0 {
		return map[slot]struct{}{}
	}
	out := sets[0]
	for _, s := range sets[1:] {
		next := make(map[slot]struct{}, len(out))
		for sl := range out {
			if _, ok := s[sl]; ok {
				next[sl] = struct{}{}
			}
		}
		out = next
	}
	return out
}

func slotSetFrom(slots []slot) map[slot]struct{} {
	set := make(map[slot]struct{}, len(slots))
	for _, sl := range slots {
		set[sl] = struct{}{}
	}
	return set
}

// Range is a half-open (or, with Inclusive*, closed-at-the-matching-end)
// datetime interval used to query the store. Nil bounds mean unbounded.
type Range struct {
	Start, End               *time.Time
	InclusiveStart, InclusiveEnd bool
}

// Unbounded is the range matching all events.
var Unbounded = Range{}

// QueryEntityScoped implements spec.md §4.E's "By (entity-set,
// event-type, interval)" and its relatives: for each entity in
// entities, the matching slots in its (optionally event-type-scoped)
// index are intersected (AND semantics across entities); the result is
// unioned with global (entity-less) events of the same scope and, if
// experimentID is set, with the experiment-layered matches for both.
// The returned events are sorted by (event_time, insertion order).
func (s *Store) QueryEntityScoped(entities []cq.Entity, eventType *string, rng Range, experimentID *string) []Event {
	s.mu.RLock()
	var slots map[slot]struct{}

	if len(entities) > 0 {
		var sets []map[slot]struct{}
		for _, ent := range entities {
			idx := s.lookupEntityIndex(ent, eventType)
			if idx == nil {
				sets = append(sets, map[slot]struct{}{})
				continue
			}
			sets = append(sets, slotSetFrom(idx.rangeSlots(rng.Start, rng.End, rng.InclusiveStart, rng.InclusiveEnd)))
		}
		slots = intersectSlotSets(sets)

		if experimentID != nil {
			var esets []map[slot]struct{}
			complete := true
			for _, ent := range entities {
				idx := s.lookupExpEntityIndex(*experimentID, ent, eventType)
				if idx == nil {
					complete = false
					break
				}
				esets = append(esets, slotSetFrom(idx.rangeSlots(rng.Start, rng.End, rng.InclusiveStart, rng.InclusiveEnd)))
			}
			if complete {
				for sl := range intersectSlotSets(esets) {
					slots[sl] = struct{}{}
				}
			}
		}
	} else {
		slots = map[slot]struct{}{}
	}

	gidx := s.lookupGlobalIndex(eventType)
	if gidx != nil {
		for _, sl := range gidx.rangeSlots(rng.Start, rng.End, rng.InclusiveStart, rng.InclusiveEnd) {
			slots[sl] = struct{}{}
		}
	}
	if experimentID != nil {
		egidx := s.lookupExpGlobalIndex(*experimentID, eventType)
		if egidx != nil {
			for _, sl := range egidx.rangeSlots(rng.Start, rng.End, rng.InclusiveStart, rng.InclusiveEnd) {
				slots[sl] = struct{}{}
			}
		}
	}

	out := s.materialize(slots)
	s.mu.RUnlock()
	return out
}

func (s *Store) lookupEntityIndex(ent cq.Entity, eventType *string) *orderedIndex {
	if eventType != nil {
		byType, ok := s.perEntityType[ent]
		if !ok {
			return nil
		}
		return byType[*eventType]
	}
	return s.perEntity[ent]
}

func (s *Store) lookupExpEntityIndex(expID string, ent cq.Entity, eventType *string) *orderedIndex {
	if eventType != nil {
		perEntType, ok := s.expPerEntityType[expID]
		if !ok {
			return nil
		}
		byType, ok := perEntType[ent]
		if !ok {
			return nil
		}
		return byType[*eventType]
	}
	perEnt, ok := s.expPerEntity[expID]
	if !ok {
		return nil
	}
	return perEnt[ent]
}

func (s *Store) lookupGlobalIndex(eventType *string) *orderedIndex {
	if eventType != nil {
		return s.globalByType[*eventType]
	}
	return s.global
}

func (s *Store) lookupExpGlobalIndex(expID string, eventType *string) *orderedIndex {
	if eventType != nil {
		byType, ok := s.expGlobalByType[expID]
		if !ok {
			return nil
		}
		return byType[*eventType]
	}
	return s.expGlobal[expID]
}

func (s *Store) materialize(slots map[slot]struct{}) []Event {
	recs := make([]record, 0, len(slots))
	for sl := range slots {
		recs = append(recs, s.slab[sl])
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].event.EventTime.Equal(recs[j].event.EventTime) {
			return recs[i].event.EventTime.Before(recs[j].event.EventTime)
		}
		return recs[i].seq < recs[j].seq
	})
	out := make([]Event, len(recs))
	for i, r := range recs {
		out[i] = r.event
	}
	return out
}

// QueryByEventType performs a full scan filtered by event type and an
// optional interval, ignoring entity association entirely (spec.md
// §4.E "by event-type (all entities, optional interval)").
func (s *Store) QueryByEventType(eventType string, rng Range, experimentID *string) []Event {
	return s.QueryByPredicate(func(e Event) bool {
		return e.EventType == eventType
	}, rng, experimentID)
}

// QueryByInterval performs a full scan filtered only by interval
// (spec.md §4.E "by interval alone").
func (s *Store) QueryByInterval(rng Range, experimentID *string) []Event {
	return s.QueryByPredicate(func(Event) bool { return true }, rng, experimentID)
}

// QueryByPredicate performs a full scan, evaluating pred against every
// event visible at experimentID (base events plus that experiment's
// overlay, or base-only when experimentID is nil), restricted to rng
// (spec.md §4.E "by arbitrary predicate").
func (s *Store) QueryByPredicate(pred func(Event) bool, rng Range, experimentID *string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []record
	for _, r := range s.slab {
		if r.event.ExperimentID != nil {
			if experimentID == nil || *r.event.ExperimentID != *experimentID {
				continue
			}
		}
		if !inRange(r.event.EventTime, rng) {
			continue
		}
		if !pred(r.event) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].event.EventTime.Equal(out[j].event.EventTime) {
			return out[i].event.EventTime.Before(out[j].event.EventTime)
		}
		return out[i].seq < out[j].seq
	})
	events := make([]Event, len(out))
	for i, r := range out {
		events[i] = r.event
	}
	return events
}

func inRange(t time.Time, rng Range) bool {
	if rng.Start != nil {
		if rng.InclusiveStart {
			if t.Before(*rng.Start) {
				return false
			}
		} else if !t.After(*rng.Start) {
			return false
		}
	}
	if rng.End != nil {
		if rng.InclusiveEnd {
			if t.After(*rng.End) {
				return false
			}
		} else if !t.Before(*rng.End) {
			return false
		}
	}
	return true
}
