package query

import (
	"errors"
	"fmt"
	"sort"
	"time"

	cq "github.com/wbrown/chronoquery"
	"github.com/wbrown/chronoquery/ast"
	"github.com/wbrown/chronoquery/event"
	"github.com/wbrown/chronoquery/eval"
	"github.com/wbrown/chronoquery/interval"
)

// Run implements spec.md §4.I / §6.5: materialize observation dates,
// plan the raw query's features, evaluate them per entity (optionally
// in parallel), and return the output columns together with a row-
// oriented value matrix.
//
// rawQuery is either a single "SELECT ... FOR @entities := type"
// string, a single bare comma-separated expression list, or a []string
// of independently-parsed expressions (spec.md §6.5). When rawQuery
// does not carry a FOR clause, the entity type is taken from
// scope.EntityTypes[0] (the scope's related-entity-types list doubles
// as the iterated entity type in that case).
func Run(store *event.Store, obsCfg ObsDateConfig, scope Scope, rawQuery interface{}, cfg Config, experimentID *string) (columns []string, rows [][]cq.Value, err error) {
	features, entityType, err := BuildFeatures(rawQuery)
	if err != nil {
		return nil, nil, err
	}
	if err := resolveAttrs(features, store.Schema()); err != nil {
		return nil, nil, err
	}
	if entityType == "" {
		if len(scope.EntityTypes) == 0 {
			return nil, nil, fmt.Errorf("query: no entity type: rawQuery has no FOR clause and scope has no entity types")
		}
		entityType = scope.EntityTypes[0]
	}

	entities := resolveEntities(store, entityType, scope, experimentID)
	obsByEntity, err := obsCfg.observations(store, entities, experimentID)
	if err != nil {
		return nil, nil, err
	}

	ivCfg := interval.Config{IncludeEventsOnObsDate: cfg.IncludeEventsOnObsDate}

	// orderedEntities fixes a deterministic iteration order so
	// parallel execution is reproducible (spec.md §5 "no ordering
	// guarantee across entities", but determinism still aids testing).
	orderedEntities := make([]cq.Entity, 0, len(obsByEntity))
	for ent := range obsByEntity {
		orderedEntities = append(orderedEntities, ent)
	}
	sort.Slice(orderedEntities, func(i, j int) bool {
		if orderedEntities[i].Type != orderedEntities[j].Type {
			return orderedEntities[i].Type < orderedEntities[j].Type
		}
		return orderedEntities[i].ID < orderedEntities[j].ID
	})

	perEntityRows := make([][][]cq.Value, len(orderedEntities))
	evalOne := func(i int) error {
		ent := orderedEntities[i]
		times := append([]time.Time(nil), obsByEntity[ent]...)
		sort.Slice(times, func(a, b int) bool { return times[a].Before(times[b]) })

		rowsForEntity, evalErr := evaluateEntity(store, ent, times, features, ivCfg, experimentID)
		if evalErr != nil {
			return fmt.Errorf("entity %s/%s: %w", ent.Type, ent.ID, evalErr)
		}
		perEntityRows[i] = rowsForEntity
		return nil
	}

	if cfg.Parallel {
		pool := newWorkerPool(cfg.Workers)
		if perr := pool.run(len(orderedEntities), cfg.ChunkSize, evalOne); perr != nil {
			return nil, nil, perr
		}
	} else {
		for i := range orderedEntities {
			if evalErr := evalOne(i); evalErr != nil {
				return nil, nil, evalErr
			}
		}
	}

	for _, rs := range perEntityRows {
		rows = append(rows, rs...)
	}
	return features.Names, rows, nil
}

// resolveAttrs runs spec.md §4.E's attribute-resolution pass over
// every feature before any entity is evaluated: each untyped attribute
// reference (one with no "event_type." prefix) is matched against
// schema to find the single value Kind observed for that name across
// the whole store. A name with two or more differing kinds fails the
// whole query up front with an ambiguous-attribute error instead of
// letting evaluation silently read whatever the context event happens
// to carry.
func resolveAttrs(features *Features, schema *event.Schema) error {
	var errs []error
	for _, item := range features.Items {
		errs = append(errs, ast.ResolveUntypedAttrs(item, schema)...)
	}
	return errors.Join(errs...)
}

// resolveEntities scans the store once for every event touching an
// entity of entityType, additionally requiring co-occurrence with a
// related-type entity when scope asks for it (no entity index exists
// that would make this cheaper than a single full scan).
func resolveEntities(store *event.Store, entityType string, scope Scope, experimentID *string) []cq.Entity {
	seen := map[cq.Entity]bool{}
	var related map[string]bool
	if scope.Kind == ScopeRelatedEntitiesEvents {
		related = make(map[string]bool, len(scope.EntityTypes))
		for _, t := range scope.EntityTypes {
			if t != entityType {
				related[t] = true
			}
		}
	}

	for _, e := range store.QueryByInterval(event.Unbounded, experimentID) {
		var target cq.Entity
		found := false
		hasRelated := len(related) == 0
		for _, ent := range e.Entities {
			if string(ent.Type) == entityType {
				target = ent
				found = true
			}
			if related != nil && related[string(ent.Type)] {
				hasRelated = true
			}
		}
		if found && hasRelated {
			seen[target] = true
		}
	}

	out := make([]cq.Entity, 0, len(seen))
	for ent := range seen {
		out = append(out, ent)
	}
	return out
}

// evaluateEntity computes one entity's feature matrix across its
// observation times, in ascending chronological order (required by
// the sliding-window driver's monotonic-cursor precondition), writing
// each feature's value either into the output row or into the
// context's stored-variables table (spec.md §4.I step 3).
func evaluateEntity(store *event.Store, ent cq.Entity, times []time.Time, features *Features, ivCfg interval.Config, experimentID *string) ([][]cq.Value, error) {
	ctx := &eval.Context{
		Store: store, Entities: cq.EntitySet{ent}, ExperimentID: experimentID, IntervalConfig: ivCfg,
	}

	outputCol := make(map[int]int, len(features.Items))
	col := 0
	for i, it := range features.Items {
		if _, ok := it.(*ast.VarAssign); ok {
			continue
		}
		outputCol[i] = col
		col++
	}

	sliders := map[int]*eval.SlidingAggregator{}
	ineligible := map[int]bool{}

	rows := make([][]cq.Value, 0, len(times))
	for _, t := range times {
		ctx.ObsTime = t
		row := make([]cq.Value, len(features.Names))
		for _, idx := range features.Order {
			item := features.Items[idx]
			if va, ok := item.(*ast.VarAssign); ok {
				v, err := eval.Eval(va.Expr, ctx)
				if err != nil {
					return nil, err
				}
				ctx.SetVariable(va.Name, v)
				continue
			}
			v, err := evalFeature(item, idx, ctx, sliders, ineligible)
			if err != nil {
				return nil, err
			}
			row[outputCol[idx]] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// evalFeature evaluates one output feature, using the sliding-window
// driver for eligible aggregations (invertible, no groupby/having) and
// falling back to the naive per-observation pipeline otherwise
// (spec.md §4.G / §4.I).
func evalFeature(item ast.Expr, idx int, ctx *eval.Context, sliders map[int]*eval.SlidingAggregator, ineligible map[int]bool) (cq.Value, error) {
	inner := item
	if alias, ok := item.(*ast.AliasExpr); ok {
		inner = alias.Inner
	}
	agg, isAgg := inner.(*ast.AggrExpr)
	if isAgg && !ineligible[idx] {
		s, ok := sliders[idx]
		if !ok {
			var err error
			s, err = eval.NewSlidingAggregator(agg, ctx)
			if err != nil {
				ineligible[idx] = true
			} else {
				sliders[idx] = s
			}
		}
		if s != nil {
			ival, err := eval.MaterializeWindow(agg, ctx)
			if err != nil {
				return cq.Null(), err
			}
			return s.Evaluate(ival.Start, ival.End, ival.InclusiveStart, ival.InclusiveEnd), nil
		}
	}
	return eval.Eval(item, ctx)
}
