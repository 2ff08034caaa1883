// Package eval implements recursive expression evaluation (spec.md
// §4.F) and the sliding-window aggregation driver (§4.G) on top of the
// ast, event, interval, and partialagg packages.
package eval

import (
	"time"

	cq "github.com/wbrown/chronoquery"
	"github.com/wbrown/chronoquery/event"
	"github.com/wbrown/chronoquery/interval"
)

// Context carries everything one expression evaluation needs: the
// event store it reads from, the entity and observation time it
// computes for, an optional context event, and the stored-variable
// table built up by previously-planned `@name := expr` features
// (spec.md §4.F: "a map variable-name -> (datetime -> Value)").
type Context struct {
	Store          *event.Store
	Entities       cq.EntitySet
	ObsTime        time.Time
	ContextEvent   *event.Event
	ExperimentID   *string
	IntervalConfig interval.Config

	Variables map[string]map[time.Time]cq.Value
}

// SetVariable records the value a `@name := expr` feature produced for
// the context's current observation time, making it visible to later
// features in the same entity's evaluation (spec.md §5 "Ordering").
func (c *Context) SetVariable(name string, v cq.Value) {
	if c.Variables == nil {
		c.Variables = make(map[string]map[time.Time]cq.Value)
	}
	bucket, ok := c.Variables[name]
	if !ok {
		bucket = make(map[time.Time]cq.Value)
		c.Variables[name] = bucket
	}
	bucket[c.ObsTime] = v
}

// lookupVariable returns the stored value of name at the context's
// current observation time.
func (c *Context) lookupVariable(name string) (cq.Value, bool) {
	bucket, ok := c.Variables[name]
	if !ok {
		return cq.Null(), false
	}
	v, ok := bucket[c.ObsTime]
	return v, ok
}
