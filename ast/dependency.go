package ast

// Deps holds the extraction results for one expression, used by both
// the feature planner (component H) and the intra-aggregation DAG
// (spec.md §4.D "Dependency analysis").
type Deps struct {
	Aggregations []*AggrExpr
	TypedAttrs   []*AttrRef // EventType != ""
	UntypedAttrs []*AttrRef // EventType == ""
	Assigns      []string   // `@x := ...` targets
	Uses         []string   // `@x` references that are not self-assignment
}

// ExtractDeps walks e once and collects every aggregation, attribute
// reference, and variable assign/use within it (spec.md §4.D).
func ExtractDeps(e Expr) Deps {
	var d Deps
	Walk(VisitorFunc(func(n Expr) bool {
		switch t := n.(type) {
		case *AggrExpr:
			d.Aggregations = append(d.Aggregations, t)
		case *AttrRef:
			if t.EventType == "" {
				d.UntypedAttrs = append(d.UntypedAttrs, t)
			} else {
				d.TypedAttrs = append(d.TypedAttrs, t)
			}
		case *VarAssign:
			d.Assigns = append(d.Assigns, t.Name)
		case *ContextAttr:
			d.Uses = append(d.Uses, t.Name)
		}
		return true
	}), e)
	return d
}

// FeatureDeps reports the variables a top-level Select item assigns
// and uses, the unit the feature planner's DAG operates on (spec.md
// §4.H). A VarAssign contributes its target to Assigns and any `@x`
// references inside its assigned expression to Uses; every other item
// only contributes Uses unless a VarAssign appears somewhere inside it.
func FeatureDeps(item Expr) (assigns []string, uses []string) {
	d := ExtractDeps(item)
	return d.Assigns, d.Uses
}
