package ast

import cq "github.com/wbrown/chronoquery"

// SchemaResolver is the minimal surface ResolveUntypedAttrs needs from
// an event store's schema, kept as a local interface so this package
// does not import the event package (features_rewrite.rs: "a small
// rewrite pass that resolves untyped attribute references into typed
// ones once the schema is known").
type SchemaResolver interface {
	ResolveUntyped(name string) (cq.Kind, error)
}

// ResolveUntypedAttrs walks e, resolving every untyped attribute
// reference's Kind against resolver ahead of evaluation. It collects
// every error encountered (e.g. ambiguous attribute) instead of
// stopping at the first, so a query reports every problem in one pass.
// Nodes are mutated in place since every Expr implementation here is a
// pointer type.
func ResolveUntypedAttrs(e Expr, resolver SchemaResolver) []error {
	var errs []error
	Walk(VisitorFunc(func(n Expr) bool {
		ref, ok := n.(*AttrRef)
		if !ok || ref.EventType != "" || ref.Resolved {
			return true
		}
		kind, err := resolver.ResolveUntyped(ref.Name)
		if err != nil {
			errs = append(errs, err)
			return true
		}
		ref.ResolvedKind = kind
		ref.Resolved = true
		return true
	}), e)
	return errs
}
