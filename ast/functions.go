package ast

// Functions enumerates the scalar function names recognized by the
// parser and evaluator, grounded on the original's evaluation/text.rs
// and evaluation/regex.rs (spec.md §4.D names ">60 scalar functions"
// without enumerating them; SPEC_FULL.md §5 fixes the concrete set).
var Functions = map[string]int{
	// string
	"lower":       1,
	"upper":       1,
	"trim":        1,
	"concat":      -1, // variadic
	"substr":      3,
	"str_len":     1,
	"contains":    2,
	"starts_with": 2,
	"ends_with":   2,
	"replace":     3,
	"split":       2,

	// regex
	"regex_match":   2,
	"regex_extract": 2,

	// math
	"abs":   1,
	"round": 1,
	"floor": 1,
	"ceil":  1,
	"sqrt":  1,
	"pow":   2,
	"log":   1,
	"min":   2,
	"max":   2,
	"clamp": 3,

	// date
	"date":           1,
	"datetime":       1,
	"year":           1,
	"month":          1,
	"day":            1,
	"hour":           1,
	"minute":         1,
	"second":         1,
	"day_of_week":    1,
	"date_diff_days": 2,
	"date_add":       2,

	// null-handling
	"coalesce": -1,
	"is_null":  1,
	"if_null":  2,

	// control flow
	"if":        3,
	"case_when": -1,
}

// IsFunction reports whether name is a recognized scalar function.
func IsFunction(name string) bool {
	_, ok := Functions[name]
	return ok
}

// Arity returns the fixed argument count for name, or -1 for variadic
// functions, and false if name is unknown.
func Arity(name string) (int, bool) {
	n, ok := Functions[name]
	return n, ok
}

// Names returns every recognized function name, used by the parser's
// "did you mean?" suggestion search.
func Names() []string {
	names := make([]string, 0, len(Functions))
	for n := range Functions {
		names = append(names, n)
	}
	return names
}

// AggregateFuncs enumerates the aggregate function names of spec.md
// §4.C, used by the parser to distinguish `agg_name(...)  OVER ...`
// from a plain scalar function call.
var AggregateFuncs = map[string]bool{
	"count":                  true,
	"sum":                    true,
	"product":                true,
	"avg":                    true,
	"var":                    true,
	"stdev":                  true,
	"min":                    true,
	"max":                    true,
	"median":                 true,
	"first":                  true,
	"last":                   true,
	"nth":                    true,
	"time_of_first":          true,
	"time_of_last":           true,
	"time_of_next":           true,
	"avg_days_between":       true,
	"mode":                   true,
	"argmin":                 true,
	"argmax":                 true,
	"values":                 true,
	"any":                    true,
	"all":                    true,
	"max_consecutive_true":   true,
}

// IsAggregateFunc reports whether name is a recognized aggregate
// function.
func IsAggregateFunc(name string) bool {
	return AggregateFuncs[name]
}
