package eval

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	cq "github.com/wbrown/chronoquery"
	"github.com/wbrown/chronoquery/ast"
	"github.com/wbrown/chronoquery/event"
)

// evalFuncCall dispatches a scalar function call of ast.Functions
// (spec.md §4.D "60+ scalar functions"; SPEC_FULL.md §5 fixes the
// concrete set). Arguments are evaluated eagerly, left to right.
func evalFuncCall(f *ast.FuncCall, ctx *Context) (cq.Value, error) {
	if !ast.IsFunction(f.Name) {
		return cq.Null(), fmt.Errorf("%w: unknown function %q", cq.ErrType, f.Name)
	}
	args := make([]cq.Value, len(f.Args))
	for i, a := range f.Args {
		v, err := Eval(a, ctx)
		if err != nil {
			return cq.Null(), err
		}
		args[i] = v.Unwrap()
	}

	switch f.Name {
	case "lower":
		return strFn1(args, strings.ToLower)
	case "upper":
		return strFn1(args, strings.ToUpper)
	case "trim":
		return strFn1(args, strings.TrimSpace)
	case "concat":
		var b strings.Builder
		for _, a := range args {
			b.WriteString(a.String())
		}
		return cq.Str(b.String()), nil
	case "substr":
		return fnSubstr(args)
	case "str_len":
		return fnArity1String(args, func(s string) cq.Value { return cq.Int(int64(len(s))) })
	case "contains":
		return fnArity2String(args, func(s, sub string) cq.Value { return cq.Bool(strings.Contains(s, sub)) })
	case "starts_with":
		return fnArity2String(args, func(s, sub string) cq.Value { return cq.Bool(strings.HasPrefix(s, sub)) })
	case "ends_with":
		return fnArity2String(args, func(s, sub string) cq.Value { return cq.Bool(strings.HasSuffix(s, sub)) })
	case "replace":
		return fnReplace(args)
	case "split":
		return fnSplit(args)
	case "regex_match":
		return fnRegexMatch(args)
	case "regex_extract":
		return fnRegexExtract(args)
	case "abs":
		return fnMathUnary(args, math.Abs)
	case "round":
		return fnMathUnary(args, math.Round)
	case "floor":
		return fnMathUnary(args, math.Floor)
	case "ceil":
		return fnMathUnary(args, math.Ceil)
	case "sqrt":
		return fnMathUnary(args, math.Sqrt)
	case "log":
		return fnMathUnary(args, math.Log)
	case "pow":
		return fnMathBinary(args, math.Pow)
	case "min":
		return fnExtremum(args, true)
	case "max":
		return fnExtremum(args, false)
	case "clamp":
		return fnClamp(args)
	case "date":
		return fnDate(args)
	case "datetime":
		return fnDatetime(args)
	case "year", "month", "day", "hour", "minute", "second":
		return fnDatePart(f.Name, args)
	case "day_of_week":
		return fnDayOfWeek(args)
	case "date_diff_days":
		return fnDateDiffDays(args)
	case "date_add":
		return fnDateAdd(args)
	case "coalesce":
		return fnCoalesce(args)
	case "is_null":
		if len(args) != 1 {
			return cq.Null(), fmt.Errorf("%w: is_null takes one argument", cq.ErrType)
		}
		return cq.Bool(args[0].IsNull()), nil
	case "if_null":
		if len(args) != 2 {
			return cq.Null(), fmt.Errorf("%w: if_null takes two arguments", cq.ErrType)
		}
		if args[0].IsNull() {
			return args[1], nil
		}
		return args[0], nil
	case "if":
		return fnIf(args)
	case "case_when":
		return fnCaseWhen(args)
	default:
		return cq.Null(), fmt.Errorf("%w: function %q not implemented", cq.ErrType, f.Name)
	}
}

func strFn1(args []cq.Value, fn func(string) string) (cq.Value, error) {
	if len(args) != 1 || args[0].Kind() != cq.KindString {
		return cq.Null(), fmt.Errorf("%w: expected one string argument", cq.ErrType)
	}
	return cq.Str(fn(args[0].AsString())), nil
}

func fnArity1String(args []cq.Value, fn func(string) cq.Value) (cq.Value, error) {
	if len(args) != 1 || args[0].Kind() != cq.KindString {
		return cq.Null(), fmt.Errorf("%w: expected one string argument", cq.ErrType)
	}
	return fn(args[0].AsString()), nil
}

func fnArity2String(args []cq.Value, fn func(a, b string) cq.Value) (cq.Value, error) {
	if len(args) != 2 || args[0].Kind() != cq.KindString || args[1].Kind() != cq.KindString {
		return cq.Null(), fmt.Errorf("%w: expected two string arguments", cq.ErrType)
	}
	return fn(args[0].AsString(), args[1].AsString()), nil
}

func fnSubstr(args []cq.Value) (cq.Value, error) {
	if len(args) != 3 || args[0].Kind() != cq.KindString {
		return cq.Null(), fmt.Errorf("%w: substr(s, start, len)", cq.ErrType)
	}
	s := args[0].AsString()
	start, ok1 := asInt(args[1])
	length, ok2 := asInt(args[2])
	if !ok1 || !ok2 {
		return cq.Null(), fmt.Errorf("%w: substr start/len must be numeric", cq.ErrType)
	}
	if start < 0 {
		start = 0
	}
	if start > int64(len(s)) {
		start = int64(len(s))
	}
	end := start + length
	if end > int64(len(s)) {
		end = int64(len(s))
	}
	if end < start {
		end = start
	}
	return cq.Str(s[start:end]), nil
}

func fnReplace(args []cq.Value) (cq.Value, error) {
	if len(args) != 3 {
		return cq.Null(), fmt.Errorf("%w: replace(s, old, new)", cq.ErrType)
	}
	for _, a := range args {
		if a.Kind() != cq.KindString {
			return cq.Null(), fmt.Errorf("%w: replace requires string arguments", cq.ErrType)
		}
	}
	return cq.Str(strings.ReplaceAll(args[0].AsString(), args[1].AsString(), args[2].AsString())), nil
}

func fnSplit(args []cq.Value) (cq.Value, error) {
	if len(args) != 2 || args[0].Kind() != cq.KindString || args[1].Kind() != cq.KindString {
		return cq.Null(), fmt.Errorf("%w: split(s, sep)", cq.ErrType)
	}
	return cq.VecString(strings.Split(args[0].AsString(), args[1].AsString())), nil
}

func fnRegexMatch(args []cq.Value) (cq.Value, error) {
	if len(args) != 2 || args[0].Kind() != cq.KindString || args[1].Kind() != cq.KindString {
		return cq.Null(), fmt.Errorf("%w: regex_match(s, pattern)", cq.ErrType)
	}
	re, err := regexp.Compile(args[1].AsString())
	if err != nil {
		return cq.Null(), fmt.Errorf("%w: invalid regex %q: %v", cq.ErrType, args[1].AsString(), err)
	}
	return cq.Bool(re.MatchString(args[0].AsString())), nil
}

// fnRegexExtract returns the first capture group if the pattern has
// one, otherwise the whole match; null when there is no match.
func fnRegexExtract(args []cq.Value) (cq.Value, error) {
	if len(args) != 2 || args[0].Kind() != cq.KindString || args[1].Kind() != cq.KindString {
		return cq.Null(), fmt.Errorf("%w: regex_extract(s, pattern)", cq.ErrType)
	}
	re, err := regexp.Compile(args[1].AsString())
	if err != nil {
		return cq.Null(), fmt.Errorf("%w: invalid regex %q: %v", cq.ErrType, args[1].AsString(), err)
	}
	m := re.FindStringSubmatch(args[0].AsString())
	if m == nil {
		return cq.Null(), nil
	}
	if len(m) > 1 {
		return cq.Str(m[1]), nil
	}
	return cq.Str(m[0]), nil
}

func asFloat(v cq.Value) (float64, bool) {
	f, err := v.ToFloat()
	return f, err == nil
}

func asInt(v cq.Value) (int64, bool) {
	switch v.Kind() {
	case cq.KindInt:
		return v.AsInt(), true
	case cq.KindFloat:
		return int64(v.AsFloat()), true
	default:
		return 0, false
	}
}

func fnMathUnary(args []cq.Value, fn func(float64) float64) (cq.Value, error) {
	if len(args) != 1 {
		return cq.Null(), fmt.Errorf("%w: expected one numeric argument", cq.ErrType)
	}
	f, ok := asFloat(args[0])
	if !ok {
		return cq.Null(), fmt.Errorf("%w: expected a numeric argument, got %s", cq.ErrType, args[0].Kind())
	}
	return cq.Float(fn(f)), nil
}

func fnMathBinary(args []cq.Value, fn func(a, b float64) float64) (cq.Value, error) {
	if len(args) != 2 {
		return cq.Null(), fmt.Errorf("%w: expected two numeric arguments", cq.ErrType)
	}
	a, ok1 := asFloat(args[0])
	b, ok2 := asFloat(args[1])
	if !ok1 || !ok2 {
		return cq.Null(), fmt.Errorf("%w: expected numeric arguments", cq.ErrType)
	}
	return cq.Float(fn(a, b)), nil
}

// fnExtremum backs the scalar (2-argument) min/max, distinct from the
// aggregate functions of the same name.
func fnExtremum(args []cq.Value, findMin bool) (cq.Value, error) {
	if len(args) != 2 {
		return cq.Null(), fmt.Errorf("%w: expected two arguments", cq.ErrType)
	}
	cmp, err := cq.Compare(args[0], args[1])
	if err != nil {
		return cq.Null(), err
	}
	if (findMin && cmp <= 0) || (!findMin && cmp >= 0) {
		return args[0], nil
	}
	return args[1], nil
}

func fnClamp(args []cq.Value) (cq.Value, error) {
	if len(args) != 3 {
		return cq.Null(), fmt.Errorf("%w: clamp(x, lo, hi)", cq.ErrType)
	}
	x, ok1 := asFloat(args[0])
	lo, ok2 := asFloat(args[1])
	hi, ok3 := asFloat(args[2])
	if !ok1 || !ok2 || !ok3 {
		return cq.Null(), fmt.Errorf("%w: clamp requires numeric arguments", cq.ErrType)
	}
	if x < lo {
		x = lo
	}
	if x > hi {
		x = hi
	}
	return cq.Float(x), nil
}

func fnDate(args []cq.Value) (cq.Value, error) {
	if len(args) != 1 || args[0].Kind() != cq.KindString {
		return cq.Null(), fmt.Errorf("%w: date(s) expects a string argument", cq.ErrType)
	}
	t, err := time.Parse("2006-01-02", args[0].AsString())
	if err != nil {
		return cq.Null(), fmt.Errorf("%w: invalid date literal %q", cq.ErrType, args[0].AsString())
	}
	return cq.Date(t), nil
}

func fnDatetime(args []cq.Value) (cq.Value, error) {
	if len(args) != 1 || args[0].Kind() != cq.KindString {
		return cq.Null(), fmt.Errorf("%w: datetime(s) expects a string argument", cq.ErrType)
	}
	t, err := event.ParseEventTime(args[0].AsString())
	if err != nil {
		return cq.Null(), err
	}
	return cq.DateTime(t), nil
}

func asTimeValue(v cq.Value) (time.Time, bool) {
	if v.Kind() == cq.KindDate || v.Kind() == cq.KindDateTime {
		return v.AsTime(), true
	}
	return time.Time{}, false
}

func fnDatePart(name string, args []cq.Value) (cq.Value, error) {
	if len(args) != 1 {
		return cq.Null(), fmt.Errorf("%w: %s expects one date/datetime argument", cq.ErrType, name)
	}
	t, ok := asTimeValue(args[0])
	if !ok {
		return cq.Null(), fmt.Errorf("%w: %s expects a date/datetime argument, got %s", cq.ErrType, name, args[0].Kind())
	}
	switch name {
	case "year":
		return cq.Int(int64(t.Year())), nil
	case "month":
		return cq.Int(int64(t.Month())), nil
	case "day":
		return cq.Int(int64(t.Day())), nil
	case "hour":
		return cq.Int(int64(t.Hour())), nil
	case "minute":
		return cq.Int(int64(t.Minute())), nil
	case "second":
		return cq.Int(int64(t.Second())), nil
	default:
		return cq.Null(), fmt.Errorf("%w: unknown date part %q", cq.ErrType, name)
	}
}

func fnDayOfWeek(args []cq.Value) (cq.Value, error) {
	if len(args) != 1 {
		return cq.Null(), fmt.Errorf("%w: day_of_week expects one date/datetime argument", cq.ErrType)
	}
	t, ok := asTimeValue(args[0])
	if !ok {
		return cq.Null(), fmt.Errorf("%w: day_of_week expects a date/datetime argument", cq.ErrType)
	}
	return cq.Int(int64(t.Weekday())), nil
}

// fnDateDiffDays returns a - b in whole days, matching the original's
// date_diff_days(a, b) argument order (original_source's evaluation/date_funcs).
func fnDateDiffDays(args []cq.Value) (cq.Value, error) {
	if len(args) != 2 {
		return cq.Null(), fmt.Errorf("%w: date_diff_days(a, b)", cq.ErrType)
	}
	a, ok1 := asTimeValue(args[0])
	b, ok2 := asTimeValue(args[1])
	if !ok1 || !ok2 {
		return cq.Null(), fmt.Errorf("%w: date_diff_days requires date/datetime arguments", cq.ErrType)
	}
	days := a.Sub(b).Hours() / 24
	return cq.Int(int64(days)), nil
}

func fnDateAdd(args []cq.Value) (cq.Value, error) {
	if len(args) != 2 {
		return cq.Null(), fmt.Errorf("%w: date_add(d, n)", cq.ErrType)
	}
	t, ok := asTimeValue(args[0])
	if !ok {
		return cq.Null(), fmt.Errorf("%w: date_add requires a date/datetime first argument", cq.ErrType)
	}
	n, ok := asInt(args[1])
	if !ok {
		return cq.Null(), fmt.Errorf("%w: date_add requires a numeric day count", cq.ErrType)
	}
	added := t.AddDate(0, 0, int(n))
	if args[0].Kind() == cq.KindDate {
		return cq.Date(added), nil
	}
	return cq.DateTime(added), nil
}

func fnCoalesce(args []cq.Value) (cq.Value, error) {
	for _, a := range args {
		if !a.IsNull() {
			return a, nil
		}
	}
	return cq.Null(), nil
}

func fnIf(args []cq.Value) (cq.Value, error) {
	if len(args) != 3 {
		return cq.Null(), fmt.Errorf("%w: if(cond, then, else)", cq.ErrType)
	}
	b, ok := asStrictBool(args[0])
	if ok && b {
		return args[1], nil
	}
	return args[2], nil
}

// fnCaseWhen evaluates pairs (cond, value); an odd trailing argument is
// the else branch. Returns null if no condition matches and there is
// no else branch.
func fnCaseWhen(args []cq.Value) (cq.Value, error) {
	i := 0
	for ; i+1 < len(args); i += 2 {
		if b, ok := asStrictBool(args[i]); ok && b {
			return args[i+1], nil
		}
	}
	if i < len(args) {
		return args[i], nil
	}
	return cq.Null(), nil
}
