// Package parser implements the precedence-climbing parser of spec.md
// §4.D/§6.1, turning query text into the ast package's expression tree.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	cq "github.com/wbrown/chronoquery"
	"github.com/wbrown/chronoquery/ast"
	"github.com/wbrown/chronoquery/lexer"
)

// Parser consumes a token stream produced by the lexer and builds an
// ast.Expr / ast.Query, grounded on the teacher's table-driven
// datalog/parser/parser.go (a hand-written recursive-descent parser
// over a pre-lexed token slice, not a parser-generator).
type Parser struct {
	tokens []lexer.Token
	pos    int
	src    string
}

// New creates a Parser over src, lexing it immediately so a lex error
// surfaces before any parsing begins.
func New(src string) (*Parser, error) {
	toks, err := lexer.New(src).Lex()
	if err != nil {
		return nil, &cq.ParseError{Message: err.Error()}
	}
	return &Parser{tokens: toks, src: src}, nil
}

// ParseQuery parses a full "SELECT expr_list FOR @entities := type"
// statement (spec.md §6.1 full_query).
func ParseQuery(src string) (*ast.Query, error) {
	p, err := New(src)
	if err != nil {
		return nil, err
	}
	return p.parseQuery()
}

// ParseSelectList parses a bare comma-separated expr_list (no "SELECT"
// / "FOR" wrapper), the shape spec.md §6.5 calls "one select string".
func ParseSelectList(src string) (*ast.Select, error) {
	p, err := New(src)
	if err != nil {
		return nil, err
	}
	sel, err := p.parseExprList()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, p.errorf("unexpected trailing input")
	}
	return sel, nil
}

// ParseExpr parses a single expression string, the shape spec.md §6.5
// calls "list of expression strings" (each parsed independently, with
// its own optional "as name" suffix).
func ParseExpr(src string) (ast.Expr, error) {
	p, err := New(src)
	if err != nil {
		return nil, err
	}
	item, err := p.parseListItem()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, p.errorf("unexpected trailing input")
	}
	return item, nil
}

func (p *Parser) parseQuery() (*ast.Query, error) {
	if !p.eatKeyword("select") {
		return nil, p.errorf("expected SELECT")
	}
	sel, err := p.parseExprList()
	if err != nil {
		return nil, err
	}
	if !p.eatKeyword("for") {
		return nil, p.errorf("expected FOR")
	}
	tok := p.cur()
	if tok.Kind != lexer.AtSymbol || !strings.EqualFold(tok.Value, "entities") {
		return nil, p.errorf("expected @entities")
	}
	p.advance()
	if p.cur().Kind != lexer.Assign {
		return nil, p.errorf("expected ':='")
	}
	p.advance()
	typeTok := p.cur()
	if typeTok.Kind != lexer.Ident {
		return nil, p.errorf("expected entity type symbol")
	}
	p.advance()
	if !p.atEOF() {
		return nil, p.errorf("unexpected trailing input")
	}
	return &ast.Query{Select: sel, EntitiesVar: "entities", EntityType: typeTok.Value}, nil
}

// parseExprList parses "expr_list := expr (\"as\" symbol)? (\",\"
// expr_list)?", tolerating a trailing comma (spec.md §6.1).
func (p *Parser) parseExprList() (*ast.Select, error) {
	var items []ast.Expr
	for {
		if p.atEOF() || p.peekKeyword("for") {
			break
		}
		item, err := p.parseListItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.cur().Kind == lexer.Comma {
			p.advance()
			continue
		}
		break
	}
	if len(items) == 0 {
		return nil, p.errorf("expected at least one expression")
	}
	return &ast.Select{Items: items}, nil
}

func (p *Parser) parseListItem() (ast.Expr, error) {
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peekKeyword("as") {
		p.advance()
		nameTok := p.cur()
		if nameTok.Kind != lexer.Ident {
			return nil, p.errorf("expected alias name after 'as'")
		}
		p.advance()
		return &ast.AliasExpr{Inner: e, Name: nameTok.Value}, nil
	}
	if va, ok := e.(*varAssignMarker); ok {
		return &ast.VarAssign{Name: va.name, Expr: va.expr}, nil
	}
	return e, nil
}

// varAssignMarker is an internal sentinel produced by parsePrimary when
// it sees `@name := expr`; parseListItem unwraps it into ast.VarAssign.
// It is never exposed outside this package.
type varAssignMarker struct {
	name string
	expr ast.Expr
}

func (v *varAssignMarker) Children() []ast.Expr { return []ast.Expr{v.expr} }
func (v *varAssignMarker) String() string       { return "@" + v.name + " := " + v.expr.String() }

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword("and") {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	if p.peekKeyword("in") || p.peekKeyword("not") {
		negate := false
		if p.peekKeyword("not") {
			p.advance()
			negate = true
			if !p.eatKeyword("in") {
				return nil, p.errorf("expected 'in' after 'not'")
			}
		} else {
			p.advance()
		}
		vec, err := p.parseLiteralVector()
		if err != nil {
			return nil, err
		}
		return &ast.InExpr{Operand: left, Vec: vec, Negate: negate}, nil
	}

	op := ""
	switch p.cur().Kind {
	case lexer.Eq:
		op = "="
	case lexer.Ne:
		op = "!="
	case lexer.Lt:
		op = "<"
	case lexer.Le:
		op = "<="
	case lexer.Gt:
		op = ">"
	case lexer.Ge:
		op = ">="
	default:
		return left, nil
	}
	p.advance()
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &ast.BinaryExpr{Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.Plus || p.cur().Kind == lexer.Minus {
		op := "+"
		if p.cur().Kind == lexer.Minus {
			op = "-"
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.Star || p.cur().Kind == lexer.Slash || p.cur().Kind == lexer.Percent {
		op := map[lexer.Kind]string{lexer.Star: "*", lexer.Slash: "/", lexer.Percent: "%"}[p.cur().Kind]
		p.advance()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

// parsePower is right-associative (spec.md §4.D: "power, right-assoc").
func (p *Parser) parsePower() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == lexer.Caret {
		p.advance()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Op: "^", Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.cur().Kind == lexer.Minus {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: "-", Operand: operand}, nil
	}
	if p.peekKeyword("not") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: "not", Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.Number:
		p.advance()
		return numberLiteral(tok.Value)
	case lexer.String:
		p.advance()
		return &ast.Literal{Value: cq.Str(tok.Value)}, nil
	case lexer.Star:
		p.advance()
		return &ast.Wildcard{}, nil
	case lexer.LParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur().Kind != lexer.RParen {
			return nil, p.errorf("expected ')'")
		}
		p.advance()
		return inner, nil
	case lexer.AtSymbol:
		name := tok.Value
		p.advance()
		if p.cur().Kind == lexer.Assign {
			p.advance()
			expr, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			return &varAssignMarker{name: name, expr: expr}, nil
		}
		return &ast.ContextAttr{Name: name}, nil
	case lexer.Ident:
		return p.parseIdentExpr()
	default:
		return nil, p.errorf("unexpected token %q", tok.Kind.String())
	}
}

func (p *Parser) parseIdentExpr() (ast.Expr, error) {
	tok := p.cur()
	name := tok.Value
	lower := strings.ToLower(name)
	p.advance()

	if p.cur().Kind == lexer.LParen {
		p.advance()
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if ast.IsAggregateFunc(lower) && len(args) > 0 && (p.peekKeyword("over") || p.peekKeyword("from")) {
			return p.parseAggregation(lower, args)
		}
		return &ast.FuncCall{Name: lower, Args: args}, nil
	}

	switch lower {
	case "true":
		return &ast.Literal{Value: cq.Bool(true)}, nil
	case "false":
		return &ast.Literal{Value: cq.Bool(false)}, nil
	case "null":
		return &ast.Literal{Value: cq.Null()}, nil
	case "event_type":
		return &ast.Reserved{Kind: ast.ReservedEventType}, nil
	case "event_time":
		return &ast.Reserved{Kind: ast.ReservedEventTime}, nil
	case "event_id":
		return &ast.Reserved{Kind: ast.ReservedEventID}, nil
	case "obs_dt":
		return &ast.Reserved{Kind: ast.ReservedObsDt}, nil
	}
	if strings.HasPrefix(lower, "entities.") {
		return &ast.Reserved{Kind: ast.ReservedEntity, EntityType: name[len("entities."):]}, nil
	}
	return &ast.AttrRef{Name: name}, nil
}

func (p *Parser) parseArgs() ([]ast.Expr, error) {
	var args []ast.Expr
	if p.cur().Kind == lexer.RParen {
		p.advance()
		return args, nil
	}
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.cur().Kind == lexer.Comma {
			p.advance()
			continue
		}
		break
	}
	if p.cur().Kind != lexer.RParen {
		return nil, p.errorf("expected ')'")
	}
	p.advance()
	return args, nil
}

// parseAggregation continues past `agg_name(arg, ...)`, which has already
// been parsed into args (args[0] is the agg_expr, any further elements
// become AggrExpr.Extra), consuming
// the rest of the `aggr` grammar rule (spec.md §6.1).
func (p *Parser) parseAggregation(funcName string, args []ast.Expr) (ast.Expr, error) {
	if len(args) == 0 {
		return nil, p.errorf("aggregate function %q requires at least one argument", funcName)
	}
	agg := &ast.AggrExpr{Func: funcName, Arg: args[0], Extra: args[1:]}

	if p.peekKeyword("from") {
		p.advance()
		tok := p.cur()
		if tok.Kind != lexer.Ident {
			return nil, p.errorf("expected event type after FROM")
		}
		p.advance()
		agg.FromEvent = tok.Value
	}

	if !p.eatKeyword("over") {
		return nil, p.errorf("expected OVER")
	}
	when, err := p.parseInterval()
	if err != nil {
		return nil, err
	}
	agg.When = when

	if p.peekKeyword("where") {
		p.advance()
		where, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		agg.Where = where
	}

	if p.peekKeyword("group") {
		p.advance()
		if !p.eatKeyword("by") {
			return nil, p.errorf("expected BY after GROUP")
		}
		gb, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		agg.GroupBy = gb
	}

	if p.peekKeyword("having") {
		p.advance()
		minmax := ""
		if p.peekKeyword("min") {
			minmax = "min"
		} else if p.peekKeyword("max") {
			minmax = "max"
		} else {
			return nil, p.errorf("expected 'min' or 'max' after HAVING")
		}
		p.advance()
		having, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		agg.Having = &ast.HavingClause{MinMax: minmax, Expr: having}
	}

	return agg, nil
}

// parseLiteralVector parses "(" literal ("," literal)* ")" for `in`/
// `not in`, inferring a homogeneous vector type the same way
// event.sliceToValue falls back to a string vector on mixed types.
func (p *Parser) parseLiteralVector() (ast.Expr, error) {
	if p.cur().Kind != lexer.LParen {
		return nil, p.errorf("expected '(' after 'in'")
	}
	p.advance()

	var vals []cq.Value
	for {
		v, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
		if p.cur().Kind == lexer.Comma {
			p.advance()
			continue
		}
		break
	}
	if p.cur().Kind != lexer.RParen {
		return nil, p.errorf("expected ')'")
	}
	p.advance()

	return &ast.Literal{Value: inferVector(vals)}, nil
}

func (p *Parser) parseLiteralValue() (cq.Value, error) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.String:
		p.advance()
		return cq.Str(tok.Value), nil
	case lexer.Number:
		p.advance()
		lit, err := numberLiteral(tok.Value)
		if err != nil {
			return cq.Null(), err
		}
		return lit.(*ast.Literal).Value, nil
	default:
		return cq.Null(), p.errorf("expected literal inside 'in (...)'")
	}
}

func inferVector(vals []cq.Value) cq.Value {
	allInt, allFloat := true, true
	for _, v := range vals {
		switch v.Kind() {
		case cq.KindInt:
			// compatible with both int and float vectors
		case cq.KindFloat:
			allInt = false
		default:
			allInt, allFloat = false, false
		}
	}
	if allInt {
		out := make([]int64, len(vals))
		for i, v := range vals {
			out[i] = v.AsInt()
		}
		return cq.VecInt(out)
	}
	if allFloat {
		out := make([]float64, len(vals))
		for i, v := range vals {
			f, _ := v.ToFloat()
			out[i] = f
		}
		return cq.VecFloat(out)
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.String()
	}
	return cq.VecString(out)
}

func numberLiteral(s string) (ast.Expr, error) {
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, &cq.ParseError{Message: "invalid float literal " + s}
		}
		return &ast.Literal{Value: cq.Float(f)}, nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, &cq.ParseError{Message: "invalid integer literal " + s}
	}
	return &ast.Literal{Value: cq.Int(i)}, nil
}

// --- token stream helpers ---

func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.tokens) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

func (p *Parser) atEOF() bool { return p.cur().Kind == lexer.EOF }

// peekKeyword reports whether the current token is an identifier
// case-insensitively equal to kw, without consuming it.
func (p *Parser) peekKeyword(kw string) bool {
	tok := p.cur()
	return tok.Kind == lexer.Ident && strings.EqualFold(tok.Value, kw)
}

// eatKeyword consumes the current token if it matches kw.
func (p *Parser) eatKeyword(kw string) bool {
	if p.peekKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) errorf(format string, args ...any) error {
	tok := p.cur()
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &cq.ParseError{
		Span:       cq.Span{Line: tok.Line, Col: tok.Col},
		Message:    msg,
		Suggestion: suggestKeyword(tok.Value),
	}
}

// suggestKeyword finds the nearest known keyword/function name to word
// by normalized Levenshtein distance, returning "" if none clears the
// spec's 0.5 threshold (spec.md §4.D: "did you mean?").
func suggestKeyword(word string) string {
	if word == "" {
		return ""
	}
	best := ""
	bestDist := 1.0
	for _, cand := range vocabulary() {
		d := float64(levenshtein.ComputeDistance(strings.ToLower(word), cand))
		norm := d / float64(max(len(word), len(cand)))
		if norm < bestDist {
			bestDist = norm
			best = cand
		}
	}
	if bestDist < 0.5 {
		return best
	}
	return ""
}

func vocabulary() []string {
	words := []string{
		"select", "for", "as", "from", "over", "where", "group", "by", "having",
		"min", "max", "and", "or", "in", "not", "past", "future", "last", "next",
		"previous", "between", "to", "millisecond", "second", "minute", "hour",
		"day", "week",
	}
	words = append(words, ast.Names()...)
	for name := range ast.AggregateFuncs {
		words = append(words, name)
	}
	for k := range keywordList() {
		words = append(words, k)
	}
	return words
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func keywordList() map[string]struct{} {
	return map[string]struct{}{
		"ytd": {}, "mtd": {}, "wtd": {}, "yesterday": {}, "tomorrow": {},
		"lastweek": {}, "nextweek": {}, "lastmonth": {}, "nextmonth": {},
		"lastquarter": {}, "nextquarter": {}, "lastyear": {}, "nextyear": {},
		"samedaylastweek": {}, "samedaynextweek": {}, "samedaylastmonth": {},
		"samedaynextmonth": {}, "samedaylastyear": {}, "samedaynextyear": {},
		"nextbusinessday": {}, "previousbusinessday": {},
	}
}
