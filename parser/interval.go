package parser

import (
	"strconv"
	"strings"

	"github.com/wbrown/chronoquery/ast"
	"github.com/wbrown/chronoquery/interval"
	"github.com/wbrown/chronoquery/lexer"
)

// parseInterval parses the `interval` grammar rule of spec.md §6.1 into
// an ast.WhenSpec.
func (p *Parser) parseInterval() (ast.WhenSpec, error) {
	tok := p.cur()
	if tok.Kind != lexer.Ident {
		return ast.WhenSpec{}, p.errorf("expected temporal window")
	}
	lower := strings.ToLower(tok.Value)

	switch lower {
	case "past":
		p.advance()
		return ast.WhenSpec{Kind: interval.KindDirectionOnly, Direction: interval.Past}, nil
	case "future":
		p.advance()
		return ast.WhenSpec{Kind: interval.KindDirectionOnly, Direction: interval.Future}, nil
	case "last", "previous", "next":
		p.advance()
		dir := interval.Past
		if lower == "next" {
			dir = interval.Future
		}
		numTok := p.cur()
		if numTok.Kind != lexer.Number {
			return ast.WhenSpec{}, p.errorf("expected integer after %q", lower)
		}
		p.advance()
		n, err := strconv.Atoi(numTok.Value)
		if err != nil {
			return ast.WhenSpec{}, p.errorf("invalid integer %q", numTok.Value)
		}
		unit, err := p.parseUnit()
		if err != nil {
			return ast.WhenSpec{}, err
		}
		return ast.WhenSpec{Kind: interval.KindFixedOffset, Direction: dir, N: n, Unit: unit}, nil
	case "between":
		p.advance()
		start, err := p.parseOr()
		if err != nil {
			return ast.WhenSpec{}, err
		}
		if !p.eatKeyword("to") {
			return ast.WhenSpec{}, p.errorf("expected TO in BETWEEN clause")
		}
		end, err := p.parseOr()
		if err != nil {
			return ast.WhenSpec{}, err
		}
		return ast.WhenSpec{Kind: interval.KindBetween, BetweenStart: start, BetweenEnd: end}, nil
	default:
		if kw, ok := keywordMap()[lower]; ok {
			p.advance()
			return ast.WhenSpec{Kind: interval.KindKeyword, Keyword: kw}, nil
		}
		return ast.WhenSpec{}, p.errorf("unknown temporal window %q", tok.Value)
	}
}

func (p *Parser) parseUnit() (interval.Unit, error) {
	tok := p.cur()
	if tok.Kind != lexer.Ident {
		return 0, p.errorf("expected time unit")
	}
	lower := strings.TrimSuffix(strings.ToLower(tok.Value), "s")
	p.advance()
	switch lower {
	case "millisecond":
		return interval.Millisecond, nil
	case "second":
		return interval.Second, nil
	case "minute":
		return interval.Minute, nil
	case "hour":
		return interval.Hour, nil
	case "day":
		return interval.Day, nil
	case "week":
		return interval.Week, nil
	default:
		return 0, p.errorf("unknown time unit %q", tok.Value)
	}
}

func keywordMap() map[string]interval.Keyword {
	return map[string]interval.Keyword{
		"ytd": interval.YTD, "mtd": interval.MTD, "wtd": interval.WTD,
		"yesterday": interval.Yesterday, "tomorrow": interval.Tomorrow,
		"lastweek": interval.LastWeek, "nextweek": interval.NextWeek,
		"lastmonth": interval.LastMonth, "nextmonth": interval.NextMonth,
		"lastquarter": interval.LastQuarter, "nextquarter": interval.NextQuarter,
		"lastyear": interval.LastYear, "nextyear": interval.NextYear,
		"samedaylastweek": interval.SameDayLastWeek, "samedaynextweek": interval.SameDayNextWeek,
		"samedaylastmonth": interval.SameDayLastMonth, "samedaynextmonth": interval.SameDayNextMonth,
		"samedaylastyear": interval.SameDayLastYear, "samedaynextyear": interval.SameDayNextYear,
		"nextbusinessday": interval.NextBusinessDay, "previousbusinessday": interval.PreviousBusinessDay,
	}
}
