package chronoquery

import (
	"errors"
	"fmt"
)

// ErrKind distinguishes the error taxonomy of spec.md §7, letting
// callers branch on errors.Is(err, chronoquery.ErrParse) etc. without
// parsing message strings.
type ErrKind uint8

const (
	ErrKindUnknown ErrKind = iota
	ErrKindParse
	ErrKindSchemaConflict
	ErrKindDuplicateEventID
	ErrKindAmbiguousAttribute
	ErrKindType
	ErrKindMissingContext
	ErrKindCyclicDependency
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindParse:
		return "parse error"
	case ErrKindSchemaConflict:
		return "schema conflict"
	case ErrKindDuplicateEventID:
		return "duplicate event id"
	case ErrKindAmbiguousAttribute:
		return "ambiguous attribute"
	case ErrKindType:
		return "type error"
	case ErrKindMissingContext:
		return "missing context"
	case ErrKindCyclicDependency:
		return "cyclic dependency"
	default:
		return "error"
	}
}

// sentinel markers usable with errors.Is / fmt.Errorf("%w: ...", ErrType)
var (
	ErrParse              = &kindSentinel{ErrKindParse}
	ErrSchemaConflict     = &kindSentinel{ErrKindSchemaConflict}
	ErrDuplicateEventID   = &kindSentinel{ErrKindDuplicateEventID}
	ErrAmbiguousAttribute = &kindSentinel{ErrKindAmbiguousAttribute}
	ErrType               = &kindSentinel{ErrKindType}
	ErrMissingContext     = &kindSentinel{ErrKindMissingContext}
	ErrCyclicDependency   = &kindSentinel{ErrKindCyclicDependency}
)

type kindSentinel struct{ kind ErrKind }

func (s *kindSentinel) Error() string { return s.kind.String() }

// KindOf reports the ErrKind associated with err, walking the %w chain.
// Returns ErrKindUnknown if err carries none of the known sentinels.
func KindOf(err error) ErrKind {
	for _, s := range []*kindSentinel{
		ErrParse, ErrSchemaConflict, ErrDuplicateEventID,
		ErrAmbiguousAttribute, ErrType, ErrMissingContext, ErrCyclicDependency,
	} {
		if errors.Is(err, s) {
			return s.kind
		}
	}
	return ErrKindUnknown
}

// Span identifies the source-text range an error refers to, used by
// parse errors per spec.md §4.D ("report the offending span").
type Span struct {
	Start int
	End   int
	Line  int
	Col   int
}

// ParseError is a parse failure with a span and an optional "did you
// mean?" suggestion.
type ParseError struct {
	Span       Span
	Message    string
	Suggestion string
}

func (e *ParseError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("parse error at %d:%d: %s (did you mean %q?)", e.Line1(), e.Span.Col, e.Message, e.Suggestion)
	}
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line1(), e.Span.Col, e.Message)
}

func (e *ParseError) Line1() int { return e.Span.Line }

func (e *ParseError) Unwrap() error { return ErrParse }

// AmbiguousAttributeError reports an untyped attribute reference that
// resolves to more than one value type across the event-type corpus.
type AmbiguousAttributeError struct {
	Attribute string
	Kinds     []Kind
}

func (e *AmbiguousAttributeError) Error() string {
	return fmt.Sprintf("ambiguous attribute %q: multiple types observed %v; use an explicit type", e.Attribute, e.Kinds)
}

func (e *AmbiguousAttributeError) Unwrap() error { return ErrAmbiguousAttribute }
