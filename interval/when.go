// Package interval translates a symbolic temporal window ("last 3
// weeks", "YTD", "between date(x) to date(y)") into a concrete
// half-open datetime interval, parameterized by an observation time
// (spec.md §4.B).
package interval

import "time"

// Direction distinguishes a window looking backward or forward from
// the observation time.
type Direction uint8

const (
	Past Direction = iota
	Future
)

// Unit is the granularity of a FixedOffset window.
type Unit uint8

const (
	Millisecond Unit = iota
	Second
	Minute
	Hour
	Day
	Week
)

// Duration converts a unit count into a time.Duration. Week and larger
// granularities are exact multiples of 24h; calendar-relative units
// (month, quarter, year) are handled separately by the Keyword windows,
// not by FixedOffset.
func (u Unit) Duration(n int) time.Duration {
	switch u {
	case Millisecond:
		return time.Duration(n) * time.Millisecond
	case Second:
		return time.Duration(n) * time.Second
	case Minute:
		return time.Duration(n) * time.Minute
	case Hour:
		return time.Duration(n) * time.Hour
	case Day:
		return time.Duration(n) * 24 * time.Hour
	case Week:
		return time.Duration(n) * 7 * 24 * time.Hour
	default:
		return 0
	}
}

// Keyword enumerates the calendar-relative named windows of spec.md
// §4.B.
type Keyword uint8

const (
	YTD Keyword = iota
	MTD
	WTD
	Yesterday
	LastWeek
	LastMonth
	LastQuarter
	LastYear
	SameDayLastWeek
	SameDayLastMonth
	SameDayLastYear
	Tomorrow
	NextWeek
	NextMonth
	NextQuarter
	NextYear
	SameDayNextWeek
	SameDayNextMonth
	SameDayNextYear
	NextBusinessDay
	PreviousBusinessDay
)

// Kind tags which shape of When descriptor is populated.
type Kind uint8

const (
	KindFixedOffset Kind = iota
	KindDirectionOnly
	KindOffsetInterval
	KindBetween
	KindKeyword
)

// When is the symbolic window descriptor of spec.md §4.B. Only the
// fields relevant to Kind are populated. BetweenStart/BetweenEnd are
// already-evaluated dates: "between expr to expr" requires evaluating
// two sub-expressions against an {obs_dt: T} context, which is the
// evaluator's job (component F), not this package's — by the time a
// When reaches Materialize, any expression-valued bounds have already
// been reduced to concrete dates.
type When struct {
	Kind Kind

	Direction Direction
	N         int
	Unit      Unit

	StartDate time.Time
	EndDate   time.Time

	BetweenStart time.Time
	BetweenEnd   time.Time

	Keyword Keyword
}

// Config mirrors spec.md §6.3's query configuration, as far as the
// materializer cares.
type Config struct {
	IncludeEventsOnObsDate bool
}

// Interval is the concrete half-open (or, per Config, closed-at-the-
// obs-time-endpoint) datetime interval produced by Materialize.
// Nil bounds mean unbounded past/future.
type Interval struct {
	Start          *time.Time
	End            *time.Time
	InclusiveStart bool
	InclusiveEnd   bool
}

func ptr(t time.Time) *time.Time { return &t }
