package interval

import (
	"fmt"
	"time"

	"github.com/jinzhu/now"
)

func init() {
	// spec.md §4.B: "week boundary is Monday".
	now.WeekStartDay = time.Monday
}

// Materialize turns a symbolic When into a concrete half-open interval
// relative to observation time T, per cfg's inclusivity policy
// (spec.md §4.B). Materialization is idempotent: calling it twice with
// the same (when, T) always yields identical bounds, since it is a
// pure function of its inputs (property 4, spec.md §8).
func Materialize(w When, t time.Time, cfg Config) (Interval, error) {
	switch w.Kind {
	case KindFixedOffset:
		return materializeFixedOffset(w, t, cfg), nil
	case KindDirectionOnly:
		return materializeDirectionOnly(w, t, cfg), nil
	case KindOffsetInterval:
		return Interval{
			Start: ptr(w.StartDate), End: ptr(w.EndDate),
			InclusiveStart: true, InclusiveEnd: true,
		}, nil
	case KindBetween:
		return Interval{
			Start: ptr(w.BetweenStart), End: ptr(w.BetweenEnd),
			InclusiveStart: true, InclusiveEnd: true,
		}, nil
	case KindKeyword:
		return materializeKeyword(w.Keyword, t, cfg)
	default:
		return Interval{}, fmt.Errorf("interval: unknown When kind %d", w.Kind)
	}
}

// materializeFixedOffset models a window whose single endpoint coincides with
// the observation time T: the other side is always inclusive (it's a
// concrete, non-T bound), while the T-side follows cfg's policy —
// exclusive by default, inclusive when IncludeEventsOnObsDate is set.
func materializeFixedOffset(w When, t time.Time, cfg Config) Interval {
	d := w.Unit.Duration(w.N)
	if w.Direction == Past {
		start := t.Add(-d)
		return Interval{
			Start: ptr(start), End: ptr(t),
			InclusiveStart: true, InclusiveEnd: cfg.IncludeEventsOnObsDate,
		}
	}
	end := t.Add(d)
	return Interval{
		Start: ptr(t), End: ptr(end),
		InclusiveStart: cfg.IncludeEventsOnObsDate, InclusiveEnd: true,
	}
}

func materializeDirectionOnly(w When, t time.Time, cfg Config) Interval {
	if w.Direction == Past {
		return Interval{
			Start: nil, End: ptr(t),
			InclusiveStart: true, InclusiveEnd: cfg.IncludeEventsOnObsDate,
		}
	}
	return Interval{
		Start: ptr(t), End: nil,
		InclusiveStart: cfg.IncludeEventsOnObsDate, InclusiveEnd: true,
	}
}

// materializeKeyword computes the closed calendar window for each
// named keyword. YTD/MTD/WTD have T itself as their end bound (the
// period is still "in progress"), so that endpoint follows cfg's
// policy like materializeFixedOffset; every other keyword names a
// self-contained past/future period that never touches T, so both
// bounds are always inclusive.
func materializeKeyword(k Keyword, t time.Time, cfg Config) (Interval, error) {
	n := now.With(t)

	switch k {
	case YTD:
		return Interval{Start: ptr(n.BeginningOfYear()), End: ptr(t), InclusiveStart: true, InclusiveEnd: cfg.IncludeEventsOnObsDate}, nil
	case MTD:
		return Interval{Start: ptr(n.BeginningOfMonth()), End: ptr(t), InclusiveStart: true, InclusiveEnd: cfg.IncludeEventsOnObsDate}, nil
	case WTD:
		return Interval{Start: ptr(n.BeginningOfWeek()), End: ptr(t), InclusiveStart: true, InclusiveEnd: cfg.IncludeEventsOnObsDate}, nil

	case Yesterday:
		return closedDay(t.AddDate(0, 0, -1)), nil
	case Tomorrow:
		return closedDay(t.AddDate(0, 0, 1)), nil

	case LastWeek:
		ref := now.With(t.AddDate(0, 0, -7))
		return closed(ref.BeginningOfWeek(), ref.EndOfWeek()), nil
	case NextWeek:
		ref := now.With(t.AddDate(0, 0, 7))
		return closed(ref.BeginningOfWeek(), ref.EndOfWeek()), nil

	case LastMonth:
		ref := now.With(t.AddDate(0, -1, 0))
		return closed(ref.BeginningOfMonth(), ref.EndOfMonth()), nil
	case NextMonth:
		ref := now.With(t.AddDate(0, 1, 0))
		return closed(ref.BeginningOfMonth(), ref.EndOfMonth()), nil

	case LastQuarter:
		ref := now.With(t.AddDate(0, -3, 0))
		return closed(ref.BeginningOfQuarter(), ref.EndOfQuarter()), nil
	case NextQuarter:
		ref := now.With(t.AddDate(0, 3, 0))
		return closed(ref.BeginningOfQuarter(), ref.EndOfQuarter()), nil

	case LastYear:
		ref := now.With(t.AddDate(-1, 0, 0))
		return closed(ref.BeginningOfYear(), ref.EndOfYear()), nil
	case NextYear:
		ref := now.With(t.AddDate(1, 0, 0))
		return closed(ref.BeginningOfYear(), ref.EndOfYear()), nil

	case SameDayLastWeek:
		return closedDay(t.AddDate(0, 0, -7)), nil
	case SameDayNextWeek:
		return closedDay(t.AddDate(0, 0, 7)), nil
	case SameDayLastMonth:
		return closedDay(t.AddDate(0, -1, 0)), nil
	case SameDayNextMonth:
		return closedDay(t.AddDate(0, 1, 0)), nil
	case SameDayLastYear:
		return closedDay(t.AddDate(-1, 0, 0)), nil
	case SameDayNextYear:
		return closedDay(t.AddDate(1, 0, 0)), nil

	case NextBusinessDay:
		return closedDay(nextBusinessDay(t)), nil
	case PreviousBusinessDay:
		return closedDay(previousBusinessDay(t)), nil

	default:
		return Interval{}, fmt.Errorf("interval: unknown keyword %d", k)
	}
}

func closed(start, end time.Time) Interval {
	return Interval{Start: ptr(start), End: ptr(end), InclusiveStart: true, InclusiveEnd: true}
}

func closedDay(day time.Time) Interval {
	n := now.With(day)
	return closed(n.BeginningOfDay(), n.EndOfDay())
}

func nextBusinessDay(t time.Time) time.Time {
	d := t.AddDate(0, 0, 1)
	for isWeekend(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func previousBusinessDay(t time.Time) time.Time {
	d := t.AddDate(0, 0, -1)
	for isWeekend(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
