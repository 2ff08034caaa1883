package trace

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// OutputFormatter renders Events as human-readable lines, colorizing
// when writing to a terminal, directly generalized from the teacher's
// annotations.OutputFormatter.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter creates a formatter writing to w (stdout if nil),
// auto-detecting color support.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f.Fd())
	}
	return &OutputFormatter{useColor: useColor, writer: w}
}

// Handle implements Handler: format and print one event.
func (f *OutputFormatter) Handle(event Event) {
	if line := f.Format(event); line != "" {
		fmt.Fprintln(f.writer, line)
	}
}

// Format converts event to a single display line.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case QueryParsed:
		return fmt.Sprintf("%s Parsed: %s", latency, truncate(str(event.Data["query"])))

	case FeaturePlanCreated:
		return fmt.Sprintf("%s %s plan order: %v",
			latency, f.colorize("===", color.FgYellow), event.Data["order"])

	case EntitiesResolved:
		return fmt.Sprintf("%s %s resolved %s",
			latency, f.colorize("===", color.FgYellow),
			f.colorizeCount("entities", intOf(event.Data["count"])))

	case ObservationsResolved:
		return fmt.Sprintf("%s entity %v: %s",
			latency, event.Data["entity"],
			f.colorizeCount("observations", intOf(event.Data["count"])))

	case EntityBegin:
		return fmt.Sprintf("%s %s entity %v starting",
			latency, f.colorize("-->", color.FgBlue), event.Data["entity"])

	case EntityComplete:
		return fmt.Sprintf("%s entity %v done with %s",
			latency, event.Data["entity"],
			f.colorizeCount("rows", intOf(event.Data["rows"])))

	case IntervalMaterialized:
		return fmt.Sprintf("%s window [%v, %v] for obs %v",
			latency, event.Data["start"], event.Data["end"], event.Data["obs"])

	case SlidingReset:
		return fmt.Sprintf("%s %s sliding window reset (non-monotonic or disjoint advance)",
			latency, f.colorize("!", color.FgRed))

	case SlidingAdvance:
		return fmt.Sprintf("%s sliding window advanced: +%v entered, -%v expired",
			latency, event.Data["entered"], event.Data["expired"])

	case AggregationEvaluated:
		return fmt.Sprintf("%s %s = %v over %s",
			latency, event.Data["feature"], event.Data["value"], event.Data["window"])

	case FeatureEvaluated:
		return fmt.Sprintf("%s %s = %v", latency, event.Data["feature"], event.Data["value"])

	case QueryComplete:
		if ok, _ := event.Data["success"].(bool); !ok {
			return fmt.Sprintf("%s %s query failed: %v",
				latency, f.colorize("x", color.FgRed), event.Data["error"])
		}
		return fmt.Sprintf("%s %s query done with %s",
			latency, f.colorize("===", color.FgGreen),
			f.colorizeCount("rows", intOf(event.Data["rows"])))

	case ErrorQuery:
		return fmt.Sprintf("%s %s %v", latency, f.colorize("x", color.FgRed), event.Data["error"])

	default:
		return fmt.Sprintf("%s %s %v", latency, event.Name, event.Data)
	}
}

func (f *OutputFormatter) formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		s := fmt.Sprintf("[%dµs]", d.Microseconds())
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}
	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)
	if !f.useColor {
		return s
	}
	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)
	if !f.useColor {
		return text
	}
	switch strings.ToLower(label) {
	case "entities":
		return color.CyanString(text)
	case "rows", "observations":
		return color.MagentaString(text)
	default:
		return text
	}
}

func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func intOf(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	const maxLen = 80
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// ConsoleHandler prints formatted events to stdout as they occur.
func ConsoleHandler() Handler {
	f := NewOutputFormatter(os.Stdout)
	return f.Handle
}

// isTerminal is a minimal stdout/stderr check, matching the teacher's
// own simplified annotations.isTerminal (a full implementation would
// use golang.org/x/term).
func isTerminal(fd uintptr) bool {
	return fd == uintptr(1) || fd == uintptr(2)
}
