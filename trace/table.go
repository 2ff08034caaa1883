package trace

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	cq "github.com/wbrown/chronoquery"
	"github.com/wbrown/chronoquery/planner"
)

// FormatRows renders a query.Run result (columns, rows) as a markdown
// table, directly generalized from the teacher's
// executor.TableFormatter.FormatRelation.
func FormatRows(columns []string, rows [][]cq.Value) string {
	if len(rows) == 0 {
		return fmt.Sprintf("_Columns: %v_\n\n_No rows_", columns)
	}

	var sb strings.Builder
	alignment := make([]tw.Align, len(columns))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(&sb,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(columns)

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		table.Append(cells)
	}
	table.Render()

	sb.WriteString(fmt.Sprintf("\n_%d rows_\n", len(rows)))
	return sb.String()
}

// FormatPlan renders a planner.Graph's coalescing schedule (the order
// query.ExplainPlan returns) as a markdown table: one row per shared
// node, in the dependency-first order a coalescing evaluator would
// compute them in.
func FormatPlan(order []*planner.Node) string {
	if len(order) == 0 {
		return "_empty plan_"
	}

	var sb strings.Builder
	table := tablewriter.NewTable(&sb, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header([]string{"id", "kind", "depth", "deps", "expr"})
	for _, n := range order {
		deps := make([]string, len(n.Deps))
		for i, d := range n.Deps {
			deps[i] = strconv.Itoa(d)
		}
		table.Append([]string{
			strconv.Itoa(n.ID), n.Kind.String(), strconv.Itoa(n.Depth),
			strings.Join(deps, ","), n.Key,
		})
	}
	table.Render()
	return sb.String()
}

func formatValue(v cq.Value) string {
	u := v.Unwrap()
	switch u.Kind() {
	case cq.KindNull:
		return "null"
	case cq.KindBool:
		return fmt.Sprintf("%t", u.AsBool())
	case cq.KindInt:
		return fmt.Sprintf("%d", u.AsInt())
	case cq.KindFloat:
		return fmt.Sprintf("%.4f", u.AsFloat())
	case cq.KindString:
		return u.AsString()
	case cq.KindDateTime:
		return u.AsTime().Format(time.RFC3339)
	default:
		return u.String()
	}
}
