package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	cq "github.com/wbrown/chronoquery"
)

func TestFormatRowsEmpty(t *testing.T) {
	result := FormatRows([]string{"pressure"}, nil)
	assert.Equal(t, "_Columns: [pressure]_\n\n_No rows_", result)
}

func TestFormatRowsSimple(t *testing.T) {
	columns := []string{"name", "pressure", "ok"}
	rows := [][]cq.Value{
		{cq.Str("w1"), cq.Float(12.5), cq.Bool(true)},
		{cq.Str("w2"), cq.Null(), cq.Bool(false)},
	}
	result := FormatRows(columns, rows)

	assert.True(t, strings.Contains(result, "name"))
	assert.True(t, strings.Contains(result, "w1"))
	assert.True(t, strings.Contains(result, "12.5000"))
	assert.True(t, strings.Contains(result, "null"))
	assert.True(t, strings.Contains(result, "2 rows"))
}

func TestCollectorForwardsToHandler(t *testing.T) {
	var got []Event
	c := NewCollector(func(e Event) { got = append(got, e) })
	assert.True(t, c.Enabled())

	c.Add(Event{Name: QueryParsed, Data: map[string]interface{}{"query": "sum(x) over past"}})
	assert.Len(t, got, 1)
	assert.Equal(t, QueryParsed, got[0].Name)
	assert.Len(t, c.Events(), 1)
}

func TestDisabledCollectorIsNoop(t *testing.T) {
	c := NewCollector(nil)
	assert.False(t, c.Enabled())
	c.Add(Event{Name: QueryParsed})
	assert.Empty(t, c.Events())
}

func TestOutputFormatterFormatsKnownEvents(t *testing.T) {
	f := NewOutputFormatter(nil)
	line := f.Format(Event{Name: QueryComplete, Data: map[string]interface{}{"success": true, "rows": 3}})
	assert.True(t, strings.Contains(line, "query done"))

	line = f.Format(Event{Name: ErrorQuery, Data: map[string]interface{}{"error": "boom"}})
	assert.True(t, strings.Contains(line, "boom"))
}
