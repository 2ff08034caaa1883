// Command chronoquery loads a newline-delimited JSON event seed file
// into an in-memory event.Store and runs one feature query against it,
// printing the result as a markdown table (spec.md §6.2, §6.5).
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wbrown/chronoquery/event"
	"github.com/wbrown/chronoquery/query"
	"github.com/wbrown/chronoquery/trace"
)

func main() {
	var seedPath string
	var queryStr string
	var obsMode string
	var forType string
	var related string
	var experimentID string
	var parallel bool
	var workers int
	var chunkSize int
	var verbose bool
	var explain bool

	flag.StringVar(&seedPath, "seed", "", "path to a newline-delimited JSON event seed file")
	flag.StringVar(&queryStr, "query", "", "a SELECT ... FOR query, or a comma-separated expression list")
	flag.StringVar(&obsMode, "obs", "all", "observation-date mode: \"all\" or \"interval:<day|week|month|year>:<nth>\"")
	flag.StringVar(&forType, "for", "", "entity type to iterate (required when -query has no FOR clause)")
	flag.StringVar(&related, "related", "", "comma-separated entity types an entity must co-occur with on a shared event")
	flag.StringVar(&experimentID, "experiment", "", "experiment id to layer over the base store")
	flag.BoolVar(&parallel, "parallel", false, "evaluate entities concurrently")
	flag.IntVar(&workers, "workers", 0, "worker goroutines for -parallel (default: NumCPU)")
	flag.IntVar(&chunkSize, "chunk", 1, "entities per parallel job")
	flag.BoolVar(&verbose, "verbose", false, "print query execution tracing to stderr")
	flag.BoolVar(&explain, "explain", false, "print the query's intra-aggregation coalescing plan instead of running it")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -seed events.ndjson -query 'sum(pressure) over past' -for well\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "A temporal feature-engineering query engine.\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if queryStr == "" {
		flag.Usage()
		os.Exit(1)
	}

	if explain {
		_, order, err := query.ExplainPlan(queryStr)
		if err != nil {
			log.Fatalf("building plan: %v", err)
		}
		fmt.Print(trace.FormatPlan(order))
		return
	}

	if seedPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	st := event.New()
	if err := loadSeed(st, seedPath); err != nil {
		log.Fatalf("loading seed file: %v", err)
	}

	var expID *string
	if experimentID != "" {
		expID = &experimentID
	}

	obsCfg, err := parseObsMode(obsMode, forType)
	if err != nil {
		log.Fatalf("parsing -obs: %v", err)
	}

	scope := query.Scope{Kind: query.ScopeAllEvents}
	if related != "" {
		scope = query.Scope{Kind: query.ScopeRelatedEntitiesEvents, EntityTypes: strings.Split(related, ",")}
	}
	if forType != "" {
		scope.EntityTypes = append([]string{forType}, scope.EntityTypes...)
	}

	cfg := query.Config{Parallel: parallel, Workers: workers, ChunkSize: chunkSize}

	var tracer *trace.Collector
	if verbose {
		tracer = trace.NewCollector(trace.ConsoleHandler())
		tracer.Add(trace.Event{Name: trace.QueryParsed, Data: map[string]interface{}{"query": queryStr}})
	}

	start := time.Now()
	columns, rows, err := query.Run(st, obsCfg, scope, queryStr, cfg, expID)
	if tracer != nil {
		tracer.Timed(trace.QueryComplete, start, map[string]interface{}{"success": err == nil, "rows": len(rows), "error": errString(err)})
	}
	if err != nil {
		log.Fatalf("query failed: %v", err)
	}

	fmt.Print(trace.FormatRows(columns, rows))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// loadSeed reads one event.Input JSON object per line and inserts it.
func loadSeed(st *event.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		var in event.Input
		if err := json.Unmarshal([]byte(line), &in); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		e, err := event.FromInput(in)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := st.Insert(e); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return scanner.Err()
}

// parseObsMode builds an ObsDateConfig from the -obs flag. "all"
// observes once per event touching each entity of forType;
// "interval:<part>:<nth>" samples one observation per calendar period.
func parseObsMode(mode, forType string) (query.ObsDateConfig, error) {
	types := []string{}
	if forType != "" {
		types = []string{forType}
	}

	if mode == "all" {
		return query.AllEventsByEntity{EntityTypes: types}, nil
	}

	parts := strings.Split(mode, ":")
	if len(parts) != 3 || parts[0] != "interval" {
		return nil, fmt.Errorf("unrecognized -obs mode %q (want \"all\" or \"interval:<part>:<nth>\")", mode)
	}
	nth, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, fmt.Errorf("invalid nth %q: %w", parts[2], err)
	}
	return query.Interval{EntityTypes: types, DatePart: parts[1], Nth: nth}, nil
}
