// Package report aggregates the observability events the API logs for
// command batches into a latency and outcome summary.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	// CommandsEventName and CommandsEventDomain identify the per request
	// event logged by POST /api/commands.
	CommandsEventName   = "kanban.commands.request"
	CommandsEventDomain = "kanban.api"

	attrHTTPStatusCode = "http.status_code"
	attrTotalMillis    = "kanban.commands.total_ms"
	attrDecodeMillis   = "kanban.commands.decode_ms"
	attrDedupeMillis   = "kanban.commands.dedupe_ms"
	attrApplyMillis    = "kanban.commands.apply_ms"
	attrReceived       = "kanban.commands.received"
	attrApplied        = "kanban.commands.applied"
	attrIgnored        = "kanban.commands.ignored"
	attrDuplicates     = "kanban.commands.duplicates"
	attrErrorStage     = "kanban.commands.error_stage"
)

var recordAPI = sonic.Config{UseNumber: true}.Froze()

type logRecord struct {
	EventName      string         `json:"event.name"`
	EventDomain    string         `json:"event.domain"`
	SeverityText   string         `json:"severity_text"`
	SeverityNumber int            `json:"severity_number"`
	Attributes     map[string]any `json:"attributes"`
}

// Collector accumulates matching log records.
type Collector struct {
	eventName   string
	eventDomain string

	count      int
	severity   map[string]int
	status     map[int]int
	durations  map[string]*numericStats
	commands   map[string]*numericStats
	errorStage map[string]int
	errors     int
	warnings   int
	skipped    int
}

type numericStats struct {
	Count int
	Sum   float64
	Min   float64
	Max   float64
}

// Stats is the min/max/avg of one attribute.
type Stats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

// Summary is the aggregated view written by the report command.
type Summary struct {
	EventName      string           `json:"event_name"`
	EventDomain    string           `json:"event_domain"`
	TotalEvents    int              `json:"total_events"`
	SeverityCounts map[string]int   `json:"severity_counts"`
	StatusCounts   map[string]int   `json:"status_counts"`
	DurationMs     map[string]Stats `json:"duration_ms"`
	Commands       map[string]Stats `json:"commands"`
	ErrorStages    map[string]int   `json:"error_stages,omitempty"`
	ErrorEvents    int              `json:"error_events"`
	WarnEvents     int              `json:"warn_events"`
	SkippedLines   int              `json:"skipped_lines"`
}

// NewCollector matches records by event name and, when non-empty, domain.
func NewCollector(eventName, eventDomain string) *Collector {
	return &Collector{
		eventName:   eventName,
		eventDomain: eventDomain,
		severity:    make(map[string]int),
		status:      make(map[int]int),
		durations:   make(map[string]*numericStats),
		commands:    make(map[string]*numericStats),
		errorStage:  make(map[string]int),
	}
}

// ReadFrom ingests newline separated log lines until EOF.
func (c *Collector) ReadFrom(r io.Reader) (int64, error) {
	reader := bufio.NewReader(r)
	var n int64
	for {
		line, err := reader.ReadString('\n')
		n += int64(len(line))
		if len(line) != 0 {
			c.Ingest(line)
		}
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("read logs: %w", err)
		}
	}
}

// Ingest parses one log line. Lines prefixed by a container name and a pipe,
// as docker compose prints them, are accepted.
func (c *Collector) Ingest(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if pipe := strings.Index(trimmed, "|"); pipe >= 0 && !strings.HasPrefix(trimmed, "{") {
		trimmed = strings.TrimSpace(trimmed[pipe+1:])
	}

	var rec logRecord
	if err := recordAPI.UnmarshalFromString(trimmed, &rec); err != nil {
		c.skipped++
		return
	}
	if rec.EventName != c.eventName {
		return
	}
	if c.eventDomain != "" && rec.EventDomain != c.eventDomain {
		return
	}
	c.add(rec)
}

func (c *Collector) add(rec logRecord) {
	c.count++

	severity := strings.ToUpper(strings.TrimSpace(rec.SeverityText))
	if severity == "" {
		severity = "UNSPECIFIED"
	}
	c.severity[severity]++
	switch severity {
	case "ERROR":
		c.errors++
	case "WARN", "WARNING":
		c.warnings++
	}

	if rec.Attributes == nil {
		return
	}
	if status, ok := asInt(rec.Attributes[attrHTTPStatusCode]); ok {
		c.status[status]++
	}
	for key, attr := range map[string]string{
		"total":  attrTotalMillis,
		"decode": attrDecodeMillis,
		"dedupe": attrDedupeMillis,
		"apply":  attrApplyMillis,
	} {
		if v, ok := asFloat(rec.Attributes[attr]); ok {
			observe(c.durations, key, v)
		}
	}
	for key, attr := range map[string]string{
		"received":   attrReceived,
		"applied":    attrApplied,
		"ignored":    attrIgnored,
		"duplicates": attrDuplicates,
	} {
		if v, ok := asFloat(rec.Attributes[attr]); ok {
			observe(c.commands, key, v)
		}
	}
	if stage, ok := rec.Attributes[attrErrorStage].(string); ok && stage != "" {
		c.errorStage[stage]++
	}
}

func observe(m map[string]*numericStats, key string, v float64) {
	stat, ok := m[key]
	if !ok {
		stat = &numericStats{Min: math.MaxFloat64}
		m[key] = stat
	}
	stat.Count++
	stat.Sum += v
	stat.Min = min(stat.Min, v)
	stat.Max = max(stat.Max, v)
}

func (n *numericStats) summary() Stats {
	if n == nil || n.Count == 0 {
		return Stats{}
	}
	return Stats{Count: n.Count, Min: n.Min, Max: n.Max, Avg: n.Sum / float64(n.Count)}
}

// Summary returns the aggregate of everything ingested so far.
func (c *Collector) Summary() Summary {
	s := Summary{
		EventName:      c.eventName,
		EventDomain:    c.eventDomain,
		TotalEvents:    c.count,
		SeverityCounts: make(map[string]int, len(c.severity)),
		StatusCounts:   make(map[string]int, len(c.status)),
		DurationMs:     make(map[string]Stats, len(c.durations)),
		Commands:       make(map[string]Stats, len(c.commands)),
		ErrorEvents:    c.errors,
		WarnEvents:     c.warnings,
		SkippedLines:   c.skipped,
	}
	for k, v := range c.severity {
		s.SeverityCounts[k] = v
	}
	for status, v := range c.status {
		s.StatusCounts[strconv.Itoa(status)] = v
	}
	for k, v := range c.durations {
		s.DurationMs[k] = v.summary()
	}
	for k, v := range c.commands {
		s.Commands[k] = v.summary()
	}
	if len(c.errorStage) > 0 {
		s.ErrorStages = make(map[string]int, len(c.errorStage))
		for k, v := range c.errorStage {
			s.ErrorStages[k] = v
		}
	}
	return s
}

// ShortString is a single line digest for terminals and CI logs.
func (s Summary) ShortString() string {
	total := s.DurationMs["total"]
	return strings.Join([]string{
		"event=" + s.EventName,
		"domain=" + s.EventDomain,
		"total=" + strconv.Itoa(s.TotalEvents),
		"info=" + strconv.Itoa(s.SeverityCounts["INFO"]),
		"warn=" + strconv.Itoa(s.WarnEvents),
		"error=" + strconv.Itoa(s.ErrorEvents),
		"avg_total_ms=" + formatFloat(total.Avg),
		"max_total_ms=" + formatFloat(total.Max),
	}, " ")
}

func formatFloat(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(v)
		return i, err == nil
	default:
		return 0, false
	}
}
