package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName          = "kanban-app/api"
	commandsSpanName    = "api.commands"
	commandsEventName   = "kanban.commands.request"
	commandsEventDomain = "kanban.api"
	commandsRoute       = "/api/commands"
	observabilityEvent  = "observability.event"
)

type commandRequestMetrics struct {
	logger         *log.Logger
	span           trace.Span
	start          time.Time
	decodeDuration time.Duration
	dedupeDuration time.Duration
	applyDuration  time.Duration
	received       int
	applied        int
	ignored        int
	duplicates     int
	errorStage     string
}

func newCommandRequestMetrics(ctx context.Context, logger *log.Logger) (*commandRequestMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, commandsSpanName, trace.WithSpanKind(trace.SpanKindServer))
	return &commandRequestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
	}, ctx
}

func (m *commandRequestMetrics) ObserveDecode(d time.Duration) {
	if d > 0 {
		m.decodeDuration = d
	}
}

func (m *commandRequestMetrics) ObserveDedupe(d time.Duration) {
	if d > 0 {
		m.dedupeDuration = d
	}
}

func (m *commandRequestMetrics) ObserveApply(d time.Duration) {
	if d > 0 {
		m.applyDuration = d
	}
}

func (m *commandRequestMetrics) SetReceived(n int) { m.received = max(n, 0) }

// SetOutcomes counts applied, ignored and duplicate commands.
func (m *commandRequestMetrics) SetOutcomes(applied, ignored, duplicates int) {
	m.applied = max(applied, 0)
	m.ignored = max(ignored, 0)
	m.duplicates = max(duplicates, 0)
}

func (m *commandRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *commandRequestMetrics) attributes(status int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("http.route", commandsRoute),
		attribute.Int("http.status_code", status),
		attribute.Float64("kanban.commands.total_ms", durationToMillis(time.Since(m.start))),
		attribute.Int("kanban.commands.received", m.received),
		attribute.Int("kanban.commands.applied", m.applied),
		attribute.Int("kanban.commands.ignored", m.ignored),
		attribute.Int("kanban.commands.duplicates", m.duplicates),
	}
	if m.decodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("kanban.commands.decode_ms", durationToMillis(m.decodeDuration)))
	}
	if m.dedupeDuration > 0 {
		attrs = append(attrs, attribute.Float64("kanban.commands.dedupe_ms", durationToMillis(m.dedupeDuration)))
	}
	if m.applyDuration > 0 {
		attrs = append(attrs, attribute.Float64("kanban.commands.apply_ms", durationToMillis(m.applyDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("kanban.commands.error_stage", m.errorStage))
	}
	return attrs
}

// Log ends the request span and emits one observability event both as a
// span event and as a structured log entry.
func (m *commandRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	defer m.span.End()

	attrs := m.attributes(status)
	severityText, severityNumber := severityForStatus(status, err)

	m.span.SetAttributes(attrs...)
	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", commandsEventName),
		attribute.String("event.domain", commandsEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, attrs...)
	if err != nil {
		eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
		m.span.RecordError(err)
	}
	m.span.AddEvent(observabilityEvent, trace.WithAttributes(eventAttrs...))

	switch {
	case err != nil:
		m.span.SetStatus(codes.Error, err.Error())
	case status >= http.StatusInternalServerError:
		m.span.SetStatus(codes.Error, http.StatusText(status))
	default:
		m.span.SetStatus(codes.Ok, "")
	}

	if m.logger == nil {
		return
	}
	logged := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		logged[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      commandsEventName,
		"event.domain":    commandsEventDomain,
		"attributes":      logged,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if sc := m.span.SpanContext(); sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
		fields["span_id"] = sc.SpanID().String()
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	entry := m.logger.WithFields(fields)
	switch severityText {
	case "ERROR":
		entry.Error(observabilityEvent)
	case "WARN":
		entry.Warn(observabilityEvent)
	default:
		entry.Info(observabilityEvent)
	}
}

// severityForStatus maps a response to OpenTelemetry log severity.
func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
