package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"herdbook/pkg/domain"
)

type captureAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAudit) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureAudit) has(op string, status AuditStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.Operation == op && e.Status == status {
			return true
		}
	}
	return false
}

type metricCall struct {
	op      string
	success bool
}

type captureMetrics struct {
	mu    sync.Mutex
	calls []metricCall
}

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricCall{op: op, success: success})
}

func (c *captureMetrics) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

func TestServiceRecordsAuditEntries(t *testing.T) {
	ctx := context.Background()
	audit := &captureAudit{}
	auditAt := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := newTestService(t, WithAuditRecorder(audit), WithClock(ClockFunc(func() time.Time { return auditAt })))

	m := mustCreate(t, svc, rabbit("M", domain.GenderMale))
	if _, _, err := svc.UpdateAnimal(ctx, 404, func(*Animal) error { return nil }); err == nil {
		t.Fatalf("expected update of missing animal to fail")
	}
	if _, err := svc.ClassifyPair(ctx, m.ID, 404); err == nil {
		t.Fatalf("expected classify with a missing animal to fail")
	}

	if !audit.has("create_animal", AuditStatusSuccess) || !audit.has("update_animal", AuditStatusError) {
		t.Fatalf("missing audit entries: %+v", audit.entries)
	}
	if len(audit.entries) != 2 {
		t.Fatalf("read operations must not be audited, got %+v", audit.entries)
	}
	created := audit.entries[0]
	if created.EntityID != m.ID || created.Entity != EntityAnimal || created.Action != ActionCreate || !created.Timestamp.Equal(auditAt) {
		t.Fatalf("unexpected create entry %+v", created)
	}
	failed := audit.entries[1]
	if failed.EntityID != 404 || !strings.Contains(failed.Error, "not found") {
		t.Fatalf("unexpected error entry %+v", failed)
	}
}

func TestRecordAuditIgnoresUnknownOperations(t *testing.T) {
	audit := &captureAudit{}
	svc := newTestService(t, WithAuditRecorder(audit))
	svc.recordAuditSuccess(context.Background(), "potential_mates", 1, time.Millisecond)
	svc.recordAuditError(context.Background(), "breeding_stats", 0, time.Millisecond, errors.New("boom"))
	if len(audit.entries) != 0 {
		t.Fatalf("expected no entries, got %+v", audit.entries)
	}
}

func TestServiceObservesMetricsAndSpans(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetrics{}
	var traceOut bytes.Buffer
	tracer := NewJSONTracer(&traceOut)
	logger := &captureLogger{}
	svc := newTestService(t, WithMetricsRecorder(metrics), WithTracer(tracer), WithLogger(logger))

	m := mustCreate(t, svc, rabbit("M", domain.GenderMale))
	if _, err := svc.PotentialMates(ctx, m.ID); err != nil {
		t.Fatalf("potential mates: %v", err)
	}
	if _, err := svc.DeleteBreedingEvent(ctx, 77); err == nil {
		t.Fatalf("expected delete of missing event to fail")
	}

	if !metrics.has("create_animal", true) || !metrics.has("potential_mates", true) || !metrics.has("delete_breeding_event", false) {
		t.Fatalf("missing metric observations: %+v", metrics.calls)
	}
	entries := tracer.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(entries))
	}
	if entries[2].Operation != "delete_breeding_event" || entries[2].Status != "error" || entries[2].Error == "" {
		t.Fatalf("unexpected failed span %+v", entries[2])
	}
	lines := strings.Split(strings.TrimSpace(traceOut.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 JSON lines, got %d", len(lines))
	}
	var decoded JSONTraceEntry
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil || decoded.Operation != "create_animal" {
		t.Fatalf("unexpected trace line %q: %v", lines[0], err)
	}
	if len(logger.errors) != 1 || logger.errors[0] != "operation failed" {
		t.Fatalf("expected one failure log, got %v", logger.errors)
	}
}

func TestJSONTraceSpanEndsOnce(t *testing.T) {
	tracer := NewJSONTracer(nil)
	_, span := tracer.Start(context.Background(), "classify_pair")
	span.End(nil)
	span.End(errors.New("late"))
	entries := tracer.Entries()
	if len(entries) != 1 || entries[0].Status != "success" {
		t.Fatalf("expected a single successful span, got %+v", entries)
	}
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if !strings.HasPrefix(rec.Name(), "herdbook_service_metrics_") {
		t.Fatalf("unexpected generated name %s", rec.Name())
	}
	rec.Observe(context.Background(), "record_birth", true, 2*time.Millisecond)
	rec.Observe(context.Background(), "record_birth", false, 3*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)

	snap := rec.Snapshot()
	stats := snap.Operations["record_birth"]
	if stats.Success != 1 || stats.Error != 1 || stats.DurationsMS != 5 || len(snap.Operations) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	published := expvar.Get(rec.Name())
	if published == nil || !strings.Contains(published.String(), "record_birth") {
		t.Fatalf("expected recorder to be published via expvar")
	}
	if other := NewExpvarMetricsRecorder(""); other.Name() == rec.Name() {
		t.Fatalf("generated names must be unique")
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusMetricsRecorder(reg)
	svc := newTestService(t, WithMetricsRecorder(rec))
	mustCreate(t, svc, rabbit("M", domain.GenderMale))
	mustCreate(t, svc, rabbit("F", domain.GenderFemale))
	if _, err := svc.GetBreedingEvent(context.Background(), 1); err == nil {
		t.Fatalf("expected missing event")
	}
	if _, _, err := svc.RecordBirth(context.Background(), 1, BirthRecord{ActualBirthDate: fixedNow}); err == nil {
		t.Fatalf("expected birth on missing event to fail")
	}

	if got := testutil.ToFloat64(rec.total.WithLabelValues("create_animal", "success")); got != 2 {
		t.Fatalf("expected 2 successful creates, got %v", got)
	}
	if got := testutil.ToFloat64(rec.total.WithLabelValues("record_birth", "error")); got != 1 {
		t.Fatalf("expected 1 failed birth, got %v", got)
	}
	if n := testutil.CollectAndCount(rec.duration); n != 2 {
		t.Fatalf("expected 2 latency series, got %d", n)
	}
}

func TestSlogLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	logger.Warn("litter archive failed", "event_id", 7)
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["msg"] != "litter archive failed" || line["level"] != "WARN" || line["event_id"] != float64(7) {
		t.Fatalf("unexpected log line %v", line)
	}
	if NewSlogLogger(nil) == nil {
		t.Fatalf("expected default logger")
	}
}

func TestNoopObservability(t *testing.T) {
	ctx := context.Background()
	noopAuditRecorder{}.Record(ctx, AuditEntry{})
	noopMetricsRecorder{}.Observe(ctx, "op", true, time.Second)
	got, span := noopTracer{}.Start(ctx, "op")
	span.End(nil)
	if got != ctx {
		t.Fatalf("noop tracer must return the caller context")
	}
	svc := NewService(newTestStore(), WithLogger(nil), WithAuditRecorder(nil), WithMetricsRecorder(nil), WithTracer(nil), WithClock(nil))
	if _, ok := svc.logger.(noopLogger); !ok {
		t.Fatalf("nil options must keep the noop defaults")
	}
	if !svc.now().Equal(fixedNow) {
		t.Fatalf("expected store clock fallback, got %v", svc.now())
	}
	if svc.Species() == nil || svc.Store() == nil {
		t.Fatalf("expected defaults to be wired")
	}
}
