package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestStartSpanDisabled(t *testing.T) {
	enabled = false
	ctx, span := StartSpan(context.Background(), "engine.Decide")
	span.End()
	if _, _, ok := GetTraceFields(ctx); ok {
		t.Error("Expected no trace fields while tracing is disabled")
	}
}

func TestInitWithWriterExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("InitWithWriter failed: %v", err)
	}
	defer func() { enabled = false }()

	ctx, span := StartSpan(context.Background(), "engine.Decide")
	traceID, spanID, ok := GetTraceFields(ctx)
	if !ok || traceID == "" || spanID == "" {
		t.Errorf("Expected trace fields inside a span, got %q %q %v", traceID, spanID, ok)
	}
	span.End()

	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if !strings.Contains(buf.String(), "engine.Decide") {
		t.Error("Expected exported span to name engine.Decide")
	}
}
