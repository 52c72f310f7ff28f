package observability

import "testing"

func TestOtelHeadersParsing(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-api-key=abc, bad ,=nokey,empty=, tenant = med ")
	got := otelHeaders()
	if len(got) != 2 || got["x-api-key"] != "abc" || got["tenant"] != "med" {
		t.Fatalf("unexpected headers: %#v", got)
	}
}

func TestOtelSampleRatioClamped(t *testing.T) {
	t.Setenv("OTEL_SAMPLER_RATIO", "3")
	if got := otelSampleRatio(); got != 1 {
		t.Fatalf("expected ratio clamped to 1, got %v", got)
	}
	t.Setenv("OTEL_SAMPLER_RATIO", "nope")
	if got := otelSampleRatio(); got != 0.1 {
		t.Fatalf("expected default 0.1, got %v", got)
	}
}
