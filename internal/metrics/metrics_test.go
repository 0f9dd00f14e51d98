package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("listing", "ok"))
	ObserveFetch("listing", "ok")
	if got := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("listing", "ok")); got != before+1 {
		t.Errorf("expected fetch attempts %f, got %f", before+1, got)
	}
}

func TestObserveAdmittedSetsGauge(t *testing.T) {
	ObserveAdmitted(42)
	if got := testutil.ToFloat64(storeRecords); got != 42 {
		t.Errorf("expected store gauge 42, got %f", got)
	}
}

func TestObserveFlushStatus(t *testing.T) {
	okBefore := testutil.ToFloat64(flushesTotal.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(flushesTotal.WithLabelValues("error"))
	ObserveFlush(true)
	ObserveFlush(false)
	ObserveFlush(false)
	if got := testutil.ToFloat64(flushesTotal.WithLabelValues("ok")); got != okBefore+1 {
		t.Errorf("expected ok flushes %f, got %f", okBefore+1, got)
	}
	if got := testutil.ToFloat64(flushesTotal.WithLabelValues("error")); got != errBefore+2 {
		t.Errorf("expected error flushes %f, got %f", errBefore+2, got)
	}
}
