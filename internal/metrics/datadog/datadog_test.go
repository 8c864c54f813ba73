package datadog

import (
	"errors"
	"reflect"
	"testing"

	"fwingest/internal/metrics"
)

type sent struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeClient struct {
	sent     []sent
	flushErr error
	flushed  bool
	closed   bool
}

func (f *fakeClient) Count(name string, value int64, tags []string, _ float64) error {
	f.sent = append(f.sent, sent{"count", name, float64(value), tags})
	return nil
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, _ float64) error {
	f.sent = append(f.sent, sent{"histogram", name, value, tags})
	return nil
}

func (f *fakeClient) Gauge(name string, value float64, tags []string, _ float64) error {
	f.sent = append(f.sent, sent{"gauge", name, value, tags})
	return nil
}

func (f *fakeClient) Flush() error { f.flushed = true; return f.flushErr }
func (f *fakeClient) Close() error { f.closed = true; return nil }

func TestNewBackendRequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("NewBackend without Addr: want error")
	}
}

func TestBackendForwardsWithTags(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	b := &Backend{client: fc}

	b.IncCounter(metrics.RowsTotal, 7.9, metrics.Labels{"kind": "staged", "job": "pnad"})
	b.ObserveHistogram(metrics.StepDuration, 0.25, metrics.Labels{"step": "stage"})
	b.SetGauge(metrics.LastSuccessTime, 42, nil)

	want := []sent{
		{"count", metrics.RowsTotal, 7, []string{"job:pnad", "kind:staged"}},
		{"histogram", metrics.StepDuration, 0.25, []string{"step:stage"}},
		{"gauge", metrics.LastSuccessTime, 42, nil},
	}
	if !reflect.DeepEqual(fc.sent, want) {
		t.Fatalf("sent = %+v\nwant %+v", fc.sent, want)
	}
}

func TestFlush(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	if err := (&Backend{client: fc}).Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if !fc.flushed || !fc.closed {
		t.Fatalf("flushed=%v closed=%v, want both", fc.flushed, fc.closed)
	}

	boom := errors.New("agent unreachable")
	fc = &fakeClient{flushErr: boom}
	if err := (&Backend{client: fc}).Flush(); !errors.Is(err, boom) {
		t.Fatalf("Flush err = %v, want %v", err, boom)
	}
	if fc.closed {
		t.Fatal("client closed despite flush failure")
	}

	if err := (&Backend{}).Flush(); err != nil {
		t.Fatalf("zero Backend Flush: %v", err)
	}
}
