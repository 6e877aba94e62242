package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)
	m.now = func() time.Time { return time.Unix(1_772_000_000, 0) }
	job := "session-sweep"
	m.Record(job, 250*time.Millisecond, nil)
	m.Record(job, 100*time.Millisecond, errors.New("boom"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "job_runs_total", "outcome", "success"); err != nil || got != 1 {
		t.Fatalf("expected success=1, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "job_runs_total", "outcome", "failure"); err != nil || got != 1 {
		t.Fatalf("expected failure=1, got %f err=%v", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "job_duration_seconds", "job", job); err != nil || got < 0.3 {
		t.Fatalf("expected duration sum 0.35, got %f err=%v", got, err)
	}
	mf := findMetricFamily(mfs, "job_last_success_timestamp_seconds")
	if mf == nil || mf.GetMetric()[0].GetGauge().GetValue() != 1_772_000_000 {
		t.Fatalf("expected last success timestamp")
	}
}

func TestScanMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewScanMetrics(reg)
	m.IncSubmitted()
	m.IncSubmitted()
	m.IncDropped()
	m.IncRejected("empty")
	m.ObserveLookup("found", 10*time.Millisecond)
	m.ObserveLookup("not_found", 5*time.Millisecond)
	m.ObserveLookup("found", 12*time.Millisecond)
	m.SetActiveSessions(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "scan_lookups_total", "outcome", "found"); err != nil || got != 2 {
		t.Fatalf("expected 2 found lookups, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "scan_codes_rejected_total", "reason", "empty"); err != nil || got != 1 {
		t.Fatalf("expected 1 empty rejection, got %f err=%v", got, err)
	}
	if mf := findMetricFamily(mfs, "scan_codes_submitted_total"); mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Fatalf("expected 2 submitted scans")
	}
	if mf := findMetricFamily(mfs, "scan_sessions_active"); mf == nil || mf.GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Fatalf("expected 3 active sessions")
	}
}

func TestBlankLabelsRecordAsUnknown(t *testing.T) {
	reg := prometheus.NewRegistry()
	jobs := NewJobMetrics(reg)
	scans := NewScanMetrics(reg)
	expiry := NewExpiryMetrics(reg)

	jobs.Record("", time.Millisecond, nil)
	scans.IncRejected("")
	scans.ObserveLookup("", time.Millisecond)
	expiry.SetCount("", 4)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "job_runs_total", "job", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unknown job run, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "scan_codes_rejected_total", "reason", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unknown rejection reason, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "scan_lookups_total", "outcome", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unknown lookup outcome, got %f err=%v", got, err)
	}
	mf := findMetricFamily(mfs, "products_expiry_window")
	if mf == nil || mf.GetMetric()[0].GetLabel()[0].GetValue() != "unknown" || mf.GetMetric()[0].GetGauge().GetValue() != 4 {
		t.Fatalf("expected unknown expiry status gauge")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var scan *ScanMetrics
	scan.IncSubmitted()
	scan.ObserveLookup("found", time.Millisecond)
	NewScanMetrics(nil).IncDropped()

	var jobs *JobMetrics
	jobs.Record("x", time.Second, nil)
	NewJobMetrics(nil).Record("x", time.Second, errors.New("boom"))
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestExpiryMetricsSetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewExpiryMetrics(reg)
	m.SetCount("expired", 2)
	m.SetCount("expiring", 5)
	m.SetCount("expired", 1)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "products_expiry_window" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "status" && label.GetValue() == "expired" && metric.GetGauge().GetValue() != 1 {
					t.Fatalf("expected expired gauge 1, got %f", metric.GetGauge().GetValue())
				}
			}
		}
		return
	}
	t.Fatal("products_expiry_window not exported")
}

func TestExpiryMetricsNilSafe(t *testing.T) {
	var m *ExpiryMetrics
	m.SetCount("expired", 1)
	NewExpiryMetrics(nil).SetCount("expired", 1)
}
