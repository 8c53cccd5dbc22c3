package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jordanw/callscope/internal/domain"
	"github.com/jordanw/callscope/internal/store"
)

func seedStore(t *testing.T, records []domain.CallRecord) store.Store {
	t.Helper()
	st, err := store.OpenCSV(filepath.Join(t.TempDir(), "records.csv"))
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	for i := range records {
		if err := st.Upsert(context.Background(), &records[i]); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	return st
}

func completedRecord(filename string, ts time.Time) domain.CallRecord {
	return domain.CallRecord{
		Filename:              filename,
		Timestamp:             ts,
		Status:                domain.StatusCompleted,
		DurationSeconds:       120,
		ProcessingTimeSeconds: 10,
		FileSize:              1024 * 1024,
		Intent:                "ROOFING",
		SubIntent:             "ROOF_REPAIR",
		SpeakerCount:          2,
		AgentName:             "jsmith",
		PhoneNumber:           "5551234567",
		PrimaryDisposition:    "QUALIFIED_LEAD",
		SecondaryDisposition:  "IMMEDIATE",
	}
}

func TestOverview(t *testing.T) {
	now := time.Now()
	failed := domain.CallRecord{
		Filename: "bad.mp3", Timestamp: now, Status: domain.StatusFailed,
		ProcessingTimeSeconds: 5, FileSize: 512 * 1024,
	}
	recs := []domain.CallRecord{
		completedRecord("a.mp3", now),
		completedRecord("b.mp3", now.AddDate(0, 0, -1)),
		failed,
	}
	recs[1].AgentName = "mjones"
	recs[1].DurationSeconds = 240

	e := New(seedStore(t, recs))
	o, err := e.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}

	if o.TotalCalls != 3 || o.CompletedCalls != 2 || o.FailedCalls != 1 {
		t.Errorf("counts: %+v", o)
	}
	if o.SuccessRate != 66.7 {
		t.Errorf("SuccessRate = %v, want 66.7", o.SuccessRate)
	}
	if o.TotalDurationHours != 0.1 {
		t.Errorf("TotalDurationHours = %v, want 0.1", o.TotalDurationHours)
	}
	if o.AvgDurationMinutes != 3.0 {
		t.Errorf("AvgDurationMinutes = %v, want 3.0", o.AvgDurationMinutes)
	}
	if o.CallsToday != 2 || o.CallsYesterday != 1 {
		t.Errorf("today/yesterday = %d/%d", o.CallsToday, o.CallsYesterday)
	}
	if o.TotalAgents != 2 || o.UniquePhoneNumbers != 1 {
		t.Errorf("agents/phones = %d/%d", o.TotalAgents, o.UniquePhoneNumbers)
	}
}

func TestOverviewEmpty(t *testing.T) {
	e := New(seedStore(t, nil))
	o, err := e.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if o.TotalCalls != 0 || o.SuccessRate != 0 {
		t.Errorf("empty overview = %+v", o)
	}
}

func TestIntentDistribution(t *testing.T) {
	now := time.Now()
	recs := []domain.CallRecord{
		completedRecord("a.mp3", now),
		completedRecord("b.mp3", now),
		completedRecord("c.mp3", now),
	}
	recs[2].Intent = "PLUMBING"
	// Failed calls never enter distributions.
	recs = append(recs, domain.CallRecord{
		Filename: "d.mp3", Timestamp: now, Status: domain.StatusFailed, Intent: "HVAC",
	})

	e := New(seedStore(t, recs))
	d, err := e.IntentDistribution(context.Background())
	if err != nil {
		t.Fatalf("IntentDistribution: %v", err)
	}

	if d.Total != 3 {
		t.Errorf("Total = %d, want 3", d.Total)
	}
	if len(d.Buckets) != 2 {
		t.Fatalf("buckets = %v", d.Buckets)
	}
	if d.Buckets[0].Label != "ROOFING" || d.Buckets[0].Count != 2 {
		t.Errorf("top bucket = %+v", d.Buckets[0])
	}
	if d.Buckets[0].Percentage != 66.7 {
		t.Errorf("Percentage = %v", d.Buckets[0].Percentage)
	}
}

func TestDispositionsExcludeErrorMarkers(t *testing.T) {
	now := time.Now()
	recs := []domain.CallRecord{
		completedRecord("a.mp3", now),
		completedRecord("b.mp3", now),
	}
	recs[1].PrimaryDisposition = "OTHER"
	recs[1].SecondaryDisposition = "CLASSIFICATION_ERROR"

	e := New(seedStore(t, recs))
	d, err := e.Dispositions(context.Background())
	if err != nil {
		t.Fatalf("Dispositions: %v", err)
	}

	if d.Primary.Total != 2 {
		t.Errorf("Primary.Total = %d, want 2", d.Primary.Total)
	}
	if d.Secondary.Total != 1 {
		t.Errorf("Secondary.Total = %d, want 1 (error marker excluded)", d.Secondary.Total)
	}
}

func TestDailyTrends(t *testing.T) {
	now := time.Now()
	recs := []domain.CallRecord{
		completedRecord("a.mp3", now),
		completedRecord("b.mp3", now),
		{Filename: "c.mp3", Timestamp: now.AddDate(0, 0, -2), Status: domain.StatusFailed},
	}

	e := New(seedStore(t, recs))
	trends, err := e.DailyTrends(context.Background(), 7)
	if err != nil {
		t.Fatalf("DailyTrends: %v", err)
	}

	if len(trends) != 7 {
		t.Fatalf("trends length = %d, want 7", len(trends))
	}
	last := trends[6]
	if last.Date != now.Format("2006-01-02") || last.Calls != 2 || last.Completed != 2 {
		t.Errorf("today's trend = %+v", last)
	}
	twoBack := trends[4]
	if twoBack.Calls != 1 || twoBack.Failed != 1 {
		t.Errorf("trend two days back = %+v", twoBack)
	}
	if trends[5].Calls != 0 {
		t.Errorf("empty day should have zero calls: %+v", trends[5])
	}
}

func TestHourlyDistributionPrefersCallDatetime(t *testing.T) {
	// The record carries the call timestamp exactly as the filename parser
	// writes it, so the histogram must read that format.
	rec := completedRecord("20240315_14302201m30s_5551234567_completed_jsmith.mp3",
		time.Date(2024, 3, 15, 3, 0, 0, 0, time.UTC))
	meta, ok := domain.ParseFilenameMetadata(rec.Filename)
	if !ok {
		t.Fatal("filename metadata did not parse")
	}
	meta.ApplyTo(&rec)

	e := New(seedStore(t, []domain.CallRecord{rec}))
	hours, err := e.HourlyDistribution(context.Background())
	if err != nil {
		t.Fatalf("HourlyDistribution: %v", err)
	}
	if len(hours) != 24 {
		t.Fatalf("hours length = %d", len(hours))
	}
	if hours[14].Calls != 1 {
		t.Errorf("hour 14 calls = %d, want 1", hours[14].Calls)
	}
	if hours[3].Calls != 0 {
		t.Errorf("processing-time hour counted instead of call time")
	}
}

func TestHourlyDistributionLegacyDatetimeLayout(t *testing.T) {
	rec := completedRecord("a.mp3", time.Date(2024, 3, 15, 3, 0, 0, 0, time.UTC))
	rec.CallDatetime = "2024-03-15 14:30:22"

	e := New(seedStore(t, []domain.CallRecord{rec}))
	hours, err := e.HourlyDistribution(context.Background())
	if err != nil {
		t.Fatalf("HourlyDistribution: %v", err)
	}
	if hours[14].Calls != 1 {
		t.Errorf("hour 14 calls = %d, want 1", hours[14].Calls)
	}
}

func TestPerformance(t *testing.T) {
	now := time.Now()
	recs := []domain.CallRecord{
		completedRecord("a.mp3", now),
		completedRecord("b.mp3", now),
		completedRecord("c.mp3", now),
		{Filename: "d.mp3", Timestamp: now, Status: domain.StatusFailed},
	}
	recs[0].ProcessingTimeSeconds = 10
	recs[1].ProcessingTimeSeconds = 20
	recs[2].ProcessingTimeSeconds = 60

	e := New(seedStore(t, recs))
	p, err := e.Performance(context.Background())
	if err != nil {
		t.Fatalf("Performance: %v", err)
	}

	if p.AvgProcessingTime != 30 {
		t.Errorf("AvgProcessingTime = %v, want 30", p.AvgProcessingTime)
	}
	if p.MedianProcessingTime != 20 {
		t.Errorf("MedianProcessingTime = %v, want 20", p.MedianProcessingTime)
	}
	if p.MaxProcessingTime != 60 {
		t.Errorf("MaxProcessingTime = %v, want 60", p.MaxProcessingTime)
	}
	if p.FailureRate != 25 {
		t.Errorf("FailureRate = %v, want 25", p.FailureRate)
	}
}

func TestSpeakerDistribution(t *testing.T) {
	now := time.Now()
	recs := []domain.CallRecord{
		completedRecord("a.mp3", now),
		completedRecord("b.mp3", now),
		completedRecord("c.mp3", now),
	}
	recs[2].SpeakerCount = 1

	e := New(seedStore(t, recs))
	d, err := e.SpeakerDistribution(context.Background())
	if err != nil {
		t.Fatalf("SpeakerDistribution: %v", err)
	}
	if d.Buckets[0].Label != "2 speakers" || d.Buckets[0].Count != 2 {
		t.Errorf("top bucket = %+v", d.Buckets[0])
	}
}
