// Package analytics computes dashboard aggregates over the call record
// store. Everything is derived on demand from Store.List; nothing here is
// persisted.
package analytics

import (
	"context"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/jordanw/callscope/internal/domain"
	"github.com/jordanw/callscope/internal/store"
)

// Engine computes aggregates from stored records.
type Engine struct {
	st store.Store
}

// New creates an Engine over the given store.
func New(st store.Store) *Engine {
	return &Engine{st: st}
}

// Overview is the headline dashboard payload.
type Overview struct {
	TotalCalls      int     `json:"total_calls"`
	CompletedCalls  int     `json:"completed_calls"`
	FailedCalls     int     `json:"failed_calls"`
	ProcessingCalls int     `json:"processing_calls"`
	SuccessRate     float64 `json:"success_rate"`

	TotalDurationHours float64 `json:"total_duration_hours"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
	MaxDurationMinutes float64 `json:"max_duration_minutes"`

	AvgProcessingTime   float64 `json:"avg_processing_time"`
	TotalProcessingTime float64 `json:"total_processing_time"`

	TotalSizeMB float64 `json:"total_size_mb"`
	AvgSizeMB   float64 `json:"avg_size_mb"`

	CallsToday     int `json:"calls_today"`
	CallsYesterday int `json:"calls_yesterday"`
	CallsThisWeek  int `json:"calls_this_week"`

	TopAgent           string `json:"top_agent,omitempty"`
	TotalAgents        int    `json:"total_agents"`
	UniquePhoneNumbers int    `json:"unique_phone_numbers"`
}

// Bucket is one labeled count with its share of the total.
type Bucket struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Distribution is a set of buckets over some field.
type Distribution struct {
	Buckets []Bucket `json:"buckets"`
	Total   int      `json:"total"`
}

// DispositionBreakdown carries both disposition axes.
type DispositionBreakdown struct {
	Primary   Distribution `json:"primary"`
	Secondary Distribution `json:"secondary"`
}

// DailyTrend is one day of call volume.
type DailyTrend struct {
	Date      string `json:"date"`
	Calls     int    `json:"calls"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

// HourBucket is call volume for one hour of the day.
type HourBucket struct {
	Hour  int `json:"hour"`
	Calls int `json:"calls"`
}

// Performance summarizes pipeline throughput.
type Performance struct {
	AvgProcessingTime    float64 `json:"avg_processing_time"`
	MedianProcessingTime float64 `json:"median_processing_time"`
	MaxProcessingTime    float64 `json:"max_processing_time"`
	AvgSpeedRatio        float64 `json:"avg_speed_ratio"`
	FailureRate          float64 `json:"failure_rate"`
}

// Overview computes the headline stats.
func (e *Engine) Overview(ctx context.Context) (*Overview, error) {
	records, err := e.st.List(ctx)
	if err != nil {
		return nil, err
	}

	o := &Overview{}
	o.TotalCalls = len(records)
	if len(records) == 0 {
		return o, nil
	}

	now := time.Now()
	today := now.Format("2006-01-02")
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")
	weekAgo := now.AddDate(0, 0, -7)

	var totalDuration, maxDuration, completedProcessing float64
	var totalSize int64
	agents := map[string]int{}
	phones := map[string]struct{}{}

	for i := range records {
		r := &records[i]
		totalSize += r.FileSize
		o.TotalProcessingTime += r.ProcessingTimeSeconds

		switch r.Status {
		case domain.StatusCompleted:
			o.CompletedCalls++
			totalDuration += r.DurationSeconds
			if r.DurationSeconds > maxDuration {
				maxDuration = r.DurationSeconds
			}
			completedProcessing += r.ProcessingTimeSeconds
			if r.AgentName != "" {
				agents[r.AgentName]++
			}
			if r.PhoneNumber != "" {
				phones[r.PhoneNumber] = struct{}{}
			}
		case domain.StatusFailed:
			o.FailedCalls++
		case domain.StatusProcessing:
			o.ProcessingCalls++
		}

		day := r.Timestamp.Format("2006-01-02")
		if day == today {
			o.CallsToday++
		}
		if day == yesterday {
			o.CallsYesterday++
		}
		if r.Timestamp.After(weekAgo) {
			o.CallsThisWeek++
		}
	}

	o.SuccessRate = round1(float64(o.CompletedCalls) / float64(o.TotalCalls) * 100)
	o.TotalDurationHours = round2(totalDuration / 3600)
	if o.CompletedCalls > 0 {
		o.AvgDurationMinutes = round1(totalDuration / float64(o.CompletedCalls) / 60)
		o.MaxDurationMinutes = round1(maxDuration / 60)
		o.AvgProcessingTime = round2(completedProcessing / float64(o.CompletedCalls))
	}
	o.TotalProcessingTime = round2(o.TotalProcessingTime)
	o.TotalSizeMB = round2(float64(totalSize) / 1024 / 1024)
	o.AvgSizeMB = round2(float64(totalSize) / float64(o.TotalCalls) / 1024 / 1024)

	best := 0
	for agent, count := range agents {
		if count > best || (count == best && agent < o.TopAgent) {
			o.TopAgent = agent
			best = count
		}
	}
	o.TotalAgents = len(agents)
	o.UniquePhoneNumbers = len(phones)

	return o, nil
}

// IntentDistribution buckets completed calls by intent.
func (e *Engine) IntentDistribution(ctx context.Context) (*Distribution, error) {
	return e.distribution(ctx, func(r *domain.CallRecord) string { return r.Intent })
}

// SubIntentDistribution buckets completed calls by sub-intent.
func (e *Engine) SubIntentDistribution(ctx context.Context) (*Distribution, error) {
	return e.distribution(ctx, func(r *domain.CallRecord) string { return r.SubIntent })
}

// SpeakerDistribution buckets completed calls by detected speaker count.
func (e *Engine) SpeakerDistribution(ctx context.Context) (*Distribution, error) {
	return e.distribution(ctx, func(r *domain.CallRecord) string {
		switch r.SpeakerCount {
		case 0:
			return ""
		case 1:
			return "1 speaker"
		default:
			return strconv.Itoa(r.SpeakerCount) + " speakers"
		}
	})
}

// Dispositions buckets completed calls along both disposition axes.
// Error markers from degraded classification are excluded.
func (e *Engine) Dispositions(ctx context.Context) (*DispositionBreakdown, error) {
	records, err := e.st.List(ctx)
	if err != nil {
		return nil, err
	}

	excluded := map[string]struct{}{
		"": {}, "UNKNOWN": {}, "ERROR": {}, "API_ERROR": {}, "CLASSIFICATION_ERROR": {},
	}

	primary := map[string]int{}
	secondary := map[string]int{}
	for i := range records {
		r := &records[i]
		if r.Status != domain.StatusCompleted {
			continue
		}
		if _, skip := excluded[r.PrimaryDisposition]; !skip {
			primary[r.PrimaryDisposition]++
		}
		if _, skip := excluded[r.SecondaryDisposition]; !skip {
			secondary[r.SecondaryDisposition]++
		}
	}

	return &DispositionBreakdown{
		Primary:   bucketize(primary),
		Secondary: bucketize(secondary),
	}, nil
}

// DailyTrends returns per-day call volume for the last N days, oldest first.
// Days with no calls are included with zero counts.
func (e *Engine) DailyTrends(ctx context.Context, days int) ([]DailyTrend, error) {
	records, err := e.st.List(ctx)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 30
	}

	byDay := map[string]*DailyTrend{}
	trends := make([]DailyTrend, 0, days)
	start := time.Now().AddDate(0, 0, -(days - 1))
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		trends = append(trends, DailyTrend{Date: date})
		byDay[date] = &trends[len(trends)-1]
	}

	for i := range records {
		r := &records[i]
		t, ok := byDay[r.Timestamp.Format("2006-01-02")]
		if !ok {
			continue
		}
		t.Calls++
		switch r.Status {
		case domain.StatusCompleted:
			t.Completed++
		case domain.StatusFailed:
			t.Failed++
		}
	}

	return trends, nil
}

// HourlyDistribution returns call volume by hour of day. The call's own
// timestamp from the dialer filename is preferred over processing time.
func (e *Engine) HourlyDistribution(ctx context.Context) ([]HourBucket, error) {
	records, err := e.st.List(ctx)
	if err != nil {
		return nil, err
	}

	hours := make([]HourBucket, 24)
	for i := range hours {
		hours[i].Hour = i
	}

	for i := range records {
		r := &records[i]
		ts := r.Timestamp
		if parsed, ok := parseCallDatetime(r.CallDatetime); ok {
			ts = parsed
		}
		hours[ts.Hour()].Calls++
	}

	return hours, nil
}

// parseCallDatetime reads the dialer timestamp written by the filename
// metadata parser (RFC 3339), plus the space-separated layout found in rows
// imported from older exports.
func parseCallDatetime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Performance computes processing-time metrics over completed calls.
func (e *Engine) Performance(ctx context.Context) (*Performance, error) {
	records, err := e.st.List(ctx)
	if err != nil {
		return nil, err
	}

	p := &Performance{}
	var times []float64
	var speedRatios []float64
	failed := 0

	for i := range records {
		r := &records[i]
		if r.Status == domain.StatusFailed {
			failed++
		}
		if r.Status != domain.StatusCompleted || r.ProcessingTimeSeconds <= 0 {
			continue
		}
		times = append(times, r.ProcessingTimeSeconds)
		if r.DurationSeconds > 0 {
			speedRatios = append(speedRatios, r.DurationSeconds/r.ProcessingTimeSeconds)
		}
	}

	if len(records) > 0 {
		p.FailureRate = round1(float64(failed) / float64(len(records)) * 100)
	}
	if len(times) == 0 {
		return p, nil
	}

	sort.Float64s(times)
	var sum float64
	for _, t := range times {
		sum += t
		if t > p.MaxProcessingTime {
			p.MaxProcessingTime = t
		}
	}
	p.AvgProcessingTime = round2(sum / float64(len(times)))
	p.MedianProcessingTime = round2(median(times))
	p.MaxProcessingTime = round2(p.MaxProcessingTime)

	if len(speedRatios) > 0 {
		var rsum float64
		for _, r := range speedRatios {
			rsum += r
		}
		p.AvgSpeedRatio = round2(rsum / float64(len(speedRatios)))
	}

	return p, nil
}

// AgentPerformance buckets completed calls by agent name.
func (e *Engine) AgentPerformance(ctx context.Context) (*Distribution, error) {
	return e.distribution(ctx, func(r *domain.CallRecord) string { return r.AgentName })
}

// CallStatusDistribution buckets completed calls by dialer call status
// (ANSWERED, VOICEMAIL, ...), as parsed from the filename.
func (e *Engine) CallStatusDistribution(ctx context.Context) (*Distribution, error) {
	return e.distribution(ctx, func(r *domain.CallRecord) string { return r.CallStatus })
}

func (e *Engine) distribution(ctx context.Context, key func(*domain.CallRecord) string) (*Distribution, error) {
	records, err := e.st.List(ctx)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for i := range records {
		r := &records[i]
		if r.Status != domain.StatusCompleted {
			continue
		}
		if k := key(r); k != "" {
			counts[k]++
		}
	}

	d := bucketize(counts)
	return &d, nil
}

// bucketize converts counts into sorted buckets with percentages,
// largest first, ties broken by label.
func bucketize(counts map[string]int) Distribution {
	total := 0
	for _, c := range counts {
		total += c
	}

	buckets := make([]Bucket, 0, len(counts))
	for label, count := range counts {
		pct := 0.0
		if total > 0 {
			pct = round1(float64(count) / float64(total) * 100)
		}
		buckets = append(buckets, Bucket{Label: label, Count: count, Percentage: pct})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Label < buckets[j].Label
	})

	return Distribution{Buckets: buckets, Total: total}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
