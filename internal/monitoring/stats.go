package monitoring

import (
	"fmt"
	"sync"
	"time"
)

// PipelineStats tracks sonar pipeline throughput with thread-safe operations.
// Interval counters reset on every GetAndReset so rate logging stays honest
// across reporting periods; lifetime totals keep accumulating for the API.
type PipelineStats struct {
	mu sync.Mutex

	records       int64
	parseFailures int64
	fullScans     int64
	windowScans   int64
	pointClouds   int64
	publishErrors int64
	lastReset     time.Time

	totals  Snapshot
	started time.Time
}

// Snapshot is a copy of the counters over one period.
type Snapshot struct {
	Records       int64         `json:"records"`
	ParseFailures int64         `json:"parse_failures"`
	FullScans     int64         `json:"full_scans"`
	WindowScans   int64         `json:"window_scans"`
	PointClouds   int64         `json:"point_clouds"`
	PublishErrors int64         `json:"publish_errors"`
	Duration      time.Duration `json:"duration_ns"`
}

// NewPipelineStats creates a new PipelineStats instance.
func NewPipelineStats() *PipelineStats {
	now := time.Now()
	return &PipelineStats{
		lastReset: now,
		started:   now,
	}
}

// AddRecord counts one log row consumed, whether or not it parsed.
func (ps *PipelineStats) AddRecord() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.records++
	ps.totals.Records++
}

// AddParseFailure counts one row the parser rejected.
func (ps *PipelineStats) AddParseFailure() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.parseFailures++
	ps.totals.ParseFailures++
}

// AddFullScan counts one published full polar scan.
func (ps *PipelineStats) AddFullScan() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.fullScans++
	ps.totals.FullScans++
}

// AddWindowScan counts one published windowed polar scan.
func (ps *PipelineStats) AddWindowScan() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.windowScans++
	ps.totals.WindowScans++
}

// AddPointCloud counts one published point cloud.
func (ps *PipelineStats) AddPointCloud() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.pointClouds++
	ps.totals.PointClouds++
}

// AddPublishError counts one failed publish on any transport.
func (ps *PipelineStats) AddPublishError() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.publishErrors++
	ps.totals.PublishErrors++
}

// GetAndReset returns the interval counters and resets them.
func (ps *PipelineStats) GetAndReset() Snapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	snap := Snapshot{
		Records:       ps.records,
		ParseFailures: ps.parseFailures,
		FullScans:     ps.fullScans,
		WindowScans:   ps.windowScans,
		PointClouds:   ps.pointClouds,
		PublishErrors: ps.publishErrors,
		Duration:      now.Sub(ps.lastReset),
	}

	ps.records = 0
	ps.parseFailures = 0
	ps.fullScans = 0
	ps.windowScans = 0
	ps.pointClouds = 0
	ps.publishErrors = 0
	ps.lastReset = now

	return snap
}

// Totals returns the lifetime counters without resetting anything.
func (ps *PipelineStats) Totals() Snapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	totals := ps.totals
	totals.Duration = time.Since(ps.started)
	return totals
}

// LogStats reports interval rates through Logf and resets the interval. It
// returns the consumed snapshot so callers can forward it to a stats sink.
// Quiet periods log nothing.
func (ps *PipelineStats) LogStats() Snapshot {
	snap := ps.GetAndReset()
	if snap.Records == 0 && snap.PublishErrors == 0 {
		return snap
	}

	recordsPerSec := float64(snap.Records) / snap.Duration.Seconds()
	scans := snap.FullScans + snap.WindowScans + snap.PointClouds
	scansPerSec := float64(scans) / snap.Duration.Seconds()

	logMsg := fmt.Sprintf("Sonar stats (/sec): %.1f records, %.1f publishes",
		recordsPerSec, scansPerSec)
	if snap.ParseFailures > 0 {
		logMsg += fmt.Sprintf(", %s rows rejected", FormatWithCommas(snap.ParseFailures))
	}
	if snap.PublishErrors > 0 {
		logMsg += fmt.Sprintf(", %d publish errors", snap.PublishErrors)
	}

	Logf("%s", logMsg)
	return snap
}

// FormatWithCommas formats a number with thousands separators.
func FormatWithCommas(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	result := ""
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(char)
	}
	return result
}
