package monitoring

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxSink ships pipeline snapshots to an InfluxDB bucket. Writes are
// batched and asynchronous; write failures surface through Logf rather than
// back-pressuring the pipeline.
type InfluxSink struct {
	client influxdb2.Client
	writer influxdb2_api.WriteAPI
	tags   map[string]string
}

// InfluxSinkConfig carries the connection settings for a stats sink.
type InfluxSinkConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	// Tags are attached to every measurement, e.g. the replayed log name.
	Tags map[string]string
}

// NewInfluxSink connects a snapshot writer to InfluxDB. The underlying
// client buffers points and flushes once per second or every 100 points.
func NewInfluxSink(cfg InfluxSinkConfig) *InfluxSink {
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(100).
			SetFlushInterval(1000))
	writer := client.WriteAPI(cfg.Org, cfg.Bucket)

	go func() {
		for err := range writer.Errors() {
			Logf("InfluxDB write error: %v", err)
		}
	}()

	return &InfluxSink{client: client, writer: writer, tags: cfg.Tags}
}

// WriteSnapshot records one interval snapshot under the sonar_pipeline
// measurement.
func (s *InfluxSink) WriteSnapshot(snap Snapshot) {
	point := influxdb2.NewPoint("sonar_pipeline",
		s.tags,
		map[string]interface{}{
			"records":        snap.Records,
			"parse_failures": snap.ParseFailures,
			"full_scans":     snap.FullScans,
			"window_scans":   snap.WindowScans,
			"point_clouds":   snap.PointClouds,
			"publish_errors": snap.PublishErrors,
			"duration_s":     snap.Duration.Seconds(),
		},
		time.Now())
	s.writer.WritePoint(point)
}

// Close flushes buffered points and shuts the client down.
func (s *InfluxSink) Close() {
	s.writer.Flush()
	s.client.Close()
}
