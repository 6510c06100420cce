// Package replay drives the scan pipeline from a recorded sonar CSV log,
// pacing records to simulate the live device and handing every projection to
// a publisher.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/banshee-data/sonar.report/internal/monitoring"
	"github.com/banshee-data/sonar.report/internal/sonar"
	"github.com/banshee-data/sonar.report/internal/sonar/micron"
	"github.com/banshee-data/sonar.report/internal/sonar/publish"
	"github.com/banshee-data/sonar.report/internal/timeutil"
)

// badRecordLogLimit bounds how many rejected rows are logged at normal
// level; the rest go to the debug logger.
const badRecordLogLimit = 3

// Config wires a Replayer to its collaborators. Builder and Publisher are
// required; everything else has a usable default.
type Config struct {
	Path   string
	Params sonar.PickParams
	Frame  string
	Queue  int

	// Rate is the simulated device sample rate in records per second.
	// Speed scales playback (2.0 is twice as fast); zero disables pacing
	// entirely.
	Rate  float64
	Speed float64

	// Loop restarts the log from the beginning on EOF. The builder is not
	// reset; the shape check absorbs the discontinuity.
	Loop bool

	Builder   *sonar.ScanBuilder
	Publisher publish.Publisher
	Stats     *monitoring.PipelineStats
	Clock     timeutil.Clock
}

// Replayer replays one CSV log through the scan builder and publisher.
type Replayer struct {
	config Config
	clock  timeutil.Clock

	records   int64
	failures  int64
	published int64
}

func NewReplayer(config Config) (*Replayer, error) {
	if config.Path == "" {
		return nil, errors.New("replay: log path is required")
	}
	if config.Builder == nil {
		return nil, errors.New("replay: scan builder is required")
	}
	if config.Publisher == nil {
		return nil, errors.New("replay: publisher is required")
	}
	if config.Frame == "" {
		config.Frame = "odom"
	}
	if config.Rate <= 0 {
		config.Rate = 30
	}
	clock := config.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Replayer{config: config, clock: clock}, nil
}

// Run replays the log until EOF (or forever in Loop mode) and returns the
// context error when cancelled. Fatal read errors abort the run; malformed
// records are skipped.
func (r *Replayer) Run(ctx context.Context) error {
	r.records = 0
	r.failures = 0
	r.published = 0
	start := r.clock.Now()

	var interval time.Duration
	if r.config.Speed > 0 {
		interval = time.Duration(float64(time.Second) / (r.config.Rate * r.config.Speed))
	}

	for pass := 1; ; pass++ {
		if err := r.playFile(ctx, interval); err != nil {
			return err
		}
		if !r.config.Loop {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Printf("Replay reached end of log, restarting (pass %d complete)", pass)
	}

	log.Printf("Replay complete: %s records, %s rejected, %s publishes in %v",
		monitoring.FormatWithCommas(r.records),
		monitoring.FormatWithCommas(r.failures),
		monitoring.FormatWithCommas(r.published),
		r.clock.Since(start).Round(time.Millisecond))
	return nil
}

// playFile replays one full pass over the log.
func (r *Replayer) playFile(ctx context.Context, interval time.Duration) error {
	f, err := os.Open(r.config.Path)
	if err != nil {
		return fmt.Errorf("failed to open sonar log: %w", err)
	}
	defer f.Close()

	reader := micron.NewLogReader(f, r.config.Params)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		slice, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var parseErr *micron.ParseError
			if !errors.As(err, &parseErr) {
				return fmt.Errorf("failed to read sonar log: %w", err)
			}
			r.failures++
			if r.config.Stats != nil {
				r.config.Stats.AddParseFailure()
			}
			if r.failures <= badRecordLogLimit {
				log.Printf("Skipping bad record: %v", err)
			} else {
				debugf("skipping bad record: %v", err)
			}
			continue
		}

		r.records++
		if r.config.Stats != nil {
			r.config.Stats.AddRecord()
		}

		r.config.Builder.Add(slice)
		r.publishProjections(slice)

		switch {
		case r.records%10000 == 0:
			log.Printf("Replayed %s records (%s rejected)",
				monitoring.FormatWithCommas(r.records), monitoring.FormatWithCommas(r.failures))
		case r.records%1000 == 0:
			debugf("replayed %d records, buffer %d slices", r.records, r.config.Builder.Len())
		}

		if interval > 0 {
			r.clock.Sleep(interval)
		}
	}
}

// publishProjections hands each non-nil projection for the current record
// to the publisher. Publish failures are logged and counted, never fatal.
func (r *Replayer) publishProjections(slice *sonar.Slice) {
	if full := r.config.Builder.FullScan(r.config.Frame); full != nil {
		if err := r.config.Publisher.PublishPolar(publish.KindFull, full); err != nil {
			r.logPublishError("full scan", err)
		} else {
			r.published++
			if r.config.Stats != nil {
				r.config.Stats.AddFullScan()
			}
		}
	}

	if window := r.config.Builder.WindowScan(r.config.Frame, r.config.Queue); window != nil {
		if err := r.config.Publisher.PublishPolar(publish.KindWindow, window); err != nil {
			r.logPublishError("window scan", err)
		} else {
			r.published++
			if r.config.Stats != nil {
				r.config.Stats.AddWindowScan()
			}
		}
	}

	if cloud := slice.PointCloud(r.config.Frame, r.clock.Now()); cloud != nil {
		if err := r.config.Publisher.PublishPoints(cloud); err != nil {
			r.logPublishError("point cloud", err)
		} else {
			r.published++
			if r.config.Stats != nil {
				r.config.Stats.AddPointCloud()
			}
		}
	}
}

func (r *Replayer) logPublishError(what string, err error) {
	log.Printf("Failed to publish %s: %v", what, err)
	if r.config.Stats != nil {
		r.config.Stats.AddPublishError()
	}
}
