// sonarlog inspects a recorded sonar CSV log without replaying it: one fast
// pass, then a summary of what the pipeline would have seen.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/monitoring"
	"github.com/banshee-data/sonar.report/internal/sonar"
	"github.com/banshee-data/sonar.report/internal/sonar/micron"
)

var (
	csvPath = flag.String("csv", "", "Path to the sonar CSV log to inspect")
	quiet   = flag.Bool("quiet", false, "Suppress progress output while reading")
)

// logSummary aggregates one full pass over a sonar log.
type logSummary struct {
	Records         int64
	Failures        int64
	FailuresByField map[string]int64
	Headings        map[int]struct{}
	Rotations       int64
	FirstStamp      time.Time
	LastStamp       time.Time
	Ranges          []float64
	Intensities     []float64
}

// summarize reads the whole log, feeding every record through the same
// parser and scan builder the replay daemon uses.
func summarize(r io.Reader, params sonar.PickParams, quiet bool) (*logSummary, error) {
	reader := micron.NewLogReader(r, params)
	builder := sonar.NewScanBuilder(sonar.ScanBuilderConfig{})

	s := &logSummary{
		FailuresByField: make(map[string]int64),
		Headings:        make(map[int]struct{}),
	}

	for {
		slice, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *micron.ParseError
			if !errors.As(err, &parseErr) {
				return nil, fmt.Errorf("failed to read log: %w", err)
			}
			s.Failures++
			s.FailuresByField[parseErr.Field]++
			continue
		}

		if s.Records == 0 {
			s.FirstStamp = slice.Timestamp
		}
		s.LastStamp = slice.Timestamp
		s.Records++
		s.Headings[slice.Heading] = struct{}{}
		s.Ranges = append(s.Ranges, slice.ChosenRange)
		s.Intensities = append(s.Intensities, slice.ChosenIntensity)
		builder.Add(slice)

		if !quiet && s.Records%10000 == 0 {
			log.Printf("Read %s records...", monitoring.FormatWithCommas(s.Records))
		}
	}

	s.Rotations = builder.Stats().Rotations
	return s, nil
}

// failureBreakdown renders per-field rejection counts in a stable order.
func failureBreakdown(byField map[string]int64) string {
	fields := make([]string, 0, len(byField))
	for f := range byField {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %d", f, byField[f]))
	}
	return strings.Join(parts, ", ")
}

func describe(values []float64) string {
	stddev := 0.0
	if len(values) > 1 {
		stddev = stat.StdDev(values, nil)
	}
	return fmt.Sprintf("mean %.2f, stddev %.2f, min %.2f, max %.2f",
		stat.Mean(values, nil), stddev, floats.Min(values), floats.Max(values))
}

func report(w io.Writer, s *logSummary) {
	fmt.Fprintf(w, "Records:           %s\n", monitoring.FormatWithCommas(s.Records))
	if s.Failures > 0 {
		fmt.Fprintf(w, "Rejected:          %s (%s)\n", monitoring.FormatWithCommas(s.Failures), failureBreakdown(s.FailuresByField))
	} else {
		fmt.Fprintf(w, "Rejected:          0\n")
	}
	fmt.Fprintf(w, "Distinct headings: %d\n", len(s.Headings))
	fmt.Fprintf(w, "Rotations:         %d\n", s.Rotations)

	if s.Records == 0 {
		return
	}

	const stampLayout = "15:04:05.000000"
	fmt.Fprintf(w, "Time span:         %s to %s (%v)\n",
		s.FirstStamp.Format(stampLayout), s.LastStamp.Format(stampLayout),
		s.LastStamp.Sub(s.FirstStamp).Round(time.Millisecond))
	fmt.Fprintf(w, "Chosen range (m):  %s\n", describe(s.Ranges))
	fmt.Fprintf(w, "Chosen intensity:  %s\n", describe(s.Intensities))
}

func main() {
	flag.Parse()

	if *csvPath == "" {
		log.Fatal("CSV log path is required (-csv)")
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("Failed to open sonar log: %v", err)
	}
	defer f.Close()

	// Same selection defaults the replay daemon falls back to.
	cfg := config.EmptySonarConfig()
	params := sonar.PickParams{
		MinDistance:  cfg.GetMinDistance(),
		MinIntensity: cfg.GetMinIntensity(),
		Threshold:    cfg.GetThreshold(),
	}

	start := time.Now()
	summary, err := summarize(f, params, *quiet)
	if err != nil {
		log.Fatalf("Failed to read sonar log: %v", err)
	}
	if !*quiet {
		log.Printf("Parsed %s records in %v",
			monitoring.FormatWithCommas(summary.Records), time.Since(start).Round(time.Millisecond))
	}

	report(os.Stdout, summary)
}
