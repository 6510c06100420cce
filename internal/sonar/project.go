package sonar

import (
	"sort"

	"github.com/banshee-data/sonar.report/internal/units"
)

// polarRangeMin is the minimum resolvable range reported on every polar scan.
const polarRangeMin = 0.1

// FullScan projects the entire buffer into a polar scan covering one full
// rotation. Returns nil when the buffer is empty.
func (b *ScanBuilder) FullScan(frame string) *PolarScan {
	return b.project(frame, 0)
}

// WindowScan projects only the queue most-recent slices by timestamp into a
// polar scan. Returns nil when fewer than queue slices are buffered. A queue
// of zero or less selects every buffered slice.
func (b *ScanBuilder) WindowScan(frame string, queue int) *PolarScan {
	return b.project(frame, queue)
}

// project builds the polar bucket array from the selected slices. It never
// mutates builder state and may be called at any buffer size.
func (b *ScanBuilder) project(frame string, queue int) *PolarScan {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.slices) < queue || len(b.slices) == 0 || b.shape.Steps <= 0 {
		return nil
	}

	selected := make([]*Slice, len(b.slices))
	copy(selected, b.slices)
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Timestamp.Before(selected[j].Timestamp)
	})
	if queue > 0 {
		selected = selected[len(selected)-queue:]
	}

	scanTime := selected[len(selected)-1].Timestamp.Sub(selected[0].Timestamp).Seconds()
	timeIncrement := 0.0
	if len(selected) > 1 {
		timeIncrement = scanTime
	}

	numHeadings := units.HeadingUnitsPerTurn / b.shape.Steps
	ranges := make([]float64, numHeadings)
	intensities := make([]float64, numHeadings)
	for _, s := range selected {
		// Later slices overwrite earlier ones at duplicate headings.
		index := units.WrapHeading(s.Heading) / b.shape.Steps
		if index >= numHeadings {
			debugf("[ScanBuilder] skipping slice outside bucket array: heading=%d steps=%d", s.Heading, b.shape.Steps)
			continue
		}
		ranges[index] = s.ChosenRange
		intensities[index] = s.ChosenIntensity
	}

	return &PolarScan{
		Frame:          frame,
		ScanID:         b.scanID.String(),
		Stamp:          b.clock.Now(),
		AngleMin:       0,
		AngleMax:       units.SonarAngleToRad(units.HeadingUnitsPerTurn),
		AngleIncrement: units.SonarAngleToRad(b.shape.Steps),
		TimeIncrement:  timeIncrement,
		ScanTime:       scanTime,
		RangeMin:       polarRangeMin,
		RangeMax:       b.shape.Range,
		Ranges:         ranges,
		Intensities:    intensities,
	}
}

// PointCloud merges every buffered slice's points, in buffer order, into one
// cloud with the raw bin intensities as a parallel channel. An empty buffer
// yields an empty, non-nil cloud.
func (b *ScanBuilder) PointCloud(frame string) *PointCloud {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, s := range b.slices {
		total += len(s.Bins)
	}

	cloud := &PointCloud{
		Frame:       frame,
		Stamp:       b.clock.Now(),
		Points:      make([]Point, 0, total),
		Intensities: make([]float64, 0, total),
	}
	for _, s := range b.slices {
		cloud.Points = append(cloud.Points, s.Points()...)
		for _, v := range s.Bins {
			cloud.Intensities = append(cloud.Intensities, float64(v))
		}
	}
	return cloud
}
