package sonar

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/sonar.report/internal/units"
)

// Shape is the set of head parameters that must agree for slices to belong to
// the same scan. Slices are compatible iff their Shapes compare equal; any
// difference forces the rotation buffer to reset.
type Shape struct {
	Range      float64 // maximum sensed distance, meters
	NumBins    int     // radial intensity samples across Range
	Steps      int     // heading units between consecutive slices
	LeftLimit  int     // sweep bound, heading units
	RightLimit int     // sweep bound, heading units
	Clockwise  bool    // sweep direction from the head control field
}

// Slice is one angular sample of a rotating sonar: a full radial intensity
// profile captured at a single heading. Slices are never mutated once handed
// to a ScanBuilder.
type Slice struct {
	// Head status fields carried through from the record for inspection.
	SOF    string
	Node   int
	Status int
	HDCtrl int
	Gain   int
	Slope  int
	ADLow  int
	ADSpan int

	Heading    int       // angle of this sample, heading units
	Range      float64   // maximum sensed distance, meters
	NumBins    int       // number of radial samples
	Steps      int       // angular increment between slices, heading units
	LeftLimit  int       // sweep bound, heading units
	RightLimit int       // sweep bound, heading units
	Clockwise  bool      // bit 2 of HDCtrl
	Timestamp  time.Time // capture time of day; the log carries no date
	Bins       []int     // radial intensities, length NumBins

	// Representative return selected by SelectReturn.
	ChosenRange     float64
	ChosenIntensity float64
}

// Shape returns the compatibility fields of the slice.
func (s *Slice) Shape() Shape {
	return Shape{
		Range:      s.Range,
		NumBins:    s.NumBins,
		Steps:      s.Steps,
		LeftLimit:  s.LeftLimit,
		RightLimit: s.RightLimit,
		Clockwise:  s.Clockwise,
	}
}

// PickParams configures how a slice's representative return is selected.
type PickParams struct {
	// MinDistance masks returns closer than this many meters.
	MinDistance float64
	// MinIntensity masks returns at or below this intensity.
	MinIntensity float64
	// Threshold promotes the nearest masked return above this value over the
	// global maximum.
	Threshold float64
}

// SelectReturn fills ChosenRange and ChosenIntensity from the slice's bins.
//
// The selection runs as two explicit passes over a masked copy of the bins.
// The mask zeroes every bin at or inside the minimum-distance index and every
// bin at or below the minimum intensity. Pass one takes the maximum of the
// masked array, first occurrence winning ties. Pass two walks the masked
// array near to far and lets the first value above Threshold override pass
// one, so a near strong return beats a far stronger one. The chosen intensity
// is always read from the raw bins at the selected index.
func (s *Slice) SelectReturn(p PickParams) {
	if s.NumBins <= 0 || len(s.Bins) == 0 {
		return
	}

	minBinIndex := int(p.MinDistance / s.Range * float64(s.NumBins))
	masked := make([]float64, len(s.Bins))
	for i, v := range s.Bins {
		if i > minBinIndex && float64(v) > p.MinIntensity {
			masked[i] = float64(v)
		}
	}

	idx := floats.MaxIdx(masked)
	s.ChosenRange = float64(idx+1) * s.Range / float64(s.NumBins)
	s.ChosenIntensity = float64(s.Bins[idx])

	for i, v := range masked {
		if v > p.Threshold {
			s.ChosenRange = float64(i+1) * s.Range / float64(s.NumBins)
			s.ChosenIntensity = float64(s.Bins[i])
			break
		}
	}
}

// Point is one Cartesian sample in the sensor frame, meters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Points expands the slice's radial bins into sensor-frame points along the
// slice heading: one point per bin at radius k*(Range/NumBins) for k=1..NumBins,
// z fixed at 0.
func (s *Slice) Points() []Point {
	rStep := s.Range / float64(s.NumBins)
	angle := units.SonarAngleToRad(s.Heading)
	xUnit := math.Cos(angle) * rStep
	yUnit := math.Sin(angle) * rStep

	points := make([]Point, 0, s.NumBins)
	for k := 1; k <= s.NumBins; k++ {
		points = append(points, Point{X: xUnit * float64(k), Y: yUnit * float64(k)})
	}
	return points
}

// PointCloud projects this single slice as a point cloud with the raw bin
// intensities as the parallel channel. Used for per-record streaming.
func (s *Slice) PointCloud(frame string, stamp time.Time) *PointCloud {
	intensities := make([]float64, len(s.Bins))
	for i, v := range s.Bins {
		intensities[i] = float64(v)
	}
	return &PointCloud{
		Frame:       frame,
		Stamp:       stamp,
		Points:      s.Points(),
		Intensities: intensities,
	}
}

// PolarScan is a fixed-bucket polar projection of the current scan: one
// range/intensity pair per heading bucket over a full rotation. Buckets with
// no slice hold zeros.
type PolarScan struct {
	Frame          string    `json:"frame"`
	ScanID         string    `json:"scan_id"`
	Stamp          time.Time `json:"stamp"`
	AngleMin       float64   `json:"angle_min"`
	AngleMax       float64   `json:"angle_max"`
	AngleIncrement float64   `json:"angle_increment"`
	TimeIncrement  float64   `json:"time_increment"`
	ScanTime       float64   `json:"scan_time"`
	RangeMin       float64   `json:"range_min"`
	RangeMax       float64   `json:"range_max"`
	Ranges         []float64 `json:"ranges"`
	Intensities    []float64 `json:"intensities"`
}

// PointCloud is a flat list of sensor-frame points with a parallel intensity
// channel of equal length.
type PointCloud struct {
	Frame       string    `json:"frame"`
	Stamp       time.Time `json:"stamp"`
	Points      []Point   `json:"points"`
	Intensities []float64 `json:"intensities"`
}
