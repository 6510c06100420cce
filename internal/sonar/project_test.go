package sonar

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/sonar.report/internal/timeutil"
)

// chosenSlice builds a continuous-scan slice whose return has already been
// selected, as the parser leaves them before projection.
func chosenSlice(heading int, ts time.Time, chosenRange, chosenIntensity float64) *Slice {
	s := testSlice(heading, ts)
	s.ChosenRange = chosenRange
	s.ChosenIntensity = chosenIntensity
	return s
}

func TestFullScanEmptyBuffer(t *testing.T) {
	b := NewScanBuilder(ScanBuilderConfig{})
	defer b.Close()

	if scan := b.FullScan("sonar"); scan != nil {
		t.Errorf("FullScan on empty buffer = %+v, want nil", scan)
	}
	if scan := b.WindowScan("sonar", 0); scan != nil {
		t.Errorf("WindowScan on empty buffer = %+v, want nil", scan)
	}
}

func TestFullScanSingleSlice(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(base.Add(time.Hour))
	b := NewScanBuilder(ScanBuilderConfig{Clock: clock})
	defer b.Close()

	b.Add(chosenSlice(1600, base, 12.5, 80))

	scan := b.FullScan("sonar")
	if scan == nil {
		t.Fatal("FullScan returned nil for a populated buffer")
	}

	if scan.Frame != "sonar" {
		t.Errorf("Frame = %q, want %q", scan.Frame, "sonar")
	}
	if want := b.ScanID().String(); scan.ScanID != want {
		t.Errorf("ScanID = %q, want %q", scan.ScanID, want)
	}
	if !scan.Stamp.Equal(clock.Now()) {
		t.Errorf("Stamp = %v, want clock time %v", scan.Stamp, clock.Now())
	}

	// 1600 steps across 6400 heading units leaves four buckets.
	if len(scan.Ranges) != 4 {
		t.Fatalf("len(Ranges) = %d, want 4", len(scan.Ranges))
	}
	if len(scan.Intensities) != 4 {
		t.Fatalf("len(Intensities) = %d, want 4", len(scan.Intensities))
	}
	for i := range scan.Ranges {
		wantRange, wantIntensity := 0.0, 0.0
		if i == 1 {
			wantRange, wantIntensity = 12.5, 80
		}
		if scan.Ranges[i] != wantRange {
			t.Errorf("Ranges[%d] = %v, want %v", i, scan.Ranges[i], wantRange)
		}
		if scan.Intensities[i] != wantIntensity {
			t.Errorf("Intensities[%d] = %v, want %v", i, scan.Intensities[i], wantIntensity)
		}
	}

	if scan.AngleMin != 0 {
		t.Errorf("AngleMin = %v, want 0", scan.AngleMin)
	}
	if math.Abs(scan.AngleMax-2*math.Pi) > 1e-12 {
		t.Errorf("AngleMax = %v, want 2π", scan.AngleMax)
	}
	if math.Abs(scan.AngleIncrement-math.Pi/2) > 1e-12 {
		t.Errorf("AngleIncrement = %v, want π/2", scan.AngleIncrement)
	}
	if scan.ScanTime != 0 || scan.TimeIncrement != 0 {
		t.Errorf("single slice should have zero timing, got scan_time=%v time_increment=%v",
			scan.ScanTime, scan.TimeIncrement)
	}
	if scan.RangeMin != 0.1 {
		t.Errorf("RangeMin = %v, want 0.1", scan.RangeMin)
	}
	if scan.RangeMax != 30 {
		t.Errorf("RangeMax = %v, want 30", scan.RangeMax)
	}
}

func TestFullScanLatestTimestampWins(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewScanBuilder(ScanBuilderConfig{Clock: timeutil.NewMockClock(base)})
	defer b.Close()

	// Inserted newest first: ordering must come from timestamps, not arrival.
	b.Add(chosenSlice(1600, base.Add(time.Second), 20, 90))
	b.Add(chosenSlice(1600, base, 5, 40))

	scan := b.FullScan("sonar")
	if scan == nil {
		t.Fatal("FullScan returned nil")
	}
	if scan.Ranges[1] != 20 {
		t.Errorf("Ranges[1] = %v, want 20 from the later sample", scan.Ranges[1])
	}
	if scan.Intensities[1] != 90 {
		t.Errorf("Intensities[1] = %v, want 90 from the later sample", scan.Intensities[1])
	}
	if scan.ScanTime != 1 {
		t.Errorf("ScanTime = %v, want 1", scan.ScanTime)
	}
	if scan.TimeIncrement != 1 {
		t.Errorf("TimeIncrement = %v, want 1", scan.TimeIncrement)
	}
}

func TestWindowScan(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewScanBuilder(ScanBuilderConfig{Clock: timeutil.NewMockClock(base)})
	defer b.Close()

	b.Add(chosenSlice(0, base, 1, 10))
	b.Add(chosenSlice(1600, base.Add(2*time.Second), 2, 20))
	b.Add(chosenSlice(3200, base.Add(5*time.Second), 3, 30))

	t.Run("underfilled window is absent", func(t *testing.T) {
		if scan := b.WindowScan("sonar", 4); scan != nil {
			t.Errorf("WindowScan(4) with 3 slices = %+v, want nil", scan)
		}
	})

	t.Run("window keeps the most recent slices", func(t *testing.T) {
		scan := b.WindowScan("sonar", 2)
		if scan == nil {
			t.Fatal("WindowScan(2) returned nil")
		}
		want := []float64{0, 2, 3, 0}
		for i, r := range scan.Ranges {
			if r != want[i] {
				t.Errorf("Ranges[%d] = %v, want %v", i, r, want[i])
			}
		}
		if scan.ScanTime != 3 {
			t.Errorf("ScanTime = %v, want 3 (span of the selected slices)", scan.ScanTime)
		}
	})

	t.Run("zero window selects everything", func(t *testing.T) {
		scan := b.WindowScan("sonar", 0)
		if scan == nil {
			t.Fatal("WindowScan(0) returned nil")
		}
		want := []float64{1, 2, 3, 0}
		for i, r := range scan.Ranges {
			if r != want[i] {
				t.Errorf("Ranges[%d] = %v, want %v", i, r, want[i])
			}
		}
		if scan.ScanTime != 5 {
			t.Errorf("ScanTime = %v, want 5", scan.ScanTime)
		}
	})

	t.Run("single slice window has zero timing", func(t *testing.T) {
		scan := b.WindowScan("sonar", 1)
		if scan == nil {
			t.Fatal("WindowScan(1) returned nil")
		}
		if scan.ScanTime != 0 || scan.TimeIncrement != 0 {
			t.Errorf("got scan_time=%v time_increment=%v, want 0 and 0",
				scan.ScanTime, scan.TimeIncrement)
		}
	})
}

func TestFullScanDropsHeadingBeyondLastBucket(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewScanBuilder(ScanBuilderConfig{Clock: timeutil.NewMockClock(base)})
	defer b.Close()

	// 6400/48 leaves 133 buckets; headings past 6384 land outside them.
	s := chosenSlice(6390, base, 9, 99)
	s.Steps = 48
	b.Add(s)

	scan := b.FullScan("sonar")
	if scan == nil {
		t.Fatal("FullScan returned nil")
	}
	if len(scan.Ranges) != 133 {
		t.Fatalf("len(Ranges) = %d, want 133", len(scan.Ranges))
	}
	for i, r := range scan.Ranges {
		if r != 0 {
			t.Errorf("Ranges[%d] = %v, want 0: out-of-range heading must not land anywhere", i, r)
		}
	}
}

func TestFullScanDoesNotDisturbBuffer(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewScanBuilder(ScanBuilderConfig{Clock: timeutil.NewMockClock(base)})
	defer b.Close()

	// Newest first, so projection has to sort a copy.
	b.Add(chosenSlice(1600, base.Add(time.Second), 20, 90))
	b.Add(chosenSlice(0, base, 5, 40))

	first := b.FullScan("sonar")
	second := b.FullScan("sonar")
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated FullScan calls disagree (-first +second):\n%s", diff)
	}
	if b.Len() != 2 {
		t.Errorf("Len() = %d after projection, want 2", b.Len())
	}
}

func TestPointCloudMergesBuffer(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(base.Add(time.Minute))
	b := NewScanBuilder(ScanBuilderConfig{Clock: clock})
	defer b.Close()

	b.Add(testSlice(0, base))
	b.Add(testSlice(1600, base.Add(time.Second)))
	b.Add(testSlice(3200, base.Add(2*time.Second)))

	cloud := b.PointCloud("sonar")
	if cloud == nil {
		t.Fatal("PointCloud returned nil")
	}
	if cloud.Frame != "sonar" {
		t.Errorf("Frame = %q, want %q", cloud.Frame, "sonar")
	}
	if !cloud.Stamp.Equal(clock.Now()) {
		t.Errorf("Stamp = %v, want %v", cloud.Stamp, clock.Now())
	}

	// Three slices of ten bins each.
	if len(cloud.Points) != 30 {
		t.Errorf("len(Points) = %d, want 30", len(cloud.Points))
	}
	if len(cloud.Intensities) != 30 {
		t.Errorf("len(Intensities) = %d, want 30", len(cloud.Intensities))
	}

	bins := testSlice(0, base).Bins
	for i := range bins {
		if cloud.Intensities[i] != float64(bins[i]) {
			t.Errorf("Intensities[%d] = %v, want %v", i, cloud.Intensities[i], float64(bins[i]))
		}
	}
}

func TestPointCloudEmptyBuffer(t *testing.T) {
	b := NewScanBuilder(ScanBuilderConfig{})
	defer b.Close()

	cloud := b.PointCloud("sonar")
	if cloud == nil {
		t.Fatal("PointCloud on an empty buffer should not be nil")
	}
	if len(cloud.Points) != 0 {
		t.Errorf("len(Points) = %d, want 0", len(cloud.Points))
	}
}
