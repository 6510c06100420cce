package sonar

import (
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/sonar.report/internal/timeutil"
	"github.com/banshee-data/sonar.report/internal/units"
)

// Continuous-scan sentinel sweep bounds. The head reports this exact pair in
// place of real sector limits when sweeping full rotations; preserve it
// verbatim rather than reinterpreting the values.
const (
	ContinuousLeftLimit  = 3199
	ContinuousRightLimit = 3201
)

// Rotation is a snapshot of a completed rotation buffer handed to the
// completion callback.
type Rotation struct {
	ScanID uuid.UUID
	Shape  Shape
	Slices []*Slice
}

// ScanBuilderConfig contains configuration for the ScanBuilder.
type ScanBuilderConfig struct {
	// OnRotation is invoked on a dedicated goroutine each time an Add takes
	// the buffer from not-full to full. Optional.
	OnRotation func(*Rotation)

	// Clock stamps projections. Defaults to timeutil.RealClock.
	Clock timeutil.Clock
}

// BuilderStats is a snapshot of ScanBuilder counters.
type BuilderStats struct {
	BufferLen        int
	SlicesAdded      int64
	Resets           int64
	Evictions        int64
	Rotations        int64
	DroppedRotations int64
}

// ScanBuilder accumulates slices into a rotating scan buffer. Slices sharing
// one Shape fill the buffer up to one full rotation (or sector sweep); a
// slice with a different Shape resets the buffer to a singleton holding only
// that slice. When the buffer is full the oldest slice is evicted to admit
// the next. A single mutex serializes the one writer against any readers.
type ScanBuilder struct {
	mu       sync.Mutex // protect concurrent access
	clock    timeutil.Clock
	hasShape bool
	shape    Shape
	scanID   uuid.UUID
	slices   []*Slice

	rotationCb   func(*Rotation)
	rotationCh   chan *Rotation // serialises rotation callback invocations
	rotationDone chan struct{}  // closed when rotationWorker exits

	added     int64
	resets    int64
	evictions int64
	rotations int64
	dropped   int64
}

// NewScanBuilder creates a new ScanBuilder with the specified configuration.
func NewScanBuilder(config ScanBuilderConfig) *ScanBuilder {
	if config.Clock == nil {
		config.Clock = timeutil.RealClock{}
	}

	b := &ScanBuilder{
		clock:      config.Clock,
		rotationCb: config.OnRotation,
	}

	// Start the serialised rotation callback worker. The channel ensures
	// only one callback runs at a time and that a slow consumer never
	// blocks slice ingestion.
	if b.rotationCb != nil {
		b.rotationCh = make(chan *Rotation, 8)
		b.rotationDone = make(chan struct{})
		go b.rotationWorker()
	}

	return b
}

// rotationWorker processes completed rotations sequentially.
func (b *ScanBuilder) rotationWorker() {
	defer close(b.rotationDone)
	for rotation := range b.rotationCh {
		b.rotationCb(rotation)
	}
}

// Close shuts down the rotation callback worker and waits for it to drain.
// Must be called when a builder with a callback is no longer needed.
func (b *ScanBuilder) Close() {
	if b.rotationCh != nil {
		close(b.rotationCh)
		<-b.rotationDone
	}
}

// Add inserts a slice into the scan. A shape mismatch resets the buffer to a
// singleton and adopts the new shape under a fresh scan ID; this is the only
// signal for malformed or reconfigured input, never an error. Duplicates at
// the same heading are allowed to coexist until eviction catches up.
func (b *ScanBuilder) Add(s *Slice) {
	b.mu.Lock()

	shape := s.Shape()
	wasFull := false
	if !b.hasShape || shape != b.shape {
		b.shape = shape
		b.hasShape = true
		b.scanID = uuid.New()
		b.slices = []*Slice{s}
		b.resets++
		debugf("[ScanBuilder] reset: scan=%s heading=%d range=%.1f bins=%d steps=%d limits=%d..%d clockwise=%v",
			b.scanID, s.Heading, shape.Range, shape.NumBins, shape.Steps,
			shape.LeftLimit, shape.RightLimit, shape.Clockwise)
	} else {
		wasFull = b.fullLocked()
		if wasFull && len(b.slices) > 0 {
			copy(b.slices, b.slices[1:])
			b.slices = b.slices[:len(b.slices)-1]
			b.evictions++
		}
		b.slices = append(b.slices, s)
	}
	b.added++

	var rotation *Rotation
	if !wasFull && b.fullLocked() {
		b.rotations++
		debugf("[ScanBuilder] rotation complete: scan=%s slices=%d", b.scanID, len(b.slices))
		if b.rotationCh != nil {
			snapshot := make([]*Slice, len(b.slices))
			copy(snapshot, b.slices)
			rotation = &Rotation{ScanID: b.scanID, Shape: b.shape, Slices: snapshot}
		}
	}
	b.mu.Unlock()

	if rotation != nil {
		select {
		case b.rotationCh <- rotation:
		default:
			// Queue full. Drop the snapshot rather than block ingestion.
			b.mu.Lock()
			b.dropped++
			b.mu.Unlock()
			debugf("[ScanBuilder] dropped rotation %s: callback queue full", rotation.ScanID)
		}
	}
}

// Empty reports whether the buffer holds zero slices.
func (b *ScanBuilder) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.slices) == 0
}

// Full reports whether the buffer holds one full rotation of slices. The
// value is computed, never stored: the sweep span divided by the angular step
// gives the expected slice count. The continuous-scan sentinel bounds mean a
// full 6400-unit rotation; anything else is a sector whose span wraps modulo
// one turn.
func (b *ScanBuilder) Full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fullLocked()
}

// fullLocked assumes b.mu is held.
func (b *ScanBuilder) fullLocked() bool {
	if !b.hasShape || b.shape.Steps <= 0 {
		return false
	}

	maxRange := units.HeadingUnitsPerTurn
	if b.shape.LeftLimit != ContinuousLeftLimit || b.shape.RightLimit != ContinuousRightLimit {
		maxRange = units.WrapHeading(b.shape.RightLimit - b.shape.LeftLimit)
	}

	return len(b.slices) == maxRange/b.shape.Steps
}

// Len returns the number of buffered slices.
func (b *ScanBuilder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.slices)
}

// CurrentShape returns the shape adopted from the most recent reset and
// whether any slice has been added yet.
func (b *ScanBuilder) CurrentShape() (Shape, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shape, b.hasShape
}

// ScanID returns the identifier of the current rotation buffer. It changes on
// every reset and is uuid.Nil before the first Add.
func (b *ScanBuilder) ScanID() uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scanID
}

// Stats returns a snapshot of the builder counters.
func (b *ScanBuilder) Stats() BuilderStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BuilderStats{
		BufferLen:        len(b.slices),
		SlicesAdded:      b.added,
		Resets:           b.resets,
		Evictions:        b.evictions,
		Rotations:        b.rotations,
		DroppedRotations: b.dropped,
	}
}
