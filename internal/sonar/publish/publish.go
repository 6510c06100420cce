package publish

import (
	"fmt"

	"github.com/banshee-data/sonar.report/internal/sonar"
)

// Scan kinds accepted by PublishPolar.
const (
	KindFull   = "full"
	KindWindow = "window"
)

// Wire topics carried in UDP envelopes. These match the topic names
// downstream consumers already subscribe to.
const (
	TopicFull   = "sonar/full"
	TopicSector = "sonar/sector"
	TopicPoints = "sonar/points"
)

// Publisher delivers projected scans to one transport. Implementations must
// tolerate concurrent calls from the pipeline and the API layer.
type Publisher interface {
	PublishPolar(kind string, scan *sonar.PolarScan) error
	PublishPoints(cloud *sonar.PointCloud) error
	Close() error
}

// PublishStats is the slice of pipeline stats the transports report into.
type PublishStats interface {
	AddPublishError()
}

// TopicForKind maps a scan kind to its wire topic.
func TopicForKind(kind string) (string, error) {
	switch kind {
	case KindFull:
		return TopicFull, nil
	case KindWindow:
		return TopicSector, nil
	default:
		return "", fmt.Errorf("unknown scan kind %q", kind)
	}
}

// MultiPublisher fans every result out to several transports. Each publish
// attempts all of them and reports the first error encountered.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher combines publishers. Nil entries are skipped so callers
// can pass optional transports without checking each one.
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Len reports how many transports are attached.
func (m *MultiPublisher) Len() int {
	return len(m.publishers)
}

// PublishPolar sends a polar scan to every transport.
func (m *MultiPublisher) PublishPolar(kind string, scan *sonar.PolarScan) error {
	var firstErr error
	for _, p := range m.publishers {
		if err := p.PublishPolar(kind, scan); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishPoints sends a point cloud to every transport.
func (m *MultiPublisher) PublishPoints(cloud *sonar.PointCloud) error {
	var firstErr error
	for _, p := range m.publishers {
		if err := p.PublishPoints(cloud); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close shuts down every transport and reports the first close error.
func (m *MultiPublisher) Close() error {
	var firstErr error
	for _, p := range m.publishers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
