package publish

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/sonar.report/internal/sonar"
)

// Envelope is the datagram frame consumed by downstream UDP listeners.
type Envelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// UDPPublisher handles asynchronous delivery of scan envelopes to another
// address. Publishing never blocks: a buffered channel feeds a single writer
// goroutine, and datagrams are dropped when the channel is full.
type UDPPublisher struct {
	conn        *net.UDPConn
	channel     chan []byte
	stats       PublishStats
	done        chan struct{}
	logInterval time.Duration
	address     string

	mu      sync.Mutex
	dropped int
}

// NewUDPPublisher creates a publisher that sends envelopes to the given
// host:port target. logInterval bounds how often drop warnings are logged;
// zero selects a 10s default.
func NewUDPPublisher(target string, stats PublishStats, logInterval time.Duration) (*UDPPublisher, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve publish target: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create publish connection: %w", err)
	}

	if logInterval <= 0 {
		logInterval = 10 * time.Second
	}

	p := &UDPPublisher{
		conn:        conn,
		channel:     make(chan []byte, 1024),
		stats:       stats,
		done:        make(chan struct{}),
		logInterval: logInterval,
		address:     target,
	}
	go p.writer()

	log.Printf("Publishing sonar frames to %s", target)
	return p, nil
}

// writer drains the channel onto the socket and periodically reports
// anything that went missing.
func (p *UDPPublisher) writer() {
	defer close(p.done)

	writeErrors := 0
	var lastError error
	ticker := time.NewTicker(p.logInterval)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-p.channel:
			if !ok {
				p.logLost(writeErrors, lastError)
				return
			}
			if _, err := p.conn.Write(payload); err != nil {
				writeErrors++
				lastError = err
				if p.stats != nil {
					p.stats.AddPublishError()
				}
			}
		case <-ticker.C:
			p.logLost(writeErrors, lastError)
			writeErrors = 0
			lastError = nil
		}
	}
}

func (p *UDPPublisher) logLost(writeErrors int, lastError error) {
	p.mu.Lock()
	dropped := p.dropped
	p.dropped = 0
	p.mu.Unlock()

	if dropped > 0 || writeErrors > 0 {
		log.Printf("\033[93mLost %d sonar datagrams (%d dropped on full queue, %d write errors, latest: %v)\033[0m",
			dropped+writeErrors, dropped, writeErrors, lastError)
	}
}

// PublishPolar enqueues a polar scan under its kind's topic.
func (p *UDPPublisher) PublishPolar(kind string, scan *sonar.PolarScan) error {
	topic, err := TopicForKind(kind)
	if err != nil {
		return err
	}
	return p.send(topic, scan)
}

// PublishPoints enqueues a point cloud.
func (p *UDPPublisher) PublishPoints(cloud *sonar.PointCloud) error {
	return p.send(TopicPoints, cloud)
}

func (p *UDPPublisher) send(topic string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", topic, err)
	}
	payload, err := json.Marshal(Envelope{Topic: topic, Data: raw})
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	select {
	case p.channel <- payload:
	default:
		// Queue full. Shed the datagram rather than stall the pipeline.
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		if p.stats != nil {
			p.stats.AddPublishError()
		}
	}
	return nil
}

// Close stops the writer, waits for it to drain, and closes the socket.
// Publish must not be called after Close.
func (p *UDPPublisher) Close() error {
	close(p.channel)
	<-p.done
	return p.conn.Close()
}
