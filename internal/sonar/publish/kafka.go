package publish

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/sonar"
)

// KafkaPublisher produces scan messages onto a single topic. Production is
// asynchronous; a delivery report worker tallies acks and failures so slow
// brokers never stall the replay loop.
type KafkaPublisher struct {
	producer     *kafka.Producer
	topic        string
	deliveryChan chan kafka.Event
	stats        PublishStats
	quit         chan struct{}
	done         chan struct{}

	acked  atomic.Int64
	failed atomic.Int64
}

// NewKafkaPublisher connects a producer using the environment-derived
// configuration. SASL settings are applied only when a mechanism is set.
func NewKafkaPublisher(cfg *config.KafkaConfig, stats PublishStats) (*KafkaPublisher, error) {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers": cfg.BootstrapServers,
		"security.protocol": cfg.SecurityProtocol,
		"compression.type":  cfg.CompressionType,
		"acks":              cfg.Acks,
		"linger.ms":         cfg.LingerMS,
		"batch.size":        cfg.BatchSize,
	}
	if cfg.SASLMechanism != "" {
		_ = configMap.SetKey("sasl.mechanism", cfg.SASLMechanism)
		_ = configMap.SetKey("sasl.username", cfg.SASLUsername)
		_ = configMap.SetKey("sasl.password", cfg.SASLPassword)
	}

	producer, err := kafka.NewProducer(configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	p := &KafkaPublisher{
		producer:     producer,
		topic:        cfg.Topic,
		deliveryChan: make(chan kafka.Event, 1000),
		stats:        stats,
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go p.deliveryWorker()

	log.Printf("Kafka publisher connected to %s (topic %s)", cfg.BootstrapServers, cfg.Topic)
	return p, nil
}

// deliveryWorker consumes delivery reports until Close signals shutdown.
func (p *KafkaPublisher) deliveryWorker() {
	defer close(p.done)

	for {
		select {
		case <-p.quit:
			return
		case e := <-p.deliveryChan:
			m, ok := e.(*kafka.Message)
			if !ok {
				continue
			}
			if m.TopicPartition.Error != nil {
				p.failed.Add(1)
				if p.stats != nil {
					p.stats.AddPublishError()
				}
				log.Printf("Kafka delivery failed: %v", m.TopicPartition.Error)
			} else {
				p.acked.Add(1)
			}
		}
	}
}

// newPolarMessage frames a polar scan, keyed by scan ID so all projections
// of one rotation land on the same partition.
func (p *KafkaPublisher) newPolarMessage(kind string, scan *sonar.PolarScan) (*kafka.Message, error) {
	if _, err := TopicForKind(kind); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(scan)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s scan: %w", kind, err)
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(scan.ScanID),
		Value:          payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(kind)},
			{Key: "frame", Value: []byte(scan.Frame)},
		},
	}, nil
}

// newPointsMessage frames a point cloud, keyed by coordinate frame.
func (p *KafkaPublisher) newPointsMessage(cloud *sonar.PointCloud) (*kafka.Message, error) {
	payload, err := json.Marshal(cloud)
	if err != nil {
		return nil, fmt.Errorf("failed to encode point cloud: %w", err)
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(cloud.Frame),
		Value:          payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte("points")},
			{Key: "frame", Value: []byte(cloud.Frame)},
		},
	}, nil
}

// PublishPolar enqueues a polar scan for production.
func (p *KafkaPublisher) PublishPolar(kind string, scan *sonar.PolarScan) error {
	msg, err := p.newPolarMessage(kind, scan)
	if err != nil {
		return err
	}
	return p.producer.Produce(msg, p.deliveryChan)
}

// PublishPoints enqueues a point cloud for production.
func (p *KafkaPublisher) PublishPoints(cloud *sonar.PointCloud) error {
	msg, err := p.newPointsMessage(cloud)
	if err != nil {
		return err
	}
	return p.producer.Produce(msg, p.deliveryChan)
}

// Acked reports how many messages the broker has confirmed.
func (p *KafkaPublisher) Acked() int64 { return p.acked.Load() }

// Failed reports how many delivery reports carried an error.
func (p *KafkaPublisher) Failed() int64 { return p.failed.Load() }

// Close flushes outstanding messages, stops the delivery worker, and shuts
// the producer down.
func (p *KafkaPublisher) Close() error {
	remaining := p.producer.Flush(int((5 * time.Second).Milliseconds()))
	if remaining > 0 {
		log.Printf("Kafka publisher: %d messages unflushed at close", remaining)
	}

	close(p.quit)
	<-p.done
	p.producer.Close()

	log.Printf("Kafka publisher closed: %d acked, %d failed", p.acked.Load(), p.failed.Load())
	return nil
}
