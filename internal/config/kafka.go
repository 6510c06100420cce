package config

import (
	"os"
	"strconv"
)

// KafkaConfig holds Kafka connection configuration. Broker settings come
// from the environment so credentials stay out of config files and flags.
type KafkaConfig struct {
	BootstrapServers string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
	Topic            string
	CompressionType  string
	Acks             string
	LingerMS         int
	BatchSize        int
}

// NewKafkaConfigFromEnv creates a Kafka configuration from environment
// variables, defaulting to an unauthenticated local broker.
func NewKafkaConfigFromEnv() *KafkaConfig {
	return &KafkaConfig{
		BootstrapServers: getEnv("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092"),
		SecurityProtocol: getEnv("KAFKA_SECURITY_PROTOCOL", "PLAINTEXT"),
		SASLMechanism:    getEnv("KAFKA_SASL_MECHANISM", ""),
		SASLUsername:     getEnv("KAFKA_SASL_USERNAME", ""),
		SASLPassword:     getEnv("KAFKA_SASL_PASSWORD", ""),
		Topic:            getEnv("KAFKA_TOPIC", "sonar-scans"),
		CompressionType:  getEnv("KAFKA_COMPRESSION_TYPE", "snappy"),
		Acks:             getEnv("KAFKA_ACKS", "all"),
		LingerMS:         getEnvInt("KAFKA_LINGER_MS", 10),
		BatchSize:        getEnvInt("KAFKA_BATCH_SIZE", 16384),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
