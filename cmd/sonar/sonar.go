package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/banshee-data/sonar.report/internal/api"
	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/monitoring"
	"github.com/banshee-data/sonar.report/internal/sonar"
	"github.com/banshee-data/sonar.report/internal/sonar/publish"
	"github.com/banshee-data/sonar.report/internal/sonar/replay"
	"github.com/banshee-data/sonar.report/internal/version"
)

var (
	csvPath     = flag.String("csv", "", "Path to the sonar CSV log to replay")
	listen      = flag.String("listen", ":8084", "HTTP listen address")
	configPath  = flag.String("config", "", "Path to a JSON tuning config (default: "+config.DefaultConfigPath+" when present)")
	rate        = flag.Float64("rate", 30, "Replay rate in records per second")
	speed       = flag.Float64("speed", 1, "Playback speed multiplier (0 disables pacing)")
	queue       = flag.Int("queue", 10, "Window scan queue length (0 selects all buffered slices)")
	frame       = flag.String("frame", "odom", "Coordinate frame for published scans")
	udpTarget   = flag.String("udp-target", "", "host:port to publish JSON envelope datagrams to")
	kafkaOn     = flag.Bool("kafka", false, "Publish scans to Kafka (connection settings from environment)")
	loop        = flag.Bool("loop", false, "Restart the log from the beginning at EOF")
	logInterval = flag.Int("log-interval", 10, "Statistics logging interval in seconds")
	debugMode   = flag.Bool("debug", false, "Enable verbose debug logging")
)

// settings is the merged view of tuning file values and flag overrides.
// Flags that were set on the command line win.
type settings struct {
	params    sonar.PickParams
	queue     int
	frame     string
	rate      float64
	speed     float64
	udpTarget string
	kafka     bool
	influx    bool
	debug     bool
}

func resolveSettings(cfg *config.SonarConfig, setFlags map[string]bool) settings {
	s := settings{
		params: sonar.PickParams{
			MinDistance:  cfg.GetMinDistance(),
			MinIntensity: cfg.GetMinIntensity(),
			Threshold:    cfg.GetThreshold(),
		},
		queue:     cfg.GetQueue(),
		frame:     cfg.GetFrame(),
		rate:      cfg.GetRate(),
		speed:     cfg.GetSpeed(),
		udpTarget: cfg.GetUDPTarget(),
		kafka:     cfg.GetKafkaEnabled(),
		influx:    cfg.GetInfluxEnabled(),
		debug:     cfg.GetDebug(),
	}
	if setFlags["rate"] {
		s.rate = *rate
	}
	if setFlags["speed"] {
		s.speed = *speed
	}
	if setFlags["queue"] {
		s.queue = *queue
	}
	if setFlags["frame"] {
		s.frame = *frame
	}
	if setFlags["udp-target"] {
		s.udpTarget = *udpTarget
	}
	if setFlags["kafka"] {
		s.kafka = *kafkaOn
	}
	if setFlags["debug"] {
		s.debug = *debugMode
	}
	return s
}

func loadConfig() *config.SonarConfig {
	if *configPath != "" {
		cfg, err := config.LoadSonarConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		log.Printf("Loaded tuning config from %s", *configPath)
		return cfg
	}

	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		cfg, err := config.LoadSonarConfig(config.DefaultConfigPath)
		if err != nil {
			log.Fatalf("Failed to load default config: %v", err)
		}
		log.Printf("Loaded tuning config from %s", config.DefaultConfigPath)
		return cfg
	}

	return config.EmptySonarConfig()
}

func main() {
	flag.Parse()

	log.Printf("sonar %s (%s)", version.Version, version.GitSHA)

	// Load .env before reading Kafka settings from the environment.
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	if *csvPath == "" {
		log.Fatal("CSV log path is required (-csv)")
	}

	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	cfg := loadConfig()
	s := resolveSettings(cfg, setFlags)

	if s.debug {
		sonar.SetDebugLogger(os.Stderr)
		replay.SetDebugLogger(os.Stderr)
		log.Println("Debug logging enabled")
	}

	stats := monitoring.NewPipelineStats()

	builder := sonar.NewScanBuilder(sonar.ScanBuilderConfig{
		OnRotation: func(r *sonar.Rotation) {
			sonar.Debugf("rotation %s complete with %d slices", r.ScanID, len(r.Slices))
		},
	})
	defer builder.Close()

	// The API server doubles as a publisher: every projection lands in its
	// latest-result cache and on the SSE stream.
	apiServer := api.NewServer(stats, builder)
	publishers := []publish.Publisher{apiServer}

	if s.udpTarget != "" {
		udp, err := publish.NewUDPPublisher(s.udpTarget, stats, time.Duration(*logInterval)*time.Second)
		if err != nil {
			log.Fatalf("Failed to start UDP publisher: %v", err)
		}
		publishers = append(publishers, udp)
	}

	if s.kafka {
		kafka, err := publish.NewKafkaPublisher(config.NewKafkaConfigFromEnv(), stats)
		if err != nil {
			log.Fatalf("Failed to start Kafka publisher: %v", err)
		}
		publishers = append(publishers, kafka)
	}

	publisher := publish.NewMultiPublisher(publishers...)

	var sink *monitoring.InfluxSink
	if s.influx {
		sink = monitoring.NewInfluxSink(monitoring.InfluxSinkConfig{
			URL:    cfg.GetInfluxURL(),
			Token:  cfg.GetInfluxToken(),
			Org:    cfg.GetInfluxOrg(),
			Bucket: cfg.GetInfluxBucket(),
			Tags:   map[string]string{"frame": s.frame},
		})
		log.Printf("InfluxDB stats sink enabled (%s, bucket %s)", cfg.GetInfluxURL(), cfg.GetInfluxBucket())
	}

	replayer, err := replay.NewReplayer(replay.Config{
		Path:      *csvPath,
		Params:    s.params,
		Frame:     s.frame,
		Queue:     s.queue,
		Rate:      s.rate,
		Speed:     s.speed,
		Loop:      *loop,
		Builder:   builder,
		Publisher: publisher,
		Stats:     stats,
	})
	if err != nil {
		log.Fatalf("Failed to configure replay: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Replay routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := replayer.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Replay error: %v", err)
		}
		log.Print("replay routine terminated")
	}()

	// Periodic stats logging routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Duration(*logInterval) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := stats.LogStats()
				if sink != nil {
					sink.WriteSnapshot(snap)
				}
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(apiServer.ServeMux()),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("Starting HTTP server on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	if err := publisher.Close(); err != nil {
		log.Printf("Publisher close error: %v", err)
	}
	if sink != nil {
		sink.Close()
	}

	log.Printf("Graceful shutdown complete")
}
