package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/sonar.report/internal/httputil"
	"github.com/banshee-data/sonar.report/internal/monitoring"
	"github.com/banshee-data/sonar.report/internal/sonar"
	"github.com/banshee-data/sonar.report/internal/sonar/publish"
	"github.com/banshee-data/sonar.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes the latest pipeline results over HTTP and relays every
// published frame to stream subscribers. It implements publish.Publisher so
// it can be fanned in next to the wire transports.
type Server struct {
	stats   *monitoring.PipelineStats
	builder *sonar.ScanBuilder
	broker  *Broker

	mu         sync.RWMutex
	lastFull   *sonar.PolarScan
	lastWindow *sonar.PolarScan
	lastPoints *sonar.PointCloud
}

func NewServer(stats *monitoring.PipelineStats, builder *sonar.ScanBuilder) *Server {
	return &Server{
		stats:   stats,
		builder: builder,
		broker:  NewBroker(),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// PublishPolar caches the scan for its REST endpoint and forwards it to
// stream subscribers.
func (s *Server) PublishPolar(kind string, scan *sonar.PolarScan) error {
	topic, err := publish.TopicForKind(kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if kind == publish.KindFull {
		s.lastFull = scan
	} else {
		s.lastWindow = scan
	}
	s.mu.Unlock()

	return s.streamEnvelope(topic, scan)
}

// PublishPoints caches the point cloud and forwards it to stream
// subscribers.
func (s *Server) PublishPoints(cloud *sonar.PointCloud) error {
	s.mu.Lock()
	s.lastPoints = cloud
	s.mu.Unlock()

	return s.streamEnvelope(publish.TopicPoints, cloud)
}

// Close shuts down the stream subscribers. The HTTP listener itself is owned
// by the caller.
func (s *Server) Close() error {
	s.broker.Close()
	return nil
}

func (s *Server) streamEnvelope(topic string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", topic, err)
	}
	payload, err := json.Marshal(publish.Envelope{Topic: topic, Data: raw})
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	s.broker.Publish(payload)
	return nil
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.health)
	mux.HandleFunc("/api/scan/full", s.showFullScan)
	mux.HandleFunc("/api/scan/window", s.showWindowScan)
	mux.HandleFunc("/api/points", s.showPoints)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/stream", s.stream)
	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "sonar", "version": "%s", "timestamp": "%s"}`,
		version.Version, time.Now().UTC().Format(time.RFC3339))
}

// serveLatest writes one cached result, or a 404 when the pipeline has not
// produced that result yet.
func (s *Server) serveLatest(w http.ResponseWriter, r *http.Request, name string, value interface{}, ok bool) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("no %s yet", name))
		return
	}
	httputil.WriteJSONOK(w, value)
}

func (s *Server) showFullScan(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	scan := s.lastFull
	s.mu.RUnlock()
	s.serveLatest(w, r, "full scan", scan, scan != nil)
}

func (s *Server) showWindowScan(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	scan := s.lastWindow
	s.mu.RUnlock()
	s.serveLatest(w, r, "window scan", scan, scan != nil)
}

func (s *Server) showPoints(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	cloud := s.lastPoints
	s.mu.RUnlock()
	s.serveLatest(w, r, "point cloud", cloud, cloud != nil)
}

// builderStatsAPI controls the JSON shape of the scan buffer counters.
type builderStatsAPI struct {
	BufferLen        int   `json:"buffer_len"`
	SlicesAdded      int64 `json:"slices_added"`
	Resets           int64 `json:"resets"`
	Evictions        int64 `json:"evictions"`
	Rotations        int64 `json:"rotations"`
	DroppedRotations int64 `json:"dropped_rotations"`
}

type statsAPI struct {
	Pipeline monitoring.Snapshot `json:"pipeline"`
	Builder  builderStatsAPI     `json:"builder"`
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	var resp statsAPI
	if s.stats != nil {
		resp.Pipeline = s.stats.Totals()
	}
	if s.builder != nil {
		bs := s.builder.Stats()
		resp.Builder = builderStatsAPI{
			BufferLen:        bs.BufferLen,
			SlicesAdded:      bs.SlicesAdded,
			Resets:           bs.Resets,
			Evictions:        bs.Evictions,
			Rotations:        bs.Rotations,
			DroppedRotations: bs.DroppedRotations,
		}
	}

	httputil.WriteJSONOK(w, resp)
}

// stream issues Server-Side Events (SSE) carrying every published frame.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, c := s.broker.Subscribe()
	defer s.broker.Unsubscribe(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case payload, ok := <-c:
			if !ok {
				// Channel closed, exit gracefully
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
