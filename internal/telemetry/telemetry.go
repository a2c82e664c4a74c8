package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/mattjoyce/gpiogw/internal/log"
)

const defaultConnectTimeout = 10 * time.Second

var (
	// ErrDisabled is returned by Connect when telemetry is switched off.
	ErrDisabled = errors.New("influxdb disabled")
	// ErrConnectionFailed is returned when the server does not answer a ping.
	ErrConnectionFailed = errors.New("influxdb connection failed")
)

// Reading is one sensor sample.
type Reading struct {
	Config     string
	TaskID     string
	Celsius    float64
	Fahrenheit float64
	At         time.Time
}

// Sink receives sensor readings. Writes never block the caller on the network.
type Sink interface {
	WriteTemperature(r Reading)
	Close() error
}

// NopSink discards readings.
type NopSink struct{}

func (NopSink) WriteTemperature(Reading) {}
func (NopSink) Close() error             { return nil }

// Options configures the InfluxDB sink.
type Options struct {
	Enabled       bool
	URL           string
	Token         string
	Org           string
	Bucket        string
	BatchSize     uint
	FlushInterval time.Duration
}

// InfluxSink batches readings into an InfluxDB v2 bucket.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	mu     sync.Mutex
	closed bool
}

// Connect pings the server and returns a sink backed by the non-blocking write API.
func Connect(ctx context.Context, opts Options) (*InfluxSink, error) {
	if !opts.Enabled {
		return nil, ErrDisabled
	}

	influxOpts := influxdb2.DefaultOptions()
	if opts.BatchSize > 0 {
		influxOpts.SetBatchSize(opts.BatchSize)
	}
	if opts.FlushInterval > 0 {
		influxOpts.SetFlushInterval(uint(opts.FlushInterval.Milliseconds()))
	}
	client := influxdb2.NewClientWithOptions(opts.URL, opts.Token, influxOpts)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	s := &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPI(opts.Org, opts.Bucket),
	}
	go s.handleWriteErrors(s.writeAPI.Errors())
	return s, nil
}

func (s *InfluxSink) handleWriteErrors(errorsCh <-chan error) {
	logger := log.WithComponent("telemetry")
	for err := range errorsCh {
		logger.Warn("influxdb write failed", "error", err)
	}
}

// WriteTemperature queues a "temperature" point tagged with config and task id.
func (s *InfluxSink) WriteTemperature(r Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.writeAPI.WritePoint(temperaturePoint(r))
}

func temperaturePoint(r Reading) *write.Point {
	at := r.At
	if at.IsZero() {
		at = time.Now()
	}
	tags := map[string]string{"config": r.Config}
	if r.TaskID != "" {
		tags["task_id"] = r.TaskID
	}
	return write.NewPoint(
		"temperature",
		tags,
		map[string]any{
			"celsius":    r.Celsius,
			"fahrenheit": r.Fahrenheit,
		},
		at,
	)
}

// Close flushes pending points and closes the client.
func (s *InfluxSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.writeAPI.Flush()
	s.client.Close()
	return nil
}
