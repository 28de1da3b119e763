package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/changeling-watch/internal/infrastructure/config"
	"github.com/nerrad567/changeling-watch/internal/infrastructure/influxdb"
	"github.com/nerrad567/changeling-watch/internal/status"
)

// fakeServer answers /ping and records line protocol posted to /api/v2/write.
type fakeServer struct {
	*httptest.Server

	mu     sync.Mutex
	writes []string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	fs := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v2/write", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server
		fs.mu.Lock()
		fs.writes = append(fs.writes, string(body))
		fs.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) body() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return strings.Join(fs.writes, "\n")
}

// waitForBody polls until the recorded writes contain want.
func (fs *fakeServer) waitForBody(t *testing.T, want string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(fs.body(), want) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server body %q does not contain %q", fs.body(), want)
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "changeling-dev-token",
		Org:           "changeling",
		Bucket:        "status",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func connect(t *testing.T, fs *fakeServer) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(context.Background(), testConfig(fs.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	client := connect(t, newFakeServer(t))

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := influxdb.Connect(context.Background(), testConfig(url))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	fs := newFakeServer(t)
	cfg := testConfig(fs.URL)
	cfg.BatchSize = 0
	cfg.FlushInterval = -1

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteStatus(t *testing.T) {
	fs := newFakeServer(t)
	client := connect(t, fs)

	st, err := status.Parse([]byte("14:02:07 - STATE=IN;BUFFER_SECONDS=12.400000;"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !client.WriteStatus(st, time.Unix(1700000000, 0)) {
		t.Fatal("WriteStatus() = false")
	}
	client.Flush()

	fs.waitForBody(t, "changeling_status,state=IN buffer_seconds=12.4 1700000000000000000")
}

func TestWriteStatus_WithoutBuffer(t *testing.T) {
	client := connect(t, newFakeServer(t))

	if client.WriteStatus(status.Status{State: status.StateOut}, time.Now()) {
		t.Error("WriteStatus() without buffer depth should be skipped")
	}
}

func TestWritePoint(t *testing.T) {
	fs := newFakeServer(t)
	client := connect(t, fs)

	client.WritePointWithTime(influxdb.MeasurementWatch,
		map[string]string{"topic": "changeling-status"},
		map[string]interface{}{"received": int64(3)},
		time.Unix(1700000000, 0),
	)
	client.Flush()

	fs.waitForBody(t, "changeling_watch,topic=changeling-status received=3i 1700000000000000000")
}

func TestClose(t *testing.T) {
	client := connect(t, newFakeServer(t))

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	// Writes and flushes after Close are no-ops.
	client.Flush()
	if client.WriteStatus(status.Status{State: status.StateIn, HasBuffer: true}, time.Now()) {
		t.Error("WriteStatus() after Close should be skipped")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var client *influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}
