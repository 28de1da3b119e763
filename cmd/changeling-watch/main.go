// changeling-watch - status watcher for the changeling capture daemon
//
// This is the main entry point for the watcher. It connects to the MQTT
// broker, subscribes to the daemon's status topic and prints one line per
// message received:
//
//	Message received on topic <topic> with QoS <qos> and payload <payload>
//
// It needs no configuration. An optional YAML file (CHANGELING_CONFIG,
// default configs/config.yaml) enables transition history in SQLite, buffer
// metrics in InfluxDB and a local HTTP/WebSocket API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/changeling-watch/internal/api"
	"github.com/nerrad567/changeling-watch/internal/history"
	"github.com/nerrad567/changeling-watch/internal/infrastructure/config"
	"github.com/nerrad567/changeling-watch/internal/infrastructure/database"
	"github.com/nerrad567/changeling-watch/internal/infrastructure/influxdb"
	"github.com/nerrad567/changeling-watch/internal/infrastructure/logging"
	"github.com/nerrad567/changeling-watch/internal/infrastructure/mqtt"
	"github.com/nerrad567/changeling-watch/internal/watch"
	"github.com/nerrad567/changeling-watch/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is read if present; its absence is not an error.
	defaultConfigPath = "configs/config.yaml"

	pruneInterval = time.Hour
	statsInterval = 30 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout, pahomqtt.NewClient); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - stdout: Receives the message lines
//   - newClient: Constructs the MQTT library client
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, stdout io.Writer, newClient mqtt.NewClientFunc) error {
	log := logging.Default()
	log.Info("starting changeling-watch",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, fromFile, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	if fromFile {
		log.Info("configuration loaded", "path", configPath)
	} else {
		log.Debug("no configuration file, using defaults", "path", configPath)
	}

	handlers := watch.Handlers{watch.NewPrinter(stdout)}

	// Transition history (optional)
	var (
		repo                   history.Repository
		dbHealth, influxHealth api.HealthChecker
	)
	if cfg.Database.Enabled {
		db, openErr := database.Open(ctx, cfg.Database)
		if openErr != nil {
			return fmt.Errorf("opening database: %w", openErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", db.Path())

		sqliteRepo := history.NewSQLiteRepository(db.DB)
		repo = sqliteRepo
		dbHealth = db
		handlers = append(handlers, history.NewRecorder(sqliteRepo, log))
		go history.RunPruner(ctx, sqliteRepo, cfg.Database.Retention(), pruneInterval, log)
	}

	// Buffer metrics (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

		handlers = append(handlers, influxdb.NewSink(influxClient))
		influxHealth = influxClient
	}

	// HTTP API (optional)
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Watch:    cfg.Watch,
			Logger:   log,
			History:  repo,
			Database: dbHealth,
			InfluxDB: influxHealth,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		handlers = append(handlers, apiServer)
	}

	loop := watch.New(watch.OptionsFromConfig(cfg.Watch), handlers, log)

	var client *mqtt.Client
	dial := func(ctx context.Context, h mqtt.Handler) (watch.Conn, error) {
		c, dialErr := mqtt.Dial(ctx, cfg.MQTT, h, newClient)
		if dialErr != nil {
			return nil, dialErr
		}
		c.SetLogger(log)
		c.SetOnConnect(func() {
			log.Info("MQTT connected", "broker", cfg.MQTT.BrokerAddress())
		})
		c.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		client = c
		return c, nil
	}

	log.Info("connecting to MQTT",
		"broker", cfg.MQTT.BrokerAddress(),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	if startErr := loop.Start(ctx, dial); startErr != nil {
		return fmt.Errorf("starting watcher: %w", startErr)
	}
	defer func() {
		log.Info("disconnecting from MQTT", "stats", loop.Stats())
		if closeErr := loop.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	if apiServer != nil {
		apiServer.SetPublisher(client)
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if influxClient != nil {
		go reportStats(ctx, loop, influxClient, cfg.Watch.StatusTopic)
	}

	log.Info("watching", "topic", cfg.Watch.StatusTopic, "qos", cfg.Watch.QoS)

	runErr := loop.Run(ctx)

	if influxClient != nil {
		// Final snapshot, written before the deferred Close.
		writeStats(influxClient, loop.Stats(), cfg.Watch.StatusTopic)
		influxClient.Flush()
	}

	if runErr != nil {
		return fmt.Errorf("watching %s: %w", cfg.Watch.StatusTopic, runErr)
	}

	log.Info("shutdown signal received")
	return nil
}

// getConfigPath returns the configuration file path.
// Checks CHANGELING_CONFIG first, then falls back to the default.
func getConfigPath() string {
	if path := os.Getenv("CHANGELING_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// reportStats writes the loop's message counters to InfluxDB until ctx is done.
func reportStats(ctx context.Context, loop *watch.Loop, influxClient *influxdb.Client, topic string) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeStats(influxClient, loop.Stats(), topic)
		}
	}
}

func writeStats(influxClient *influxdb.Client, stats watch.Stats, topic string) {
	influxClient.WritePoint(influxdb.MeasurementWatch,
		map[string]string{"topic": topic},
		map[string]interface{}{
			"received":   int64(stats.Received),   //nolint:gosec // counters stay far below MaxInt64
			"dispatched": int64(stats.Dispatched), //nolint:gosec // counters stay far below MaxInt64
			"dropped":    int64(stats.Dropped),    //nolint:gosec // counters stay far below MaxInt64
		},
	)
}
