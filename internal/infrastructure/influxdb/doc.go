// Package influxdb provides optional InfluxDB storage for changeling-watch.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched non-blocking writes and health monitoring.
//
// # Measurements
//
//   - changeling_status: tag state, field buffer_seconds; one point per
//     daemon status line that reports a buffer depth
//   - changeling_watch: fields received, dispatched, dropped; the watcher's
//     own counters written periodically
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	handlers = append(handlers, influxdb.NewSink(client))
//
// # Error Handling
//
// Writes are non-blocking; batch failures arrive through SetOnError.
// Connection and health check errors are returned directly.
package influxdb
