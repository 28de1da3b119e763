package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/changeling-watch/internal/status"
)

// Measurement names.
const (
	// MeasurementStatus holds one point per daemon status line.
	MeasurementStatus = "changeling_status"

	// MeasurementWatch holds the watcher's own message counters.
	MeasurementWatch = "changeling_watch"
)

// WriteStatus records the daemon's buffer depth, tagged by run state.
//
// A status line without BUFFER_SECONDS carries no field worth storing and
// is skipped; the return value reports whether a point was queued.
func (c *Client) WriteStatus(st status.Status, at time.Time) bool {
	if !c.IsConnected() || !st.HasBuffer {
		return false
	}

	point := write.NewPoint(
		MeasurementStatus,
		map[string]string{
			"state": st.State.String(),
		},
		map[string]interface{}{
			"buffer_seconds": st.BufferSeconds,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
	return true
}

// WritePoint writes a custom point stamped with the current time.
//
// Example:
//
//	client.WritePoint(influxdb.MeasurementWatch,
//	    map[string]string{"topic": "changeling-status"},
//	    map[string]interface{}{"received": 120, "dropped": 0})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
