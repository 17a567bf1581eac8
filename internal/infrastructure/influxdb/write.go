package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement and tag values written for every dispatched command.
const (
	commandMeasurement = "sqlbridge_command"

	statusOK    = "ok"
	statusError = "error"
)

// RecordCommand writes one point describing a dispatched command.
//
// The point carries the op, database and status tags and the duration_ms
// and ok fields. It satisfies command.Recorder, so a connected client can be
// handed straight to the dispatcher. Nothing is written after Close.
//
// Example:
//
//	dispatcher.SetRecorder(metrics)
func (c *Client) RecordCommand(op, database string, duration time.Duration, err error) {
	c.writeCommandPoint(op, database, duration, err, time.Now())
}

func (c *Client) writeCommandPoint(op, database string, duration time.Duration, err error, at time.Time) {
	if !c.IsConnected() || c.writer == nil {
		return
	}

	status := statusOK
	if err != nil {
		status = statusError
	}

	point := write.NewPoint(
		commandMeasurement,
		map[string]string{
			"op":       op,
			"database": database,
			"status":   status,
		},
		map[string]interface{}{
			"duration_ms": float64(duration) / float64(time.Millisecond),
			"ok":          err == nil,
		},
		at,
	)

	c.writer.WritePoint(point)
}
