// Package influxdb records sqlbridge command metrics in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Every command the
// dispatcher runs becomes one point in the sqlbridge_command measurement:
//
//	sqlbridge_command,op=run,database=notes,status=ok duration_ms=0.42,ok=true
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics switched off
//	}
//	defer client.Close()
//
//	dispatcher.SetRecorder(client)
//
// Writes are batched according to batch_size and flush_interval and never
// block the command path. Write failures are delivered to the SetOnError
// callback.
package influxdb
