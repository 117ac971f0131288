package event

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// EventToPoint normalizza CommonEvent in un *write.Point per InfluxDB.
func EventToPoint(evt CommonEvent) *write.Point {
	// Tag (solo stringhe)
	tags := map[string]string{
		"event_type":     evt.EventType,
		"source_service": evt.SourceService,
		"severity":       evt.Severity,
	}
	if evt.Zone != "" {
		tags["zone"] = evt.Zone
	}
	if evt.Channel != "" {
		tags["channel"] = evt.Channel
	}

	fields := make(map[string]interface{}, len(evt.Fields)+1)
	for k, v := range evt.Fields {
		fields[k] = v
	}
	// almeno un field, altrimenti Influx rifiuta la point
	if _, ok := fields["count"]; !ok {
		fields["count"] = int64(1)
	}

	// Misura unica "system_event"
	return influxdb2.NewPoint("system_event", tags, fields, evt.Timestamp)
}
