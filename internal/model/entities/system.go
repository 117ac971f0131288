package entities

import "time"

// SystemStatus is the health snapshot exposed by /api/system/status.
type SystemStatus struct {
	Timestamp           time.Time  `json:"timestamp"`
	SensorsOnline       bool       `json:"sensors_online"`
	IrrigationAvailable bool       `json:"irrigation_available"`
	DatabaseConnected   bool       `json:"database_connected"`
	UptimeHours         float64    `json:"uptime_hours"`
	ActiveAlerts        int        `json:"active_alerts"`
	IrrigationState     string     `json:"irrigation_state"`
	Source              string     `json:"source"`
	ReadingsCollected   uint64     `json:"readings_collected"`
	LastReading         *time.Time `json:"last_reading,omitempty"`
	Version             string     `json:"version"`
}
