// Package resource persists controller resource metrics from resource-usage
// CSV imports.
//
// SQLite keeps only the latest value per controller and metric name — enough
// for the dashboard's current-state view. Historical series go to InfluxDB
// (when enabled) at commit time, written by the API layer.
package resource
