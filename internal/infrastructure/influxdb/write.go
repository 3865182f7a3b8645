package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteResourceMetric records one controller resource reading.
//
// Each committed resource-export import writes its metrics here so the
// dashboard can chart capacity trends between maintenance visits. The write
// is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - controllerID: The controller the export came from
//   - metric: The vendor metric name (e.g. "heap.used", "cpu.usage")
//   - value: The parsed magnitude
//   - unit: The unit token ("KB", "%", ...); may be empty
//
// Example:
//
//	client.WriteResourceMetric("ctl-7f2a", "heap.used", 132, "MB")
func (c *Client) WriteResourceMetric(controllerID, metric string, value float64, unit string) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"controller_id": controllerID,
		"metric":        metric,
	}
	if unit != "" {
		tags["unit"] = unit
	}

	point := write.NewPoint(
		"resource_metrics",
		tags,
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteResourceLimit records a metric reading together with its licence
// limit, so capacity-headroom queries can compute utilisation server-side.
func (c *Client) WriteResourceLimit(controllerID, metric string, value, limit float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"resource_metrics",
		map[string]string{
			"controller_id": controllerID,
			"metric":        metric,
		},
		map[string]interface{}{
			"value": value,
			"limit": limit,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteImportStats records the size of a committed import for trend
// reporting (module count drift, device churn between visits).
//
// Parameters:
//   - controllerID: The controller the import belongs to
//   - kind: "platform", "devices", or "resources"
//   - counts: Named record counts (e.g. "modules": 212)
func (c *Client) WriteImportStats(controllerID, kind string, counts map[string]int) {
	if !c.IsConnected() {
		return
	}

	fields := make(map[string]interface{}, len(counts))
	for name, n := range counts {
		fields[name] = n
	}
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"import_stats",
		map[string]string{
			"controller_id": controllerID,
			"kind":          kind,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now", such as backfilling metrics
// from a diagnostic file collected days before it was uploaded.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
