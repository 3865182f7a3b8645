package resource

import "time"

// Metric is the latest known value of one resource counter on a controller.
type Metric struct {
	ControllerID string    `json:"controller_id"`
	Name         string    `json:"name"`
	Value        float64   `json:"value"`
	Unit         string    `json:"unit,omitempty"`
	Limit        *float64  `json:"limit,omitempty"`
	Raw          string    `json:"raw,omitempty"`
	CapturedAt   time.Time `json:"captured_at"`
}

// PercentOfLimit returns utilisation as a percentage, or 0 when the metric
// carries no limit (or a zero limit).
func (m *Metric) PercentOfLimit() float64 {
	if m.Limit == nil || *m.Limit == 0 {
		return 0
	}
	return m.Value / *m.Limit * 100
}
