package inventory

import "time"

// Device is one field device attached to a controller's fieldbus.
type Device struct {
	ID           string    `json:"id"`
	ControllerID string    `json:"controller_id"`
	Protocol     string    `json:"protocol"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	Model        string    `json:"model,omitempty"`
	Vendor       string    `json:"vendor,omitempty"`
	Firmware     string    `json:"firmware,omitempty"`
	Status       string    `json:"status,omitempty"`
	Network      string    `json:"network,omitempty"`
	FirstSeenAt  time.Time `json:"first_seen_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

// UpsertResult reports what an import did to the inventory.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}
