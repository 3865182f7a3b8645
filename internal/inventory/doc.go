// Package inventory persists the field-device inventory discovered through
// BACnet and N2 export imports: one row per controller + protocol + address.
//
// Re-importing an export upserts rather than appends, so the inventory always
// reflects the most recent import while keeping first-seen timestamps for
// devices that were already known.
package inventory
