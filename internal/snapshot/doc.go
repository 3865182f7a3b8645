// Package snapshot persists platform snapshots: the selective projections of
// parsed Niagara platform exports, one row per committed import.
//
// A snapshot stores its payload as a JSON document alongside denormalised
// counts for cheap dashboard listings. Payloads written by earlier releases
// used several different envelope shapes, so reads go through
// niagara.DecodeStored which accepts all of them.
//
// Controllers are the anchor records snapshots hang off: one row per physical
// JACE, keyed by our own ID with the vendor host ID kept for matching
// re-imports back to the same unit.
package snapshot
