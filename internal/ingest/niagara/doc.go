// Package niagara parses vendor diagnostic exports from Niagara-based
// building-automation controllers into the normalised data model the rest
// of StationPM depends on.
//
// # Supported exports
//
//   - Platform Details: the semi-structured plain-text dump describing a
//     controller's hardware, OS, installed modules, filesystems, running
//     stations, and licences. Parsed by Parse.
//   - BACnet/N2 device inventories: table-shaped CSVs of field devices.
//     Parsed by ParseDeviceCSV.
//   - Resource usage exports: name,value CSVs of runtime metrics.
//     Parsed by ParseResourceCSV.
//
// # Degradation policy
//
// The export format drifts across firmware versions and has no formal
// grammar, so all parsing is tolerant by contract: a missing label yields
// an empty string, a missing section yields an empty collection, and a
// malformed line inside a section is dropped without contributing a record
// or an error. Numeric fields normalise unparseable input to zero. The only
// hard failure Parse can return is ErrUnreadable, raised when something
// unexpected escapes the pipeline entirely.
//
// # Usage
//
//	data, err := niagara.Parse(rawText)
//	if err != nil {
//	    // the file was not text we could process at all
//	}
//	imp := data.Select([]string{niagara.SectionModules, niagara.SectionFilesystems})
//
// # Storage drift
//
// Persisted records span several historical shapes; DecodeStored accepts
// all of them and normalises to the canonical PlatformData (including the
// old map-of-modules serialisation) so shape ambiguity never leaks past the
// ingestion boundary.
//
// Every function here is a pure transform over its input: no I/O, no shared
// state, safe for concurrent use.
package niagara
