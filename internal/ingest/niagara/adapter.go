package niagara

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Persisted platform records have accumulated several shapes over the life
// of the product: early imports stored the whole query response
// (rows[0].metadata.normalizedData), later ones stored the metadata wrapper
// (metadata.normalizedData), a short-lived era tagged the payload
// ({type:"platform", data:...}), and current records store the canonical
// document directly. Rather than chained optional-property probing, reads
// go through an ordered list of shape detectors; the first one whose
// predicate matches extracts the canonical payload.

// shapeDetector pairs a predicate with a payload extractor for one
// historical storage shape.
type shapeDetector struct {
	name    string
	extract func(root map[string]json.RawMessage) (json.RawMessage, bool)
}

// shapeDetectors is ordered most-wrapped first so an outer wrapper is never
// mistaken for the canonical document.
var shapeDetectors = []shapeDetector{
	{
		name: "rows[0].metadata.normalizedData",
		extract: func(root map[string]json.RawMessage) (json.RawMessage, bool) {
			rowsRaw, ok := root["rows"]
			if !ok {
				return nil, false
			}
			var rows []map[string]json.RawMessage
			if err := json.Unmarshal(rowsRaw, &rows); err != nil || len(rows) == 0 {
				return nil, false
			}
			return extractMetadata(rows[0])
		},
	},
	{
		name: "metadata.normalizedData",
		extract: func(root map[string]json.RawMessage) (json.RawMessage, bool) {
			return extractMetadata(root)
		},
	},
	{
		name: "typed envelope",
		extract: func(root map[string]json.RawMessage) (json.RawMessage, bool) {
			typeRaw, ok := root["type"]
			if !ok {
				return nil, false
			}
			var kind string
			if err := json.Unmarshal(typeRaw, &kind); err != nil || kind != "platform" {
				return nil, false
			}
			payload, ok := root["data"]
			return payload, ok
		},
	},
	{
		name: "canonical",
		extract: func(root map[string]json.RawMessage) (json.RawMessage, bool) {
			if _, ok := root["summary"]; !ok {
				return nil, false
			}
			reassembled, err := json.Marshal(root)
			if err != nil {
				return nil, false
			}
			return reassembled, true
		},
	},
}

// extractMetadata pulls metadata.normalizedData out of a wrapper object.
func extractMetadata(obj map[string]json.RawMessage) (json.RawMessage, bool) {
	metaRaw, ok := obj["metadata"]
	if !ok {
		return nil, false
	}
	var meta map[string]json.RawMessage
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, false
	}
	payload, ok := meta["normalizedData"]
	return payload, ok
}

// DecodeStored decodes a persisted platform record of any historical shape
// into the canonical PlatformData. Returns ErrUnknownShape when no detector
// matches. Collections in the result are always non-nil, and map-shaped
// module collections (an older serialisation keyed by module name) are
// normalised to a name-ordered list — ambiguity never leaks past this
// boundary.
func DecodeStored(data []byte) (*PlatformData, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownShape, err)
	}

	for _, det := range shapeDetectors {
		payload, ok := det.extract(root)
		if !ok {
			continue
		}
		pd, err := decodeCanonical(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding %s shape: %w", det.name, err)
		}
		return pd, nil
	}

	return nil, ErrUnknownShape
}

// storedPlatform mirrors PlatformData but defers module decoding, since
// modules were historically serialised both as a list and as an object
// keyed by module name.
type storedPlatform struct {
	Summary      Summary         `json:"summary"`
	Modules      json.RawMessage `json:"modules"`
	Filesystems  []Filesystem    `json:"filesystems"`
	Applications []Application   `json:"applications"`
	Licenses     []License       `json:"licenses"`
}

func decodeCanonical(payload json.RawMessage) (*PlatformData, error) {
	var stored storedPlatform
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	pd := &PlatformData{
		Summary:      stored.Summary,
		Modules:      decodeModules(stored.Modules),
		Filesystems:  stored.Filesystems,
		Applications: stored.Applications,
		Licenses:     stored.Licenses,
	}

	if pd.Summary.EnabledProfiles == nil {
		pd.Summary.EnabledProfiles = []string{}
	}
	if pd.Filesystems == nil {
		pd.Filesystems = []Filesystem{}
	}
	if pd.Applications == nil {
		pd.Applications = []Application{}
	}
	if pd.Licenses == nil {
		pd.Licenses = []License{}
	}
	for i := range pd.Modules {
		if pd.Modules[i].Profiles == nil {
			pd.Modules[i].Profiles = []string{}
		}
	}

	return pd, nil
}

// decodeModules accepts both the list and map serialisations of the module
// collection. Map entries are ordered by name for deterministic output.
func decodeModules(raw json.RawMessage) []Module {
	if len(raw) == 0 {
		return []Module{}
	}

	var list []Module
	if err := json.Unmarshal(raw, &list); err == nil {
		if list == nil {
			return []Module{}
		}
		return list
	}

	var byName map[string]Module
	if err := json.Unmarshal(raw, &byName); err != nil {
		return []Module{}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	modules := make([]Module, 0, len(byName))
	for _, name := range names {
		m := byName[name]
		if m.Name == "" {
			m.Name = name
		}
		modules = append(modules, m)
	}
	return modules
}
