package niagara

import (
	"errors"
	"fmt"
	"testing"
)

const canonicalStoredDoc = `{
	"summary": {"host_id": "Qnx-TITAN-0000-1111", "model": "TITAN"},
	"modules": [
		{"name": "alarm", "vendor": "Tridium", "version": "4.13.0.113", "profiles": ["rt"]}
	],
	"filesystems": [
		{"path": "/", "free": "160,441 KB", "total": "378,123 KB"}
	],
	"applications": [{"name": "Demo", "type": "station", "autostart": true}],
	"licenses": []
}`

func TestDecodeStoredShapes(t *testing.T) {
	wrapped := func(doc string) []struct {
		name string
		blob string
	} {
		return []struct {
			name string
			blob string
		}{
			{"query response", fmt.Sprintf(`{"rows": [{"metadata": {"normalizedData": %s}}]}`, doc)},
			{"metadata wrapper", fmt.Sprintf(`{"metadata": {"normalizedData": %s}}`, doc)},
			{"typed envelope", fmt.Sprintf(`{"type": "platform", "data": %s}`, doc)},
			{"canonical", doc},
		}
	}

	for _, tc := range wrapped(canonicalStoredDoc) {
		t.Run(tc.name, func(t *testing.T) {
			pd, err := DecodeStored([]byte(tc.blob))
			if err != nil {
				t.Fatalf("DecodeStored failed: %v", err)
			}
			if pd.Summary.HostID != "Qnx-TITAN-0000-1111" {
				t.Errorf("HostID = %q", pd.Summary.HostID)
			}
			if len(pd.Modules) != 1 || pd.Modules[0].Name != "alarm" {
				t.Errorf("Modules = %v", pd.Modules)
			}
			if len(pd.Filesystems) != 1 || pd.Filesystems[0].Path != "/" {
				t.Errorf("Filesystems = %v", pd.Filesystems)
			}
			if pd.Licenses == nil {
				t.Error("Licenses should be non-nil")
			}
		})
	}
}

func TestDecodeStoredMapModules(t *testing.T) {
	blob := `{
		"summary": {"host_id": "h"},
		"modules": {
			"web": {"vendor": "Tridium", "version": "4.13.0.113"},
			"alarm": {"name": "alarm", "vendor": "Tridium", "version": "4.13.0.113"}
		}
	}`

	pd, err := DecodeStored([]byte(blob))
	if err != nil {
		t.Fatalf("DecodeStored failed: %v", err)
	}
	if len(pd.Modules) != 2 {
		t.Fatalf("Modules length = %d, want 2", len(pd.Modules))
	}
	// Map entries come out name-ordered, with names filled in from keys.
	if pd.Modules[0].Name != "alarm" || pd.Modules[1].Name != "web" {
		t.Errorf("module order = %q, %q, want alarm, web", pd.Modules[0].Name, pd.Modules[1].Name)
	}
	for _, m := range pd.Modules {
		if m.Profiles == nil {
			t.Errorf("module %q has nil Profiles", m.Name)
		}
	}
}

func TestDecodeStoredUnknownShape(t *testing.T) {
	cases := []struct {
		name string
		blob string
	}{
		{"not json", "not json at all"},
		{"json array", `[1, 2, 3]`},
		{"unrecognised object", `{"foo": "bar"}`},
		{"empty rows", `{"rows": []}`},
		{"envelope wrong type", `{"type": "device", "data": {}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeStored([]byte(tc.blob))
			if !errors.Is(err, ErrUnknownShape) {
				t.Errorf("error = %v, want ErrUnknownShape", err)
			}
		})
	}
}

func TestDecodeStoredMissingCollections(t *testing.T) {
	pd, err := DecodeStored([]byte(`{"summary": {"host_id": "h"}}`))
	if err != nil {
		t.Fatalf("DecodeStored failed: %v", err)
	}
	if pd.Modules == nil || pd.Filesystems == nil || pd.Applications == nil || pd.Licenses == nil {
		t.Error("missing collections must decode to empty, not nil")
	}
	if pd.Summary.EnabledProfiles == nil {
		t.Error("EnabledProfiles must be non-nil")
	}
}
