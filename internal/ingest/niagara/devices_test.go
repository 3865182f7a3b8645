package niagara

import "testing"

func TestParseDeviceCSVBACnet(t *testing.T) {
	raw := "Name,Device ID,Vendor,Model,Firmware,Status,Network\n" +
		"AHU-1,1001,Johnson Controls,FEC2611,6.2,{ok},BACnet-MSTP-1\n" +
		"VAV-2-01,1002,Johnson Controls,VMA1615,6.2,{down},BACnet-MSTP-1\n" +
		",,,,,,\n"

	devices := ParseDeviceCSV(raw, ProtocolBACnet)
	if len(devices) != 2 {
		t.Fatalf("devices length = %d, want 2", len(devices))
	}

	d := devices[0]
	if d.Name != "AHU-1" || d.Address != "1001" || d.Protocol != ProtocolBACnet {
		t.Errorf("first device = %+v", d)
	}
	if d.Vendor != "Johnson Controls" || d.Model != "FEC2611" || d.Firmware != "6.2" {
		t.Errorf("first device detail = %+v", d)
	}
	if devices[1].Status != "{down}" {
		t.Errorf("Status = %q, want {down}", devices[1].Status)
	}
}

func TestParseDeviceCSVHeaderAliases(t *testing.T) {
	// N2 exports use different header spellings and semicolon delimiters.
	raw := "Device Name;N2 Address;Type;Manufacturer\n" +
		"FCU-3;12;UNT;JCI\n"

	devices := ParseDeviceCSV(raw, ProtocolN2)
	if len(devices) != 1 {
		t.Fatalf("devices length = %d, want 1", len(devices))
	}
	d := devices[0]
	if d.Name != "FCU-3" || d.Address != "12" || d.Model != "UNT" || d.Vendor != "JCI" {
		t.Errorf("device = %+v", d)
	}
	if d.Protocol != ProtocolN2 {
		t.Errorf("Protocol = %q, want n2", d.Protocol)
	}
}

func TestParseDeviceCSVQuotedFields(t *testing.T) {
	raw := "Name,Address\n" +
		`"Pump, Primary CHW","2001"` + "\n"

	devices := ParseDeviceCSV(raw, ProtocolBACnet)
	if len(devices) != 1 {
		t.Fatalf("devices length = %d, want 1", len(devices))
	}
	if devices[0].Name != "Pump, Primary CHW" {
		t.Errorf("Name = %q, want embedded comma preserved", devices[0].Name)
	}
	if devices[0].Address != "2001" {
		t.Errorf("Address = %q", devices[0].Address)
	}
}

func TestParseDeviceCSVSkipsUnusableRows(t *testing.T) {
	raw := "Name,Address,Status\n" +
		"AHU-1,1001,{ok}\n" +
		",,{ok}\n" + // no name or address
		"AHU-2\n" // short row, name only still kept

	devices := ParseDeviceCSV(raw, ProtocolBACnet)
	if len(devices) != 2 {
		t.Fatalf("devices length = %d, want 2", len(devices))
	}
	if devices[1].Name != "AHU-2" || devices[1].Address != "" {
		t.Errorf("short row device = %+v", devices[1])
	}
}

func TestParseDeviceCSVUnusableInput(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"header only", "Name,Address\n"},
		{"no recognised columns", "Foo,Bar\n1,2\n"},
		{"prose", "this is not a CSV file at all"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			devices := ParseDeviceCSV(tc.raw, ProtocolBACnet)
			if devices == nil {
				t.Fatal("result must be non-nil")
			}
			if len(devices) != 0 {
				t.Errorf("devices = %v, want empty", devices)
			}
		})
	}
}
