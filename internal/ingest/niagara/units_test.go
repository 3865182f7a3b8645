package niagara

import "testing"

func TestToMegabytes(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected int
	}{
		{"display string with separators and unit", "1,048,576 KB", 1024},
		{"numeric kilobytes", 1048576, 1024},
		{"numeric int64", int64(1048576), 1024},
		{"numeric float", float64(1048576), 1024},
		{"string and numeric paths agree", "33,163,900 KB", ToMegabytes(33163900)},
		{"rounds to nearest", 1536, 2},
		{"rounds down below half", 511, 0},
		{"nil", nil, 0},
		{"not a number", "not a number", 0},
		{"empty string", "", 0},
		{"negative numeric", -4096, 0},
		{"unsupported type", struct{}{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToMegabytes(tt.input)
			if result != tt.expected {
				t.Errorf("ToMegabytes(%v) = %d, want %d", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"80", 80},
		{" 443 ", 443},
		{"", 0},
		{"abc", 0},
		{"-1", 0},
	}

	for _, tt := range tests {
		if result := parsePort(tt.input); result != tt.expected {
			t.Errorf("parsePort(%q) = %d, want %d", tt.input, result, tt.expected)
		}
	}
}
