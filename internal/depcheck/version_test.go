package depcheck

import "testing"

func TestParseTriple(t *testing.T) {
	tests := []struct {
		input    string
		expected Triple
		wantErr  bool
	}{
		{"5.0.6", Triple{5, 0, 6}, false},
		{"v5.0.19", Triple{5, 0, 19}, false},
		{" 4.9.9 ", Triple{4, 9, 9}, false},
		{"255.255.255", Triple{255, 255, 255}, false},
		{"256.0.0", Triple{}, true},
		{"5.0", Triple{}, true},
		{"5.0.6-beta", Triple{}, true},
		{"dev", Triple{}, true},
		{"", Triple{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := ParseTriple(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTriple(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if v != tt.expected {
				t.Errorf("ParseTriple(%q) = %+v, want %+v", tt.input, v, tt.expected)
			}
		})
	}
}

func TestUnpackLibraryVersion(t *testing.T) {
	tests := []struct {
		packed   uint32
		expected Triple
	}{
		{0x00060005, Triple{5, 0, 6}},
		{0x00090904, Triple{4, 9, 9}},
		{0xFF130005, Triple{5, 0, 0x13}}, // top byte ignored
		{0, Triple{}},
	}

	for _, tt := range tests {
		if got := UnpackLibraryVersion(tt.packed); got != tt.expected {
			t.Errorf("UnpackLibraryVersion(0x%08X) = %+v, want %+v", tt.packed, got, tt.expected)
		}
	}
}

func TestTripleCompare(t *testing.T) {
	tests := []struct {
		v1       string
		v2       string
		expected int
	}{
		{"5.0.6", "5.0.6", 0},
		{"5.0.6", "5.0.7", -1},
		{"5.0.7", "5.0.6", 1},
		{"4.0.6", "5.0.6", -1},
		{"6.0.0", "5.0.6", 1},
		{"5.1.0", "5.0.6", 1},
		{"5.0.6", "5.1.0", -1},
		{"4.9.9", "5.0.6", -1},
		{"5.0.19", "5.0.2", 1},
	}

	for _, tt := range tests {
		t.Run(tt.v1+" vs "+tt.v2, func(t *testing.T) {
			v1, _ := ParseTriple(tt.v1)
			v2, _ := ParseTriple(tt.v2)
			result := v1.Compare(v2)
			if result != tt.expected {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.v1, tt.v2, result, tt.expected)
			}
		})
	}
}

func TestTripleIsOlderThan_Reflexive(t *testing.T) {
	for _, v := range []Triple{{}, MinLibrary, MinFirmware, {255, 255, 255}} {
		if v.IsOlderThan(v) {
			t.Errorf("%s.IsOlderThan(%s) = true", v, v)
		}
	}
}

func TestTripleIsOlderThan_Monotonic(t *testing.T) {
	minimum := Triple{5, 3, 10}

	// decreasing major always flags, whatever minor and build
	for _, minor := range []byte{0, 3, 200} {
		for _, build := range []byte{0, 10, 255} {
			v := Triple{4, minor, build}
			if !v.IsOlderThan(minimum) {
				t.Errorf("%s should be older than %s", v, minimum)
			}
		}
	}

	// decreasing minor flags only when major is equal
	if !(Triple{5, 2, 255}).IsOlderThan(minimum) {
		t.Error("5.2.255 should be older than 5.3.10")
	}
	if (Triple{6, 2, 0}).IsOlderThan(minimum) {
		t.Error("6.2.0 should not be older than 5.3.10")
	}

	// build only matters when major and minor are equal
	if !(Triple{5, 3, 9}).IsOlderThan(minimum) {
		t.Error("5.3.9 should be older than 5.3.10")
	}
	if (Triple{5, 4, 0}).IsOlderThan(minimum) {
		t.Error("5.4.0 should not be older than 5.3.10")
	}
}

func TestTripleString(t *testing.T) {
	tests := []struct {
		v        Triple
		expected string
	}{
		{Triple{5, 0, 6}, "5.0.6"},
		{Triple{5, 0, 19}, "5.0.19"},
		{Triple{}, "0.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := tt.v.String(); result != tt.expected {
				t.Errorf("String() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestTripleSet(t *testing.T) {
	var v Triple
	if err := v.Set("5.1.2"); err != nil {
		t.Fatalf("Set() returned error: %v", err)
	}
	if v != (Triple{5, 1, 2}) {
		t.Errorf("Set() stored %+v", v)
	}
	if err := v.Set("bogus"); err == nil {
		t.Error("expected error for bogus version")
	}
	if v != (Triple{5, 1, 2}) {
		t.Errorf("failed Set() must not change the value, got %+v", v)
	}
}
