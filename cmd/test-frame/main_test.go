package main

import "testing"

func TestBuildColor(t *testing.T) {
	got, err := buildColor("#FF8000")
	if err != nil {
		t.Fatalf("buildColor() error = %v", err)
	}
	if want := "handle 17 <- 40 4C 03 FF 80 00 24"; got != want {
		t.Errorf("buildColor() = %q, want %q", got, want)
	}

	if _, err := buildColor("FF80"); err == nil {
		t.Error("buildColor(2 bytes) error = nil")
	}
	if _, err := buildColor("zz0000"); err == nil {
		t.Error("buildColor(bad hex) error = nil")
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"40 54 08 00 00 AC 41 00 00 20 42 24", "telemetry: 21.50 °C, 40.0 %RH", false},
		{"40:4C:03:FF:80:00:24", "set colour #FF8000", false},
		{"40 4C 03 FF 24", "", true},
		{"40 58 03 01 02 03 24", "", true},
		{"41 4C 03 FF 80 00 24", "", true},
		{"40 54 08 00 24", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := decodeFrame(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("decodeFrame() = %q, want %q", got, tt.want)
			}
		})
	}
}
