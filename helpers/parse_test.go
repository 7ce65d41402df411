package helpers

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "Seconds", input: "30s", expected: 30 * time.Second},
		{name: "Minutes", input: "5m", expected: 5 * time.Minute},
		{name: "Hours", input: "12h", expected: 12 * time.Hour},
		{name: "Days", input: "14d", expected: 14 * 24 * time.Hour},
		{name: "Fractional days", input: "0.5d", expected: 12 * time.Hour},
		{name: "Compound", input: "1h30m", expected: 90 * time.Minute},
		{name: "Surrounding whitespace", input: " 1h ", expected: time.Hour},
		{name: "Empty", input: "", wantErr: true},
		{name: "Garbage", input: "soon", wantErr: true},
		{name: "Bad day count", input: "xd", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDuration(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ParseDuration(%q) expected error, got %v", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDuration(%q) unexpected error: %v", tc.input, err)
			}
			if got != tc.expected {
				t.Errorf("ParseDuration(%q) = %v, want %v", tc.input, got, tc.expected)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
		wantErr  bool
	}{
		{name: "Bare bytes", input: "512", expected: 512},
		{name: "Bytes suffix", input: "512b", expected: 512},
		{name: "Kilobytes", input: "100kb", expected: 100 << 10},
		{name: "Megabytes", input: "5mb", expected: 5 << 20},
		{name: "Gigabytes", input: "1gb", expected: 1 << 30},
		{name: "Uppercase", input: "25MB", expected: 25 << 20},
		{name: "Fractional", input: "1.5gb", expected: 3 << 29},
		{name: "Space before unit", input: "10 mb", expected: 10 << 20},
		{name: "Empty", input: "", wantErr: true},
		{name: "Garbage", input: "lots", wantErr: true},
		{name: "Negative", input: "-1mb", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSize(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ParseSize(%q) expected error, got %d", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSize(%q) unexpected error: %v", tc.input, err)
			}
			if got != tc.expected {
				t.Errorf("ParseSize(%q) = %d, want %d", tc.input, got, tc.expected)
			}
		})
	}
}
