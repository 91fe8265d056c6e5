package utils

import "testing"

func TestConvertBytesToHumanReadable(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{469787, "458.8 KB"},
		{1048576, "1.0 MB"},
		{73190604, "69.8 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		if got := ConvertBytesToHumanReadable(tt.bytes); got != tt.want {
			t.Errorf("ConvertBytesToHumanReadable(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0, "0 B/s"},
		{-1, "0 B/s"},
		{512, "512 B/s"},
		{1048576, "1.0 MB/s"},
	}

	for _, tt := range tests {
		if got := FormatRate(tt.rate); got != tt.want {
			t.Errorf("FormatRate(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestFormatETA(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "-"},
		{-1, "-"},
		{5, "5s"},
		{59, "59s"},
		{60, "1m00s"},
		{125, "2m05s"},
	}

	for _, tt := range tests {
		if got := FormatETA(tt.seconds); got != tt.want {
			t.Errorf("FormatETA(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
