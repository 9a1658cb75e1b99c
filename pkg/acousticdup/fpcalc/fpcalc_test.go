package fpcalc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		duration float64
		want     []uint32
	}{
		{
			name:     "comma separated",
			input:    "DURATION=183.45\nFINGERPRINT=1,2,4294967295\n",
			duration: 183.45,
			want:     []uint32{1, 2, 4294967295},
		},
		{
			name:     "space separated without duration",
			input:    "FINGERPRINT=10 20 30",
			want:     []uint32{10, 20, 30},
		},
		{
			name:     "signed words",
			input:    "FILE=a.flac\r\nDURATION=60\r\nFINGERPRINT=-1,5\r\n",
			duration: 60,
			want:     []uint32{0xffffffff, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if res.Duration != tt.duration {
				t.Errorf("Expected duration %v, got %v", tt.duration, res.Duration)
			}
			if len(res.Fingerprint) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, res.Fingerprint)
			}
			for i := range tt.want {
				if res.Fingerprint[i] != tt.want[i] {
					t.Errorf("Word %d: expected %d, got %d", i, tt.want[i], res.Fingerprint[i])
				}
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty output", "", ErrNoFingerprint},
		{"duration only", "DURATION=12", ErrNoFingerprint},
		{"empty fingerprint", "FINGERPRINT=", ErrNoFingerprint},
		{"bad word", "FINGERPRINT=1,x,3", ErrMalformedValue},
		{"word out of range", "FINGERPRINT=4294967296", ErrMalformedValue},
		{"bad duration", "DURATION=soon\nFINGERPRINT=1", ErrMalformedValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.input)); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

// fakeFpcalc writes a shell script standing in for fpcalc.
func fakeFpcalc(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "fpcalc")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("Failed to write fake fpcalc: %v", err)
	}
	return path
}

func TestRun(t *testing.T) {
	bin := fakeFpcalc(t, "echo DURATION=42.5\necho FINGERPRINT=7,8,9\n")
	opts := DefaultOptions()
	opts.Binary = bin

	if !Available(opts) {
		t.Fatal("Expected the fake fpcalc to be available")
	}

	res, err := Run(context.Background(), "song.flac", opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Duration != 42.5 || len(res.Fingerprint) != 3 || res.Fingerprint[2] != 9 {
		t.Errorf("Unexpected result %+v", res)
	}
}

func TestRunFailure(t *testing.T) {
	bin := fakeFpcalc(t, "echo 'ERROR: could not open the input file' >&2\nexit 2\n")
	opts := DefaultOptions()
	opts.Binary = bin

	_, err := Run(context.Background(), "missing.flac", opts)
	if err == nil || !strings.Contains(err.Error(), "could not open") {
		t.Errorf("Expected the fpcalc error message, got %v", err)
	}
}

func TestRunNotInstalled(t *testing.T) {
	opts := DefaultOptions()
	opts.Binary = filepath.Join(t.TempDir(), "no-such-fpcalc")

	if Available(opts) {
		t.Error("Expected a missing binary to be unavailable")
	}
	if _, err := Run(context.Background(), "song.flac", opts); !errors.Is(err, ErrNotInstalled) {
		t.Errorf("Expected ErrNotInstalled, got %v", err)
	}
}
