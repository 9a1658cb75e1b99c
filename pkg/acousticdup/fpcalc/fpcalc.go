// Package fpcalc computes chromaprint fingerprints by running the fpcalc
// tool from chromaprint-tools.
package fpcalc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotInstalled   = errors.New("fpcalc not found in PATH")
	ErrNoFingerprint  = errors.New("fpcalc output has no fingerprint")
	ErrMalformedValue = errors.New("malformed fpcalc value")
)

const (
	DefaultBinary  = "fpcalc"
	DefaultLength  = 120 * time.Second
	DefaultTimeout = 30 * time.Second
)

// Result is a decoded fpcalc run.
type Result struct {
	Duration    float64 // seconds
	Fingerprint []uint32
}

type Options struct {
	// Binary is the fpcalc executable, looked up in PATH when not absolute.
	Binary string
	// Length bounds the audio that is fingerprinted. Zero keeps fpcalc's
	// own default.
	Length time.Duration
	// Timeout applies when ctx has no deadline.
	Timeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Binary:  DefaultBinary,
		Length:  DefaultLength,
		Timeout: DefaultTimeout,
	}
}

// Parse decodes the KEY=VALUE output of `fpcalc -raw`. The fingerprint
// words may be separated by commas or spaces.
func Parse(r io.Reader) (Result, error) {
	var res Result
	found := false

	sc := bufio.NewScanner(r)
	// Fingerprint lines of long files exceed bufio's default token size.
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "DURATION":
			d, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Result{}, fmt.Errorf("%w: duration %q", ErrMalformedValue, value)
			}
			res.Duration = d
		case "FINGERPRINT":
			fp, err := parseWords(value)
			if err != nil {
				return Result{}, err
			}
			res.Fingerprint = fp
			found = true
		}
	}
	if err := sc.Err(); err != nil {
		return Result{}, fmt.Errorf("reading fpcalc output: %w", err)
	}
	if !found || len(res.Fingerprint) == 0 {
		return Result{}, ErrNoFingerprint
	}
	return res, nil
}

// fpcalc prints raw words as unsigned values, older releases as signed ones.
func parseWords(s string) ([]uint32, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	fp := make([]uint32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil || v < -1<<31 || v > 1<<32-1 {
			return nil, fmt.Errorf("%w: fingerprint word %q", ErrMalformedValue, f)
		}
		fp = append(fp, uint32(v))
	}
	return fp, nil
}

// Available reports whether the fpcalc binary can be found.
func Available(opts Options) bool {
	_, err := exec.LookPath(binary(opts))
	return err == nil
}

func binary(opts Options) string {
	if opts.Binary == "" {
		return DefaultBinary
	}
	return opts.Binary
}

// Run fingerprints the audio file at path.
func Run(ctx context.Context, path string, opts Options) (Result, error) {
	bin, err := exec.LookPath(binary(opts))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}

	if _, ok := ctx.Deadline(); !ok && opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	args := []string{"-raw"}
	if opts.Length > 0 {
		args = append(args, "-length", strconv.Itoa(int(opts.Length.Seconds())))
	}
	args = append(args, path)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("fpcalc failed on %s: %v (%s)", path, err, strings.TrimSpace(stderr.String()))
	}

	res, err := Parse(bytes.NewReader(out))
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}
