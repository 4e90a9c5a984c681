package trace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

var ErrUnknownFormat = errors.New("trace: unknown format")

type Format uint8

const (
	FormatJSON Format = iota
	FormatSnappy
	FormatZstd
)

const (
	ExtJSON   = ".json"
	ExtSnappy = ".json.sz"
	ExtZstd   = ".json.zst"
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatSnappy:
		return "snappy"
	case FormatZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// FormatOf picks the encoding from the file name. Anything not compressed is plain JSON.
func FormatOf(path string) Format {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ExtSnappy):
		return FormatSnappy
	case strings.HasSuffix(name, ExtZstd):
		return FormatZstd
	default:
		return FormatJSON
	}
}

// Encode writes log to w in the given format.
func Encode(w io.Writer, f Format, log Log) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(log)
	case FormatSnappy:
		sw := snappy.NewBufferedWriter(w)
		if err := json.NewEncoder(sw).Encode(log); err != nil {
			_ = sw.Close()
			return err
		}
		return sw.Close()
	case FormatZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		if err := json.NewEncoder(zw).Encode(log); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	default:
		return fmt.Errorf("%w: %d", ErrUnknownFormat, f)
	}
}

// Decode reads a log written by Encode.
func Decode(r io.Reader, f Format) (Log, error) {
	var log Log
	switch f {
	case FormatJSON:
	case FormatSnappy:
		r = snappy.NewReader(r)
	case FormatZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return Log{}, err
		}
		defer zr.Close()
		r = zr
	default:
		return Log{}, fmt.Errorf("%w: %d", ErrUnknownFormat, f)
	}
	if err := json.NewDecoder(r).Decode(&log); err != nil {
		return Log{}, err
	}
	return log, nil
}

// Save writes log to path, creating parent directories as needed.
func Save(path string, log Log) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create trace dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace file: %w", err)
	}
	if err := Encode(file, FormatOf(path), log); err != nil {
		file.Close()
		return fmt.Errorf("encode trace %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close trace file: %w", err)
	}
	return nil
}

func Load(path string) (Log, error) {
	file, err := os.Open(path)
	if err != nil {
		return Log{}, fmt.Errorf("open trace file: %w", err)
	}
	defer file.Close()

	log, err := Decode(file, FormatOf(path))
	if err != nil {
		return Log{}, fmt.Errorf("decode trace %s: %w", path, err)
	}
	return log, nil
}
