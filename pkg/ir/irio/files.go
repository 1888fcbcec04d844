// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package irio

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/support/fsutil"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Format of a program document.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// String implements fmt.Stringer.
func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatJSON:
		return "json"
	}
	return "Format(" + strconv.Itoa(int(f)) + ")"
}

// ParseFormat converts "yaml" (or "yml") and "json" to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatYAML, errors.Errorf("unknown document format %q, valid formats are \"yaml\" and \"json\"", name)
}

// ZstdExt is the file extension of compressed documents.
const ZstdExt = ".zst"

// FormatFromPath returns the format implied by the file extension (".json" or ".json.zst" for JSON, YAML
// otherwise) and whether the file is compressed.
func FormatFromPath(path string) (format Format, compressed bool) {
	compressed = strings.HasSuffix(path, ZstdExt)
	path = strings.TrimSuffix(path, ZstdExt)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON, compressed
	}
	return FormatYAML, compressed
}

// Compress a document with zstd.
func Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create zstd encoder")
	}
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(data, nil), nil
}

// Decompress a zstd compressed document.
func Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create zstd decoder")
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress document")
	}
	return out, nil
}

// ReadFile reads the program document in path and builds the module. Files ending in ZstdExt are decompressed
// first. A leading "~" in path is expanded to the home directory.
func ReadFile(path string) (*ir.Module, error) {
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read program document")
	}
	if _, compressed := FormatFromPath(path); compressed {
		if data, err = Decompress(data); err != nil {
			return nil, errors.WithMessagef(err, "reading %q", path)
		}
	}
	module, err := Decode(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %q", path)
	}
	return module, nil
}

// WriteFile writes the module to path, in the format given by its extension (see FormatFromPath). Files ending
// in ZstdExt are compressed.
func WriteFile(path string, module *ir.Module) error {
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return err
	}
	format, compressed := FormatFromPath(path)
	data, err := Encode(module, format)
	if err != nil {
		return err
	}
	if compressed {
		if data, err = Compress(data); err != nil {
			return err
		}
	}
	if err = os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write program document")
	}
	return nil
}
