package storage

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cerr := cl.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

// packColumn gzip-compresses a float64 series as little-endian bytes.
// NaN survives the round trip, which matters: sanitized scans are NaN.
func packColumn(col []float64) ([]byte, error) {
	raw := make([]byte, 8*len(col))
	for i, v := range col {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unpackColumn(data []byte, scans int) ([]float64, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	if len(raw) != 8*scans {
		return nil, fmt.Errorf("column blob has %d bytes, want %d", len(raw), 8*scans)
	}

	col := make([]float64, scans)
	for i := range col {
		col[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return col, nil
}

func packRaw(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unpackRaw(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
