// Package snapshot reads SIPSA price snapshots and writes price map summaries.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/couchcryptid/sipsa-price-map/internal/domain"
)

var (
	// ErrSnapshotNotFound is returned when the input snapshot does not exist.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrMalformedSnapshot is returned when the input is not a JSON array of objects.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)

// ReadFile loads every observation in the snapshot at path.
func ReadFile(path string) ([]domain.Observation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, path)
		}
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	obs, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obs, nil
}

// Decode parses a snapshot document. Elements that are not JSON objects
// make the whole document malformed.
func Decode(data []byte) ([]domain.Observation, error) {
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if rows == nil {
		return nil, fmt.Errorf("%w: expected a JSON array", ErrMalformedSnapshot)
	}

	obs := make([]domain.Observation, 0, len(rows))
	for i, row := range rows {
		if row == nil {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrMalformedSnapshot, i)
		}
		obs = append(obs, domain.ParseObservation(row))
	}
	return obs, nil
}

// Encode renders a summary as two-space indented JSON with non-ASCII
// characters and HTML-significant characters written literally.
func Encode(summary domain.Summary) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile atomically replaces path with the encoded summary. Missing
// parent directories are created.
func WriteFile(path string, summary domain.Summary) error {
	data, err := Encode(summary)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close summary: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// ReadSummary loads a summary previously written by WriteFile.
func ReadSummary(path string) (domain.Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("read summary: %w", err)
	}
	var s domain.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.Summary{}, fmt.Errorf("decode summary %s: %w", path, err)
	}
	return s, nil
}
