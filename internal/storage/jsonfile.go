package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultLargeFileThreshold is the file size above which arrays are decoded
// element by element instead of from one in-memory buffer
const DefaultLargeFileThreshold int64 = 10 << 20

const streamCheckInterval = 1000

// ReadArray decodes the JSON array stored at path. A missing or empty file
// is an empty array. Files larger than threshold are streamed so peak memory
// stays bounded by the decoded records rather than records plus raw bytes.
func ReadArray[T any](ctx context.Context, path string, threshold int64) ([]T, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, false, nil
	}

	if threshold <= 0 || info.Size() <= threshold {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
		}
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, false, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return items, false, nil
	}

	items, err := streamArray[T](ctx, path)
	return items, true, err
}

func streamArray[T any](ctx context.Context, path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReaderSize(f, 64<<10))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if tok == nil {
		return nil, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("failed to parse %s: expected JSON array", path)
	}

	var items []T
	for dec.More() {
		if len(items)%streamCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var item T
		if err := dec.Decode(&item); err != nil {
			return nil, fmt.Errorf("failed to parse %s at element %d: %w", path, len(items), err)
		}
		items = append(items, item)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return items, nil
}

// WriteJSON atomically replaces path with the JSON encoding of v
func WriteJSON(path string, v any) error {
	return atomicWrite(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// WriteFile atomically replaces path with data
func WriteFile(path string, data []byte) error {
	return atomicWrite(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// atomicWrite performs an atomic file write using temp file → sync → rename pattern
func atomicWrite(targetPath string, write func(w io.Writer) error) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Create temp file in the same directory to ensure same filesystem
	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(targetPath)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tempPath)
		}
	}()

	buf := bufio.NewWriterSize(tempFile, 64<<10)
	if err := write(buf); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("failed to encode %s: %w", targetPath, err)
	}
	if err := buf.Flush(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		return fmt.Errorf("failed to rename temp file to target: %w", err)
	}

	success = true
	return nil
}
