package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const backupSuffix = ".old"

// SaveFile writes v JSON encoded to path.
// The data is written to a temporary file in the same directory first. The
// current file at path is kept as path.old backup, then the temporary file is
// renamed to path. When the process crashes in between, LoadFile falls back
// to the backup.
func SaveFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state failed: %w", err)
	}

	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file failed: %w", err)
	}

	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // does not exist anymore on success

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("writing %s failed: %w", tmpPath, err)
	}

	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("syncing %s failed: %w", tmpPath, err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing %s failed: %w", tmpPath, err)
	}

	if err := os.Rename(path, path+backupSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("creating backup of %s failed: %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing %s failed: %w", path, err)
	}

	return nil
}

// LoadFile decodes the JSON file at path into v.
// If path does not exist, the backup written by SaveFile is loaded instead.
// If neither exist an error wrapping fs.ErrNotExist is returned.
func LoadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = os.ReadFile(path + backupSuffix)
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s failed: %w", path, err)
	}

	return nil
}
