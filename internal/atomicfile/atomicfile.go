// Package atomicfile writes files through a synced temporary sibling.
package atomicfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrOutputExists reports a destination that exists while overwriting is off.
var ErrOutputExists = errors.New("atomicfile: output already exists")

// removeTemp drops the temporary name after a successful link.
var removeTemp = os.Remove

// Write stores data at path. Readers see either the old file or the complete
// new one. With overwrite off an existing path fails with ErrOutputExists and
// is left alone.
func Write(path string, data []byte, perm fs.FileMode, overwrite bool) error {
	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")

	if err := writeSynced(tmpPath, data, perm); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := promote(tmpPath, path, overwrite); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	// Sync directory for durability.
	if df, err := os.Open(dir); err == nil {
		syncErr := df.Sync()
		_ = df.Close()
		if syncErr != nil {
			return fmt.Errorf("sync directory: %w", syncErr)
		}
	}
	return nil
}

func writeSynced(path string, data []byte, perm fs.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func promote(tmpPath, path string, overwrite bool) error {
	if overwrite {
		return os.Rename(tmpPath, path)
	}

	// A hard link fails if path exists, so no existing file is replaced.
	err := os.Link(tmpPath, path)
	switch {
	case err == nil:
		// path is already complete; a leftover temp name is only clutter.
		_ = removeTemp(tmpPath)
		return nil
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %s", ErrOutputExists, path)
	}

	// Filesystems without hard links: check, then rename.
	if _, statErr := os.Lstat(path); statErr == nil {
		return fmt.Errorf("%w: %s", ErrOutputExists, path)
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return statErr
	}
	return os.Rename(tmpPath, path)
}
