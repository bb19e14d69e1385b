package store

import (
	"os"
	"path/filepath"
)

// atomicWrite writes data to a temp file beside path and renames it into
// place, so readers see either the old or the new document, never a torn one.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return ioFailure("create temp file", dir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath) // no-op after a successful rename
	}()

	if _, err := tmp.Write(data); err != nil {
		return ioFailure("write temp file", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return ioFailure("sync temp file", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return ioFailure("close temp file", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return ioFailure("chmod temp file", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return ioFailure("replace file", path, err)
	}
	return nil
}
