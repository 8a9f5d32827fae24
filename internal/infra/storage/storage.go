// Package storage provides the atomic-write primitive every persisted
// entity in CrazyOnes relies on: locale catalogs, locale stores, the
// fingerprint ledger, the trigger document, the subscriber store and the
// delivery ledger are all flat JSON files written through AtomicWriteFile
// so that no reader ever observes a partially written file.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"telegram-userbot/internal/infra/logger"
)

// defaultFilePerm restricts persisted files to the owning process.
const defaultFilePerm = 0600

// EnsureDir makes sure the directory holding path exists.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	return nil
}

// AtomicWriteFile atomically writes data to path.
//
// Algorithm: temp file in the same directory -> write -> fsync(temp) ->
// chmod -> close -> rename -> best-effort fsync(dir). Either the
// previous file remains intact or the new one is written in full;
// os.Rename is atomic only within a single filesystem volume. The
// directory fsync is best-effort and may be a no-op on some platforms,
// but improves durability of the rename's metadata.
func AtomicWriteFile(path string, data []byte) error {
	clean := filepath.Clean(path)
	if err := EnsureDir(clean); err != nil {
		return err
	}
	dir := filepath.Dir(clean)

	tmp, err := os.CreateTemp(dir, "atomic-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Chmod(defaultFilePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, clean); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	if dirFile, err := os.Open(dir); err == nil { //nolint:gosec // dir derived from a cleaned, known-good path
		if errSync := dirFile.Sync(); errSync != nil {
			logger.Warnf("AtomicWriteFile: dir sync error: %v", errSync)
		}
		_ = dirFile.Close()
	}
	return nil
}
