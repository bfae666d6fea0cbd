// Package store implements C2: atomic, crash-safe filesystem persistence
// of notes, proposals, plugins, entities, events, and the scheduler
// ledger. Every canonical file is written via WriteFileAtomic; nothing in
// this package ever writes a canonical path directly.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// WriteFileAtomic writes data to path by writing a sibling temp file,
// fsyncing it, renaming it over path, and fsyncing the parent directory.
// Directory-fsync failures that indicate the platform doesn't support
// syncing a directory (EINVAL, ENOTSUP, EACCES, EPERM, or an error this
// code doesn't recognize) are tolerated; anything else is fatal, per the
// atomic write protocol.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmpPath := filepath.Join(dir, fmt.Sprintf("%s.%d.%d.tmp",
		filepath.Base(path), os.Getpid(), time.Now().UnixNano()))

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmpPath)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	if err := syncDir(dir); err != nil {
		return fmt.Errorf("fsync parent dir: %w", err)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	err = d.Sync()
	if err == nil {
		return nil
	}
	if dirSyncTolerable(err) {
		return nil
	}
	return err
}

// dirSyncTolerable reports whether err indicates the underlying platform
// or filesystem simply does not support directory fsync (EINVAL, ENOTSUP,
// EACCES, EPERM) or is some error this code doesn't recognize at all.
// Recognized errnos that are NOT in that list (ENOSPC, EIO, EROFS, ...)
// are real I/O failures and must remain fatal.
func dirSyncTolerable(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return true // unrecognized error shape: tolerate per spec
	}
	switch errno {
	case syscall.EINVAL, syscall.ENOTSUP, syscall.EACCES, syscall.EPERM:
		return true
	default:
		return false
	}
}

// AppendAtomic opens path in append mode, writes data followed by a
// newline, fsyncs the file, then fsyncs the parent directory. Used for
// the event log, where truncate-and-rename would lose history.
func AppendAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return syncDir(dir)
}

// fileExists is a small helper used throughout the package to turn
// os.Stat errors into a plain bool, matching entity_not_found semantics
// (absent is not an error at this layer).
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
