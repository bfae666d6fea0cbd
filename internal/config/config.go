// Package config resolves the effective rem store root and persists the
// config file described by the external interface's config-file format.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	homedir "github.com/mitchellh/go-homedir"
)

const schemaVersion = "v1"

// DefaultStoreRoot is used when no override, env var, or persisted file
// supplies one.
const DefaultStoreRoot = "./rem_store"

// EnvStoreRoot is the environment variable consulted between a runtime
// override and the persisted config file.
const EnvStoreRoot = "STORE_ROOT"

// EnvConfigPath names the persisted config file's location. This package
// does not read it; cmd/rem does, when building a Resolver without an
// explicit --config path.
const EnvConfigPath = "CONFIG_PATH"

// File is the on-disk shape of the persisted config file.
type File struct {
	SchemaVersion string `json:"schemaVersion"`
	StoreRoot     string `json:"storeRoot"`
}

// Resolver resolves the effective storeRoot with precedence:
// runtime override > env var > persisted file > default.
type Resolver struct {
	mu         sync.RWMutex
	configPath string
	override   string
}

// NewResolver builds a Resolver backed by the persisted config file at
// configPath. configPath may not exist yet; it is created on the first
// Persist call (SetOverride changes only in-memory state).
func NewResolver(configPath string) *Resolver {
	return &Resolver{configPath: configPath}
}

// Resolve returns the effective store root, expanding a leading "~".
func (r *Resolver) Resolve() (string, error) {
	r.mu.RLock()
	override := r.override
	r.mu.RUnlock()

	var raw string
	switch {
	case override != "":
		raw = override
	case os.Getenv(EnvStoreRoot) != "":
		raw = os.Getenv(EnvStoreRoot)
	default:
		if f, err := r.readPersisted(); err == nil && f != nil && f.StoreRoot != "" {
			raw = f.StoreRoot
		} else {
			raw = DefaultStoreRoot
		}
	}
	return expandHome(raw)
}

// SetOverride sets (or, with "", clears) the in-process runtime override.
// Clearing falls back to env var / persisted file / default.
func (r *Resolver) SetOverride(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.override = path
}

// Persist writes storeRoot into the config file, atomically.
func (r *Resolver) Persist(storeRoot string) error {
	f := File{SchemaVersion: schemaVersion, StoreRoot: storeRoot}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return writeAtomic(r.configPath, data)
}

func (r *Resolver) readPersisted() (*File, error) {
	data, err := os.ReadFile(r.configPath)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	if !strings.HasPrefix(path, "~/") && path != "~" {
		return path, nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	return expanded, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return nil
	}
	defer d.Close()
	_ = d.Sync()
	return nil
}
