package store

import (
	"encoding/json"
	"fmt"

	"github.com/remcore/rem/internal/schema"
)

type pluginMetaFile struct {
	LifecycleState schema.LifecycleState `json:"lifecycleState"`
	RegisteredAt   string                `json:"registeredAt"`
	UpdatedAt      string                `json:"updatedAt"`
	InstalledAt    string                `json:"installedAt,omitempty"`
	EnabledAt      string                `json:"enabledAt,omitempty"`
	DisabledAt     string                `json:"disabledAt,omitempty"`
	DisableReason  string                `json:"disableReason,omitempty"`
}

func (s *Store) pluginPaths(namespace string) (manifest, meta string) {
	dir := s.path("plugins", namespace)
	return dir + "/manifest.json", dir + "/meta.json"
}

// SavePlugin writes manifest.json and meta.json atomically.
func (s *Store) SavePlugin(p schema.Plugin) error {
	if err := ValidateID(p.Manifest.Namespace); err != nil {
		return err
	}
	manifestPath, metaPath := s.pluginPaths(p.Manifest.Namespace)

	mb, err := json.MarshalIndent(p.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := WriteFileAtomic(manifestPath, append(mb, '\n')); err != nil {
		return err
	}

	metaFile := pluginMetaFile{
		LifecycleState: p.Meta.LifecycleState,
		RegisteredAt:   formatTime(p.Meta.RegisteredAt),
		UpdatedAt:      formatTime(p.Meta.UpdatedAt),
		DisableReason:  p.Meta.DisableReason,
	}
	if p.Meta.InstalledAt != nil {
		metaFile.InstalledAt = formatTime(*p.Meta.InstalledAt)
	}
	if p.Meta.EnabledAt != nil {
		metaFile.EnabledAt = formatTime(*p.Meta.EnabledAt)
	}
	if p.Meta.DisabledAt != nil {
		metaFile.DisabledAt = formatTime(*p.Meta.DisabledAt)
	}
	mtb, err := json.MarshalIndent(metaFile, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plugin meta: %w", err)
	}
	return WriteFileAtomic(metaPath, append(mtb, '\n'))
}

// GetPlugin reads the canonical manifest+meta pair for namespace.
func (s *Store) GetPlugin(namespace string) (schema.Plugin, error) {
	if err := ValidateID(namespace); err != nil {
		return schema.Plugin{}, err
	}
	manifestPath, metaPath := s.pluginPaths(namespace)

	var manifest schema.Manifest
	if err := readJSON(manifestPath, &manifest); err != nil {
		return schema.Plugin{}, err
	}
	var mf pluginMetaFile
	if err := readJSON(metaPath, &mf); err != nil {
		return schema.Plugin{}, err
	}

	meta := schema.PluginMeta{LifecycleState: mf.LifecycleState, DisableReason: mf.DisableReason}
	var err error
	if meta.RegisteredAt, err = parseTime(mf.RegisteredAt); err != nil {
		return schema.Plugin{}, err
	}
	if meta.UpdatedAt, err = parseTime(mf.UpdatedAt); err != nil {
		return schema.Plugin{}, err
	}
	if mf.InstalledAt != "" {
		t, err := parseTime(mf.InstalledAt)
		if err != nil {
			return schema.Plugin{}, err
		}
		meta.InstalledAt = &t
	}
	if mf.EnabledAt != "" {
		t, err := parseTime(mf.EnabledAt)
		if err != nil {
			return schema.Plugin{}, err
		}
		meta.EnabledAt = &t
	}
	if mf.DisabledAt != "" {
		t, err := parseTime(mf.DisabledAt)
		if err != nil {
			return schema.Plugin{}, err
		}
		meta.DisabledAt = &t
	}

	return schema.Plugin{Manifest: manifest, Meta: meta}, nil
}

// PluginExists reports whether a plugin manifest is present.
func (s *Store) PluginExists(namespace string) bool {
	manifestPath, _ := s.pluginPaths(namespace)
	return fileExists(manifestPath)
}

// ListPluginNamespaces enumerates every plugin directory under the store root.
func (s *Store) ListPluginNamespaces() ([]string, error) {
	return listDirNames(s.path("plugins"))
}
