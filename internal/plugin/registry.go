package plugin

import (
	"time"

	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/schema"
)

// Registry owns plugin lifecycle transitions. It is storage-agnostic: the
// caller (internal/core.Engine) supplies load/save callbacks so Registry
// has no direct dependency on the filesystem store or the index.
type Registry struct {
	Load func(namespace string) (schema.Plugin, bool, error)
	Save func(schema.Plugin) error
}

// Register normalizes manifest and either creates a fresh "registered"
// plugin or, if one already exists, re-registers it — applying the
// permission-expansion-forces-disable rule.
func (r *Registry) Register(manifest schema.Manifest) (schema.Plugin, error) {
	normalized, err := schema.NormalizeManifest(manifest)
	if err != nil {
		return schema.Plugin{}, rerr.Wrap(rerr.CodePluginRegisterFail, err, "normalize manifest")
	}

	existing, found, err := r.Load(normalized.Namespace)
	if err != nil {
		return schema.Plugin{}, rerr.Wrap(rerr.CodeIOFailure, err, "load existing plugin")
	}

	now := time.Now().UTC()
	if !found {
		p := schema.Plugin{
			Manifest: normalized,
			Meta:     schema.PluginMeta{LifecycleState: schema.LifecycleRegistered, RegisteredAt: now, UpdatedAt: now},
		}
		if err := r.Save(p); err != nil {
			return schema.Plugin{}, rerr.Wrap(rerr.CodeIOFailure, err, "save plugin")
		}
		return p, nil
	}

	expanded := schema.PermissionsExpanded(existing.Manifest.Permissions, normalized.Permissions)
	meta := existing.Meta
	meta.UpdatedAt = now
	if expanded {
		meta.LifecycleState = schema.LifecycleDisabled
		meta.DisableReason = "permissions_expanded"
		disabledAt := now
		meta.DisabledAt = &disabledAt
	}
	p := schema.Plugin{Manifest: normalized, Meta: meta}
	if err := r.Save(p); err != nil {
		return schema.Plugin{}, rerr.Wrap(rerr.CodeIOFailure, err, "save plugin")
	}
	return p, nil
}

// Install transitions registered -> installed.
func (r *Registry) Install(namespace string) (schema.Plugin, error) {
	return r.transition(namespace, schema.LifecycleInstalled, func(m *schema.PluginMeta, now time.Time) {
		m.InstalledAt = &now
	})
}

// Enable transitions installed|disabled -> enabled.
func (r *Registry) Enable(namespace string) (schema.Plugin, error) {
	return r.transition(namespace, schema.LifecycleEnabled, func(m *schema.PluginMeta, now time.Time) {
		m.EnabledAt = &now
		m.DisableReason = ""
	})
}

// Disable transitions enabled -> disabled.
func (r *Registry) Disable(namespace, reason string) (schema.Plugin, error) {
	return r.transition(namespace, schema.LifecycleDisabled, func(m *schema.PluginMeta, now time.Time) {
		m.DisabledAt = &now
		m.DisableReason = reason
	})
}

// Uninstall transitions enabled|disabled -> uninstalled, and immediately
// back to registered (the data model's uninstall cycle collapses to a
// single caller-visible state since there is nothing distinguishing
// "uninstalled" from "registered" once reached).
func (r *Registry) Uninstall(namespace string) (schema.Plugin, error) {
	p, err := r.transition(namespace, schema.LifecycleUninstalled, nil)
	if err != nil {
		return schema.Plugin{}, err
	}
	return r.transition(namespace, schema.LifecycleRegistered, nil)
}

func (r *Registry) transition(namespace string, to schema.LifecycleState, mutate func(*schema.PluginMeta, time.Time)) (schema.Plugin, error) {
	p, found, err := r.Load(namespace)
	if err != nil {
		return schema.Plugin{}, rerr.Wrap(rerr.CodeIOFailure, err, "load plugin")
	}
	if !found {
		return schema.Plugin{}, rerr.Err(rerr.CodePluginNotFound, "plugin %q not registered", namespace)
	}
	if !schema.CanTransitionPlugin(p.Meta.LifecycleState, to) {
		return schema.Plugin{}, rerr.Err(rerr.CodeInvalidTransition, "plugin %q cannot go from %s to %s", namespace, p.Meta.LifecycleState, to)
	}
	now := time.Now().UTC()
	p.Meta.LifecycleState = to
	p.Meta.UpdatedAt = now
	if mutate != nil {
		mutate(&p.Meta, now)
	}
	if err := r.Save(p); err != nil {
		return schema.Plugin{}, rerr.Wrap(rerr.CodeIOFailure, err, "save plugin")
	}
	return p, nil
}

