package core

import (
	"encoding/json"

	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/schema"
)

// RegisterPlugin normalizes and registers a manifest, or re-registers an
// existing one, applying the permission-expansion-forces-disable rule.
func (e *Engine) RegisterPlugin(manifest schema.Manifest) (schema.Plugin, error) {
	return e.registry.Register(manifest)
}

// InstallPlugin transitions registered -> installed.
func (e *Engine) InstallPlugin(namespace string) (schema.Plugin, error) {
	return e.registry.Install(namespace)
}

// EnablePlugin transitions installed|disabled -> enabled.
func (e *Engine) EnablePlugin(namespace string) (schema.Plugin, error) {
	return e.registry.Enable(namespace)
}

// DisablePlugin transitions enabled -> disabled, recording reason.
func (e *Engine) DisablePlugin(namespace, reason string) (schema.Plugin, error) {
	return e.registry.Disable(namespace, reason)
}

// UninstallPlugin transitions enabled|disabled -> uninstalled -> registered.
func (e *Engine) UninstallPlugin(namespace string) (schema.Plugin, error) {
	return e.registry.Uninstall(namespace)
}

// GetPlugin returns a registered plugin by namespace.
func (e *Engine) GetPlugin(namespace string) (schema.Plugin, error) {
	p, found, err := e.loadPlugin(namespace)
	if err != nil {
		return schema.Plugin{}, err
	}
	if !found {
		return schema.Plugin{}, rerr.Err(rerr.CodePluginNotFound, "plugin %q not registered", namespace)
	}
	return p, nil
}

// ListPlugins returns every registered plugin, sourced from the index.
func (e *Engine) ListPlugins() ([]schema.Manifest, error) {
	manifests, err := e.index.ListPluginManifests()
	if err != nil {
		return nil, rerr.Wrap(rerr.CodeIOFailure, err, "list plugin manifests")
	}
	return manifests, nil
}

// ListEnabledWithSchedules satisfies scheduler.PluginSource: every enabled
// plugin that declares at least one scheduled task.
func (e *Engine) ListEnabledWithSchedules() ([]schema.Plugin, error) {
	namespaces, err := e.store.ListPluginNamespaces()
	if err != nil {
		return nil, rerr.Wrap(rerr.CodeIOFailure, err, "list plugin namespaces")
	}
	var out []schema.Plugin
	for _, ns := range namespaces {
		p, found, err := e.loadPlugin(ns)
		if err != nil {
			return nil, err
		}
		if !found || p.Meta.LifecycleState != schema.LifecycleEnabled {
			continue
		}
		if len(p.Manifest.ScheduledTasks) == 0 {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// ListPluginTemplates returns the named note templates a plugin declares.
func (e *Engine) ListPluginTemplates(namespace string) (map[string]json.RawMessage, error) {
	p, err := e.GetPlugin(namespace)
	if err != nil {
		return nil, err
	}
	return p.Manifest.Templates, nil
}

// ApplyPluginTemplate returns the raw template body for templateName, for
// the caller to turn into a new note's document.
func (e *Engine) ApplyPluginTemplate(namespace, templateName string) (json.RawMessage, error) {
	p, err := e.GetPlugin(namespace)
	if err != nil {
		return nil, err
	}
	body, ok := p.Manifest.Templates[templateName]
	if !ok {
		return nil, rerr.Err(rerr.CodeTemplateNotFound, "plugin %q has no template %q", namespace, templateName)
	}
	return body, nil
}
