// Package core orchestrates every public rem operation: it validates
// input, writes canonical files before appending events, upserts the
// derived index, and enforces the proposal-first policy for agent actors.
// It is the only package that imports store, index, plugin, scheduler,
// schema, richtext and linker together.
package core

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/remcore/rem/internal/index"
	"github.com/remcore/rem/internal/linker"
	"github.com/remcore/rem/internal/plugin"
	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/schema"
	"github.com/remcore/rem/internal/store"
)

// Engine is the orchestrator behind every CLI/HTTP operation.
type Engine struct {
	root     string
	store    *store.Store
	index    *index.Index
	registry *plugin.Registry
	runtime  *plugin.Runtime
	log      zerolog.Logger

	trustedRoots []string
	hostname     string

	actionTimeoutMs  int
	maxInputBytes    int
	maxOutputBytes   int
	maxConcurrency   int64
}

// Default bounds applied to every plugin action invocation unless Options
// overrides them.
const (
	defaultActionTimeoutMs = 30_000
	defaultMaxInputBytes   = 1 << 20
	defaultMaxOutputBytes  = 1 << 20
	defaultMaxConcurrency  = 4
)

// Options configures an Engine at construction time.
type Options struct {
	Log          zerolog.Logger
	TrustedRoots []string

	ActionTimeoutMs int
	MaxInputBytes   int
	MaxOutputBytes  int
	MaxConcurrency  int64
}

// Open builds an Engine rooted at root, opening (and creating if absent)
// its derived index alongside the canonical store.
func Open(root string, opts Options) (*Engine, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(filepath.Join(root, "index"), 0o755); err != nil {
		return nil, rerr.Wrap(rerr.CodeIOFailure, err, "create index directory")
	}

	st := store.New(root)
	idx, err := index.Open(filepath.Join(root, "index", "rem.db"))
	if err != nil {
		return nil, rerr.Wrap(rerr.CodeIOFailure, err, "open index")
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	e := &Engine{
		root:         root,
		store:        st,
		index:        idx,
		log:          opts.Log,
		trustedRoots: opts.TrustedRoots,
		hostname:     host,

		actionTimeoutMs: firstPositiveInt(opts.ActionTimeoutMs, defaultActionTimeoutMs),
		maxInputBytes:   firstPositiveInt(opts.MaxInputBytes, defaultMaxInputBytes),
		maxOutputBytes:  firstPositiveInt(opts.MaxOutputBytes, defaultMaxOutputBytes),
		maxConcurrency:  firstPositiveInt64(opts.MaxConcurrency, defaultMaxConcurrency),
	}
	e.registry = &plugin.Registry{Load: e.loadPlugin, Save: e.savePlugin}
	e.runtime = &plugin.Runtime{
		Load:     e.loadPlugin,
		Host:     &plugin.SubprocessHost{PluginPath: e.pluginPath},
		Core:     &pluginFacade{engine: e},
		Hostname: host,
	}
	return e, nil
}

// Close releases the index's database connection.
func (e *Engine) Close() error {
	return e.index.Close()
}

// Root returns the store root this Engine operates over.
func (e *Engine) Root() string { return e.root }

// SetHost replaces the plugin dispatch host (e.g. with an in-process test
// host). Open installs a SubprocessHost by default.
func (e *Engine) SetHost(h plugin.Host) { e.runtime.Host = h }

func newEventID() string { return uuid.NewString() }

func (e *Engine) appendEvent(ev schema.Event) (schema.Event, error) {
	if ev.EventID == "" {
		ev.EventID = newEventID()
	}
	if ev.SchemaVersion == "" {
		ev.SchemaVersion = "v1"
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := e.store.AppendEvent(ev); err != nil {
		return ev, rerr.Wrap(rerr.CodeIOFailure, err, "append event %s", ev.Type)
	}
	if err := e.index.InsertEvent(ev); err != nil {
		e.log.Warn().Err(err).Str("event", ev.Type).Msg("index event insert failed")
	}
	return ev, nil
}

func (e *Engine) loadPlugin(namespace string) (schema.Plugin, bool, error) {
	if err := store.ValidateID(namespace); err != nil {
		return schema.Plugin{}, false, rerr.Wrap(rerr.CodeInvalidInput, err, "namespace")
	}
	if !e.store.PluginExists(namespace) {
		return schema.Plugin{}, false, nil
	}
	p, err := e.store.GetPlugin(namespace)
	if err != nil {
		return schema.Plugin{}, false, rerr.Wrap(rerr.CodeIOFailure, err, "load plugin %q", namespace)
	}
	return p, true, nil
}

func (e *Engine) savePlugin(p schema.Plugin) error {
	if err := e.store.SavePlugin(p); err != nil {
		return rerr.Wrap(rerr.CodeIOFailure, err, "save plugin %q", p.Manifest.Namespace)
	}
	if err := e.index.UpsertPluginManifest(p.Manifest); err != nil {
		e.log.Warn().Err(err).Str("namespace", p.Manifest.Namespace).Msg("index plugin upsert failed")
	}
	return nil
}

func (e *Engine) pluginPath(namespace string) string {
	return filepath.Join(e.root, "plugins", namespace)
}

func firstPositiveInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func firstPositiveInt64(v, fallback int64) int64 {
	if v > 0 {
		return v
	}
	return fallback
}

func wrapNotFound(code rerr.Code, err error, format string, args ...any) error {
	if os.IsNotExist(err) {
		return rerr.Err(code, format, args...)
	}
	return rerr.Wrap(rerr.CodeIOFailure, err, format, args...)
}
