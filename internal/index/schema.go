package index

// schemaDDL creates every derived index table. Names are illustrative in
// the spec; the structure here is what rebuild-index and every query
// below actually depend on.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS notes (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	note_type TEXT NOT NULL,
	author_kind TEXT NOT NULL,
	author_id TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	plugins_json TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS note_tags (
	note_id TEXT NOT NULL,
	tag TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_note_tags_note ON note_tags(note_id);
CREATE INDEX IF NOT EXISTS idx_note_tags_tag ON note_tags(tag);

CREATE TABLE IF NOT EXISTS note_plugins (
	note_id TEXT NOT NULL,
	namespace TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_note_plugins_note ON note_plugins(note_id);
CREATE INDEX IF NOT EXISTS idx_note_plugins_ns ON note_plugins(namespace);

CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
	note_id UNINDEXED,
	title,
	body
);

CREATE TABLE IF NOT EXISTS sections (
	note_id TEXT NOT NULL,
	section_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	heading_text TEXT NOT NULL,
	heading_level INTEGER NOT NULL,
	start_idx INTEGER NOT NULL,
	end_idx INTEGER NOT NULL,
	fallback_path_json TEXT NOT NULL,
	PRIMARY KEY (note_id, section_id)
);
CREATE INDEX IF NOT EXISTS idx_sections_note_position ON sections(note_id, position);

CREATE TABLE IF NOT EXISTS proposals (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	note_id TEXT NOT NULL,
	section_id TEXT,
	proposal_type TEXT NOT NULL,
	actor_kind TEXT NOT NULL,
	actor_id TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_proposals_note ON proposals(note_id);
CREATE INDEX IF NOT EXISTS idx_proposals_status ON proposals(status);

CREATE TABLE IF NOT EXISTS events (
	event_id TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	type TEXT NOT NULL,
	actor_kind TEXT NOT NULL,
	actor_id TEXT,
	entity_kind TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	payload_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
CREATE INDEX IF NOT EXISTS idx_events_entity ON events(entity_kind, entity_id);

CREATE TABLE IF NOT EXISTS entities (
	namespace TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	schema_version TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	data_json TEXT NOT NULL,
	PRIMARY KEY (namespace, entity_type, entity_id)
);

CREATE TABLE IF NOT EXISTS entity_links (
	namespace TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	link_kind TEXT NOT NULL,
	note_id TEXT,
	target_ns TEXT,
	target_type TEXT,
	target_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_entity_links_owner ON entity_links(namespace, entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_entity_links_note ON entity_links(note_id);

CREATE VIRTUAL TABLE IF NOT EXISTS entities_fts USING fts5(
	namespace UNINDEXED,
	entity_type UNINDEXED,
	entity_id UNINDEXED,
	body
);

CREATE TABLE IF NOT EXISTS plugin_manifests (
	namespace TEXT PRIMARY KEY,
	schema_version TEXT NOT NULL,
	registered_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	manifest_json TEXT NOT NULL
);
`
