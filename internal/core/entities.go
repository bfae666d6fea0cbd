package core

import (
	"encoding/json"
	"time"

	"github.com/remcore/rem/internal/index"
	"github.com/remcore/rem/internal/linker"
	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/schema"
	"github.com/remcore/rem/internal/store"
)

// SaveEntityInput is the caller-supplied shape for entity create/update.
type SaveEntityInput struct {
	Namespace     string
	EntityType    string
	ID            string
	SchemaVersion string
	Data          json.RawMessage
	Actor         schema.Actor
}

// SaveEntity validates data against the plugin's declared schema for the
// record's own SchemaVersion (new records must target the manifest's
// current schema version), then writes the canonical entity and upserts
// the index.
func (e *Engine) SaveEntity(input SaveEntityInput) (schema.Entity, error) {
	for _, id := range []string{input.Namespace, input.EntityType, input.ID} {
		if err := store.ValidateID(id); err != nil {
			return schema.Entity{}, rerr.Wrap(rerr.CodeInvalidInput, err, "entity id component")
		}
	}
	p, found, err := e.loadPlugin(input.Namespace)
	if err != nil {
		return schema.Entity{}, err
	}
	if !found {
		return schema.Entity{}, rerr.Err(rerr.CodeMissingNamespace, "plugin namespace %q is not registered", input.Namespace)
	}
	def, ok := p.Manifest.EntityTypes[input.EntityType]
	if !ok {
		return schema.Entity{}, rerr.Err(rerr.CodeEntitySchemaMismatc, "entity type %q not declared by %q", input.EntityType, input.Namespace)
	}

	isCreate := !e.store.EntityExists(input.Namespace, input.EntityType, input.ID)
	schemaVersion := input.SchemaVersion
	if schemaVersion == "" {
		schemaVersion = def.CurrentSchemaVersion
	}
	if isCreate && schemaVersion != def.CurrentSchemaVersion {
		return schema.Entity{}, rerr.Err(rerr.CodeEntitySchemaMismatc, "entities may only be created at the current schema version %q", def.CurrentSchemaVersion)
	}
	rawSchema, ok := def.Schemas[schemaVersion]
	if !ok {
		return schema.Entity{}, rerr.Err(rerr.CodeEntitySchemaMismatc, "entity type %q has no schema version %q", input.EntityType, schemaVersion)
	}
	if err := schema.ValidatePayload(rawSchema, input.Data); err != nil {
		return schema.Entity{}, rerr.Wrap(rerr.CodeEntitySchemaMismatc, err, "entity data")
	}

	now := time.Now().UTC()
	ent := schema.Entity{
		Namespace: input.Namespace, EntityType: input.EntityType, ID: input.ID,
		SchemaVersion: schemaVersion, Data: input.Data,
		Meta: schema.EntityMeta{CreatedAt: now, UpdatedAt: now, Actor: input.Actor},
	}
	if !isCreate {
		existing, err := e.store.GetEntity(input.Namespace, input.EntityType, input.ID)
		if err != nil {
			return schema.Entity{}, rerr.Wrap(rerr.CodeIOFailure, err, "load entity %q", input.ID)
		}
		ent.Meta.CreatedAt = existing.Meta.CreatedAt
		ent.Meta.Links = existing.Meta.Links
	}

	if err := e.store.SaveEntity(ent); err != nil {
		return schema.Entity{}, rerr.Wrap(rerr.CodeEntitySaveFailed, err, "save entity %q", input.ID)
	}
	ftsBody := index.EntityFTSBody(p.Manifest, input.EntityType, ent.Data)
	if err := e.index.UpsertEntity(ent, ftsBody); err != nil {
		e.log.Warn().Err(err).Str("entityId", input.ID).Msg("index entity upsert failed")
	}
	return ent, nil
}

// EntityCompatibility describes how an entity's declared schema version
// relates to its owning type's current schema version.
type EntityCompatibility struct {
	Mode string // "current" | "mixed"
}

// GetEntity returns an entity plus its compatibility mode relative to the
// owning plugin's currently declared schema version.
func (e *Engine) GetEntity(namespace, entityType, id string) (schema.Entity, EntityCompatibility, error) {
	if !e.store.EntityExists(namespace, entityType, id) {
		return schema.Entity{}, EntityCompatibility{}, rerr.Err(rerr.CodeEntityNotFound, "entity %q not found", id)
	}
	ent, err := e.store.GetEntity(namespace, entityType, id)
	if err != nil {
		return schema.Entity{}, EntityCompatibility{}, rerr.Wrap(rerr.CodeIOFailure, err, "load entity %q", id)
	}
	mode := "mixed"
	if p, found, _ := e.loadPlugin(namespace); found {
		if def, ok := p.Manifest.EntityTypes[entityType]; ok && def.CurrentSchemaVersion == ent.SchemaVersion {
			mode = "current"
		}
	}
	return ent, EntityCompatibility{Mode: mode}, nil
}

// ListEntities returns every entity owned by (namespace, entityType).
func (e *Engine) ListEntities(namespace, entityType string) ([]schema.Entity, error) {
	ids, err := e.store.ListEntityIDs(namespace, entityType)
	if err != nil {
		return nil, rerr.Wrap(rerr.CodeIOFailure, err, "list entity ids")
	}
	out := make([]schema.Entity, 0, len(ids))
	for _, id := range ids {
		ent, err := e.store.GetEntity(namespace, entityType, id)
		if err != nil {
			return nil, rerr.Wrap(rerr.CodeIOFailure, err, "load entity %q", id)
		}
		out = append(out, ent)
	}
	return out, nil
}

// MigrationResult summarizes a migratePluginEntities run.
type MigrationResult struct {
	Migrated int
	Total    int
	DryRun   bool
}

// MigratePluginEntities re-validates and rewrites every entity of
// (namespace, entityType) currently at fromSchemaVersion up to the
// manifest's current schema version. Data is changed only by transform;
// with a nil transform it is carried forward unchanged and re-validated.
// No plugin action is invoked: actionID appears only in error messages.
// dryRun reports counts without writing.
func (e *Engine) MigratePluginEntities(namespace, entityType, actionID, fromSchemaVersion string, dryRun bool, transform func(json.RawMessage) (json.RawMessage, error)) (MigrationResult, error) {
	p, found, err := e.loadPlugin(namespace)
	if err != nil {
		return MigrationResult{}, err
	}
	if !found {
		return MigrationResult{}, rerr.Err(rerr.CodeMissingNamespace, "plugin namespace %q is not registered", namespace)
	}
	def, ok := p.Manifest.EntityTypes[entityType]
	if !ok {
		return MigrationResult{}, rerr.Err(rerr.CodeEntitySchemaMismatc, "entity type %q not declared by %q", entityType, namespace)
	}
	targetSchema, ok := def.Schemas[def.CurrentSchemaVersion]
	if !ok {
		return MigrationResult{}, rerr.Err(rerr.CodeEntitySchemaMismatc, "entity type %q missing schema for current version %q", entityType, def.CurrentSchemaVersion)
	}

	ids, err := e.store.ListEntityIDs(namespace, entityType)
	if err != nil {
		return MigrationResult{}, rerr.Wrap(rerr.CodeIOFailure, err, "list entity ids")
	}

	result := MigrationResult{DryRun: dryRun}
	for _, id := range ids {
		ent, err := e.store.GetEntity(namespace, entityType, id)
		if err != nil {
			return result, rerr.Wrap(rerr.CodeIOFailure, err, "load entity %q", id)
		}
		if ent.SchemaVersion != fromSchemaVersion {
			continue
		}
		result.Total++

		migrated := ent.Data
		if transform != nil {
			migrated, err = transform(ent.Data)
			if err != nil {
				return result, rerr.Wrap(rerr.CodeEntitySaveFailed, err, "migrate entity %q via %q", id, actionID)
			}
		}
		if err := schema.ValidatePayload(targetSchema, migrated); err != nil {
			return result, rerr.Wrap(rerr.CodeEntitySchemaMismatc, err, "migrated entity %q", id)
		}
		if dryRun {
			result.Migrated++
			continue
		}

		ent.Data = migrated
		ent.SchemaVersion = def.CurrentSchemaVersion
		ent.Meta.UpdatedAt = time.Now().UTC()
		if err := e.store.SaveEntity(ent); err != nil {
			return result, rerr.Wrap(rerr.CodeEntitySaveFailed, err, "save migrated entity %q", id)
		}
		ftsBody := index.EntityFTSBody(p.Manifest, entityType, ent.Data)
		if err := e.index.UpsertEntity(ent, ftsBody); err != nil {
			e.log.Warn().Err(err).Str("entityId", id).Msg("index entity upsert failed during migration")
		}
		result.Migrated++
	}
	return result, nil
}

// enrichEntityLinks scans a note's extracted text for mentions of known
// entities and records a note back-link on each matched entity, saving the
// entity's canonical files and refreshing its index row. It runs after
// saveNote's durable writes and never surfaces an error: failures are
// logged and the entity is skipped.
func (e *Engine) enrichEntityLinks(noteID, plainText string) {
	dict, err := e.buildEntityDictionary()
	if err != nil {
		e.log.Warn().Err(err).Msg("build entity dictionary for linking failed")
		return
	}
	for _, m := range dict.Scan(plainText) {
		ent, err := e.store.GetEntity(m.Entity.Namespace, m.Entity.EntityType, m.Entity.EntityID)
		if err != nil {
			continue
		}
		if hasNoteLink(ent.Meta.Links, noteID) {
			continue
		}
		ent.Meta.Links = append(ent.Meta.Links, schema.EntityLink{Kind: "note", NoteID: noteID})
		ent.Meta.UpdatedAt = time.Now().UTC()
		if err := e.store.SaveEntity(ent); err != nil {
			e.log.Warn().Err(err).Str("entityId", ent.ID).Msg("save entity link failed")
			continue
		}
		if p, found, _ := e.loadPlugin(m.Entity.Namespace); found {
			ftsBody := index.EntityFTSBody(p.Manifest, m.Entity.EntityType, ent.Data)
			if err := e.index.UpsertEntity(ent, ftsBody); err != nil {
				e.log.Warn().Err(err).Str("entityId", ent.ID).Msg("index entity link upsert failed")
			}
		}
	}
}

func hasNoteLink(links []schema.EntityLink, noteID string) bool {
	for _, l := range links {
		if l.Kind == "note" && l.NoteID == noteID {
			return true
		}
	}
	return false
}

// buildEntityDictionary compiles every known entity across every
// namespace and type into a scannable dictionary, using the entity id as
// its own surface form.
func (e *Engine) buildEntityDictionary() (*linker.Dictionary, error) {
	namespaces, err := e.store.ListEntityNamespaces()
	if err != nil {
		return nil, err
	}
	var refs []linker.EntityRef
	for _, ns := range namespaces {
		types, err := e.store.ListEntityTypes(ns)
		if err != nil {
			return nil, err
		}
		for _, et := range types {
			ids, err := e.store.ListEntityIDs(ns, et)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				refs = append(refs, linker.EntityRef{Namespace: ns, EntityType: et, EntityID: id, Label: id})
			}
		}
	}
	return linker.Compile(refs)
}
