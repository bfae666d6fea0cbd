package store

import (
	"encoding/json"
	"fmt"

	"github.com/remcore/rem/internal/schema"
)

type entityFile struct {
	Namespace     string          `json:"namespace"`
	EntityType    string          `json:"entityType"`
	ID            string          `json:"id"`
	SchemaVersion string          `json:"schemaVersion"`
	Data          json.RawMessage `json:"data"`
}

type entityMetaFile struct {
	CreatedAt string              `json:"createdAt"`
	UpdatedAt string              `json:"updatedAt"`
	Actor     schema.Actor        `json:"actor"`
	Links     []schema.EntityLink `json:"links,omitempty"`
}

func (s *Store) entityPaths(namespace, entityType, id string) (entity, meta string) {
	dir := s.path("entities", namespace, entityType, id)
	return dir + "/entity.json", dir + "/meta.json"
}

// SaveEntity writes entity.json and meta.json atomically.
func (s *Store) SaveEntity(e schema.Entity) error {
	for _, id := range []string{e.Namespace, e.EntityType, e.ID} {
		if err := ValidateID(id); err != nil {
			return err
		}
	}
	entityPath, metaPath := s.entityPaths(e.Namespace, e.EntityType, e.ID)

	ef := entityFile{Namespace: e.Namespace, EntityType: e.EntityType, ID: e.ID, SchemaVersion: e.SchemaVersion, Data: e.Data}
	eb, err := json.MarshalIndent(ef, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}
	if err := WriteFileAtomic(entityPath, append(eb, '\n')); err != nil {
		return err
	}

	mf := entityMetaFile{CreatedAt: formatTime(e.Meta.CreatedAt), UpdatedAt: formatTime(e.Meta.UpdatedAt), Actor: e.Meta.Actor, Links: e.Meta.Links}
	mb, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entity meta: %w", err)
	}
	return WriteFileAtomic(metaPath, append(mb, '\n'))
}

// GetEntity reads the canonical entity+meta pair.
func (s *Store) GetEntity(namespace, entityType, id string) (schema.Entity, error) {
	entityPath, metaPath := s.entityPaths(namespace, entityType, id)

	var ef entityFile
	if err := readJSON(entityPath, &ef); err != nil {
		return schema.Entity{}, err
	}
	var mf entityMetaFile
	if err := readJSON(metaPath, &mf); err != nil {
		return schema.Entity{}, err
	}
	createdAt, err := parseTime(mf.CreatedAt)
	if err != nil {
		return schema.Entity{}, err
	}
	updatedAt, err := parseTime(mf.UpdatedAt)
	if err != nil {
		return schema.Entity{}, err
	}
	return schema.Entity{
		Namespace: ef.Namespace, EntityType: ef.EntityType, ID: ef.ID, SchemaVersion: ef.SchemaVersion, Data: ef.Data,
		Meta: schema.EntityMeta{CreatedAt: createdAt, UpdatedAt: updatedAt, Actor: mf.Actor, Links: mf.Links},
	}, nil
}

// EntityExists reports whether an entity's canonical file is present.
func (s *Store) EntityExists(namespace, entityType, id string) bool {
	entityPath, _ := s.entityPaths(namespace, entityType, id)
	return fileExists(entityPath)
}

// ListEntityIDs enumerates entity ids under a (namespace, entityType) pair.
func (s *Store) ListEntityIDs(namespace, entityType string) ([]string, error) {
	return listDirNames(s.path("entities", namespace, entityType))
}

// ListEntityTypes enumerates the entity-type directories registered under a namespace.
func (s *Store) ListEntityTypes(namespace string) ([]string, error) {
	return listDirNames(s.path("entities", namespace))
}

// ListEntityNamespaces enumerates every namespace directory under entities/.
func (s *Store) ListEntityNamespaces() ([]string, error) {
	return listDirNames(s.path("entities"))
}
