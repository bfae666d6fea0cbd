// Package schema holds the canonical shapes of every entity rem persists,
// their invariants, and the lifecycle transition tables that govern
// proposals and plugins.
package schema

import (
	"encoding/json"
	"time"

	"github.com/remcore/rem/internal/richtext"
)

// Note is the canonical shape of a rem note.
type Note struct {
	NoteID             string                     `json:"noteId"`
	Title              string                     `json:"title"`
	NoteType           string                     `json:"noteType"`
	Tags               []string                   `json:"tags"`
	Plugins            map[string]json.RawMessage `json:"plugins"`
	Author             Actor                      `json:"author"`
	CreatedAt          time.Time                  `json:"createdAt"`
	UpdatedAt          time.Time                  `json:"updatedAt"`
	SectionIndexVersion int                       `json:"sectionIndexVersion"`
	Document           richtext.Document          `json:"document"`
}

// Actor identifies who performed a mutation: a human or an agent, with an
// optional id (agents are required to carry one).
type Actor struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
}

const (
	ActorHuman = "human"
	ActorAgent = "agent"
)

// Section mirrors richtext.Section with the JSON tags used on disk and in
// the index; kept as a distinct type so storage concerns (tags, versions)
// don't leak into the extraction package.
type Section struct {
	SectionID      string   `json:"sectionId"`
	NoteID         string   `json:"noteId"`
	HeadingText    string   `json:"headingText"`
	HeadingLevel   int      `json:"headingLevel"`
	FallbackPath   []string `json:"fallbackPath"`
	StartNodeIndex int      `json:"startNodeIndex"`
	EndNodeIndex   int      `json:"endNodeIndex"`
	Position       int      `json:"position"`
}

// ProposalStatus is one of the proposal state machine's states.
type ProposalStatus string

const (
	ProposalOpen       ProposalStatus = "open"
	ProposalAccepted   ProposalStatus = "accepted"
	ProposalRejected   ProposalStatus = "rejected"
	ProposalSuperseded ProposalStatus = "superseded"
)

// IsTerminal reports whether s absorbs further transitions.
func (s ProposalStatus) IsTerminal() bool {
	return s == ProposalAccepted || s == ProposalRejected || s == ProposalSuperseded
}

// ProposalType selects how Content is applied on accept.
type ProposalType string

const (
	ProposalReplaceSection ProposalType = "replace_section"
	ProposalAnnotate       ProposalType = "annotate"
)

// ContentFormat is the encoding of a Proposal's Content.Content field.
type ContentFormat string

const (
	FormatLexical ContentFormat = "lexical"
	FormatText    ContentFormat = "text"
	FormatJSON    ContentFormat = "json"
)

// ProposalContent is the payload a Proposal carries for application on accept.
type ProposalContent struct {
	Format        ContentFormat   `json:"format"`
	Content       json.RawMessage `json:"content"`
	SchemaVersion string          `json:"schemaVersion"`
	TagsToAdd     []string        `json:"tagsToAdd,omitempty"`
	TagsToRemove  []string        `json:"tagsToRemove,omitempty"`
	SetTitle      string          `json:"setTitle,omitempty"`
}

// ProposalTarget names the note/section a Proposal applies to.
type ProposalTarget struct {
	NoteID       string   `json:"noteId"`
	SectionID    string   `json:"sectionId,omitempty"`
	FallbackPath []string `json:"fallbackPath,omitempty"`
}

// Proposal is the canonical shape of a structured edit awaiting review.
type Proposal struct {
	ID          string          `json:"id"`
	Status      ProposalStatus  `json:"status"`
	Actor       Actor           `json:"actor"`
	Target      ProposalTarget  `json:"target"`
	ProposalType ProposalType   `json:"proposalType"`
	Content     ProposalContent `json:"content"`
	Rationale   string          `json:"rationale,omitempty"`
	Confidence  *float64        `json:"confidence,omitempty"`
	Source      string          `json:"source,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// LifecycleState is one of a Plugin's registration states.
type LifecycleState string

const (
	LifecycleRegistered LifecycleState = "registered"
	LifecycleInstalled  LifecycleState = "installed"
	LifecycleEnabled    LifecycleState = "enabled"
	LifecycleDisabled   LifecycleState = "disabled"
	LifecycleUninstalled LifecycleState = "uninstalled"
)

// PluginMeta tracks a plugin's lifecycle timestamps and state.
type PluginMeta struct {
	LifecycleState LifecycleState `json:"lifecycleState"`
	RegisteredAt   time.Time      `json:"registeredAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	InstalledAt    *time.Time     `json:"installedAt,omitempty"`
	EnabledAt      *time.Time     `json:"enabledAt,omitempty"`
	DisabledAt     *time.Time     `json:"disabledAt,omitempty"`
	DisableReason  string         `json:"disableReason,omitempty"`
}

// ScheduledTask is one entry of a manifest's scheduledTasks list.
type ScheduledTask struct {
	TaskID           string          `json:"taskId"`
	ActionID         string          `json:"actionId"`
	Schedule         string          `json:"schedule"`
	TimeZone         string          `json:"timeZone"`
	IdempotencyKey   string          `json:"idempotencyKey"`
	RunWindowMinutes int             `json:"runWindowMinutes,omitempty"`
	Input            json.RawMessage `json:"input,omitempty"`
}

// Action is one entry of a manifest's capabilities/cli actions.
type Action struct {
	ActionID            string   `json:"actionId"`
	RequiredPermissions []string `json:"requiredPermissions"`
}

// Manifest is a plugin's normalized (v1 passthrough or v2-normalized) shape.
type Manifest struct {
	Namespace         string                     `json:"namespace"`
	SchemaVersion     string                     `json:"schemaVersion"`
	ManifestVersion   int                        `json:"manifestVersion,omitempty"`
	RemVersionRange   string                     `json:"remVersionRange,omitempty"`
	Capabilities      []string                   `json:"capabilities,omitempty"`
	Permissions       []string                   `json:"permissions,omitempty"`
	PayloadSchema     json.RawMessage            `json:"payloadSchema,omitempty"`
	NotePayloadSchema json.RawMessage            `json:"notePayloadSchema,omitempty"`
	Templates         map[string]json.RawMessage `json:"templates,omitempty"`
	ScheduledTasks    []ScheduledTask            `json:"scheduledTasks,omitempty"`
	EntityTypes       map[string]EntityTypeDef   `json:"entityTypes,omitempty"`
	CLI               []Action                   `json:"cli,omitempty"`
	UI                []Action                   `json:"ui,omitempty"`
}

// EntityTypeDef declares one entity type a plugin owns, including the
// schema for its current version and which fields feed entities_fts.
type EntityTypeDef struct {
	CurrentSchemaVersion string                     `json:"currentSchemaVersion"`
	Schemas              map[string]json.RawMessage `json:"schemas"`
	Indexes              EntityTypeIndexes          `json:"indexes,omitempty"`
}

// EntityTypeIndexes names which fields of an entity's data are fed into
// entities_fts.
type EntityTypeIndexes struct {
	TextFields []string `json:"textFields,omitempty"`
}

// Plugin is a registered manifest plus its lifecycle meta.
type Plugin struct {
	Manifest Manifest   `json:"manifest"`
	Meta     PluginMeta `json:"meta"`
}

// EntityLink points from an entity to a note or another entity.
type EntityLink struct {
	Kind       string `json:"kind"` // "note" | "entity"
	NoteID     string `json:"noteId,omitempty"`
	TargetNS   string `json:"targetNs,omitempty"`
	TargetType string `json:"targetType,omitempty"`
	TargetID   string `json:"targetId,omitempty"`
}

// EntityMeta is an entity's bookkeeping fields, separate from its
// plugin-owned Data so the index can update one without reserializing
// the other.
type EntityMeta struct {
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Actor     Actor        `json:"actor"`
	Links     []EntityLink `json:"links,omitempty"`
}

// Entity is a plugin-owned record validated against its declared entity
// type's schema at the record's own SchemaVersion.
type Entity struct {
	Namespace     string          `json:"namespace"`
	EntityType    string          `json:"entityType"`
	ID            string          `json:"id"`
	SchemaVersion string          `json:"schemaVersion"`
	Data          json.RawMessage `json:"data"`
	Meta          EntityMeta      `json:"meta"`
}

// Event is one immutable record in the append-only log.
type Event struct {
	EventID       string          `json:"eventId"`
	SchemaVersion string          `json:"schemaVersion"`
	Timestamp     time.Time       `json:"timestamp"`
	Type          string          `json:"type"`
	Actor         Actor           `json:"actor"`
	Entity        EventEntityRef  `json:"entity"`
	Payload       json.RawMessage `json:"payload"`
}

// EventEntityRef names the entity an Event describes.
type EventEntityRef struct {
	Kind string `json:"kind"` // "note" | "proposal" | "plugin" | "entity"
	ID   string `json:"id"`
}

// Event type constants, used both when emitting and when filtering listEvents.
const (
	EventNoteCreated       = "note.created"
	EventNoteUpdated       = "note.updated"
	EventProposalAccepted  = "proposal.accepted"
	EventProposalRejected  = "proposal.rejected"
	EventPluginActionInvoked = "plugin.action_invoked"
	EventPluginActionFailed = "plugin.action_failed"
	EventPluginTaskRan     = "plugin.task_ran"
)

// IdempotencyKeyKind selects how a SchedulerLedgerEntry's dedupe key is computed.
type IdempotencyKeyKind string

const (
	IdempotencyCalendarSlot    IdempotencyKeyKind = "calendar_slot"
	IdempotencyActionInputHash IdempotencyKeyKind = "action_input_hash"
)

// SchedulerLedgerEntry records one executed (namespace, task, slot) so
// later runs within the same slot are skipped.
type SchedulerLedgerEntry struct {
	DedupeKey      string             `json:"dedupeKey"`
	Namespace      string             `json:"namespace"`
	TaskID         string             `json:"taskId"`
	ActionID       string             `json:"actionId"`
	IdempotencyKey IdempotencyKeyKind `json:"idempotencyKey"`
	ScheduledFor   time.Time          `json:"scheduledFor"`
	SlotKey        string             `json:"slotKey"`
	TimeZone       string             `json:"timezone"`
	ExecutedAt     time.Time          `json:"executedAt"`
}

// SchedulerLedger is the persisted ledger file's shape.
type SchedulerLedger struct {
	SchemaVersion string                 `json:"schemaVersion"`
	UpdatedAt     time.Time              `json:"updatedAt"`
	Entries       []SchedulerLedgerEntry `json:"entries"`
}
