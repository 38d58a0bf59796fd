package domain

import "time"

// Entity is a single item of a provider's inventory.
type Entity struct {
	// Key identifies the entity within its provider.
	Key string

	// Kind is the entity type (e.g., "repository", "file").
	Kind string

	// Attributes contains source-specific key-value pairs.
	Attributes map[string]string

	// Provider is the provenance tag naming the provider that produced the entity.
	Provider string
}

// WithProvenance returns a copy of the entity tagged with its owning provider.
func (e Entity) WithProvenance(provider string) Entity {
	e.Provider = provider
	return e
}

// Page is one response from a source's fetch session.
type Page struct {
	// Entities are the items on this page.
	Entities []Entity

	// Cursor is the producer-defined token used to request the next page.
	Cursor string

	// Done is true when no more pages remain.
	Done bool
}

// Mark is a durable checkpoint for one processed page.
// Marks are never modified after creation.
type Mark struct {
	ID          string
	IngestionID string

	// Sequence is zero-based and contiguous within an ingestion.
	Sequence int

	// Cursor requests the page after this one.
	Cursor string

	// Entities are the entities added at this mark.
	Entities []Entity

	CreatedAt time.Time
}

// NextSequence returns the sequence number that follows the given last mark.
// A nil mark starts at zero.
func NextSequence(last *Mark) int {
	if last == nil {
		return 0
	}
	return last.Sequence + 1
}

// MutationType identifies the kind of target store mutation.
type MutationType string

// MutationDelta adds and removes entities.
const MutationDelta MutationType = "delta"

// Delta is the transient change set computed for one mark.
type Delta struct {
	Added   []Entity
	Removed []Entity
}

// Mutation converts the delta into a target store mutation.
func (d Delta) Mutation() Mutation {
	return Mutation{
		Type:    MutationDelta,
		Added:   d.Added,
		Removed: d.Removed,
	}
}

// Mutation is applied once to the target store per mark.
type Mutation struct {
	Type    MutationType
	Added   []Entity
	Removed []Entity
}
