package flashq

import "github.com/flashq/flashq/internal/offsetstore"

// GroupOffsets is a thin, group-bound view over the backend's shared
// consumer offset store. The underlying store still keys everything by
// group internally, so distinct GroupOffsets handles for the same group
// id observe the same state.
type GroupOffsets struct {
	group string
	store *offsetstore.ConsumerOffsetStore
}

// Commit records offset for (topic, partition) under this handle's group.
func (g *GroupOffsets) Commit(topic string, partition int, offset uint64, metadata string) (offsetstore.CommitResult, error) {
	if err := validateName("topic", topic); err != nil {
		return offsetstore.Unchanged, err
	}
	return g.store.Commit(g.group, topic, partition, offset, metadata)
}

// Fetch returns the committed offset for (topic, partition), or ok=false
// if none has ever been committed.
func (g *GroupOffsets) Fetch(topic string, partition int) (offset uint64, ok bool) {
	return g.store.Fetch(g.group, topic, partition)
}

// List returns every (topic, partition) entry committed under this group.
func (g *GroupOffsets) List() []offsetstore.ListEntry {
	return g.store.List(g.group)
}

// Delete removes this group's entire snapshot.
func (g *GroupOffsets) Delete() error {
	return g.store.DeleteGroup(g.group)
}
