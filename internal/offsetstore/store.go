// Package offsetstore tracks, per consumer group, the last committed
// offset for every (topic, partition) it has consumed. Commits are
// monotonic and idempotent; the file backend persists one
// JSON snapshot per group using create-temp-then-rename, the same
// pattern trubka's local offset store uses for crash-safe writes.
package offsetstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// CommitResult reports whether a commit actually moved the stored offset.
type CommitResult int

const (
	Committed CommitResult = iota
	Unchanged
)

func (r CommitResult) String() string {
	if r == Committed {
		return "committed"
	}
	return "unchanged"
}

// offsetEntry is one (topic, partition)'s committed position.
type offsetEntry struct {
	Offset   uint64 `json:"offset"`
	Metadata string `json:"metadata,omitempty"`
}

// group holds one consumer group's offsets under its own lock, so
// different groups commit independently.
type group struct {
	mu      sync.Mutex
	id      string
	offsets map[string]offsetEntry
}

func key(topic string, partition int) string {
	return fmt.Sprintf("%s--%d", topic, partition)
}

// ConsumerOffsetStore is the memory-first, persist-on-commit store for
// every consumer group's offsets. An empty dir makes it a pure in-memory
// store (used by the memory backend and by tests).
type ConsumerOffsetStore struct {
	dir    string
	logger zerolog.Logger

	mu     sync.Mutex
	groups map[string]*group
}

// Open loads every existing group snapshot from dir (if non-empty) into
// memory and returns a ready store.
func Open(dir string, logger zerolog.Logger) (*ConsumerOffsetStore, error) {
	s := &ConsumerOffsetStore{dir: dir, logger: logger, groups: map[string]*group{}}
	if dir == "" {
		return s, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("offsetstore: mkdir %s: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("offsetstore: read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		g, err := loadGroupFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("offsetstore: load %s: %w", e.Name(), err)
		}
		s.groups[g.id] = g
	}
	return s, nil
}

func (s *ConsumerOffsetStore) getOrCreate(groupID string) *group {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		g = &group{id: groupID, offsets: map[string]offsetEntry{}}
		s.groups[groupID] = g
	}
	return g
}

// Commit records offset for (groupID, topic, partition). If the stored
// offset is already >= offset, it's a no-op that still reports success
// (idempotent commits from at-least-once redelivery are expected).
func (s *ConsumerOffsetStore) Commit(groupID, topic string, partition int, offset uint64, metadata string) (CommitResult, error) {
	g := s.getOrCreate(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()

	k := key(topic, partition)
	if cur, ok := g.offsets[k]; ok && cur.Offset >= offset {
		return Unchanged, nil
	}
	g.offsets[k] = offsetEntry{Offset: offset, Metadata: metadata}

	if s.dir != "" {
		if err := persistGroup(s.dir, g); err != nil {
			return Unchanged, err
		}
	}
	return Committed, nil
}

// Fetch returns the committed offset for (groupID, topic, partition), or
// ok=false if the group has never committed one.
func (s *ConsumerOffsetStore) Fetch(groupID, topic string, partition int) (offset uint64, ok bool) {
	g := s.getOrCreate(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.offsets[key(topic, partition)]
	return e.Offset, ok
}

// ListEntry is one (topic, partition) entry returned by List.
type ListEntry struct {
	Topic     string
	Partition int
	Offset    uint64
	Metadata  string
}

// List returns every (topic, partition) entry committed for groupID.
func (s *ConsumerOffsetStore) List(groupID string) []ListEntry {
	g := s.getOrCreate(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]ListEntry, 0, len(g.offsets))
	for k, e := range g.offsets {
		topic, partition := splitKey(k)
		out = append(out, ListEntry{Topic: topic, Partition: partition, Offset: e.Offset, Metadata: e.Metadata})
	}
	return out
}

// DeleteGroup removes groupID's snapshot, both from memory and (for the
// file backend) from disk.
func (s *ConsumerOffsetStore) DeleteGroup(groupID string) error {
	s.mu.Lock()
	delete(s.groups, groupID)
	s.mu.Unlock()

	if s.dir == "" {
		return nil
	}
	path := groupFilePath(s.dir, groupID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("offsetstore: delete %s: %w", path, err)
	}
	return nil
}
