package offsetstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// groupSnapshot is the on-disk JSON shape for one group's offsets.
type groupSnapshot struct {
	GroupID string                 `json:"group_id"`
	Offsets map[string]offsetEntry `json:"offsets"`
}

func groupFilePath(dir, groupID string) string {
	return filepath.Join(dir, groupID+".json")
}

func loadGroupFile(path string) (*group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap groupSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if snap.Offsets == nil {
		snap.Offsets = map[string]offsetEntry{}
	}
	return &group{id: snap.GroupID, offsets: snap.Offsets}, nil
}

// persistGroup writes g's snapshot via create-temp-then-rename, so a
// crash mid-write never leaves a half-written or truncated group file
// behind. Called with g.mu held.
func persistGroup(dir string, g *group) error {
	snap := groupSnapshot{GroupID: g.id, Offsets: g.offsets}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("offsetstore: marshal %s: %w", g.id, err)
	}

	finalPath := groupFilePath(dir, g.id)
	tmp, err := os.CreateTemp(dir, g.id+".json.tmp-*")
	if err != nil {
		return fmt.Errorf("offsetstore: create temp for %s: %w", g.id, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("offsetstore: write temp for %s: %w", g.id, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("offsetstore: sync temp for %s: %w", g.id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("offsetstore: close temp for %s: %w", g.id, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("offsetstore: rename temp for %s: %w", g.id, err)
	}
	return nil
}

// splitKey reverses key(topic, partition): the partition is everything
// after the last "--", since topic names may themselves contain "--".
func splitKey(k string) (topic string, partition int) {
	i := strings.LastIndex(k, "--")
	if i < 0 {
		return k, 0
	}
	topic = k[:i]
	partition, _ = strconv.Atoi(k[i+2:])
	return topic, partition
}
