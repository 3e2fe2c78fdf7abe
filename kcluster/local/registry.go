package local

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/birdayz/kstorm/kcluster"
	"github.com/birdayz/kstorm/ktopology"
	"github.com/cockroachdb/pebble"
)

var (
	registryPrefix = []byte("topology/")

	errCorruptRegistry = errors.New("corrupt registry entry")
)

func registryKey(name string) []byte {
	return append(bytes.Clone(registryPrefix), name...)
}

// registryEntry is the stored form of an ActiveTopology. The topology is
// kept in its wire encoding.
type registryEntry struct {
	ID         string          `json:"id"`
	Config     kcluster.Config `json:"config"`
	LaunchedAt time.Time       `json:"launchedAt"`
	Topology   []byte          `json:"topology"`
}

func (c *Cluster) persist(at *ActiveTopology, encoded []byte) error {
	v, err := json.Marshal(registryEntry{
		ID:         at.ID,
		Config:     at.Config,
		LaunchedAt: at.LaunchedAt,
		Topology:   encoded,
	})
	if err != nil {
		return err
	}
	if err := c.db.Set(registryKey(at.Name), v, pebble.Sync); err != nil {
		return fmt.Errorf("failed to register %q: %w", at.Name, err)
	}
	return nil
}

func (c *Cluster) restore(db *pebble.DB) error {
	it := db.NewIter(&pebble.IterOptions{
		LowerBound: registryPrefix,
		UpperBound: prefixEnd(registryPrefix),
	})
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		name := string(it.Key()[len(registryPrefix):])
		val, err := it.ValueAndErr()
		if err != nil {
			return err
		}

		var e registryEntry
		if err := json.Unmarshal(val, &e); err != nil {
			return fmt.Errorf("%w %q: %w", errCorruptRegistry, name, err)
		}
		t, err := ktopology.Decode(bytes.NewReader(e.Topology))
		if err != nil {
			return fmt.Errorf("%w %q: %w", errCorruptRegistry, name, err)
		}
		c.active[name] = &ActiveTopology{
			ID:         e.ID,
			Name:       name,
			Config:     e.Config,
			Topology:   t,
			LaunchedAt: e.LaunchedAt,
		}
	}
	return it.Error()
}

// prefixEnd returns the smallest key greater than every key starting with
// prefix.
func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
