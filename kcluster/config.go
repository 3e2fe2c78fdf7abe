package kcluster

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Storm configuration keys set from Config.
const (
	KeyDebug           = "topology.debug"
	KeyWorkers         = "topology.workers"
	KeyMaxSpoutPending = "topology.max.spout.pending"
	KeyMessageTimeout  = "topology.message.timeout.secs"
)

// Config is the run configuration submitted together with a topology.
type Config struct {
	// Debug makes the runtime log every emitted tuple.
	Debug bool `yaml:"debug"`

	// Workers is the number of worker processes. Zero leaves it to the
	// runtime.
	Workers int `yaml:"workers"`

	// MaxSpoutPending caps the number of unacked tuples per spout task.
	MaxSpoutPending int `yaml:"max_spout_pending"`

	// MessageTimeout is rounded down to whole seconds.
	MessageTimeout time.Duration `yaml:"message_timeout"`

	// Extra holds additional keys passed to the runtime verbatim. Keys set
	// by the typed fields above take precedence.
	Extra map[string]any `yaml:"extra"`
}

// Validate rejects negative values.
func (c Config) Validate() error {
	switch {
	case c.Workers < 0:
		return fmt.Errorf("%w: workers is %d", ErrInvalidConfig, c.Workers)
	case c.MaxSpoutPending < 0:
		return fmt.Errorf("%w: max spout pending is %d", ErrInvalidConfig, c.MaxSpoutPending)
	case c.MessageTimeout < 0:
		return fmt.Errorf("%w: message timeout is %s", ErrInvalidConfig, c.MessageTimeout)
	}
	return nil
}

// Map returns the configuration keyed by Storm configuration names. Unset
// numeric fields are omitted; the debug flag is always present.
func (c Config) Map() map[string]any {
	m := make(map[string]any, len(c.Extra)+4)
	for k, v := range c.Extra {
		m[k] = v
	}
	m[KeyDebug] = c.Debug
	if c.Workers > 0 {
		m[KeyWorkers] = c.Workers
	}
	if c.MaxSpoutPending > 0 {
		m[KeyMaxSpoutPending] = c.MaxSpoutPending
	}
	if secs := int(c.MessageTimeout / time.Second); secs > 0 {
		m[KeyMessageTimeout] = secs
	}
	return m
}

// JSON encodes Map with sorted keys.
func (c Config) JSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

// LoadConfig reads a YAML run configuration. Unknown keys are an error. An
// empty file yields the zero Config.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	var c Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
