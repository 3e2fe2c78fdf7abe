// Package local runs topologies in an in-process cluster.
//
// The cluster accepts topologies and keeps a registry of the active ones.
// With WithStateDir the registry is stored in pebble, so a restarted cluster
// still knows which names are taken.
//
// The registry records submissions, not running processes: when the process
// that hosted the cluster exits, its topologies stop but their names stay
// registered until they are killed. Pass no state dir to get a registry
// that ends with the process.
package local

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/birdayz/kstorm/kcluster"
	"github.com/birdayz/kstorm/ktopology"
	"github.com/cockroachdb/pebble"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// ActiveTopology is a topology accepted by the cluster.
type ActiveTopology struct {
	// ID is the topology name followed by a random suffix.
	ID         string
	Name       string
	Config     kcluster.Config
	Topology   *ktopology.Topology
	LaunchedAt time.Time
}

// Cluster is an in-process kcluster runtime. It is its own Handle.
type Cluster struct {
	mu sync.Mutex

	log      logr.Logger
	stateDir string
	now      func() time.Time

	started bool
	refs    int
	db      *pebble.DB
	active  map[string]*ActiveTopology
}

var (
	_ kcluster.Runtime = (*Cluster)(nil)
	_ kcluster.Handle  = (*Cluster)(nil)
)

// Option is a function that configures a Cluster
type Option func(*Cluster)

// WithLogr sets the logger. Component wiring is logged at V(1) for
// topologies submitted with debug enabled.
var WithLogr = func(log logr.Logger) Option {
	return func(c *Cluster) {
		c.log = log
	}
}

// WithStateDir persists the registry of active topologies below dir.
var WithStateDir = func(dir string) Option {
	return func(c *Cluster) {
		c.stateDir = dir
	}
}

// New returns a stopped cluster. It starts on the first StartOrReuse.
func New(opts ...Option) *Cluster {
	c := &Cluster{
		log: logr.Discard(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	defaultOnce    sync.Once
	defaultCluster *Cluster
)

// Default returns the process wide cluster. It keeps nothing on disk.
func Default() *Cluster {
	defaultOnce.Do(func() {
		defaultCluster = New()
	})
	return defaultCluster
}

// StartOrReuse starts the cluster on first use. Later calls return the
// running cluster. Every successful call must be paired with a Close.
func (c *Cluster) StartOrReuse(ctx context.Context) (kcluster.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		c.refs++
		return c, nil
	}

	c.active = make(map[string]*ActiveTopology)
	if c.stateDir != "" {
		db, err := pebble.Open(filepath.Join(c.stateDir, "topologies"), &pebble.Options{})
		if err != nil {
			return nil, fmt.Errorf("%w: failed to open registry: %w", kcluster.ErrRuntimeUnavailable, err)
		}
		if err := c.restore(db); err != nil {
			return nil, multierr.Append(
				fmt.Errorf("%w: failed to restore registry: %w", kcluster.ErrRuntimeUnavailable, err),
				db.Close())
		}
		c.db = db
	}

	c.started = true
	c.refs = 1
	c.log.Info("Started local cluster", "stateDir", c.stateDir, "restored", len(c.active))
	return c, nil
}

func (c *Cluster) Submit(ctx context.Context, name string, conf kcluster.Config, t *ktopology.Topology) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := ktopology.Encode(&buf, t); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return fmt.Errorf("%w: cluster is not started", kcluster.ErrRuntimeUnavailable)
	}
	if existing, ok := c.active[name]; ok {
		return fmt.Errorf("%w: %q is running as %s", kcluster.ErrNameConflict, name, existing.ID)
	}

	at := &ActiveTopology{
		ID:         name + "-" + uuid.NewString(),
		Name:       name,
		Config:     conf,
		Topology:   t,
		LaunchedAt: c.now(),
	}
	if c.db != nil {
		if err := c.persist(at, buf.Bytes()); err != nil {
			return err
		}
	}
	c.active[name] = at

	c.log.Info("Submitted topology", "name", name, "id", at.ID,
		"spouts", len(t.Spouts())+len(t.StateSpouts()), "bolts", len(t.Bolts()), "debug", conf.Debug)
	if conf.Debug {
		c.logWiring(name, t)
	}
	return nil
}

func (c *Cluster) logWiring(name string, t *ktopology.Topology) {
	g, err := ktopology.NewGraph(t)
	if err != nil {
		return
	}
	for _, n := range g.TopologicalOrder() {
		comp := t.Components[n]
		inputs := make([]string, 0, len(comp.Inputs))
		for _, id := range comp.SortedInputs() {
			inputs = append(inputs, id.String()+" "+comp.Inputs[id].String())
		}
		c.log.V(1).Info("Component", "topology", name, "name", n, "kind", comp.Kind.String(),
			"parallelism", comp.Parallelism, "inputs", inputs)
	}
}

func (c *Cluster) Kill(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.active[name]
	if !ok {
		return fmt.Errorf("%w: %q", kcluster.ErrNotFound, name)
	}
	if c.db != nil {
		if err := c.db.Delete(registryKey(name), pebble.Sync); err != nil {
			return fmt.Errorf("failed to remove %q from registry: %w", name, err)
		}
	}
	delete(c.active, name)
	c.log.Info("Killed topology", "name", name, "id", at.ID, "uptime", c.now().Sub(at.LaunchedAt))
	return nil
}

func (c *Cluster) Active(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.active))
	for name := range c.active {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Topology returns the active topology registered under name.
func (c *Cluster) Topology(name string) (*ActiveTopology, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.active[name]
	return at, ok
}

// Close releases one StartOrReuse. The last release stops the cluster;
// active topologies are then forgotten unless the registry is persisted.
// The cluster can be started again.
func (c *Cluster) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	if c.refs--; c.refs > 0 {
		return nil
	}
	c.started = false
	c.active = nil

	var err error
	if c.db != nil {
		err = multierr.Combine(c.db.Flush(), c.db.Close())
		c.db = nil
	}
	c.log.Info("Stopped local cluster")
	return err
}
