// Package kstorm submits stream processing topologies to a cluster runtime.
//
// A topology is usually read from its encoded form with SubmitFile, or built
// with the ktopology package and passed to Submit. The Client validates it
// and hands it to a kcluster.Runtime, which is started on first use.
//
//	client := kstorm.New(local.Default())
//	defer client.Close()
//	err := client.SubmitFile(ctx, "topology.bin", "wordcount", kcluster.Config{Debug: true})
package kstorm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/birdayz/kstorm/kcluster"
	"github.com/birdayz/kstorm/kcluster/local"
	"github.com/birdayz/kstorm/ktopology"
	"github.com/go-logr/logr"
)

var (
	// ErrInvalidName is returned for empty topology names and names the
	// runtime can not use as an identifier.
	ErrInvalidName = errors.New("kstorm: invalid topology name")

	// ErrNilTopology is returned when Submit is called without a topology.
	ErrNilTopology = errors.New("kstorm: topology is nil")
)

// Submission errors reported by the runtime.
var (
	ErrNameConflict       = kcluster.ErrNameConflict
	ErrRuntimeUnavailable = kcluster.ErrRuntimeUnavailable
	ErrNotFound           = kcluster.ErrNotFound
)

// Client submits topologies to one runtime. It is safe for concurrent use.
//
// Clients may share a runtime. Each client holds one handle from its first
// operation until Close, and the runtime keeps running while any handle is
// held.
type Client struct {
	runtime kcluster.Runtime
	log     logr.Logger

	mu sync.Mutex
	h  kcluster.Handle
}

// New returns a client submitting to runtime.
func New(runtime kcluster.Runtime, opts ...Option) *Client {
	c := &Client{
		runtime: runtime,
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewLocal returns a client for the process wide in-process cluster.
func NewLocal(opts ...Option) *Client {
	return New(local.Default(), opts...)
}

// Submit hands t to the runtime under name. It returns once the runtime has
// accepted the topology and does not wait for it to run.
//
// Model errors from validation are returned unchanged, before the runtime
// is touched. A runtime that can not be started yields ErrRuntimeUnavailable;
// a name that is already taken yields ErrNameConflict.
func (c *Client) Submit(ctx context.Context, name string, t *ktopology.Topology, conf kcluster.Config) error {
	if err := validateName(name); err != nil {
		return err
	}
	if t == nil {
		return ErrNilTopology
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}

	h, err := c.handle(ctx)
	if err != nil {
		return err
	}
	if err := h.Submit(ctx, name, conf, t); err != nil {
		return fmt.Errorf("failed to submit topology %q: %w", name, err)
	}

	c.log.Info("Submitted topology", "name", name, "components", len(t.Components), "debug", conf.Debug)
	return nil
}

// SubmitFile reads the encoded topology stored at path and submits it.
func (c *Client) SubmitFile(ctx context.Context, path, name string, conf kcluster.Config) error {
	if err := validateName(name); err != nil {
		return err
	}
	t, err := ktopology.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read topology %s: %w", path, err)
	}
	c.log.V(1).Info("Decoded topology", "path", path, "components", t.Names())
	return c.Submit(ctx, name, t, conf)
}

// Kill stops the topology running under name.
func (c *Client) Kill(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	h, err := c.handle(ctx)
	if err != nil {
		return err
	}
	if err := h.Kill(ctx, name); err != nil {
		return fmt.Errorf("failed to kill topology %q: %w", name, err)
	}
	c.log.Info("Killed topology", "name", name)
	return nil
}

// Active lists the names of the running topologies.
func (c *Client) Active(ctx context.Context) ([]string, error) {
	h, err := c.handle(ctx)
	if err != nil {
		return nil, err
	}
	return h.Active(ctx)
}

// Close releases the runtime handle held by the client. The runtime stops
// once no client holds it. A later operation obtains a new handle.
func (c *Client) Close() error {
	c.mu.Lock()
	h := c.h
	c.h = nil
	c.mu.Unlock()

	if h == nil {
		return nil
	}
	return h.Close()
}

func (c *Client) handle(ctx context.Context) (kcluster.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.h != nil {
		return c.h, nil
	}

	h, err := c.runtime.StartOrReuse(ctx)
	if err != nil {
		if errors.Is(err, kcluster.ErrRuntimeUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", kcluster.ErrRuntimeUnavailable, err)
	}
	c.h = h
	return h, nil
}

// validateName rejects names that can not be used as an identifier by the
// runtime, like Storm does.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, `/.:\`) {
		return fmt.Errorf("%w: %q contains one of / . : \\", ErrInvalidName, name)
	}
	return nil
}
