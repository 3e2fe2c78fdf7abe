// Package kcluster defines the contract between a submission client and the
// cluster runtime that executes topologies.
//
// A Runtime is started lazily, or an already running instance is reused, and
// hands out a Handle. The Handle accepts topologies under unique names. It
// only acknowledges acceptance; running the topology is up to the runtime.
package kcluster

import (
	"context"
	"errors"

	"github.com/birdayz/kstorm/ktopology"
)

var (
	// ErrNameConflict is returned when a topology with the same name is
	// already active.
	ErrNameConflict = errors.New("kcluster: topology name already active")

	// ErrRuntimeUnavailable is returned when the runtime can not be started
	// or reached.
	ErrRuntimeUnavailable = errors.New("kcluster: runtime unavailable")

	// ErrNotFound is returned when killing a topology that is not active.
	ErrNotFound = errors.New("kcluster: topology not found")

	// ErrInvalidConfig is returned for run configurations with out of range
	// values.
	ErrInvalidConfig = errors.New("kcluster: invalid config")
)

// Runtime starts a cluster runtime or reuses the one that is already running.
type Runtime interface {
	// StartOrReuse returns a handle to the running runtime, starting it if
	// needed. Every handle obtained must be closed; the runtime stops when
	// the last one is.
	StartOrReuse(ctx context.Context) (Handle, error)
}

// Handle is a started runtime.
type Handle interface {
	// Submit starts executing t under name. It returns once the runtime has
	// accepted the topology.
	Submit(ctx context.Context, name string, conf Config, t *ktopology.Topology) error

	// Kill stops the topology running under name.
	Kill(ctx context.Context, name string) error

	// Active returns the names of all running topologies in sorted order.
	Active(ctx context.Context) ([]string, error)

	// Close releases the handle.
	Close() error
}
