// Package kclustertest provides an in-memory kcluster.Runtime for tests.
package kclustertest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/birdayz/kstorm/kcluster"
	"github.com/birdayz/kstorm/ktopology"
)

// Submission is one accepted Submit call.
type Submission struct {
	Name     string
	Config   kcluster.Config
	Topology *ktopology.Topology
}

// Runtime records submissions in memory. The zero value is ready to use.
type Runtime struct {
	mu          sync.Mutex
	startErr    error
	starts      int
	refs        int
	closed      bool
	active      map[string]Submission
	submissions []Submission
}

var _ kcluster.Runtime = (*Runtime)(nil)

// New returns an empty runtime.
func New() *Runtime {
	return &Runtime{}
}

// FailStart makes every following StartOrReuse fail with err. A nil err
// restores normal behavior.
func (r *Runtime) FailStart(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startErr = err
}

func (r *Runtime) StartOrReuse(ctx context.Context) (kcluster.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}
	if r.active == nil {
		r.active = make(map[string]Submission)
	}
	r.starts++
	r.refs++
	r.closed = false
	return (*handle)(r), nil
}

// Starts returns how often StartOrReuse succeeded.
func (r *Runtime) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

// Submissions returns all accepted submissions in order, including killed
// ones.
func (r *Runtime) Submissions() []Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.submissions)
}

// Closed reports whether every handle obtained from StartOrReuse was closed.
func (r *Runtime) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type handle Runtime

func (h *handle) Submit(ctx context.Context, name string, conf kcluster.Config, t *ktopology.Topology) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("%w: closed", kcluster.ErrRuntimeUnavailable)
	}
	if _, ok := h.active[name]; ok {
		return fmt.Errorf("%w: %q", kcluster.ErrNameConflict, name)
	}
	s := Submission{Name: name, Config: conf, Topology: t}
	h.active[name] = s
	h.submissions = append(h.submissions, s)
	return nil
}

func (h *handle) Kill(ctx context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.active[name]; !ok {
		return fmt.Errorf("%w: %q", kcluster.ErrNotFound, name)
	}
	delete(h.active, name)
	return nil
}

func (h *handle) Active(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.active))
	for name := range h.active {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs > 0 {
		h.refs--
	}
	h.closed = h.refs == 0
	return nil
}
