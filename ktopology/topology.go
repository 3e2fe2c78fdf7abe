package ktopology

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultStream is the stream id components emit on unless they declare
// otherwise.
const DefaultStream = "default"

// ComponentKind distinguishes data sources from processing components.
type ComponentKind int

const (
	KindSpout ComponentKind = iota
	KindBolt
	KindStateSpout
)

func (k ComponentKind) String() string {
	switch k {
	case KindSpout:
		return "spout"
	case KindBolt:
		return "bolt"
	case KindStateSpout:
		return "state-spout"
	default:
		return "unknown"
	}
}

// StreamID names one output stream of a component.
type StreamID struct {
	Component string
	Stream    string
}

func (id StreamID) String() string {
	return id.Component + "/" + id.Stream
}

func (id StreamID) compare(other StreamID) int {
	if c := strings.Compare(id.Component, other.Component); c != 0 {
		return c
	}
	return strings.Compare(id.Stream, other.Stream)
}

// StreamInfo declares the tuple fields of an output stream.
type StreamInfo struct {
	OutputFields []string
	Direct       bool
}

// Component is a spout or bolt.
type Component struct {
	Name   string
	Kind   ComponentKind
	Object ComponentObject

	// Inputs maps each subscribed upstream stream to the grouping that
	// routes it across this component's instances. Spouts have none.
	Inputs map[StreamID]Grouping

	// Streams declares this component's output streams by id.
	Streams map[string]StreamInfo

	// Parallelism is the requested number of instances, 0 if unset.
	Parallelism int32

	// JSONConf is the component specific configuration, passed through
	// verbatim.
	JSONConf string
}

// NewSpout returns a spout without inputs.
func NewSpout(name string, obj ComponentObject) *Component {
	return newComponent(name, KindSpout, obj)
}

// NewBolt returns a bolt. Bolts need at least one input before they
// validate.
func NewBolt(name string, obj ComponentObject) *Component {
	return newComponent(name, KindBolt, obj)
}

func newComponent(name string, kind ComponentKind, obj ComponentObject) *Component {
	return &Component{
		Name:    name,
		Kind:    kind,
		Object:  obj,
		Inputs:  make(map[StreamID]Grouping),
		Streams: make(map[string]StreamInfo),
	}
}

// Subscribe reads the default stream of upstream with grouping g.
func (c *Component) Subscribe(upstream string, g Grouping) *Component {
	return c.SubscribeStream(StreamID{Component: upstream, Stream: DefaultStream}, g)
}

// SubscribeStream reads a specific stream with grouping g.
func (c *Component) SubscribeStream(id StreamID, g Grouping) *Component {
	c.Inputs[id] = g
	return c
}

// Declare adds an output stream.
func (c *Component) Declare(stream string, fields ...string) *Component {
	c.Streams[stream] = StreamInfo{OutputFields: fields}
	return c
}

// WithParallelism sets the parallelism hint.
func (c *Component) WithParallelism(n int32) *Component {
	c.Parallelism = n
	return c
}

// Upstreams returns the distinct names of the components c reads from, in
// sorted order.
func (c *Component) Upstreams() []string {
	names := make([]string, 0, len(c.Inputs))
	for id := range c.Inputs {
		names = append(names, id.Component)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// SortedInputs returns the subscribed streams ordered by component, then
// stream.
func (c *Component) SortedInputs() []StreamID {
	ids := make([]StreamID, 0, len(c.Inputs))
	for id := range c.Inputs {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, StreamID.compare)
	return ids
}

// Topology is a set of uniquely named components. It is not mutated after
// Build returns it.
type Topology struct {
	Components map[string]*Component
}

// New returns an empty topology.
func New() *Topology {
	return &Topology{Components: make(map[string]*Component)}
}

// Add registers c. Names are unique across all component kinds.
func (t *Topology) Add(c *Component) error {
	if _, exists := t.Components[c.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateComponent, c.Name)
	}
	t.Components[c.Name] = c
	return nil
}

// MustAdd is like Add but panics on error.
func (t *Topology) MustAdd(components ...*Component) *Topology {
	for _, c := range components {
		if err := t.Add(c); err != nil {
			panic(err)
		}
	}
	return t
}

// Component returns the component with the given name.
func (t *Topology) Component(name string) (*Component, bool) {
	c, ok := t.Components[name]
	return c, ok
}

// Names returns all component names in sorted order.
func (t *Topology) Names() []string {
	names := make([]string, 0, len(t.Components))
	for name := range t.Components {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Spouts returns the spouts ordered by name.
func (t *Topology) Spouts() []*Component {
	return t.ofKind(KindSpout)
}

// Bolts returns the bolts ordered by name.
func (t *Topology) Bolts() []*Component {
	return t.ofKind(KindBolt)
}

// StateSpouts returns the state spouts ordered by name.
func (t *Topology) StateSpouts() []*Component {
	return t.ofKind(KindStateSpout)
}

func (t *Topology) ofKind(kind ComponentKind) []*Component {
	var out []*Component
	for _, name := range t.Names() {
		if c := t.Components[name]; c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Payloads returns the serialized executable of every component that ships
// one. The bytes are opaque to this package.
func (t *Topology) Payloads() map[string][]byte {
	payloads := make(map[string][]byte)
	for name, c := range t.Components {
		if c.Object.Kind == ObjectSerialized {
			payloads[name] = c.Object.Serialized
		}
	}
	return payloads
}
