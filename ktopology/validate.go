package ktopology

import (
	"fmt"
	"strings"
)

// Validate checks the structural invariants of t. Components are checked
// in name order and the first violation is returned.
//
// Validation covers component names, the kind specific input rules,
// parallelism hints, executables, groupings and, last, references to
// upstream components. It does not check groupings against the data that
// will flow through them.
func (t *Topology) Validate() error {
	for _, name := range t.Names() {
		c := t.Components[name]
		if err := validateName(name); err != nil {
			return err
		}
		if c.Name != name {
			return fmt.Errorf("%w: %q registered as %q", ErrInvalidComponentName, c.Name, name)
		}
		if err := c.validate(); err != nil {
			return err
		}
	}

	if _, err := NewGraph(t); err != nil {
		return err
	}
	return nil
}

// validateName rejects empty names and the "__" prefix, which the runtime
// reserves for its own components.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidComponentName)
	}
	if strings.HasPrefix(name, "__") {
		return fmt.Errorf("%w: %q uses the reserved prefix \"__\"", ErrInvalidComponentName, name)
	}
	return nil
}

func (c *Component) validate() error {
	switch c.Kind {
	case KindSpout, KindStateSpout:
		if len(c.Inputs) > 0 {
			return fmt.Errorf("%w: %s %q has %d inputs", ErrInvalidComponent, c.Kind, c.Name, len(c.Inputs))
		}
	case KindBolt:
		if len(c.Inputs) == 0 {
			return fmt.Errorf("%w: bolt %q has no inputs", ErrInvalidComponent, c.Name)
		}
	default:
		return fmt.Errorf("%w: %q has unknown kind %d", ErrInvalidComponent, c.Name, c.Kind)
	}

	if c.Parallelism < 0 {
		return fmt.Errorf("%w: %s is %d", ErrInvalidParallelism, c.Name, c.Parallelism)
	}

	switch c.Object.Kind {
	case ObjectSerialized, ObjectShell, ObjectJava:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidComponentObject, c.Name)
	}
	for i, arg := range c.Object.Java.Args {
		switch arg.Value.(type) {
		case int32, int64, string, bool, []byte, float64:
		default:
			return fmt.Errorf("%w: %q argument %d has type %T", ErrInvalidComponentObject, c.Name, i, arg.Value)
		}
	}

	for _, id := range c.SortedInputs() {
		g := c.Inputs[id]
		switch g.Kind {
		case GroupingFields:
			if len(g.Fields) == 0 {
				return &EmptyFieldsError{Component: c.Name, Upstream: id}
			}
		case GroupingShuffle, GroupingAll, GroupingGlobal, GroupingDirect,
			GroupingNone, GroupingLocalOrShuffle, GroupingCustomSerialized:
		default:
			return fmt.Errorf("%w: %q input %q", ErrInvalidGrouping, c.Name, id)
		}
	}
	return nil
}
