package ktopology

import (
	"fmt"
	"strings"
)

// GroupingKind selects how an upstream stream is spread across the
// instances of the subscribing component.
type GroupingKind int

const (
	GroupingInvalid GroupingKind = iota
	// GroupingShuffle distributes tuples randomly.
	GroupingShuffle
	// GroupingFields sends tuples with equal values in Fields to the same
	// instance.
	GroupingFields
	// GroupingAll broadcasts every tuple to every instance.
	GroupingAll
	// GroupingGlobal sends every tuple to a single instance.
	GroupingGlobal
	// GroupingDirect lets the producer pick the instance.
	GroupingDirect
	// GroupingNone leaves the choice to the runtime.
	GroupingNone
	// GroupingLocalOrShuffle prefers instances in the same worker process.
	GroupingLocalOrShuffle
	// GroupingCustomSerialized carries a serialized custom grouping.
	GroupingCustomSerialized
)

var groupingNames = map[GroupingKind]string{
	GroupingShuffle:          "shuffle",
	GroupingFields:           "fields",
	GroupingAll:              "all",
	GroupingGlobal:           "global",
	GroupingDirect:           "direct",
	GroupingNone:             "none",
	GroupingLocalOrShuffle:   "local-or-shuffle",
	GroupingCustomSerialized: "custom-serialized",
}

func (k GroupingKind) String() string {
	if name, ok := groupingNames[k]; ok {
		return name
	}
	return "invalid"
}

// Grouping is the routing policy of one input.
type Grouping struct {
	Kind GroupingKind
	// Fields is set for GroupingFields.
	Fields []string
	// Custom is set for GroupingCustomSerialized.
	Custom []byte
}

// Shuffle distributes tuples randomly across instances.
func Shuffle() Grouping { return Grouping{Kind: GroupingShuffle} }

// All broadcasts every tuple to every instance.
func All() Grouping { return Grouping{Kind: GroupingAll} }

// Global sends every tuple to a single instance.
func Global() Grouping { return Grouping{Kind: GroupingGlobal} }

// Direct lets the emitting component pick the receiving instance.
func Direct() Grouping { return Grouping{Kind: GroupingDirect} }

// NoGrouping leaves the choice of instance to the runtime.
func NoGrouping() Grouping { return Grouping{Kind: GroupingNone} }

// LocalOrShuffle prefers instances in the same worker process.
func LocalOrShuffle() Grouping { return Grouping{Kind: GroupingLocalOrShuffle} }

// Fields partitions by the values of the named tuple fields.
func Fields(fields ...string) Grouping {
	return Grouping{Kind: GroupingFields, Fields: fields}
}

// CustomSerialized wraps a serialized grouping implementation.
func CustomSerialized(b []byte) Grouping {
	return Grouping{Kind: GroupingCustomSerialized, Custom: b}
}

func (g Grouping) String() string {
	if g.Kind == GroupingFields {
		return fmt.Sprintf("fields(%s)", strings.Join(g.Fields, ","))
	}
	return g.Kind.String()
}

// ObjectKind tells how a component's executable is shipped.
type ObjectKind int

const (
	ObjectInvalid ObjectKind = iota
	// ObjectSerialized is an opaque serialized implementation.
	ObjectSerialized
	// ObjectShell runs an external process speaking the multilang protocol.
	ObjectShell
	// ObjectJava instantiates a JVM class with constructor arguments.
	ObjectJava
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectSerialized:
		return "serialized"
	case ObjectShell:
		return "shell"
	case ObjectJava:
		return "java"
	default:
		return "invalid"
	}
}

// ShellComponent runs Script with Command, e.g. "python" "splitsentence.py".
type ShellComponent struct {
	Command string
	Script  string
}

// JavaArg is one constructor argument. Value holds an int32, int64,
// string, bool, []byte or float64.
type JavaArg struct {
	Value any
}

// JavaObject names a class and its constructor arguments.
type JavaObject struct {
	ClassName string
	Args      []JavaArg
}

// ComponentObject is the executable part of a component.
type ComponentObject struct {
	Kind       ObjectKind
	Serialized []byte
	Shell      ShellComponent
	Java       JavaObject
}

// Serialized returns an object carrying an opaque payload.
func Serialized(payload []byte) ComponentObject {
	return ComponentObject{Kind: ObjectSerialized, Serialized: payload}
}

// Shell returns an object run as an external process.
func Shell(command, script string) ComponentObject {
	return ComponentObject{Kind: ObjectShell, Shell: ShellComponent{Command: command, Script: script}}
}

// Java returns an object instantiated from a class name.
func Java(className string, args ...JavaArg) ComponentObject {
	return ComponentObject{Kind: ObjectJava, Java: JavaObject{ClassName: className, Args: args}}
}
