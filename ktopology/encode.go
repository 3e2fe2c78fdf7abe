package ktopology

import (
	"io"
	"slices"

	"github.com/birdayz/kstorm/kthrift"
)

// Encode validates t and writes it as an encoded StormTopology.
func Encode(w io.Writer, t *Topology) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return kthrift.NewEncoder(w).Encode(Marshal(t))
}

// Marshal converts t to its wire struct. Map entries are written in sorted
// order so equal topologies produce equal bytes.
func Marshal(t *Topology) *kthrift.Struct {
	root := &kthrift.Struct{}
	for _, kind := range []ComponentKind{KindSpout, KindBolt, KindStateSpout} {
		m := &kthrift.Map{Key: kthrift.TypeString, Elem: kthrift.TypeStruct}
		for _, c := range t.ofKind(kind) {
			m.Entries = append(m.Entries, kthrift.MapEntry{
				Key:   kthrift.Binary(c.Name),
				Value: marshalComponent(c),
			})
		}
		root.Set(componentFieldIDs[kind], m)
	}
	return root
}

func marshalComponent(c *Component) *kthrift.Struct {
	s := &kthrift.Struct{}
	s.Set(fieldObject, marshalObject(c.Object))
	s.Set(fieldCommon, marshalCommon(c))
	return s
}

func marshalCommon(c *Component) *kthrift.Struct {
	inputs := &kthrift.Map{Key: kthrift.TypeStruct, Elem: kthrift.TypeStruct}
	for _, id := range c.SortedInputs() {
		key := &kthrift.Struct{}
		key.Set(fieldStreamComponent, kthrift.Binary(id.Component))
		key.Set(fieldStreamID, kthrift.Binary(id.Stream))
		inputs.Entries = append(inputs.Entries, kthrift.MapEntry{Key: key, Value: marshalGrouping(c.Inputs[id])})
	}

	streamIDs := make([]string, 0, len(c.Streams))
	for id := range c.Streams {
		streamIDs = append(streamIDs, id)
	}
	slices.Sort(streamIDs)
	streams := &kthrift.Map{Key: kthrift.TypeString, Elem: kthrift.TypeStruct}
	for _, id := range streamIDs {
		info := c.Streams[id]
		v := &kthrift.Struct{}
		v.Set(fieldOutputFields, stringList(info.OutputFields))
		v.Set(fieldDirect, kthrift.Bool(info.Direct))
		streams.Entries = append(streams.Entries, kthrift.MapEntry{Key: kthrift.Binary(id), Value: v})
	}

	s := &kthrift.Struct{}
	s.Set(fieldInputs, inputs)
	s.Set(fieldStreams, streams)
	if c.Parallelism > 0 {
		s.Set(fieldParallelism, kthrift.I32(c.Parallelism))
	}
	if c.JSONConf != "" {
		s.Set(fieldJSONConf, kthrift.Binary(c.JSONConf))
	}
	return s
}

func marshalGrouping(g Grouping) *kthrift.Struct {
	s := &kthrift.Struct{}
	id, ok := groupingIDs[g.Kind]
	if !ok {
		// Invalid groupings are rejected by Validate; an empty union keeps
		// the output decodable.
		return s
	}
	switch g.Kind {
	case GroupingFields:
		s.Set(id, stringList(g.Fields))
	case GroupingCustomSerialized:
		s.Set(id, kthrift.Binary(g.Custom))
	default:
		s.Set(id, &kthrift.Struct{})
	}
	return s
}

func marshalObject(obj ComponentObject) *kthrift.Struct {
	s := &kthrift.Struct{}
	switch obj.Kind {
	case ObjectSerialized:
		s.Set(fieldSerializedJava, kthrift.Binary(obj.Serialized))
	case ObjectShell:
		shell := &kthrift.Struct{}
		shell.Set(fieldShellCommand, kthrift.Binary(obj.Shell.Command))
		shell.Set(fieldShellScript, kthrift.Binary(obj.Shell.Script))
		s.Set(fieldShell, shell)
	case ObjectJava:
		java := &kthrift.Struct{}
		java.Set(fieldClassName, kthrift.Binary(obj.Java.ClassName))
		args := &kthrift.List{Elem: kthrift.TypeStruct}
		for _, a := range obj.Java.Args {
			args.Values = append(args.Values, marshalJavaArg(a))
		}
		java.Set(fieldArgs, args)
		s.Set(fieldJavaObject, java)
	}
	return s
}

func marshalJavaArg(a JavaArg) *kthrift.Struct {
	s := &kthrift.Struct{}
	switch v := a.Value.(type) {
	case int32:
		s.Set(fieldArgInt, kthrift.I32(v))
	case int64:
		s.Set(fieldArgLong, kthrift.I64(v))
	case string:
		s.Set(fieldArgString, kthrift.Binary(v))
	case bool:
		s.Set(fieldArgBool, kthrift.Bool(v))
	case []byte:
		s.Set(fieldArgBinary, kthrift.Binary(v))
	case float64:
		s.Set(fieldArgDouble, kthrift.Double(v))
	}
	return s
}

func stringList(values []string) *kthrift.List {
	l := &kthrift.List{Elem: kthrift.TypeString, Values: make([]kthrift.Value, 0, len(values))}
	for _, v := range values {
		l.Values = append(l.Values, kthrift.Binary(v))
	}
	return l
}
