package ktopology

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/birdayz/kstorm/kthrift"
)

// Decode reads one encoded topology from r and builds it.
func Decode(r io.Reader, opts ...kthrift.DecoderOption) (*Topology, error) {
	root, err := kthrift.NewDecoder(r, opts...).ReadStruct()
	if err != nil {
		return nil, err
	}
	return Build(root)
}

// ReadFile decodes the topology stored in path. The file is closed before
// ReadFile returns, whether or not decoding succeeded.
func ReadFile(path string, opts ...kthrift.DecoderOption) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	opts = append([]kthrift.DecoderOption{kthrift.WithRemaining(fi.Size())}, opts...)
	return Decode(bufio.NewReaderSize(f, 2048), opts...)
}

// Build interprets a decoded StormTopology struct. Unknown field ids are
// skipped at every level. The result is validated before it is returned.
func Build(root kthrift.Value) (*Topology, error) {
	s, err := asStruct(root, "topology")
	if err != nil {
		return nil, err
	}

	t := New()
	for _, f := range s.Fields {
		kind, ok := componentFields[f.ID]
		if !ok {
			continue
		}
		path := kind.String() + "s"
		m, err := asMap(f.Value, path)
		if err != nil {
			return nil, err
		}
		for _, e := range m.Entries {
			name, err := asString(e.Key, path+" key")
			if err != nil {
				return nil, err
			}
			c, err := buildComponent(name, kind, e.Value, fmt.Sprintf("%s[%q]", path, name))
			if err != nil {
				return nil, err
			}
			if err := t.Add(c); err != nil {
				return nil, err
			}
		}
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func buildComponent(name string, kind ComponentKind, v kthrift.Value, path string) (*Component, error) {
	s, err := asStruct(v, path)
	if err != nil {
		return nil, err
	}
	c := newComponent(name, kind, ComponentObject{})

	objValue, ok := s.Field(fieldObject)
	if !ok {
		return nil, fmt.Errorf("%w: %s.object", ErrMissingField, path)
	}
	if c.Object, err = buildObject(objValue, path+".object"); err != nil {
		return nil, err
	}

	commonValue, ok := s.Field(fieldCommon)
	if !ok {
		return nil, fmt.Errorf("%w: %s.common", ErrMissingField, path)
	}
	if err := buildCommon(c, commonValue, path+".common"); err != nil {
		return nil, err
	}
	return c, nil
}

func buildCommon(c *Component, v kthrift.Value, path string) error {
	s, err := asStruct(v, path)
	if err != nil {
		return err
	}
	for _, f := range s.Fields {
		switch f.ID {
		case fieldInputs:
			m, err := asMap(f.Value, path+".inputs")
			if err != nil {
				return err
			}
			for _, e := range m.Entries {
				id, err := buildStreamID(e.Key, path+".inputs key")
				if err != nil {
					return err
				}
				g, err := buildGrouping(e.Value, fmt.Sprintf("%s.inputs[%q]", path, id))
				if err != nil {
					return err
				}
				c.Inputs[id] = g
			}
		case fieldStreams:
			m, err := asMap(f.Value, path+".streams")
			if err != nil {
				return err
			}
			for _, e := range m.Entries {
				id, err := asString(e.Key, path+".streams key")
				if err != nil {
					return err
				}
				info, err := buildStreamInfo(e.Value, fmt.Sprintf("%s.streams[%q]", path, id))
				if err != nil {
					return err
				}
				c.Streams[id] = info
			}
		case fieldParallelism:
			n, ok := f.Value.(kthrift.I32)
			if !ok {
				return mismatch(path+".parallelism_hint", kthrift.TypeI32, f.Value)
			}
			if n < 1 {
				return fmt.Errorf("%w: %s is %d", ErrInvalidParallelism, c.Name, n)
			}
			c.Parallelism = int32(n)
		case fieldJSONConf:
			if c.JSONConf, err = asString(f.Value, path+".json_conf"); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildStreamID(v kthrift.Value, path string) (StreamID, error) {
	s, err := asStruct(v, path)
	if err != nil {
		return StreamID{}, err
	}
	var id StreamID
	component, ok := s.Field(fieldStreamComponent)
	if !ok {
		return StreamID{}, fmt.Errorf("%w: %s.componentId", ErrMissingField, path)
	}
	if id.Component, err = asString(component, path+".componentId"); err != nil {
		return StreamID{}, err
	}
	stream, ok := s.Field(fieldStreamID)
	if !ok {
		return StreamID{}, fmt.Errorf("%w: %s.streamId", ErrMissingField, path)
	}
	if id.Stream, err = asString(stream, path+".streamId"); err != nil {
		return StreamID{}, err
	}
	return id, nil
}

func buildStreamInfo(v kthrift.Value, path string) (StreamInfo, error) {
	s, err := asStruct(v, path)
	if err != nil {
		return StreamInfo{}, err
	}
	var info StreamInfo
	if fields, ok := s.Field(fieldOutputFields); ok {
		if info.OutputFields, err = asStringList(fields, path+".output_fields"); err != nil {
			return StreamInfo{}, err
		}
	}
	if direct, ok := s.Field(fieldDirect); ok {
		b, ok := direct.(kthrift.Bool)
		if !ok {
			return StreamInfo{}, mismatch(path+".direct", kthrift.TypeBool, direct)
		}
		info.Direct = bool(b)
	}
	return info, nil
}

func buildGrouping(v kthrift.Value, path string) (Grouping, error) {
	s, err := asStruct(v, path)
	if err != nil {
		return Grouping{}, err
	}

	var (
		g     Grouping
		found int
	)
	for _, f := range s.Fields {
		kind, ok := groupingFields[f.ID]
		if !ok {
			continue
		}
		found++
		g = Grouping{Kind: kind}
		switch kind {
		case GroupingFields:
			if g.Fields, err = asStringList(f.Value, path+".fields"); err != nil {
				return Grouping{}, err
			}
		case GroupingCustomSerialized:
			b, ok := f.Value.(kthrift.Binary)
			if !ok {
				return Grouping{}, mismatch(path+".custom_serialized", kthrift.TypeString, f.Value)
			}
			g.Custom = []byte(b)
		default:
			if _, err := asStruct(f.Value, path+"."+kind.String()); err != nil {
				return Grouping{}, err
			}
		}
	}
	if found != 1 {
		return Grouping{}, fmt.Errorf("%w: %s sets %d supported members, want 1", ErrInvalidGrouping, path, found)
	}
	return g, nil
}

func buildObject(v kthrift.Value, path string) (ComponentObject, error) {
	s, err := asStruct(v, path)
	if err != nil {
		return ComponentObject{}, err
	}

	var (
		obj   ComponentObject
		found int
	)
	for _, f := range s.Fields {
		switch f.ID {
		case fieldSerializedJava:
			b, ok := f.Value.(kthrift.Binary)
			if !ok {
				return ComponentObject{}, mismatch(path+".serialized_java", kthrift.TypeString, f.Value)
			}
			obj = Serialized([]byte(b))
		case fieldShell:
			shell, err := asStruct(f.Value, path+".shell")
			if err != nil {
				return ComponentObject{}, err
			}
			obj = ComponentObject{Kind: ObjectShell}
			if cmd, ok := shell.Field(fieldShellCommand); ok {
				if obj.Shell.Command, err = asString(cmd, path+".shell.execution_command"); err != nil {
					return ComponentObject{}, err
				}
			}
			if script, ok := shell.Field(fieldShellScript); ok {
				if obj.Shell.Script, err = asString(script, path+".shell.script"); err != nil {
					return ComponentObject{}, err
				}
			}
		case fieldJavaObject:
			java, err := buildJavaObject(f.Value, path+".java_object")
			if err != nil {
				return ComponentObject{}, err
			}
			obj = ComponentObject{Kind: ObjectJava, Java: java}
		default:
			continue
		}
		found++
	}
	if found != 1 {
		return ComponentObject{}, fmt.Errorf("%w: %s sets %d supported members, want 1", ErrInvalidComponentObject, path, found)
	}
	return obj, nil
}

func buildJavaObject(v kthrift.Value, path string) (JavaObject, error) {
	s, err := asStruct(v, path)
	if err != nil {
		return JavaObject{}, err
	}
	var java JavaObject
	className, ok := s.Field(fieldClassName)
	if !ok {
		return JavaObject{}, fmt.Errorf("%w: %s.full_class_name", ErrMissingField, path)
	}
	if java.ClassName, err = asString(className, path+".full_class_name"); err != nil {
		return JavaObject{}, err
	}
	argsValue, ok := s.Field(fieldArgs)
	if !ok {
		return java, nil
	}
	args, ok := argsValue.(*kthrift.List)
	if !ok {
		return JavaObject{}, mismatch(path+".args_list", kthrift.TypeList, argsValue)
	}
	for i, a := range args.Values {
		arg, err := buildJavaArg(a, fmt.Sprintf("%s.args_list[%d]", path, i))
		if err != nil {
			return JavaObject{}, err
		}
		java.Args = append(java.Args, arg)
	}
	return java, nil
}

func buildJavaArg(v kthrift.Value, path string) (JavaArg, error) {
	s, err := asStruct(v, path)
	if err != nil {
		return JavaArg{}, err
	}

	var (
		arg   JavaArg
		found int
	)
	for _, f := range s.Fields {
		var ok bool
		var want kthrift.Type
		switch f.ID {
		case fieldArgInt:
			var n kthrift.I32
			n, ok = f.Value.(kthrift.I32)
			arg, want = JavaArg{Value: int32(n)}, kthrift.TypeI32
		case fieldArgLong:
			var n kthrift.I64
			n, ok = f.Value.(kthrift.I64)
			arg, want = JavaArg{Value: int64(n)}, kthrift.TypeI64
		case fieldArgString:
			var b kthrift.Binary
			b, ok = f.Value.(kthrift.Binary)
			arg, want = JavaArg{Value: string(b)}, kthrift.TypeString
		case fieldArgBinary:
			var b kthrift.Binary
			b, ok = f.Value.(kthrift.Binary)
			arg, want = JavaArg{Value: []byte(b)}, kthrift.TypeString
		case fieldArgBool:
			var b kthrift.Bool
			b, ok = f.Value.(kthrift.Bool)
			arg, want = JavaArg{Value: bool(b)}, kthrift.TypeBool
		case fieldArgDouble:
			var d kthrift.Double
			d, ok = f.Value.(kthrift.Double)
			arg, want = JavaArg{Value: float64(d)}, kthrift.TypeDouble
		default:
			continue
		}
		if !ok {
			return JavaArg{}, mismatch(path, want, f.Value)
		}
		found++
	}
	if found != 1 {
		return JavaArg{}, fmt.Errorf("%w: %s sets %d supported members, want 1", ErrInvalidComponentObject, path, found)
	}
	return arg, nil
}

func asStruct(v kthrift.Value, path string) (*kthrift.Struct, error) {
	s, ok := v.(*kthrift.Struct)
	if !ok {
		return nil, mismatch(path, kthrift.TypeStruct, v)
	}
	return s, nil
}

func asMap(v kthrift.Value, path string) (*kthrift.Map, error) {
	m, ok := v.(*kthrift.Map)
	if !ok {
		return nil, mismatch(path, kthrift.TypeMap, v)
	}
	return m, nil
}

func asString(v kthrift.Value, path string) (string, error) {
	b, ok := v.(kthrift.Binary)
	if !ok {
		return "", mismatch(path, kthrift.TypeString, v)
	}
	return string(b), nil
}

func asStringList(v kthrift.Value, path string) ([]string, error) {
	l, ok := v.(*kthrift.List)
	if !ok {
		return nil, mismatch(path, kthrift.TypeList, v)
	}
	out := make([]string, 0, len(l.Values))
	for i, e := range l.Values {
		s, err := asString(e, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func mismatch(path string, want kthrift.Type, got kthrift.Value) error {
	if got == nil {
		return fmt.Errorf("%w: %s: want %s, got nothing", ErrSchemaMismatch, path, want)
	}
	return fmt.Errorf("%w: %s: want %s, got %s", ErrSchemaMismatch, path, want, got.Type())
}
