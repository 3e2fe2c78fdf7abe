package ktopology

// Field ids of the topology schema. The wire format is the Thrift binary
// encoding of Storm's StormTopology.
const (
	// StormTopology
	fieldSpouts      int16 = 1
	fieldBolts       int16 = 2
	fieldStateSpouts int16 = 3

	// SpoutSpec, Bolt and StateSpoutSpec
	fieldObject int16 = 1
	fieldCommon int16 = 2

	// ComponentCommon
	fieldInputs      int16 = 1
	fieldStreams     int16 = 2
	fieldParallelism int16 = 3
	fieldJSONConf    int16 = 4

	// GlobalStreamId
	fieldStreamComponent int16 = 1
	fieldStreamID        int16 = 2

	// StreamInfo
	fieldOutputFields int16 = 1
	fieldDirect       int16 = 2

	// ComponentObject union
	fieldSerializedJava int16 = 1
	fieldShell          int16 = 2
	fieldJavaObject     int16 = 3

	// ShellComponent
	fieldShellCommand int16 = 1
	fieldShellScript  int16 = 2

	// JavaObject
	fieldClassName int16 = 1
	fieldArgs      int16 = 2

	// JavaObjectArg union
	fieldArgInt    int16 = 1
	fieldArgLong   int16 = 2
	fieldArgString int16 = 3
	fieldArgBool   int16 = 4
	fieldArgBinary int16 = 5
	fieldArgDouble int16 = 6
)

// componentFields maps the top level topology fields to the kind of
// component their map holds.
var componentFields = map[int16]ComponentKind{
	fieldSpouts:      KindSpout,
	fieldBolts:       KindBolt,
	fieldStateSpouts: KindStateSpout,
}

// groupingFields maps Grouping union members to kinds. Member 6
// (custom_object) is not supported.
var groupingFields = map[int16]GroupingKind{
	1: GroupingFields,
	2: GroupingShuffle,
	3: GroupingAll,
	4: GroupingNone,
	5: GroupingDirect,
	7: GroupingCustomSerialized,
	8: GroupingLocalOrShuffle,
	9: GroupingGlobal,
}

// groupingIDs is the inverse of groupingFields.
var groupingIDs = func() map[GroupingKind]int16 {
	ids := make(map[GroupingKind]int16, len(groupingFields))
	for id, kind := range groupingFields {
		ids[kind] = id
	}
	return ids
}()

// componentFieldIDs is the inverse of componentFields.
var componentFieldIDs = map[ComponentKind]int16{
	KindSpout:      fieldSpouts,
	KindBolt:       fieldBolts,
	KindStateSpout: fieldStateSpouts,
}
