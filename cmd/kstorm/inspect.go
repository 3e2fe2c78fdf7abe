package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/birdayz/kstorm/ktopology"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <path>",
		Short: "Print the components of an encoded topology, upstream first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := ktopology.ReadFile(args[0])
			if err != nil {
				return err
			}
			g, err := ktopology.NewGraph(t)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range g.TopologicalOrder() {
				printComponent(out, t.Components[name])
			}
			return nil
		},
	}
}

func printComponent(w io.Writer, c *ktopology.Component) {
	fmt.Fprintf(w, "%s %s\n", c.Kind, c.Name)
	fmt.Fprintf(w, "  object: %s\n", describeObject(c.Object))
	if c.Parallelism > 0 {
		fmt.Fprintf(w, "  parallelism: %d\n", c.Parallelism)
	}
	for _, id := range c.SortedInputs() {
		fmt.Fprintf(w, "  input: %s %s\n", id, c.Inputs[id])
	}

	streams := make([]string, 0, len(c.Streams))
	for id := range c.Streams {
		streams = append(streams, id)
	}
	slices.Sort(streams)
	for _, id := range streams {
		info := c.Streams[id]
		direct := ""
		if info.Direct {
			direct = " direct"
		}
		fmt.Fprintf(w, "  stream: %s [%s]%s\n", id, strings.Join(info.OutputFields, ", "), direct)
	}
	if c.JSONConf != "" {
		fmt.Fprintf(w, "  conf: %s\n", c.JSONConf)
	}
}

func describeObject(obj ktopology.ComponentObject) string {
	switch obj.Kind {
	case ktopology.ObjectShell:
		return fmt.Sprintf("shell %s %s", obj.Shell.Command, obj.Shell.Script)
	case ktopology.ObjectJava:
		return fmt.Sprintf("java %s (%d args)", obj.Java.ClassName, len(obj.Java.Args))
	case ktopology.ObjectSerialized:
		return fmt.Sprintf("serialized (%d bytes)", len(obj.Serialized))
	}
	return obj.Kind.String()
}
