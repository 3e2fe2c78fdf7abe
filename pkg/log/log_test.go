package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestNew(t *testing.T) {
	t.Setenv("KUBERNETES_SERVICE_HOST", "")

	var buf bytes.Buffer
	l := Logr(New(&buf, "info"))
	l.Info("Submitted topology", "name", "wordcount")
	l.V(1).Info("Component", "name", "words")

	out := buf.String()
	assert.Contains(t, out, "Submitted topology")
	assert.Contains(t, out, "name=wordcount")
	assert.False(t, strings.Contains(out, "words"))

	buf.Reset()
	l = Logr(New(&buf, "debug"))
	l.V(1).Info("Component", "name", "words")
	assert.Contains(t, buf.String(), "name=words")
}

func TestNewJSON(t *testing.T) {
	t.Setenv("KUBERNETES_SERVICE_HOST", "10.0.0.1")

	var buf bytes.Buffer
	New(&buf, "bogus").Info().Str("name", "wordcount").Msg("Submitted topology")
	assert.Contains(t, buf.String(), `"name":"wordcount"`)
	assert.Contains(t, buf.String(), `"level":"info"`)
}
