package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/birdayz/kstorm/kcluster"
	"github.com/birdayz/kstorm/ktopology"
	"github.com/go-logr/logr/funcr"
)

func wordCount() *ktopology.Topology {
	return ktopology.New().MustAdd(
		ktopology.NewSpout("words", ktopology.Shell("python", "source_wrapper.py")).
			Declare(ktopology.DefaultStream, "word"),
		ktopology.NewBolt("count", ktopology.Shell("python", "simple_wrapper.py")).
			Subscribe("words", ktopology.Fields("word")),
	)
}

func TestCluster(t *testing.T) {
	ctx := context.Background()

	t.Run("submit before start", func(t *testing.T) {
		c := New()
		err := c.Submit(ctx, "wordcount", kcluster.Config{}, wordCount())
		assert.True(t, errors.Is(err, kcluster.ErrRuntimeUnavailable))
	})

	t.Run("name conflict", func(t *testing.T) {
		launched := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		c := New()
		c.now = func() time.Time { return launched }

		h, err := c.StartOrReuse(ctx)
		assert.NoError(t, err)
		defer h.Close()

		again, err := c.StartOrReuse(ctx)
		assert.NoError(t, err)
		assert.Equal(t, h, again)
		defer again.Close()

		assert.NoError(t, h.Submit(ctx, "wordcount", kcluster.Config{Debug: true}, wordCount()))
		err = h.Submit(ctx, "wordcount", kcluster.Config{}, wordCount())
		assert.True(t, errors.Is(err, kcluster.ErrNameConflict))

		at, ok := c.Topology("wordcount")
		assert.True(t, ok)
		assert.True(t, strings.HasPrefix(at.ID, "wordcount-"))
		assert.Equal(t, launched, at.LaunchedAt)
		assert.True(t, at.Config.Debug)

		active, err := h.Active(ctx)
		assert.NoError(t, err)
		assert.Equal(t, []string{"wordcount"}, active)
	})

	t.Run("kill", func(t *testing.T) {
		c := New()
		h, err := c.StartOrReuse(ctx)
		assert.NoError(t, err)
		defer h.Close()

		assert.True(t, errors.Is(h.Kill(ctx, "wordcount"), kcluster.ErrNotFound))
		assert.NoError(t, h.Submit(ctx, "wordcount", kcluster.Config{}, wordCount()))
		assert.NoError(t, h.Kill(ctx, "wordcount"))
		assert.NoError(t, h.Submit(ctx, "wordcount", kcluster.Config{}, wordCount()))
	})

	t.Run("invalid topology is not registered", func(t *testing.T) {
		c := New()
		h, err := c.StartOrReuse(ctx)
		assert.NoError(t, err)
		defer h.Close()

		topo := wordCount()
		topo.Components["count"].Inputs[ktopology.StreamID{Component: "words", Stream: ktopology.DefaultStream}] = ktopology.Fields()
		err = h.Submit(ctx, "wordcount", kcluster.Config{}, topo)
		assert.True(t, errors.Is(err, ktopology.ErrEmptyFieldsGrouping))

		active, err := h.Active(ctx)
		assert.NoError(t, err)
		assert.Equal(t, []string{}, active)
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := New().StartOrReuse(cctx)
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("default is shared", func(t *testing.T) {
		assert.True(t, Default() == Default())
	})
}

func TestClusterSharedByHandles(t *testing.T) {
	ctx := context.Background()
	c := New()

	first, err := c.StartOrReuse(ctx)
	assert.NoError(t, err)
	second, err := c.StartOrReuse(ctx)
	assert.NoError(t, err)

	assert.NoError(t, first.Submit(ctx, "wordcount", kcluster.Config{}, wordCount()))
	assert.NoError(t, second.Close())

	err = first.Submit(ctx, "wordcount", kcluster.Config{}, wordCount())
	assert.True(t, errors.Is(err, kcluster.ErrNameConflict))
	active, err := first.Active(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"wordcount"}, active)

	assert.NoError(t, first.Close())
	err = first.Submit(ctx, "other", kcluster.Config{}, wordCount())
	assert.True(t, errors.Is(err, kcluster.ErrRuntimeUnavailable))

	// closing more often than started is harmless
	assert.NoError(t, first.Close())

	restarted, err := c.StartOrReuse(ctx)
	assert.NoError(t, err)
	defer restarted.Close()
	active, err = restarted.Active(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{}, active)
}

func TestClusterDebugLogging(t *testing.T) {
	var lines []string
	log := funcr.New(func(prefix, args string) {
		lines = append(lines, args)
	}, funcr.Options{Verbosity: 1})

	c := New(WithLogr(log))
	h, err := c.StartOrReuse(context.Background())
	assert.NoError(t, err)
	defer h.Close()

	assert.NoError(t, h.Submit(context.Background(), "quiet", kcluster.Config{}, wordCount()))
	n := len(lines)
	assert.NoError(t, h.Submit(context.Background(), "loud", kcluster.Config{Debug: true}, wordCount()))

	// one submission line followed by the components, sources first
	wiring := lines[n+1:]
	assert.Equal(t, 2, len(wiring))
	assert.Contains(t, wiring[0], `"name"="words"`)
	assert.Contains(t, wiring[1], `"name"="count"`)
	assert.Contains(t, wiring[1], `words/default fields(word)`)
}

func TestClusterStateDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c := New(WithStateDir(dir))
	h, err := c.StartOrReuse(ctx)
	assert.NoError(t, err)
	conf := kcluster.Config{Debug: true, Workers: 2}
	assert.NoError(t, h.Submit(ctx, "wordcount", conf, wordCount()))
	assert.NoError(t, h.Submit(ctx, "other", kcluster.Config{}, wordCount()))
	assert.NoError(t, h.Kill(ctx, "other"))
	first, _ := c.Topology("wordcount")
	assert.NoError(t, h.Close())

	restarted := New(WithStateDir(dir))
	h, err = restarted.StartOrReuse(ctx)
	assert.NoError(t, err)
	defer h.Close()

	active, err := h.Active(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"wordcount"}, active)

	at, ok := restarted.Topology("wordcount")
	assert.True(t, ok)
	assert.Equal(t, first.ID, at.ID)
	assert.Equal(t, conf, at.Config)
	assert.True(t, first.LaunchedAt.Equal(at.LaunchedAt))
	assert.Equal(t, wordCount(), at.Topology)

	err = h.Submit(ctx, "wordcount", kcluster.Config{}, wordCount())
	assert.True(t, errors.Is(err, kcluster.ErrNameConflict))
}

func TestClusterStateDirUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	assert.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err := New(WithStateDir(blocker)).StartOrReuse(context.Background())
	assert.True(t, errors.Is(err, kcluster.ErrRuntimeUnavailable))
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("topology0"), prefixEnd([]byte("topology/")))
	assert.Equal(t, []byte{0x01}, prefixEnd([]byte{0x00, 0xff}))
	assert.Equal(t, []byte(nil), prefixEnd([]byte{0xff}))
}
