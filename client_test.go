package kstorm

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/birdayz/kstorm/kcluster"
	"github.com/birdayz/kstorm/kcluster/kclustertest"
	"github.com/birdayz/kstorm/kcluster/local"
	"github.com/birdayz/kstorm/ktopology"
	"go.uber.org/mock/gomock"
)

func wordCount() *ktopology.Topology {
	return ktopology.New().MustAdd(
		ktopology.NewSpout("words", ktopology.Shell("python", "source_wrapper.py")).
			Declare(ktopology.DefaultStream, "word"),
		ktopology.NewBolt("count", ktopology.Shell("python", "simple_wrapper.py")).
			Subscribe("words", ktopology.Fields("word")).
			Declare(ktopology.DefaultStream, "word", "count"),
	)
}

func writeTopology(t *testing.T, topo *ktopology.Topology) string {
	t.Helper()
	var buf bytes.Buffer
	assert.NoError(t, ktopology.Encode(&buf, topo))
	path := filepath.Join(t.TempDir(), "topology.bin")
	assert.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestSubmitWordCount(t *testing.T) {
	ctx := context.Background()
	path := writeTopology(t, wordCount())

	t.Run("in memory runtime", func(t *testing.T) {
		rt := kclustertest.New()
		client := New(rt)

		assert.NoError(t, client.SubmitFile(ctx, path, "wordcount", kcluster.Config{Debug: true}))

		subs := rt.Submissions()
		assert.Equal(t, 1, len(subs))
		assert.Equal(t, "wordcount", subs[0].Name)
		assert.True(t, subs[0].Config.Debug)
		assert.Equal(t, wordCount(), subs[0].Topology)

		active, err := client.Active(ctx)
		assert.NoError(t, err)
		assert.Equal(t, []string{"wordcount"}, active)

		err = client.SubmitFile(ctx, path, "wordcount", kcluster.Config{Debug: true})
		assert.True(t, errors.Is(err, ErrNameConflict))
		assert.Equal(t, 1, len(rt.Submissions()))

		assert.NoError(t, client.Close())
		assert.True(t, rt.Closed())
	})

	t.Run("local cluster", func(t *testing.T) {
		cluster := local.New()
		client := New(cluster)
		defer client.Close()

		assert.NoError(t, client.SubmitFile(ctx, path, "wordcount", kcluster.Config{Debug: true}))
		at, ok := cluster.Topology("wordcount")
		assert.True(t, ok)
		assert.True(t, at.Config.Debug)

		err := client.SubmitFile(ctx, path, "wordcount", kcluster.Config{Debug: true})
		assert.True(t, errors.Is(err, ErrNameConflict))

		assert.NoError(t, client.Kill(ctx, "wordcount"))
		assert.True(t, errors.Is(client.Kill(ctx, "wordcount"), ErrNotFound))
	})
}

func TestSubmitModelErrorsBeforeRuntime(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	// no expectations: the runtime must not be started
	client := New(NewMockRuntime(ctrl))

	empty := wordCount()
	empty.Components["count"].Inputs[ktopology.StreamID{Component: "words", Stream: ktopology.DefaultStream}] = ktopology.Fields()

	dangling := wordCount().MustAdd(
		ktopology.NewBolt("sink", ktopology.Shell("sh", "sink.sh")).Subscribe("nowhere", ktopology.Shuffle()),
	)

	tests := []struct {
		name     string
		topology *ktopology.Topology
		topoName string
		conf     kcluster.Config
		err      error
	}{
		{name: "empty name", topology: wordCount(), topoName: "", err: ErrInvalidName},
		{name: "name with slash", topology: wordCount(), topoName: "word/count", err: ErrInvalidName},
		{name: "nil topology", topology: nil, topoName: "wordcount", err: ErrNilTopology},
		{name: "empty fields", topology: empty, topoName: "wordcount", err: ktopology.ErrEmptyFieldsGrouping},
		{name: "dangling", topology: dangling, topoName: "wordcount", err: ktopology.ErrDanglingStreamReference},
		{name: "bad config", topology: wordCount(), topoName: "wordcount", conf: kcluster.Config{Workers: -1}, err: kcluster.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Submit(ctx, tt.topoName, tt.topology, tt.conf)
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
		})
	}

	t.Run("unreadable file", func(t *testing.T) {
		err := client.SubmitFile(ctx, filepath.Join(t.TempDir(), "missing.bin"), "wordcount", kcluster.Config{})
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("truncated file", func(t *testing.T) {
		path := writeTopology(t, wordCount())
		b, err := os.ReadFile(path)
		assert.NoError(t, err)
		assert.NoError(t, os.WriteFile(path, b[:len(b)/2], 0o600))

		err = client.SubmitFile(ctx, path, "wordcount", kcluster.Config{})
		assert.Error(t, err)
	})
}

func TestSubmitRuntimeErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("start failure is runtime unavailable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		rt := NewMockRuntime(ctrl)
		boom := errors.New("cannot bind port")
		rt.EXPECT().StartOrReuse(gomock.Any()).Return(nil, boom)

		err := New(rt).Submit(ctx, "wordcount", wordCount(), kcluster.Config{})
		assert.True(t, errors.Is(err, ErrRuntimeUnavailable))
		assert.True(t, errors.Is(err, boom))
	})

	t.Run("runtime unavailable is not wrapped twice", func(t *testing.T) {
		rt := kclustertest.New()
		rt.FailStart(kcluster.ErrRuntimeUnavailable)

		err := New(rt).Submit(ctx, "wordcount", wordCount(), kcluster.Config{})
		assert.Equal(t, kcluster.ErrRuntimeUnavailable, err)
	})

	t.Run("handle errors surface unchanged", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		rt := NewMockRuntime(ctrl)
		h := NewMockHandle(ctrl)
		topo := wordCount()
		conf := kcluster.Config{Debug: true}

		rt.EXPECT().StartOrReuse(gomock.Any()).Return(h, nil).Times(1)
		gomock.InOrder(
			h.EXPECT().Submit(gomock.Any(), "wordcount", conf, topo).Return(nil),
			h.EXPECT().Submit(gomock.Any(), "wordcount", conf, topo).Return(kcluster.ErrNameConflict),
		)
		h.EXPECT().Close().Return(nil).Times(1)

		client := New(rt)
		assert.NoError(t, client.Submit(ctx, "wordcount", topo, conf))
		err := client.Submit(ctx, "wordcount", topo, conf)
		assert.True(t, errors.Is(err, ErrNameConflict))
		assert.NoError(t, client.Close())
		assert.NoError(t, client.Close())
	})

	t.Run("close returns the handle error once", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		rt := NewMockRuntime(ctrl)
		first, second := NewMockHandle(ctrl), NewMockHandle(ctrl)
		boom := errors.New("boom")

		gomock.InOrder(
			rt.EXPECT().StartOrReuse(gomock.Any()).Return(first, nil),
			rt.EXPECT().StartOrReuse(gomock.Any()).Return(second, nil),
		)
		first.EXPECT().Active(gomock.Any()).Return([]string{}, nil).Times(2)
		first.EXPECT().Close().Return(boom)
		second.EXPECT().Active(gomock.Any()).Return([]string{"wordcount"}, nil)
		second.EXPECT().Close().Return(nil)

		client := New(rt)
		_, err := client.Active(ctx)
		assert.NoError(t, err)
		_, err = client.Active(ctx)
		assert.NoError(t, err)

		assert.Equal(t, boom, client.Close())
		assert.NoError(t, client.Close())

		active, err := client.Active(ctx)
		assert.NoError(t, err)
		assert.Equal(t, []string{"wordcount"}, active)
		assert.NoError(t, client.Close())
	})
}

func TestClientsShareRuntime(t *testing.T) {
	ctx := context.Background()
	cluster := local.New()

	a, b := New(cluster), New(cluster)
	assert.NoError(t, a.Submit(ctx, "wordcount", wordCount(), kcluster.Config{}))

	active, err := b.Active(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"wordcount"}, active)
	assert.NoError(t, b.Close())

	err = a.Submit(ctx, "wordcount", wordCount(), kcluster.Config{})
	assert.True(t, errors.Is(err, ErrNameConflict))
	active, err = a.Active(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"wordcount"}, active)

	assert.NoError(t, a.Close())
	err = cluster.Submit(ctx, "other", kcluster.Config{}, wordCount())
	assert.True(t, errors.Is(err, ErrRuntimeUnavailable))
}

func TestNewLocal(t *testing.T) {
	client := NewLocal()
	assert.True(t, client.runtime == kcluster.Runtime(local.Default()))
}
