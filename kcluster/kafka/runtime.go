// Package kafka submits topologies to a cluster master that reads its work
// from Kafka.
//
// Every active topology owns one topic named after it. Submitting creates
// the topic and produces a single record holding the encoded topology, with
// the run configuration as JSON in the storm.conf header. Killing a topology
// deletes its topic.
package kafka

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/birdayz/kstorm/kcluster"
	"github.com/birdayz/kstorm/ktopology"
	"github.com/go-logr/logr"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/multierr"
)

const (
	// DefaultTopicPrefix is prepended to topology names to form topic names.
	DefaultTopicPrefix = "kstorm.topology."

	// ConfigHeader carries the JSON run configuration.
	ConfigHeader = "storm.conf"
)

// Runtime is a kcluster runtime backed by Kafka. It is its own Handle.
type Runtime struct {
	mu sync.Mutex

	brokers           []string
	topicPrefix       string
	replicationFactor int16
	clientOpts        []kgo.Opt
	log               logr.Logger

	refs   int
	client *kgo.Client
	admin  *kadm.Client
}

var (
	_ kcluster.Runtime = (*Runtime)(nil)
	_ kcluster.Handle  = (*Runtime)(nil)
)

// Option is a function that configures a Runtime
type Option func(*Runtime)

// WithLogr sets the logger
var WithLogr = func(log logr.Logger) Option {
	return func(r *Runtime) {
		r.log = log
	}
}

// WithTopicPrefix sets the prefix of topology topics, DefaultTopicPrefix by default
var WithTopicPrefix = func(prefix string) Option {
	return func(r *Runtime) {
		r.topicPrefix = prefix
	}
}

// WithReplicationFactor sets the replication factor of topology topics
var WithReplicationFactor = func(rf int16) Option {
	return func(r *Runtime) {
		r.replicationFactor = rf
	}
}

// WithClientOptions adds options to the underlying franz-go client.
var WithClientOptions = func(opts ...kgo.Opt) Option {
	return func(r *Runtime) {
		r.clientOpts = append(r.clientOpts, opts...)
	}
}

// New returns a runtime for brokers. It connects on the first StartOrReuse.
func New(brokers []string, opts ...Option) *Runtime {
	r := &Runtime{
		brokers:           brokers,
		topicPrefix:       DefaultTopicPrefix,
		replicationFactor: 1,
		log:               logr.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartOrReuse connects to the brokers on first use. The connection is
// checked with a ping; later calls reuse the client. Every successful call
// must be paired with a Close.
func (r *Runtime) StartOrReuse(ctx context.Context) (kcluster.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		r.refs++
		return r, nil
	}

	opts := append([]kgo.Opt{kgo.SeedBrokers(r.brokers...)}, r.clientOpts...)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kcluster.ErrRuntimeUnavailable, err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: failed to reach %v: %w", kcluster.ErrRuntimeUnavailable, r.brokers, err)
	}

	r.client = client
	r.admin = kadm.NewClient(client)
	r.refs = 1
	r.log.Info("Connected to cluster", "brokers", r.brokers, "topicPrefix", r.topicPrefix)
	return r, nil
}

// Topic returns the topic that holds the topology submitted under name.
func (r *Runtime) Topic(name string) string {
	return r.topicPrefix + name
}

func (r *Runtime) clients() (*kgo.Client, *kadm.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil, nil, fmt.Errorf("%w: not connected", kcluster.ErrRuntimeUnavailable)
	}
	return r.client, r.admin, nil
}

func (r *Runtime) Submit(ctx context.Context, name string, conf kcluster.Config, t *ktopology.Topology) error {
	if err := conf.Validate(); err != nil {
		return err
	}
	confJSON, err := conf.JSON()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := ktopology.Encode(&buf, t); err != nil {
		return err
	}

	client, admin, err := r.clients()
	if err != nil {
		return err
	}

	topic := r.Topic(name)
	resps, err := admin.CreateTopics(ctx, 1, r.replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}
	if resp, ok := resps[topic]; ok && resp.Err != nil {
		if errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("%w: %q", kcluster.ErrNameConflict, name)
		}
		return fmt.Errorf("failed to create topic %s: %w", topic, resp.Err)
	}

	rec := &kgo.Record{
		Topic: topic,
		Key:   []byte(name),
		Value: buf.Bytes(),
		Headers: []kgo.RecordHeader{
			{Key: ConfigHeader, Value: confJSON},
		},
	}
	if err := client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		// Without its record the topic must not keep the name taken.
		err = fmt.Errorf("failed to produce topology %q: %w", name, err)
		return multierr.Append(err, deleteTopic(context.WithoutCancel(ctx), admin, topic))
	}

	r.log.Info("Submitted topology", "name", name, "topic", topic, "bytes", len(rec.Value), "debug", conf.Debug)
	return nil
}

func (r *Runtime) Kill(ctx context.Context, name string) error {
	_, admin, err := r.clients()
	if err != nil {
		return err
	}

	topic := r.Topic(name)
	if err := deleteTopic(ctx, admin, topic); err != nil {
		if errors.Is(err, kerr.UnknownTopicOrPartition) {
			return fmt.Errorf("%w: %q", kcluster.ErrNotFound, name)
		}
		return err
	}

	r.log.Info("Killed topology", "name", name, "topic", topic)
	return nil
}

func deleteTopic(ctx context.Context, admin *kadm.Client, topic string) error {
	resps, err := admin.DeleteTopics(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to delete topic %s: %w", topic, err)
	}
	if resp, ok := resps[topic]; ok && resp.Err != nil {
		return fmt.Errorf("failed to delete topic %s: %w", topic, resp.Err)
	}
	return nil
}

func (r *Runtime) Active(ctx context.Context) ([]string, error) {
	_, admin, err := r.clients()
	if err != nil {
		return nil, err
	}

	topics, err := admin.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return activeNames(r.topicPrefix, topics)
}

// activeNames returns the topology names behind the topics carrying prefix.
// Topics the broker could not describe fail the whole listing.
func activeNames(prefix string, topics kadm.TopicDetails) ([]string, error) {
	names := []string{}
	var errs error
	for topic, detail := range topics {
		name, ok := strings.CutPrefix(topic, prefix)
		if !ok || name == "" {
			continue
		}
		if detail.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to describe topic %s: %w", topic, detail.Err))
			continue
		}
		names = append(names, name)
	}
	if errs != nil {
		return nil, errs
	}
	slices.Sort(names)
	return names, nil
}

// Close releases one StartOrReuse. The client is closed with the last one.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refs > 0 {
		r.refs--
	}
	if r.refs == 0 && r.client != nil {
		r.client.Close()
		r.client = nil
		r.admin = nil
	}
	return nil
}
