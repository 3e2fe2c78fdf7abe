package main

import (
	"context"
	"fmt"

	"github.com/birdayz/kstorm"
	"github.com/birdayz/kstorm/kcluster"
	"github.com/birdayz/kstorm/kcluster/kafka"
	"github.com/birdayz/kstorm/kcluster/local"
	"github.com/birdayz/kstorm/pkg/log"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type options struct {
	logLevel string

	configPath  string
	debug       bool
	brokers     []string
	topicPrefix string
	stateDir    string
	wait        bool
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "kstorm <path> <name>",
		Short: "Submit an encoded topology to a cluster runtime",
		Long: `kstorm reads a topology in Thrift binary encoding and submits it under
the given name. Without --brokers the topology runs in an in-process cluster.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          o.runSubmit,
	}
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	o.addSubmitFlags(root.Flags())

	submit := &cobra.Command{
		Use:   "submit <path> <name>",
		Short: "Submit an encoded topology (default command)",
		Args:  cobra.MaximumNArgs(2),
		RunE:  o.runSubmit,
	}
	o.addSubmitFlags(submit.Flags())

	root.AddCommand(submit, newValidateCmd(), newInspectCmd())
	return root
}

func (o *options) addSubmitFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "YAML run configuration")
	fs.BoolVar(&o.debug, "debug", true, "run the topology in debug mode")
	fs.StringSliceVar(&o.brokers, "brokers", nil, "submit through Kafka brokers instead of the in-process cluster")
	fs.StringVar(&o.topicPrefix, "topic-prefix", kafka.DefaultTopicPrefix, "topic prefix for --brokers")
	fs.StringVar(&o.stateDir, "state-dir", "", "persist the in-process cluster's active topologies")
	fs.BoolVar(&o.wait, "wait", false, "keep running until interrupted, then kill the topology")
}

func (o *options) logger(cmd *cobra.Command) logr.Logger {
	return log.Logr(log.New(cmd.ErrOrStderr(), o.logLevel)).WithName("kstorm")
}

func (o *options) runtime(l logr.Logger) kcluster.Runtime {
	if len(o.brokers) > 0 {
		return kafka.New(o.brokers,
			kafka.WithLogr(l.WithName("kafka")),
			kafka.WithTopicPrefix(o.topicPrefix))
	}
	return local.New(
		local.WithLogr(l.WithName("local")),
		local.WithStateDir(o.stateDir))
}

func (o *options) config(cmd *cobra.Command) (kcluster.Config, error) {
	var conf kcluster.Config
	if o.configPath != "" {
		var err error
		if conf, err = kcluster.LoadConfig(o.configPath); err != nil {
			return conf, err
		}
	}
	if o.configPath == "" || cmd.Flags().Changed("debug") {
		conf.Debug = o.debug
	}
	return conf, nil
}

func (o *options) runSubmit(cmd *cobra.Command, args []string) error {
	if len(args) < 2 {
		return cmd.Usage()
	}
	path, name := args[0], args[1]

	conf, err := o.config(cmd)
	if err != nil {
		return err
	}

	l := o.logger(cmd)
	client := kstorm.New(o.runtime(l), kstorm.WithLogr(l))
	defer client.Close()

	ctx := cmd.Context()
	if err := client.SubmitFile(ctx, path, name, conf); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Submitted topology %q\n", name)

	if !o.wait {
		return nil
	}
	<-ctx.Done()
	l.Info("Interrupted, killing topology", "name", name)
	return client.Kill(context.WithoutCancel(ctx), name)
}
