package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/miladsoleymani/topicsink/broker"
	"github.com/miladsoleymani/topicsink/core"
)

type publishFlags struct {
	broker  string
	port    string
	topic   string
	payload string
	timeout time.Duration
}

func newPublishCmd(g *globalFlags) *cobra.Command {
	f := &publishFlags{}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish one message through the broker plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return publish(cmd.Context(), g, f)
		},
	}

	cmd.Flags().StringVar(&f.broker, "broker", "localhost", "Broker host, optionally prefixed with scheme:// (mqtt, tcp, nats, kafka, amqp)")
	cmd.Flags().StringVar(&f.port, "port", "1883", "Broker port")
	cmd.Flags().StringVar(&f.topic, "topic", "", "Topic to publish to")
	cmd.Flags().StringVar(&f.payload, "payload", "", "Message payload")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Second, "Bound on connect and publish")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func publish(ctx context.Context, g *globalFlags, f *publishFlags) error {
	spec, err := core.NewSpec(core.Record{
		Name:  "publish",
		Topic: f.topic,
		Host:  f.broker,
		Port:  f.port,
	})
	if err != nil {
		return err
	}

	resolver := broker.Resolver{ClientPrefix: "topicsink-publish", ConnectTimeout: f.timeout}
	b, err := resolver.ForSpec(spec)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := b.Connect(ctx); err != nil {
		return err
	}
	if err := b.Publish(ctx, spec.Topic(), []byte(f.payload)); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	g.logger.Info().
		Str("host", spec.Host()).
		Str("topic", spec.Topic()).
		Int("bytes", len(f.payload)).
		Msg("message published")
	return nil
}
