package consumer

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/vexdb/vexdb/internal/engine"
	"github.com/vexdb/vexdb/pkg/log"
	"github.com/vexdb/vexdb/pkg/mq"
)

// Consumer ingests write commands from Kafka topics and applies them to the
// store. Delivery is at-most-once from the store's point of view: a command
// that fails (bad collection, dim mismatch, malformed envelope) is logged and
// dropped, never retried.
type Consumer struct {
	logger    *slog.Logger
	store     *engine.Store
	consumers []*mq.KafkaConsumer
}

// Config 消费者配置
type Config struct {
	Kafka mq.KafkaConfig
}

// NewConsumer 创建消费者
func NewConsumer(store *engine.Store, cfg Config) (*Consumer, error) {
	c := &Consumer{
		logger: log.Logger("consumer"),
		store:  store,
	}

	if !cfg.Kafka.Enabled {
		c.logger.Info("kafka disabled, consumer not started")
		return c, nil
	}

	for _, consumerCfg := range cfg.Kafka.Consumers {
		kc, err := mq.NewKafkaConsumer(cfg.Kafka.Brokers, consumerCfg, c.HandleMessage)
		if err != nil {
			return nil, err
		}
		c.consumers = append(c.consumers, kc)
	}

	return c, nil
}

// Start 启动所有消费者
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.consumers) == 0 {
		c.logger.Info("no consumers configured, skipping start")
		return nil
	}

	c.logger.Info("starting consumers", "count", len(c.consumers))

	g, ctx := errgroup.WithContext(ctx)
	for _, consumer := range c.consumers {
		g.Go(func() error {
			return consumer.Start(ctx)
		})
	}

	return g.Wait()
}

// Stop 停止所有消费者
func (c *Consumer) Stop() error {
	c.logger.Info("stopping consumers")

	for _, consumer := range c.consumers {
		if err := consumer.Stop(); err != nil {
			c.logger.Error("failed to stop consumer", "error", err)
		}
	}

	return nil
}

// HandleMessage applies one command envelope. It always returns nil: failed
// commands are logged and dropped so a poison message cannot stall the topic.
func (c *Consumer) HandleMessage(ctx context.Context, topic string, message []byte) error {
	cmd, err := decodeCommand(message)
	if err != nil {
		c.logger.Error("malformed command", "topic", topic, "error", err)
		return nil
	}

	switch cmd.Op {
	case OpUpsert:
		upserted, err := c.store.Upsert(ctx, cmd.Collection, cmd.Points)
		if err != nil {
			c.logger.Error("upsert command failed", "topic", topic, "collection", cmd.Collection, "error", err)
			return nil
		}
		c.logger.Debug("upsert command applied", "collection", cmd.Collection, "upserted", upserted)
	case OpCreateCollection:
		err := c.store.CreateCollection(ctx, &cmd.CreateCollectionRequest)
		if err != nil {
			c.logger.Error("create_collection command failed", "topic", topic, "name", cmd.Name, "error", err)
			return nil
		}
		c.logger.Info("create_collection command applied", "name", cmd.Name)
	default:
		c.logger.Error("unknown command op", "topic", topic, "op", cmd.Op)
	}

	return nil
}
