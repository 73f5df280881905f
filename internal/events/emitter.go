package events

import (
	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/io-pipeline/platform-registration-service/internal/config"
)

// Marshaler is anything that can be wire-encoded for publication.
type Marshaler interface {
	Marshal() []byte
}

// Emitter publishes registration-lifecycle events to Kafka. Every send is
// fire-and-forget: a failure is logged and never propagated to the
// orchestrator, per the at-most-once delivery contract.
type Emitter struct {
	producer sarama.AsyncProducer
	logger   config.Logger
}

// NewEmitter builds an Emitter backed by a single async producer shared
// across all four logical topics: each message carries its own Topic name
// (see Emit), exactly as GoCodeAlone-modular's KafkaEventBus.Publish does
// against one sarama producer.
func NewEmitter(cfg *config.Config, logger config.Logger) (*Emitter, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = cfg.Kafka.ClientID
	saramaCfg.Producer.Return.Successes = false
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewAsyncProducer(cfg.Kafka.Brokers, saramaCfg)
	if err != nil {
		return nil, err
	}

	e := &Emitter{
		producer: producer,
		logger:   logger,
	}

	go e.drainErrors()
	return e, nil
}

func (e *Emitter) drainErrors() {
	for err := range e.producer.Errors() {
		e.logger.Error("事件发送失败", zap.Error(err.Err))
	}
}

// Emit publishes payload under logicalTopic, using a fresh random key per
// record to spread partitions. The call never blocks on broker
// acknowledgement and never returns an error to the caller.
func (e *Emitter) Emit(logicalTopic Topic, payload Marshaler) {
	msg := &sarama.ProducerMessage{
		Topic: string(logicalTopic),
		Key:   sarama.StringEncoder(uuid.NewString()),
		Value: sarama.ByteEncoder(payload.Marshal()),
	}

	select {
	case e.producer.Input() <- msg:
	default:
		e.logger.Warn("事件生产者队列已满，事件被丢弃", zap.String("topic", string(logicalTopic)))
	}
}

// Close releases the underlying producer. In-flight messages are not
// guaranteed to flush; this mirrors the fire-and-forget contract.
func (e *Emitter) Close() error {
	return e.producer.Close()
}
