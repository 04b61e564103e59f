package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"txsync/internal/domain"
	"txsync/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTopicPrefix = "txsync-transactions"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	prefix string
}

type ProducerConfig struct {
	Brokers     []string
	TopicPrefix string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 500 * time.Millisecond,
	}
	return newProducer(writer, cfg.TopicPrefix), nil
}

func newProducer(writer messageWriter, prefix string) *Producer {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultTopicPrefix
	}
	return &Producer{writer: writer, prefix: prefix}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishTransactions writes one message per committed record, keyed by hash
// so every observation of a transaction lands on the same partition. Records
// that do not encode are skipped; the call fails only when none remain.
func (p *Producer) PublishTransactions(ctx context.Context, network domain.Network, address string, records []domain.TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, span := otel.Tracer("txsync/kafka").Start(ctx, "txsync.publish_transactions", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("network", network.Key),
		attribute.Int64("chain.id", int64(network.ChainID)),
		attribute.Int("tx.count", len(records)),
	)

	var traceID string
	if sc := span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	topic := p.topicForChain(network.ChainID)
	messages := make([]kafka.Message, 0, len(records))
	var encodeErr error
	for _, record := range records {
		msg := streaming.NewTransactionMessage(network, address, record)
		msg.TraceID = traceID
		payload, err := streaming.Encode(msg)
		if err != nil {
			encodeErr = err
			slog.Warn("skip transaction message", "network", network.Key, "hash", record.Hash, "err", err)
			continue
		}
		headers := make([]kafka.Header, 0, 2)
		injectHeaders(ctx, &headers)
		messages = append(messages, kafka.Message{
			Topic:   topic,
			Key:     []byte(record.Hash),
			Value:   payload,
			Headers: headers,
		})
	}
	if len(messages) == 0 {
		err := fmt.Errorf("no publishable transactions: %w", encodeErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.Int("tx.skipped", len(records)-len(messages)))
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (p *Producer) topicForChain(chainID uint64) string {
	return fmt.Sprintf("%s-%d", p.prefix, chainID)
}
