package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/shopspring/decimal"
	"github.com/tidebank/ledger-core/configs"
	"github.com/tidebank/ledger-core/pkg"
	kafkautils "github.com/tidebank/ledger-core/pkg/kafka"
	"github.com/tidebank/ledger-core/pkg/models"
	"go.uber.org/zap"
)

// AuditPublisher emits an event for every committed ledger transaction.
// Publishing happens strictly after commit and is fire-and-forget: a publish
// failure is logged, never surfaced to the caller.
type AuditPublisher interface {
	PublishTransaction(traceID string, txn models.Transaction) error
	Close()
}

type auditEvent struct {
	TransactionID string                `json:"transactionId"`
	TraceID       string                `json:"traceId"`
	Type          pkg.TransactionType   `json:"type"`
	Status        pkg.TransactionStatus `json:"status"`
	Amount        decimal.Decimal       `json:"amount"`
	FromAccountID *string               `json:"fromAccountId,omitempty"`
	ToAccountID   *string               `json:"toAccountId,omitempty"`
	PerformedBy   string                `json:"performedBy"`
	CreatedAt     time.Time             `json:"createdAt"`
}

type KafkaAuditPublisherImpl struct {
	logger   *zap.Logger
	producer *kafka.Producer
	cnf      *configs.Config
}

// NewKafkaAuditPublisher creates and initializes an AuditPublisher with the provided logger and configuration parameters.
func NewKafkaAuditPublisher(logger *zap.Logger, ctx context.Context, cnf *configs.Config) AuditPublisher {
	// Initialize Kafka topics
	topicConfig := kafkautils.KafkaConfig{
		BootstrapServers: cnf.KafkaBrokers,
		Topics: []kafkautils.TopicConfig{
			{
				Topic:             cnf.KafkaAuditTopic,
				NumPartitions:     int(cnf.KafkaPartition),
				ReplicationFactor: 1,
				Config: map[string]string{
					// Audit trail: never expire, never compact away history.
					"cleanup.policy": "delete",
					"retention.ms":   "-1",
				},
			},
		},
	}
	err := kafkautils.InitKafkaTopics(logger, ctx, topicConfig)
	if err != nil {
		logger.Fatal("failed to initialize kafka topics", zap.Error(err))
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cnf.KafkaBrokers, // Kafka broker(s)
		"acks":               "all",            // Wait for all replicas
		"enable.idempotence": "true",           // Ensure messages are not sent twice
		"retries":            "1",              // Built-in retry mechanism
	})
	if err != nil {
		logger.Fatal("failed to create kafka producer", zap.Error(err))
	}
	logger.Info("kafka producer created successfully", zap.String("brokers", cnf.KafkaBrokers))
	go handleDeliveryReports(logger, p) // Async error handling
	return &KafkaAuditPublisherImpl{
		logger:   logger,
		producer: p,
		cnf:      cnf,
	}
}

func (k KafkaAuditPublisherImpl) PublishTransaction(traceID string, txn models.Transaction) error {
	event := auditEvent{
		TransactionID: txn.ID.String(),
		TraceID:       traceID,
		Type:          txn.Type,
		Status:        txn.Status,
		Amount:        txn.Amount,
		PerformedBy:   txn.PerformedByUser.String(),
		CreatedAt:     txn.CreatedAt,
	}
	if txn.FromAccountID.Valid {
		from := txn.FromAccountID.UUID.String()
		event.FromAccountID = &from
	}
	if txn.ToAccountID.Valid {
		to := txn.ToAccountID.UUID.String()
		event.ToAccountID = &to
	}

	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	// Deterministic partitioning by performing user for per-user ordering
	partition := int32(txn.PerformedByUser.ID() % k.cnf.KafkaPartition)

	// Produce the message asynchronously; delivery results are handled by handleDeliveryReports
	return k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &k.cnf.KafkaAuditTopic,
			Partition: partition,
		},
		Key:   txn.ID[:],
		Value: msgBytes,
	}, nil)
}

func (k KafkaAuditPublisherImpl) Close() {
	k.producer.Close()
}

func handleDeliveryReports(logger *zap.Logger, p *kafka.Producer) {
	for e := range p.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				logger.Error("failed to publish audit event", zap.Error(ev.TopicPartition.Error))
			}
		}
	}
}
