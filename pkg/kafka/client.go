// Package kafka provides the ingestion task queue.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ai-doc-chat-go/internal/config"
	"ai-doc-chat-go/pkg/database"
	"ai-doc-chat-go/pkg/log"
	"ai-doc-chat-go/pkg/tasks"
)

// TaskProcessor is any service that can process an ingestion task. It
// decouples the consumer loop from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.DocumentTask) error
}

var producer *kafka.Writer

// InitProducer initializes the Kafka producer.
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka producer initialized successfully")
}

// ProduceDocumentTask publishes a document ingestion task.
func ProduceDocumentTask(task tasks.DocumentTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}

	return producer.WriteMessages(context.Background(),
		kafka.Message{
			Value: taskBytes,
		},
	)
}

// StartConsumer runs a Kafka consumer that feeds ingestion tasks to the
// processor. Tasks are handled one at a time; a task that keeps failing is
// abandoned after three attempts so it cannot block the queue.
func StartConsumer(cfg config.KafkaConfig, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "ai-doc-chat-consumer",
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka consumer started, listening on topic '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("failed to read message from Kafka", err)
			break
		}

		log.Infof("received Kafka message: offset %d", m.Offset)

		var task tasks.DocumentTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("failed to parse Kafka message: %v, value: %s", err, string(m.Value))
			// Malformed message: commit so it does not block the queue.
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("failed to commit malformed message: %v", err)
			}
			continue
		}

		log.Infof("processing document task: documentID=%s, fileName=%s", task.DocumentID, task.FileName)
		if err := processor.Process(context.Background(), task); err != nil {
			log.Errorf("document task failed: documentID=%s, error: %v", task.DocumentID, err)
			// Count failures in Redis; commit the offset once the task has
			// failed three times so Kafka stops redelivering it.
			attemptsKey := fmt.Sprintf("kafka:attempts:%s", task.DocumentID)
			attempts, incErr := database.RDB.Incr(context.Background(), attemptsKey).Result()
			if incErr == nil {
				_ = database.RDB.Expire(context.Background(), attemptsKey, 24*time.Hour).Err()
			}
			if incErr != nil {
				// Redis unavailable: leave the offset uncommitted so Kafka retries.
				continue
			}
			if attempts >= 3 {
				log.Errorf("document task failed %d times, abandoning: documentID=%s", attempts, task.DocumentID)
				if err := r.CommitMessages(context.Background(), m); err != nil {
					log.Errorf("failed to commit Kafka offset: %v", err)
				}
			}
		} else {
			log.Infof("document task processed successfully: documentID=%s", task.DocumentID)
			_ = database.RDB.Del(context.Background(), fmt.Sprintf("kafka:attempts:%s", task.DocumentID)).Err()
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("failed to commit Kafka offset: %v", err)
			}
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("failed to close Kafka consumer: %v", err)
	}
}
