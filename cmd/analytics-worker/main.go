package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MagnunAVF/boost-shortener/internal"
	applog "github.com/MagnunAVF/boost-shortener/internal/logger"
)

const (
	batchSize     = 100
	flushInterval = 2 * time.Second
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		slog.Warn(".env file not found, relying on env vars", "err", err)
	}

	applog.InitFromEnv()

	db, err := gorm.Open(postgres.Open(os.Getenv("DB_URL")), &gorm.Config{
		Logger: applog.NewGormLogger(os.Getenv("GORM_LOG_LEVEL")),
	})
	if err != nil {
		slog.Error("Unable to connect to database", "err", err)
		os.Exit(1)
	}

	rabbitConn, err := amqp091.Dial(os.Getenv("RABBITMQ_URL"))
	if err != nil {
		slog.Error("Unable to connect to RabbitMQ", "err", err)
		os.Exit(1)
	}
	defer rabbitConn.Close()

	rabbitCH, err := rabbitConn.Channel()
	if err != nil {
		slog.Error("Unable to open RabbitMQ channel", "err", err)
		os.Exit(1)
	}
	defer rabbitCH.Close()

	queueName := os.Getenv("CLICK_QUEUE_NAME")
	q, err := rabbitCH.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		slog.Error("Failed to declare queue", "queue", queueName, "err", err)
		os.Exit(1)
	}

	// Grab up to one full batch per round trip.
	if err := rabbitCH.Qos(batchSize, 0, false); err != nil {
		slog.Error("Failed to set QoS", "err", err)
		os.Exit(1)
	}

	msgs, err := rabbitCH.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		slog.Error("Failed to register consumer", "err", err)
		os.Exit(1)
	}

	slog.Info("Analytics Worker started. Waiting for click events...")
	consumeLoop(db, msgs)
}

// consumeLoop batches click events and flushes when a batch fills up or the
// flush ticker fires. Returns when the delivery channel closes.
func consumeLoop(db *gorm.DB, msgs <-chan amqp091.Delivery) {
	var events []internal.ClickEvent
	var deliveries []amqp091.Delivery

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				slog.Warn("RabbitMQ channel closed")
				return
			}
			var event internal.ClickEvent
			if err := json.Unmarshal(d.Body, &event); err != nil {
				slog.Error("Error decoding message. Rejecting.", "err", err)
				// 'false' means don't re-queue
				d.Reject(false)
				continue
			}
			events = append(events, event)
			deliveries = append(deliveries, d)

			if len(events) >= batchSize {
				flushBatch(db, events, deliveries)
				events, deliveries = nil, nil
				ticker.Reset(flushInterval)
			}

		case <-ticker.C:
			if len(events) > 0 {
				slog.Info("Timer flush: processing queued events", "count", len(events))
				flushBatch(db, events, deliveries)
				events, deliveries = nil, nil
			}
		}
	}
}

// flushBatch upserts aggregated click counts in one transaction, then acks
// the batch. On transaction failure the whole batch is nacked and re-queued.
func flushBatch(db *gorm.DB, events []internal.ClickEvent, deliveries []amqp091.Delivery) {
	if len(events) == 0 {
		return
	}
	slog.Info("Processing batch of events", "count", len(events))

	counts := internal.AggregateClicks(events)

	err := db.Transaction(func(tx *gorm.DB) error {
		for shortCode, count := range counts {
			rec := internal.URLAnalytics{ShortCode: shortCode, ClickCount: count}
			if err := tx.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "short_code"}},
					DoUpdates: clause.Assignments(map[string]interface{}{
						"click_count": gorm.Expr("url_analytics.click_count + EXCLUDED.click_count"),
					}),
				},
			).Create(&rec).Error; err != nil {
				slog.Error("Error upserting click count", "short_code", shortCode, "err", err)
				return err
			}
		}
		return nil
	})

	if err != nil {
		slog.Error("Failed to process batch transaction. Nacking messages.", "err", err)
		for _, d := range deliveries {
			d.Nack(false, true)
		}
		return
	}

	for _, d := range deliveries {
		d.Ack(false)
	}
	slog.Info("Successfully processed and acked batch", "count", len(deliveries))
}
