package worker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"research-chatbot/internal/cache"
	"research-chatbot/internal/metrics"
	"research-chatbot/internal/model"
	"research-chatbot/internal/repository"
)

// TurnPersistWorker drains the turn persist queue and writes each turn to
// MySQL, then clears the session's dirty marker so the history cache can be
// rebuilt. Deliveries are acked only after a successful write; a failed write
// is requeued once and dropped on the second failure.
type TurnPersistWorker struct {
	channel *amqp.Channel
	queue   string
	turns   *repository.TurnRepository
	history *cache.HistoryCache
	log     *zap.Logger
}

func NewTurnPersistWorker(
	channel *amqp.Channel,
	queue string,
	turns *repository.TurnRepository,
	history *cache.HistoryCache,
	log *zap.Logger,
) *TurnPersistWorker {
	return &TurnPersistWorker{
		channel: channel,
		queue:   queue,
		turns:   turns,
		history: history,
		log:     log,
	}
}

// Start consumes until ctx is cancelled or the delivery channel closes.
func (w *TurnPersistWorker) Start(ctx context.Context) error {
	if err := w.channel.Qos(16, 0, false); err != nil {
		return fmt.Errorf("set channel qos failed: %w", err)
	}

	deliveries, err := w.channel.Consume(
		w.queue,
		"turn-persist-worker",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume queue %s failed: %w", w.queue, err)
	}

	w.log.Info("turn persist worker started", zap.String("queue", w.queue))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("turn persist worker stopping")
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", w.queue)
			}
			w.handle(ctx, delivery)
		}
	}
}

func (w *TurnPersistWorker) handle(ctx context.Context, delivery amqp.Delivery) {
	var turn model.Turn
	if err := json.Unmarshal(delivery.Body, &turn); err != nil {
		w.log.Error("drop malformed turn message", zap.Error(err))
		_ = delivery.Nack(false, false)
		return
	}

	if err := w.turns.Create(&turn); err != nil {
		requeue := !delivery.Redelivered
		w.log.Error("persist turn failed",
			zap.String("session_id", turn.SessionID),
			zap.Bool("requeue", requeue),
			zap.Error(err))
		_ = delivery.Nack(false, requeue)
		return
	}

	if w.history != nil {
		if err := w.history.ClearDirty(ctx, turn.SessionID); err != nil {
			w.log.Warn("clear dirty marker failed",
				zap.String("session_id", turn.SessionID), zap.Error(err))
		}
	}

	metrics.TurnsPersisted.Inc()
	_ = delivery.Ack(false)
}
