package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/greenops/inference-energy/internal/dataset"
	"github.com/greenops/inference-energy/internal/protocol"
	"github.com/greenops/inference-energy/internal/store"
)

// BatchWriter consumes inference events from Kafka and batch-writes them to
// the observations table. Offsets are committed only after a batch is
// stored; malformed events are skipped and committed so they are never
// redelivered.
type BatchWriter struct {
	consumer      *Consumer
	db            *store.DB
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(consumer *Consumer, db *store.DB, batchSize int, flushInterval time.Duration) *BatchWriter {
	return &BatchWriter{
		consumer:      consumer,
		db:            db,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming and writing to the database
func (bw *BatchWriter) Start(ctx context.Context) error {
	bw.wg.Add(1)
	go bw.run(ctx)
	return nil
}

// Stop stops the batch writer gracefully
func (bw *BatchWriter) Stop() {
	close(bw.stopCh)
	bw.wg.Wait()
}

func (bw *BatchWriter) run(ctx context.Context) {
	defer bw.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	msgChan := make(chan kafka.Message, 10)
	go func() {
		for {
			msg, err := bw.consumer.Consume(ctx)
			if err != nil {
				select {
				case <-bw.stopCh:
					return
				default:
				}
				fmt.Printf("Consumer error: %v\n", err)
				continue
			}
			select {
			case msgChan <- msg:
			case <-bw.stopCh:
				return
			}
		}
	}()

	for {
		select {
		case <-bw.stopCh:
			// Flush remaining batch before stopping
			if len(batch) > 0 {
				bw.flush(ctx, batch)
			}
			return

		case <-ticker.C:
			if len(batch) > 0 {
				bw.flush(ctx, batch)
				batch = nil
			}

		case msg := <-msgChan:
			batch = append(batch, msg)
			if len(batch) >= bw.batchSize {
				bw.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

func (bw *BatchWriter) flush(ctx context.Context, batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}

	raws := make([]dataset.Raw, 0, len(batch))
	skipped := 0
	for _, msg := range batch {
		event, err := protocol.DecodeInferenceEvent(msg.Value)
		if err != nil {
			fmt.Printf("Skipping undecodable event (partition=%d, offset=%d): %v\n",
				msg.Partition, msg.Offset, err)
			skipped++
			continue
		}
		raw, err := event.Parse()
		if err != nil {
			fmt.Printf("Skipping invalid event (partition=%d, offset=%d): %v\n",
				msg.Partition, msg.Offset, err)
			skipped++
			continue
		}
		raws = append(raws, raw)
	}

	if err := bw.db.InsertObservations(ctx, raws); err != nil {
		// Batch stays uncommitted and will be redelivered.
		fmt.Printf("Failed to store batch of %d observations: %v\n", len(raws), err)
		return
	}

	if err := bw.consumer.Commit(ctx, batch...); err != nil {
		fmt.Printf("Failed to commit offsets: %v\n", err)
	}

	fmt.Printf("Stored batch of %d observations (%d skipped)\n", len(raws), skipped)
}
