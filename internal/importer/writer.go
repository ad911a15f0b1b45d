package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/Spok95/stone-stock/internal/domain/slabs"
	"github.com/Spok95/stone-stock/internal/infra/metrics"
)

const (
	DefaultBatchSize = 200
	DefaultAttempts  = 3
	DefaultBaseDelay = time.Second
)

type BatchInserter interface {
	InsertBatch(ctx context.Context, batch []slabs.NewSlab) (int, error)
}

type WriterConfig struct {
	BatchSize int
	Attempts  int
	BaseDelay time.Duration
}

func (c WriterConfig) withDefaults() WriterConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	return c
}

type Writer struct {
	store BatchInserter
	cfg   WriterConfig
	log   *slog.Logger
}

func NewWriter(store BatchInserter, cfg WriterConfig, log *slog.Logger) *Writer {
	return &Writer{store: store, cfg: cfg.withDefaults(), log: log}
}

type WriteResult struct {
	Inserted int
	Failed   int
	Errors   []string
}

// BatchFunc вызывается после каждой пачки (успех или исчерпанные попытки).
type BatchFunc func(processed, inserted int, errs []string)

// Write пишет очередь пачками строго последовательно. Упавшая пачка не
// прерывает прогон: фиксируется одна ошибка на пачку, идём дальше.
func (w *Writer) Write(ctx context.Context, queue []slabs.NewSlab, onBatch BatchFunc) WriteResult {
	var res WriteResult
	processed := 0

	for start, batchNo := 0, 1; start < len(queue); start, batchNo = start+w.cfg.BatchSize, batchNo+1 {
		if err := ctx.Err(); err != nil {
			left := len(queue) - start
			res.Failed += left
			res.Errors = append(res.Errors, fmt.Sprintf("import interrompu: %d unités non insérées", left))
			w.log.Warn("import cancelled", "remaining", left, "err", err)
			break
		}

		end := min(start+w.cfg.BatchSize, len(queue))
		batch := queue[start:end]

		n, attempts, err := w.insertWithRetry(ctx, batch)
		processed += len(batch)
		if err != nil {
			res.Failed += len(batch)
			res.Errors = append(res.Errors,
				fmt.Sprintf("Lot %d (%d unités): échec après %d tentatives: %v", batchNo, len(batch), attempts, err))
			w.log.Error("batch insert failed", "batch", batchNo, "size", len(batch), "attempts", attempts, "err", err)
		} else {
			res.Inserted += n
			w.log.Debug("batch inserted", "batch", batchNo, "size", n, "attempts", attempts)
		}

		if onBatch != nil {
			onBatch(processed, res.Inserted, append([]string(nil), res.Errors...))
		}
	}
	return res
}

// linearBackoff: пауза base×n после n-й неудачной попытки, всего attempts попыток.
func linearBackoff(base time.Duration, attempts int) retry.Backoff {
	n := 0
	return retry.WithMaxRetries(uint64(attempts-1), retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return time.Duration(n) * base, false
	}))
}

func (w *Writer) insertWithRetry(ctx context.Context, batch []slabs.NewSlab) (int, int, error) {
	attempt := 0
	var inserted int
	err := retry.Do(ctx, linearBackoff(w.cfg.BaseDelay, w.cfg.Attempts), func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.ImportBatchRetries.Inc()
		}
		n, err := w.store.InsertBatch(ctx, batch)
		if err != nil {
			return retry.RetryableError(err)
		}
		inserted = n
		return nil
	})
	return inserted, attempt, err
}
