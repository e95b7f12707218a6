package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CopyFn inserts rows aligned to columns and returns how many were inserted.
// It should cancel promptly when ctx is done.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadStats are the totals of one LoadBatches call.
type LoadStats struct {
	Inserted int64
	Batches  int64
}

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn for each non-empty batch. It returns the totals reported by
// copyFn and the first error encountered. Batches committed before an error
// stay committed.
//
// Cancellation: returns ctx.Err() when canceled. Progress is logged at debug
// level on each successful flush.
func LoadBatches(
	ctx context.Context,
	log *slog.Logger,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (LoadStats, error) {
	var st LoadStats
	if batchSize <= 0 {
		return st, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return st, fmt.Errorf("copyFn must not be nil")
	}

	var (
		batch       = make([][]any, 0, batchSize)
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		st.Inserted += n

		// Rows are not retained by copyFn; keep capacity.
		batch = batch[:0]

		if err != nil {
			log.Error("Insert batch failed", "batch", st.Batches+1, "total_inserted", st.Inserted, "error", err)
			return err
		}

		st.Batches++
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(st.Inserted-lastTotal) / sinceLast.Seconds()
		}
		log.Debug("Batch inserted",
			"batch", st.Batches,
			"rows", n,
			"total_inserted", st.Inserted,
			"rps", int64(rps),
			"elapsed", now.Sub(start).Truncate(time.Millisecond),
		)
		lastFlushTS = now
		lastTotal = st.Inserted
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return st, ctx.Err()

		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return st, err
				}
				return st, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return st, err
				}
			}
		}
	}
}
