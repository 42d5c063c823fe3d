package schedclient

import (
	"context"
	"net/http"
	"strconv"

	"github.com/stagehand-io/stagehand/pkg/metrics"
)

// StartBatch opens a new submission batch. After Close the call is a
// silent no-op.
func (c *Client) StartBatch(ctx context.Context) error {
	if c.isClosed() {
		return nil
	}
	c.batchMu.Lock()
	defer c.batchMu.Unlock()
	c.tasksInBatch = 0
	return c.do(ctx, "startBatch", http.MethodPost, c.runPath("/scheduler/startBatch"), nil, nil)
}

// StartSubmit announces one task submission. When the open batch is full
// it is flushed and a new one opened, with the announced task as its first
// member.
func (c *Client) StartSubmit(ctx context.Context) error {
	if c.isClosed() {
		return nil
	}
	c.batchMu.Lock()
	defer c.batchMu.Unlock()

	metrics.TasksSubmitted.Inc()
	if c.tasksInBatch < c.cfg.BatchSize {
		c.tasksInBatch++
		return nil
	}

	// this submission no longer fits: flush the full batch and open a new
	// one with the announced task as its first member
	if err := c.endBatch(ctx, c.cfg.BatchSize); err != nil {
		return err
	}
	if err := c.do(ctx, "startBatch", http.MethodPost, c.runPath("/scheduler/startBatch"), nil, nil); err != nil {
		return err
	}
	c.tasksInBatch = 1
	return nil
}

// EndBatch flushes the open batch.
func (c *Client) EndBatch(ctx context.Context) error {
	if c.isClosed() {
		return nil
	}
	c.batchMu.Lock()
	defer c.batchMu.Unlock()
	return c.endBatch(ctx, c.tasksInBatch)
}

// endBatch reports the closed batch size. Callers hold batchMu.
func (c *Client) endBatch(ctx context.Context, count int) error {
	err := c.do(ctx, "endBatch", http.MethodPost, c.runPath("/scheduler/endBatch"), strconv.Itoa(count), nil)
	if err != nil {
		return err
	}
	metrics.BatchesClosed.Inc()
	return nil
}

// BatchState returns the current batch occupancy, for tests and
// diagnostics.
func (c *Client) BatchState() (tasksInBatch, batchSize int) {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()
	return c.tasksInBatch, c.cfg.BatchSize
}
