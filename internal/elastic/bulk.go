package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const bulkRetries = 3

// bulkBackoff is the initial retry delay, doubled per attempt. Variable so
// tests do not sleep.
var bulkBackoff = time.Second

// BulkReport summarizes one bulk ingestion.
type BulkReport struct {
	Indexed int
	// Failed counts documents Elasticsearch rejected after retries ran out.
	Failed int
	// Batches is the number of bulk requests sent.
	Batches int
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// BulkIngest submits documents to one index in fixed-size batches. A failed
// batch is retried up to three times with doubling backoff; when a batch
// still fails its documents are counted and the remaining batches proceed.
// An error is returned only when every batch failed.
func (c *Client) BulkIngest(ctx context.Context, index string, docs []map[string]any, batchSize int) (*BulkReport, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	report := &BulkReport{}
	var lastErr error

	for start := 0; start < len(docs); start += batchSize {
		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]
		report.Batches++

		indexed, err := c.sendBatchRetry(ctx, index, batch)
		report.Indexed += indexed
		report.Failed += len(batch) - indexed
		if err != nil {
			lastErr = err
			c.logger.WarnContext(ctx, "bulk batch failed", "index", index, "docs", len(batch), "error", err)
		}
	}

	if report.Indexed == 0 && lastErr != nil {
		return report, fmt.Errorf("bulk ingest into %s: %w", index, lastErr)
	}
	return report, nil
}

func (c *Client) sendBatchRetry(ctx context.Context, index string, batch []map[string]any) (int, error) {
	body, err := encodeBulk(index, batch)
	if err != nil {
		return 0, err
	}

	backoff := bulkBackoff
	var lastErr error
	for attempt := 0; attempt < bulkRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		indexed, err := c.sendBatch(ctx, body)
		if err == nil {
			return indexed, nil
		}
		lastErr = err
	}
	return 0, lastErr
}

func (c *Client) sendBatch(ctx context.Context, body []byte) (int, error) {
	var resp bulkResponse
	err := c.doJSON(ctx, "POST", c.baseURL+"/_bulk", "bulk index",
		"application/x-ndjson", bytes.NewReader(body), &resp)
	if err != nil {
		return 0, err
	}
	if !resp.Errors {
		return len(resp.Items), nil
	}
	indexed := 0
	for _, item := range resp.Items {
		for _, result := range item {
			if result.Status >= 200 && result.Status < 300 {
				indexed++
			}
		}
	}
	return indexed, nil
}

// encodeBulk renders the NDJSON bulk body: an action line then the document,
// for every document.
func encodeBulk(index string, batch []map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	action := fmt.Sprintf(`{"index":{"_index":%q}}`, index)
	enc := json.NewEncoder(&buf)
	for _, doc := range batch {
		buf.WriteString(action)
		buf.WriteByte('\n')
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode bulk document: %w", err)
		}
	}
	return buf.Bytes(), nil
}
