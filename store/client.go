// Package store implements the partition store client: push one aggregated
// snapshot, load all snapshots in a partition, delete snapshots in a
// creation-time range.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	appconfig "depthflow/config"
	"depthflow/internal/errs"
	"depthflow/internal/partition"
	"depthflow/logger"
	"depthflow/models"
)

// Client talks to the remote document store over HTTP. Partitions are
// addressed as classes named by partition.Key; records are appended with
// POST, read back with GET and removed with a range DELETE. Identity and
// key credentials ride on every request.
type Client struct {
	config  *appconfig.Config
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Log
}

// NewClient builds a store client from the store section of the config.
func NewClient(cfg *appconfig.Config) *Client {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        cfg.Store.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Store.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     cfg.Store.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.Store.ConnectionPool.IdleConnTimeout,
		DisableCompression:  false,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.Store.Timeout,
	}

	limiter := rate.NewLimiter(
		rate.Limit(cfg.Store.RateLimit.RequestsPerSecond),
		cfg.Store.RateLimit.BurstSize,
	)

	client := &Client{
		config:  cfg,
		client:  httpClient,
		limiter: limiter,
		log:     log,
	}

	log.WithComponent("store_client").WithFields(logger.Fields{
		"base_uri": cfg.Store.BaseURI,
		"timeout":  cfg.Store.Timeout,
	}).Info("store client initialized")

	return client
}

// pushBody is the wire form of a StoredRecord on the write path.
type pushBody struct {
	Asks    []models.AggregatedLevel `json:"asks"`
	Bids    []models.AggregatedLevel `json:"bids"`
	Created int64                    `json:"created"`
	Source  string                   `json:"source"`
}

// loadResult is the wire form on the read path. The store returns the
// provenance tag under "from".
type loadResult struct {
	Asks    []models.AggregatedLevel `json:"asks"`
	Bids    []models.AggregatedLevel `json:"bids"`
	Created int64                    `json:"created"`
	From    string                   `json:"from"`
}

type loadResponse struct {
	Results []loadResult `json:"results"`
}

type deleteResponse struct {
	Count int `json:"count"`
}

// Push appends one record to the partition's collection, creating the
// collection implicitly if absent. Pushes are not idempotent: pushing the
// same snapshot twice stores it twice. Callers push at most once per
// aggregation cycle per symbol.
func (c *Client) Push(ctx context.Context, key partition.Key, rec models.StoredRecord) error {
	body, err := json.Marshal(pushBody{
		Asks:    rec.Asks,
		Bids:    rec.Bids,
		Created: rec.Created,
		Source:  rec.Source,
	})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	uri := c.classURI(key)
	_, err = c.send(ctx, "push", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}

	logger.IncrementStorePush()
	c.log.WithComponent("store_client").WithFields(logger.Fields{
		"partition": key.Class(),
		"created":   rec.Created,
		"levels":    rec.LevelCount(),
	}).Info("record pushed")

	return nil
}

// Load retrieves every record currently held in the partition. The store
// pages responses; Load follows the pages and presents one complete
// sequence to the caller.
func (c *Client) Load(ctx context.Context, key partition.Key) ([]models.StoredRecord, error) {
	pageSize := c.config.Store.PageSize
	var records []models.StoredRecord

	for skip := 0; ; skip += pageSize {
		uri := c.classURI(key)
		q := url.Values{}
		q.Set("limit", strconv.Itoa(pageSize))
		if skip > 0 {
			q.Set("skip", strconv.Itoa(skip))
		}
		pageURI := uri + "?" + q.Encode()

		body, err := c.send(ctx, "load", func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, pageURI, nil)
		})
		if err != nil {
			return nil, err
		}

		var page loadResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode load response: %w", err)
		}

		for _, r := range page.Results {
			records = append(records, models.StoredRecord{
				Asks:    r.Asks,
				Bids:    r.Bids,
				Created: r.Created,
				Source:  r.From,
			})
		}

		if len(page.Results) < pageSize {
			break
		}
	}

	logger.IncrementStoreLoad()
	c.log.WithComponent("store_client").WithFields(logger.Fields{
		"partition": key.Class(),
		"records":   len(records),
	}).Info("partition loaded")

	return records, nil
}

// DeleteRange removes all records in the partition whose creation time
// falls in [start, end). It returns the number of records deleted.
func (c *Client) DeleteRange(ctx context.Context, key partition.Key, start, end int64) (int, error) {
	where, err := json.Marshal(map[string]interface{}{
		"created": map[string]int64{"$gte": start, "$lt": end},
	})
	if err != nil {
		return 0, fmt.Errorf("marshal where clause: %w", err)
	}

	q := url.Values{}
	q.Set("where", string(where))
	uri := c.classURI(key) + "?" + q.Encode()

	body, err := c.send(ctx, "delete", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, uri, nil)
	})
	if err != nil {
		return 0, err
	}

	var res deleteResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &res); err != nil {
			return 0, fmt.Errorf("decode delete response: %w", err)
		}
	}

	logger.IncrementStoreDelete()
	c.log.WithComponent("store_client").WithFields(logger.Fields{
		"partition": key.Class(),
		"start":     start,
		"end":       end,
		"deleted":   res.Count,
	}).Info("range deleted")

	return res.Count, nil
}

func (c *Client) classURI(key partition.Key) string {
	return fmt.Sprintf("%s/1.1/classes/%s", strings.TrimSuffix(c.config.Store.BaseURI, "/"), key.Class())
}

// send executes one request with auth headers, bounded retries and backoff.
// Transient failures (network errors, 5xx) are retried up to the configured
// attempt count; auth rejections and other client errors fail immediately.
func (c *Client) send(ctx context.Context, op string, newReq func() (*http.Request, error)) ([]byte, error) {
	retry := c.config.Store.Retry
	delay := retry.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			c.log.WithComponent("store_client").WithFields(logger.Fields{
				"operation": op,
				"attempt":   attempt,
				"delay":     delay,
			}).Warn("retrying after transient failure")

			select {
			case <-ctx.Done():
				return nil, &errs.TransientError{Op: op, Err: ctx.Err()}
			case <-time.After(delay):
			}

			delay *= time.Duration(retry.BackoffMultiplier)
			if delay > retry.MaxDelay {
				delay = retry.MaxDelay
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &errs.TransientError{Op: op, Err: err}
		}

		req, err := newReq()
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-LC-Id", c.config.Store.AppID)
		req.Header.Set("X-LC-Key", c.config.Store.AppKey)

		body, err := c.once(op, req)
		if err == nil {
			return body, nil
		}
		if !errs.IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

func (c *Client) once(op string, req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &errs.TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.TransientError{Op: op, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &errs.AuthError{Op: op, Status: resp.StatusCode}
	case resp.StatusCode >= 500:
		return nil, &errs.TransientError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("store %s: unexpected status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
