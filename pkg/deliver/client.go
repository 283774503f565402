// Package deliver is the HTTP client for the storage API. The crawl
// runner pushes extracted records through it, and the notification
// pipeline reads records and subscriptions back through it.
package deliver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/uniscope/uniscope/pkg/crawl"
	"github.com/uniscope/uniscope/pkg/domain"
)

// Client talks to the storage API. When an events channel is set, the
// id of every newly created record is pushed there so the matching
// pipeline can react without the crawl blocking on it.
type Client struct {
	base   string
	client *http.Client
	events chan<- int64
}

// New makes a storage API client, events may be nil
func New(base string, timeout time.Duration, events chan<- int64) *Client {
	return &Client{
		base:   base,
		client: &http.Client{Timeout: timeout},
		events: events,
	}
}

// Deliver posts one record to the storage API and classifies the
// response. A 409 means the store already holds a record with the same
// content hash and is a normal skip. Implements crawl.Sink.
func (c *Client) Deliver(ctx context.Context, rec *domain.Record) (crawl.DeliveryStatus, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return crawl.Rejected, fmt.Errorf("marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/news", bytes.NewReader(body))
	if err != nil {
		return crawl.Rejected, fmt.Errorf("make request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return crawl.Rejected, fmt.Errorf("post record: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var created domain.Record
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return crawl.Delivered, fmt.Errorf("decode created record: %w", err)
		}
		c.notifyCreated(created.ID)
		return crawl.Delivered, nil
	case http.StatusConflict:
		return crawl.Duplicate, nil
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return crawl.Rejected, fmt.Errorf("storage api returned %d: %s", resp.StatusCode, string(msg))
	}
}

// notifyCreated pushes the new record id without blocking, a full
// channel drops the event and the record simply waits for the next
// digest pass
func (c *Client) notifyCreated(id int64) {
	if c.events == nil {
		return
	}
	select {
	case c.events <- id:
	default:
		lgr.Printf("[WARN] match queue full, dropped record %d", id)
	}
}

// Record fetches a single stored record by id
func (c *Client) Record(ctx context.Context, id int64) (*domain.Record, error) {
	var rec domain.Record
	if err := c.get(ctx, fmt.Sprintf("%s/api/news/%d", c.base, id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// InstantSubscriptions lists active subscriptions with instant delivery
func (c *Client) InstantSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	url := c.base + "/api/subscriptions?active=true&frequency=instant"
	if err := c.get(ctx, url, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// CreateNotification records one delivery attempt outcome
func (c *Client) CreateNotification(ctx context.Context, n *domain.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/notifications", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("make request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("storage api returned %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("make request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("storage api returned %d: %s", resp.StatusCode, string(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
