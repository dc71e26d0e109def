package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"pharmapos/internal/events"
)

var ErrStreamGaveUp = errors.New("event stream: too many failed attempts")

const maxFrameSize = 8 << 20

// Subscribe follows the server's event stream and calls handle for every
// event. It reconnects after a dropped stream, waiting RetryDelay times the
// attempt number, and gives up after MaxFailures consecutive failures. It
// returns when ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context, handle func(events.Event)) error {
	limit := c.MaxFailures
	if limit <= 0 {
		limit = 5
	}
	failures := 0
	for {
		connected, err := c.streamOnce(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			failures = 0
		}
		failures++
		if failures >= limit {
			return fmt.Errorf("%w: %v", ErrStreamGaveUp, err)
		}

		wait := c.RetryDelay * time.Duration(failures)
		log.Printf("[client] event stream lost (%v), retry %d/%d in %s", err, failures, limit, wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// streamOnce reads one connection until it ends. connected reports whether
// the server accepted the stream.
func (c *Client) streamOnce(ctx context.Context, handle func(events.Event)) (connected bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/products/updates", nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, decodeAPIError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxFrameSize)
	for scanner.Scan() {
		payload, ok := strings.CutPrefix(scanner.Text(), "data:")
		if !ok {
			continue
		}
		ev, err := events.Decode([]byte(strings.TrimSpace(payload)))
		if err != nil {
			log.Printf("[client] skip malformed event: %v", err)
			continue
		}
		handle(ev)
	}
	if err := scanner.Err(); err != nil {
		return true, err
	}
	return true, errors.New("stream closed by server")
}
