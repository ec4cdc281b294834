package transport

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrRetriesExhausted is returned by Retry when MaxRetries is reached.
var ErrRetriesExhausted = errors.New("retry budget exhausted")

// Retry runs op until it returns a non-retryable result. After a
// retryable failure it waits RetryCooldown, probes the liveness URL until
// the network answers and then invokes op again. op must rebuild its
// request on every call. A reply timeout fires the disconnect hooks
// before waiting; every successful probe fires the reconnect hooks.
func (c *Client) Retry(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := 0
	for {
		err := op(ctx)
		code := CodeOf(err)
		if !code.Retryable() {
			return err
		}
		if ctx.Err() != nil {
			return &Error{Code: Aborted, Err: ctx.Err()}
		}
		attempts++
		if c.opts.MaxRetries > 0 && attempts > c.opts.MaxRetries {
			return errors.Join(ErrRetriesExhausted, err)
		}
		if code == ReplyTimeout {
			c.log.Warn("connection stalled", "attempt", attempts, "error", err)
			c.emit(&c.onDisconnect)
		} else {
			c.log.Warn("transient network error", "code", code, "attempt", attempts, "error", err)
		}
		if err := c.awaitLiveness(ctx); err != nil {
			return err
		}
		c.log.Info("reconnected", "attempt", attempts)
		c.emit(&c.onReconnect)
	}
}

// awaitLiveness sleeps RetryCooldown and probes until the liveness URL
// responds. Probes bypass the request cooldowns.
func (c *Client) awaitLiveness(ctx context.Context) error {
	for {
		if err := sleep(ctx, c.opts.RetryCooldown); err != nil {
			return &Error{Code: Aborted, Err: err}
		}
		if c.opts.LivenessURL == "" {
			return nil
		}
		_, err := c.do(ctx, http.MethodHead, c.opts.LivenessURL, nil, requestOptions{})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return &Error{Code: Aborted, Err: ctx.Err()}
		}
		c.log.Debug("liveness probe failed", "url", c.opts.LivenessURL, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
