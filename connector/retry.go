package connector

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/Konsultn-Engineering/linsql/errs"
)

// backoff is exponential from BaseDelayMs, capped at MaxDelayMs, with
// optional jitter, for at most MaxAttempts tries in total.
func (m *Manager) backoff() retry.Backoff {
	r := m.cfg.Retry
	b := retry.NewExponential(time.Duration(r.BaseDelayMs) * time.Millisecond)
	b = retry.WithCappedDuration(time.Duration(r.MaxDelayMs)*time.Millisecond, b)
	if r.JitterPercent > 0 {
		b = retry.WithJitterPercent(uint64(r.JitterPercent), b)
	}
	return retry.WithMaxRetries(uint64(r.MaxAttempts-1), b)
}

// connect checks out a physical connection and validates it. Only
// transient failures are retried; statements are never retried.
func (m *Manager) connect(ctx context.Context) (*sql.Conn, error) {
	attempt := 0
	conn, err := retry.DoValue(ctx, m.backoff(), func(ctx context.Context) (*sql.Conn, error) {
		attempt++
		conn, err := m.db.Conn(ctx)
		if err == nil {
			if err = conn.PingContext(ctx); err != nil {
				discard(conn)
			}
		}
		if err == nil {
			return conn, nil
		}
		if attempt < m.cfg.Retry.MaxAttempts && m.transient(err) {
			m.retries.Add(1)
			m.logger.Warn("transient connection failure, retrying",
				"attempt", attempt,
				"max_attempts", m.cfg.Retry.MaxAttempts,
				"error", err)
			return nil, retry.RetryableError(err)
		}
		return nil, err
	})
	if err != nil {
		return nil, errs.Wrap(errs.ExecutionError, err, "connect failed after %d attempt(s)", attempt)
	}
	return conn, nil
}

// discard closes conn and keeps database/sql from reusing its driver
// connection.
func discard(conn *sql.Conn) {
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()
}
