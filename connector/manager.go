// Package connector hands out exclusive connection handles from a bounded
// pool and demarcates transactions on them.
package connector

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/semaphore"

	"github.com/Konsultn-Engineering/linsql/dialect"
	"github.com/Konsultn-Engineering/linsql/errs"
)

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTransientClassifier replaces IsTransient for deciding which connect
// failures are retried.
func WithTransientClassifier(fn func(error) bool) Option {
	return func(m *Manager) {
		if fn != nil {
			m.transient = fn
		}
	}
}

// Manager owns the pool. At most PoolSize handles are active at once; an
// Acquire beyond that waits up to AcquireTimeout and then fails.
type Manager struct {
	db        *sql.DB
	cfg       Config
	dialect   dialect.Dialect
	sem       *semaphore.Weighted
	logger    *slog.Logger
	transient func(error) bool

	active    atomic.Int64
	acquired  atomic.Uint64
	timeouts  atomic.Uint64
	retries   atomic.Uint64
	discarded atomic.Uint64
	forced    atomic.Uint64
	closed    atomic.Bool
}

// New wraps an existing database. The manager takes ownership of db and
// closes it on Close.
func New(db *sql.DB, cfg Config, opts ...Option) (*Manager, error) {
	if db == nil {
		return nil, errors.New("connector: nil *sql.DB")
	}
	cfg.ApplyDefaults()
	if err := cfg.validatePool(); err != nil {
		return nil, err
	}
	d, err := dialect.ByName(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	configurePool(db, &cfg)

	m := &Manager{
		db:        db,
		cfg:       cfg,
		dialect:   d,
		sem:       semaphore.NewWeighted(int64(cfg.PoolSize)),
		logger:    slog.Default(),
		transient: IsTransient,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Open connects according to cfg and verifies one connection before
// returning.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Manager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := openDB(&cfg)
	if err != nil {
		return nil, err
	}
	m, err := New(db, cfg, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := m.WithConnection(ctx, func(*Handle) error { return nil }); err != nil {
		_ = db.Close()
		return nil, err
	}
	m.logger.Info("database opened",
		"dialect", m.dialect.Name(),
		"url", redact(cfg.URL),
		"pool_size", cfg.PoolSize)
	return m, nil
}

func (m *Manager) Dialect() dialect.Dialect { return m.dialect }
func (m *Manager) Config() Config           { return m.cfg }
func (m *Manager) Logger() *slog.Logger     { return m.logger }

// Acquire claims one connection for exclusive use. It fails with
// ConnectionAcquisitionTimeout if the pool stays exhausted for longer than
// AcquireTimeout. The handle must be released.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	if m.closed.Load() {
		return nil, errs.New(errs.ExecutionError, "connection manager is closed")
	}

	wait, cancel := context.WithTimeout(ctx, m.cfg.AcquireTimeout())
	err := m.sem.Acquire(wait, 1)
	cancel()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		m.timeouts.Add(1)
		m.logger.Warn("connection pool exhausted",
			"pool_size", m.cfg.PoolSize,
			"acquire_timeout", m.cfg.AcquireTimeout())
		return nil, errs.Wrap(errs.ConnectionAcquisitionTimeout, err,
			"no connection free within %s (pool size %d)", m.cfg.AcquireTimeout(), m.cfg.PoolSize)
	}

	conn, err := m.connect(ctx)
	if err != nil {
		m.sem.Release(1)
		return nil, err
	}

	m.active.Add(1)
	m.acquired.Add(1)
	h := &Handle{m: m, conn: conn, id: ulid.Make().String()}
	m.logger.Debug("connection acquired", "handle", h.id, "active", m.active.Load())
	return h, nil
}

// WithConnection runs fn with a fresh handle and releases it on every path,
// panics included.
func (m *Manager) WithConnection(ctx context.Context, fn func(*Handle) error) (err error) {
	h, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := h.Release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	return fn(h)
}

// WithTransaction runs body inside a transaction on h. It commits when body
// returns nil and rolls back when body fails or panics; the body's failure
// is returned with any rollback failure joined to it.
func (m *Manager) WithTransaction(ctx context.Context, h *Handle, body func(*Handle) error) (err error) {
	if err := h.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			if h.State() == TxActive {
				if rerr := h.Rollback(); rerr != nil {
					m.logger.Error("rollback after panic failed", "handle", h.id, "error", rerr)
				}
			}
			panic(p)
		}
	}()

	if err := body(h); err != nil {
		if h.State() != TxActive {
			return err
		}
		if rerr := h.Rollback(); rerr != nil {
			m.logger.Error("rollback failed", "handle", h.id, "error", rerr)
			return errors.Join(err, rerr)
		}
		return err
	}
	return h.Commit()
}

// Transaction acquires a handle and runs body in a transaction on it.
func (m *Manager) Transaction(ctx context.Context, body func(*Handle) error) error {
	return m.WithConnection(ctx, func(h *Handle) error {
		return m.WithTransaction(ctx, h, body)
	})
}

// Close stops new acquisitions, waits for active handles until ctx ends,
// then closes every physical connection.
func (m *Manager) Close(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	size := int64(m.cfg.PoolSize)
	if err := m.sem.Acquire(ctx, size); err != nil {
		m.logger.Warn("closing with active handles", "active", m.active.Load())
		return errors.Join(err, m.db.Close())
	}
	defer m.sem.Release(size)
	m.logger.Debug("connection manager closed")
	return m.db.Close()
}
