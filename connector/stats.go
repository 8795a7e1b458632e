package connector

import "time"

// Stats is a snapshot of the manager and the underlying database/sql pool.
type Stats struct {
	PoolSize        int
	Active          int
	Open            int
	Idle            int
	WaitCount       int64
	WaitDuration    time.Duration
	Acquired        uint64
	Timeouts        uint64
	Retries         uint64
	Discarded       uint64
	ForcedRollbacks uint64
}

func (m *Manager) Stats() Stats {
	db := m.db.Stats()
	return Stats{
		PoolSize:        m.cfg.PoolSize,
		Active:          int(m.active.Load()),
		Open:            db.OpenConnections,
		Idle:            db.Idle,
		WaitCount:       db.WaitCount,
		WaitDuration:    db.WaitDuration,
		Acquired:        m.acquired.Load(),
		Timeouts:        m.timeouts.Load(),
		Retries:         m.retries.Load(),
		Discarded:       m.discarded.Load(),
		ForcedRollbacks: m.forced.Load(),
	}
}
