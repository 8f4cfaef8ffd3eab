// Package db manages PostgreSQL connections: a primary for writes and
// optional round-robin read replicas for scoped list queries.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/tradegate/tradegate/pkg/observability"
)

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	PrimaryURL   string
	ReplicaURLs  []string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
	PingTimeout  time.Duration
}

// ConnectionManager manages the primary and read replica connections
type ConnectionManager struct {
	primary  *sql.DB
	replicas []*sql.DB
	current  uint32
	mu       sync.RWMutex
}

// NewConnectionManager opens and verifies the primary connection plus any
// configured replicas. Replicas are optional; failures there are logged and
// skipped rather than fatal.
func NewConnectionManager(cfg ConnectionConfig, logger *observability.Logger) (*ConnectionManager, error) {
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 10 * time.Second
	}

	primary, err := open(cfg.PrimaryURL, cfg.MaxOpenConns, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to primary: %w", err)
	}

	cm := &ConnectionManager{primary: primary}

	for i, url := range cfg.ReplicaURLs {
		maxConns := cfg.MaxOpenConns / 2
		if maxConns < 2 {
			maxConns = 2
		}
		replica, err := open(url, maxConns, cfg)
		if err != nil {
			logger.WithError(err).Warnf("skipping replica %d", i)
			continue
		}
		cm.replicas = append(cm.replicas, replica)
	}

	logger.WithField("replicas", len(cm.replicas)).Info("database connections established")
	return cm, nil
}

func open(url string, maxOpen int, cfg ConnectionConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Primary returns the write connection
func (cm *ConnectionManager) Primary() *sql.DB {
	return cm.primary
}

// Replica returns a read replica by round-robin, falling back to the
// primary when none are configured.
func (cm *ConnectionManager) Replica() *sql.DB {
	cm.mu.RLock()
	count := len(cm.replicas)
	cm.mu.RUnlock()
	if count == 0 {
		return cm.primary
	}

	index := atomic.AddUint32(&cm.current, 1)

	cm.mu.RLock()
	replica := cm.replicas[int(index%uint32(count))]
	cm.mu.RUnlock()
	return replica
}

// Close closes all connections
func (cm *ConnectionManager) Close() error {
	var firstErr error
	if err := cm.primary.Close(); err != nil {
		firstErr = err
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, r := range cm.replicas {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
