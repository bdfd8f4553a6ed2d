package config

import (
	"github.com/raphaelgruber/portalsync/internal/db"
	"github.com/raphaelgruber/portalsync/internal/metrics"
	"github.com/raphaelgruber/portalsync/internal/models"
	"github.com/raphaelgruber/portalsync/internal/reconcile"
	"github.com/raphaelgruber/portalsync/internal/service"
	"github.com/raphaelgruber/portalsync/internal/warehouse"
)

// SurrealDB returns the document store connection settings.
func (c Config) SurrealDB() db.Config {
	return db.Config{
		URL:       c.SurrealDBURL,
		Namespace: c.SurrealDBNamespace,
		Database:  c.SurrealDBDatabase,
		Username:  c.SurrealDBUser,
		Password:  c.SurrealDBPass,
		AuthLevel: c.SurrealDBAuthLevel,
		Tables: map[models.Kind]string{
			models.KindLocation: c.LocationsTable,
			models.KindJob:      c.JobsTable,
			models.KindMedia:    c.MediaTable,
		},
		PageSize: c.PageSize,
	}
}

// Warehouse returns the relational store settings.
func (c Config) Warehouse() warehouse.Config {
	return warehouse.Config{
		Driver:           c.DBDriver,
		DSN:              c.DBDSN,
		MaxConns:         int32(c.DBMaxConns),
		MinConns:         int32(c.DBMinConns),
		MaxConnLifetime:  c.DBMaxConnLifetime,
		StatementTimeout: c.DBStatementTimeout,
	}
}

// SyncOptions returns the orchestrator settings.
func (c Config) SyncOptions(collector *metrics.Collector) service.Options {
	return service.Options{
		Concurrency: c.Concurrency,
		GBPerHour:   c.GBPerHour,
		Breaker: reconcile.BreakerConfig{
			ConsecutiveFailures: uint32(c.BreakerFailures),
			OpenTimeout:         c.BreakerTimeout,
		},
		Collector: collector,
	}
}
